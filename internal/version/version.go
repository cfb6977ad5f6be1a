// Package version formats the build information injected with ldflags.
package version

import (
	"fmt"
	"runtime"
)

// GetVersion returns the short version string, e.g. "v1.2.0-abcdef1".
func GetVersion(version, commit, buildTime string) string {
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		return version
	}
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return version + "-" + commit
}

// GetDetailedVersion returns the multi-line output of the version command.
func GetDetailedVersion(version, commit, buildTime string) string {
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	if buildTime == "" {
		buildTime = "unknown"
	}

	return fmt.Sprintf(`eeprog (SPI EEPROM programmer)
Version:    %s
Commit:     %s
Built:      %s
Go version: %s
OS/Arch:    %s/%s`,
		version, commit, buildTime,
		runtime.Version(),
		runtime.GOOS, runtime.GOARCH)
}
