package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/michcald/eeprog"
	"github.com/michcald/eeprog/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Build variables set by ldflags
	buildVersion string
	buildCommit  string
	buildTime    string
)

// flags shared by every command
var (
	configPath  string
	transport   string
	profile     string
	debug       bool
	dump        bool
	format      string
	noReadyPoll bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "eeprog",
		Short: "Program SPI EEPROMs over FTDI bit-bang or a serial proxy",
		Long: `eeprog reads, writes and verifies SPI EEPROMs such as the CAT25M01.

The chip is reached either through an FTDI adapter (or host GPIO pins)
driven in bit-bang mode, or through a microcontroller proxy on a serial
port. Passing a port to a command selects the serial proxy.`,
		Version:       version.GetVersion(buildVersion, buildCommit, buildTime),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			eeprog.SetLogger(eeprog.NewStdLogger(os.Stderr, debug))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default $EEPROG_CONFIG or ~/.eeprog.toml)")
	flags.StringVar(&transport, "transport", "", "Transport: bitbang or serial (overrides config)")
	flags.StringVar(&profile, "profile", "", "Bit-bang wiring profile (overrides config)")
	flags.BoolVar(&debug, "debug", false, "Log every byte on the bus")
	flags.BoolVar(&dump, "dump", false, "Print a hex dump of transferred data to stderr")
	flags.StringVar(&format, "format", eeprog.FormatRaw, "Image file format: raw or ihex")
	flags.BoolVar(&noReadyPoll, "no-ready-poll", false, "Do not wait for page writes to complete")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(eraseCmd())
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(portsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(report(os.Stderr, err))
	}
}

// report prints err to w and returns the exit code. A verify mismatch
// has already been summarized by the command.
func report(w io.Writer, err error) int {
	var mismatch *eeprog.MismatchError
	if errors.As(err, &mismatch) {
		return 1
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if eeprog.IsDeviceError(err) {
		fmt.Fprintln(w, "Check the adapter wiring and that the chip is powered; the chip state is unknown.")
	}
	return 1
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.GetDetailedVersion(buildVersion, buildCommit, buildTime))
		},
	}
}
