package eeprog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Transports selectable in Config.Transport.
const (
	TransportBitBang = "bitbang"
	TransportSerial  = "serial"
)

// Bit-bang adapters selectable in BitBangConfig.Adapter.
const (
	AdapterFTDI = "ftdi"
	AdapterGPIO = "gpio"
)

// Config is the on-disk configuration of the programmer.
//
// Example:
//
//	transport = "bitbang"
//	capacity = 131072
//
//	[bitbang]
//	adapter = "ftdi"
//	profile = "board-b"
//	ready_timeout = "50ms"
//
//	[profiles.board-b]
//	clock = 4
//	data_out = 5
//	data_in = 6
//	chip_select = 7
//
//	[serial]
//	port = "/dev/ttyACM0"
//	[serial.markers]
//	prompt = "$ "
type Config struct {
	// Transport is "bitbang" or "serial". Defaults to "bitbang".
	Transport string `toml:"transport"`
	// PageSize is the chip write page size. Defaults to 256.
	PageSize int `toml:"page_size"`
	// Capacity is the chip size in bytes, the default download length.
	// Defaults to 131072 (1 Mbit).
	Capacity int `toml:"capacity"`
	BitBang  BitBangConfig    `toml:"bitbang"`
	Serial   SerialPortConfig `toml:"serial"`
	// Profiles declares wiring profiles in addition to the built-in ones.
	Profiles map[string]PinMap `toml:"profiles"`
}

// BitBangConfig configures the bit-bang transport.
type BitBangConfig struct {
	// Adapter is "ftdi" or "gpio". Defaults to "ftdi".
	Adapter string     `toml:"adapter"`
	Profile string     `toml:"profile"`
	FTDI    FTDIConfig `toml:"ftdi"`
	GPIO    GPIONames  `toml:"gpio"`
	Debug   bool       `toml:"debug"`
	// SkipReadyPoll, see EEPROMConfig.
	SkipReadyPoll bool `toml:"skip_ready_poll"`
	// ReadyTimeout is a duration such as "100ms", see EEPROMConfig.
	ReadyTimeout string `toml:"ready_timeout"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		Transport: TransportBitBang,
		PageSize:  DefaultPageSize,
		Capacity:  128 * 1024,
		BitBang: BitBangConfig{
			Adapter: AdapterFTDI,
			Profile: DefaultProfile,
		},
		Serial: SerialPortConfig{
			Baud:      115200,
			ChunkSize: 64,
		},
	}
}

// LoadConfig reads the TOML file at path over the defaults.
// An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		globalLogger.Warn("config " + path + ": unknown keys " + strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportBitBang, TransportSerial:
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	switch c.BitBang.Adapter {
	case AdapterFTDI, AdapterGPIO:
	default:
		return fmt.Errorf("unknown bit-bang adapter %q", c.BitBang.Adapter)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must not be negative, got %d", c.Capacity)
	}
	for name, m := range c.Profiles {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("profile %s: %w", name, err)
		}
	}
	if _, err := c.ReadyTimeout(); err != nil {
		return err
	}
	return nil
}

// PinMap resolves the configured wiring profile, looking at the
// profiles of the file before the built-in ones.
func (c Config) PinMap() (PinMap, error) {
	name := c.BitBang.Profile
	if name == "" {
		name = DefaultProfile
	}
	if m, ok := c.Profiles[name]; ok {
		return m, nil
	}
	if m, ok := Profile(name); ok {
		return m, nil
	}
	return PinMap{}, fmt.Errorf("unknown wiring profile %q (known: %s)", name,
		strings.Join(c.ProfileNames(), ", "))
}

// ProfileNames lists every profile usable with this configuration.
func (c Config) ProfileNames() []string {
	names := Profiles()
	for name := range c.Profiles {
		if _, ok := profiles[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ReadyTimeout parses BitBang.ReadyTimeout. Zero means the default.
func (c Config) ReadyTimeout() (time.Duration, error) {
	if c.BitBang.ReadyTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.BitBang.ReadyTimeout)
	if err != nil {
		return 0, fmt.Errorf("ready timeout: %w", err)
	}
	return d, nil
}

// DefaultConfigPath returns $EEPROG_CONFIG, or ~/.eeprog.toml when that
// file exists, or "" for the built-in defaults.
func DefaultConfigPath() string {
	if path := os.Getenv("EEPROG_CONFIG"); path != "" {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(homeDir, ".eeprog.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
