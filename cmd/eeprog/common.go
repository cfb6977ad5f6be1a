package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/michcald/eeprog"
)

// maxAddr is the last address reachable with 24 address bits.
const maxAddr = 1<<24 - 1

// loadConfig reads the config file and applies the command line overrides.
func loadConfig() (eeprog.Config, error) {
	path := configPath
	if path == "" {
		path = eeprog.DefaultConfigPath()
	}
	cfg, err := eeprog.LoadConfig(path)
	if err != nil {
		return cfg, &eeprog.InputError{Arg: "config", Err: err}
	}
	if transport != "" {
		cfg.Transport = transport
	}
	if profile != "" {
		cfg.BitBang.Profile = profile
	}
	if debug {
		cfg.BitBang.Debug = true
	}
	if noReadyPoll {
		cfg.BitBang.SkipReadyPoll = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, &eeprog.InputError{Arg: "config", Err: err}
	}
	return cfg, nil
}

// openTarget opens the configured transport. A port other than "" or "-"
// selects the serial proxy on that port.
func openTarget(cfg eeprog.Config, port string) (eeprog.Target, io.Closer, error) {
	if port != "" && port != "-" {
		cfg.Transport = eeprog.TransportSerial
		cfg.Serial.Port = port
	}

	if cfg.Transport == eeprog.TransportSerial {
		p, err := eeprog.OpenSerial(cfg.Serial)
		if err != nil {
			return nil, nil, err
		}
		t := eeprog.NewSerialTransport(p, eeprog.SerialConfig{
			ChunkSize: cfg.Serial.ChunkSize,
			Markers:   cfg.Serial.Markers,
		})
		return t, p, nil
	}

	m, err := cfg.PinMap()
	if err != nil {
		return nil, nil, &eeprog.InputError{Arg: "profile", Err: err}
	}
	timeout, err := cfg.ReadyTimeout()
	if err != nil {
		return nil, nil, &eeprog.InputError{Arg: "config", Err: err}
	}
	var (
		pins   eeprog.PinPort
		closer io.Closer = io.NopCloser(nil)
	)
	switch cfg.BitBang.Adapter {
	case eeprog.AdapterGPIO:
		pins, err = eeprog.OpenHostGPIO(cfg.BitBang.GPIO, m)
	default:
		pins, closer, err = eeprog.OpenFTDI(cfg.BitBang.FTDI, m)
	}
	if err != nil {
		return nil, nil, err
	}
	bus, err := eeprog.NewBus(pins, eeprog.BusConfig{Pins: m, Debug: cfg.BitBang.Debug})
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	ee := eeprog.NewEEPROM(bus, eeprog.EEPROMConfig{
		PageSize:      cfg.PageSize,
		SkipReadyPoll: cfg.BitBang.SkipReadyPoll,
		ReadyTimeout:  timeout,
	})
	return ee, closer, nil
}

// withProgrammer loads the config, opens the target and runs fn.
func withProgrammer(port string, fn func(eeprog.Config, *eeprog.Programmer) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, closer, err := openTarget(cfg, port)
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := []eeprog.Option{
		eeprog.WithProgressCallback(func(p eeprog.Progress) {
			fmt.Fprintf(os.Stderr, "%s: %d bytes at 0x%06X in %s\n", p.Op, p.Bytes, p.Addr, p.Elapsed.Round(time.Millisecond))
		}),
	}
	if dump {
		opts = append(opts, eeprog.WithDump(os.Stderr))
	}
	return fn(cfg, eeprog.NewProgrammer(target, opts...))
}

// optArg returns args[i], or "" if it was not given.
func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// parseAddr parses a 24-bit address, accepting 0x, 0o and 0b prefixes.
// An empty string yields def.
func parseAddr(s string, def uint32) (uint32, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, &eeprog.InputError{Arg: "address", Err: err}
	}
	if v > maxAddr {
		return 0, &eeprog.InputError{Arg: "address", Err: fmt.Errorf("0x%X exceeds 24 bits", v)}
	}
	return uint32(v), nil
}

// parseLength parses a byte count. An empty string yields def.
func parseLength(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 0, 31)
	if err != nil {
		return 0, &eeprog.InputError{Arg: "length", Err: err}
	}
	return int(v), nil
}

// checkRange rejects transfers running past the 24-bit address space.
func checkRange(addr uint32, n int) error {
	if uint64(addr)+uint64(n) > maxAddr+1 {
		return &eeprog.InputError{Arg: "length", Err: fmt.Errorf("0x%06X+%d runs past the address space", addr, n)}
	}
	return nil
}

// readImage reads the image file, "-" being stdin.
func readImage(name string) (eeprog.Image, error) {
	r := io.Reader(os.Stdin)
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return eeprog.Image{}, &eeprog.InputError{Arg: "file", Err: err}
		}
		defer f.Close()
		r = f
	}
	img, err := eeprog.ReadImage(r, format)
	if err != nil {
		return img, &eeprog.InputError{Arg: "file", Err: err}
	}
	return img, nil
}

// imageAddr picks the address given on the command line, else the one
// stored in the image, else 0.
func imageAddr(arg string, img eeprog.Image) (uint32, error) {
	def := uint32(0)
	if img.HasAddr {
		def = img.Addr
	}
	addr, err := parseAddr(arg, def)
	if err != nil {
		return 0, err
	}
	return addr, checkRange(addr, len(img.Data))
}
