package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/michcald/eeprog"
	"github.com/michcald/eeprog/hexdump"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <file> [port] [addr] [length]",
		Short: "Read the memory into a file",
		Long: `Read length bytes of memory starting at addr into a file.

length defaults to the rest of the chip, as given by the configured capacity.
Use "-" as file to write stdout, and "-" as port for the configured transport.`,
		Args: cobra.RangeArgs(1, 4),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			if name == "-" && format == eeprog.FormatRaw && term.IsTerminal(int(os.Stdout.Fd())) {
				return &eeprog.InputError{Arg: "file", Err: fmt.Errorf("refusing to write binary data to a terminal")}
			}
			addr, err := parseAddr(optArg(args, 2), 0)
			if err != nil {
				return err
			}
			return withProgrammer(optArg(args, 1), func(cfg eeprog.Config, p *eeprog.Programmer) error {
				n, err := parseLength(optArg(args, 3), max(cfg.Capacity-int(addr), 0))
				if err != nil {
					return err
				}
				if err := checkRange(addr, n); err != nil {
					return err
				}
				w, err := createOutput(name)
				if err != nil {
					return err
				}
				if err := download(p, w, addr, n); err != nil {
					w.Close()
					return err
				}
				if err := w.Close(); err != nil {
					return &eeprog.InputError{Arg: "file", Err: err}
				}
				return nil
			})
		},
	}
}

func download(p *eeprog.Programmer, w io.Writer, addr uint32, n int) error {
	if format == eeprog.FormatRaw {
		return p.Download(w, addr, n)
	}
	var buf bytes.Buffer
	if err := p.Download(&buf, addr, n); err != nil {
		return err
	}
	if err := eeprog.WriteImage(w, format, addr, buf.Bytes()); err != nil {
		return &eeprog.InputError{Arg: "file", Err: err}
	}
	return nil
}

// createOutput creates the output file, "-" being stdout.
func createOutput(name string) (io.WriteCloser, error) {
	if name == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, &eeprog.InputError{Arg: "file", Err: err}
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [addr] [length]",
		Short: "Print a hex dump of the memory",
		Long: `Print a hex dump of length bytes of memory starting at addr, every
line included. Defaults to 256 bytes at 0x380.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			addr, err := parseAddr(optArg(args, 0), 0x380)
			if err != nil {
				return err
			}
			n, err := parseLength(optArg(args, 1), 256)
			if err != nil {
				return err
			}
			if err := checkRange(addr, n); err != nil {
				return err
			}
			return withProgrammer("", func(_ eeprog.Config, p *eeprog.Programmer) error {
				s, err := p.Status()
				if err != nil {
					return err
				}
				fmt.Println(s)
				var buf bytes.Buffer
				if err := p.Download(&buf, addr, n); err != nil {
					return err
				}
				fmt.Print(hexdump.Dump(addr, buf.Bytes()))
				return nil
			})
		},
	}
}
