package main

import (
	"fmt"
	"os"

	"github.com/michcald/eeprog"
	"github.com/spf13/cobra"
)

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> [port] [addr]",
		Short: "Write a file to the memory",
		Long: `Write a file to the memory, starting at addr.

addr defaults to the load address of an Intel HEX image, else 0.
Use "-" as file to read stdin, and "-" as port for the configured transport.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(_ *cobra.Command, args []string) error {
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			addr, err := imageAddr(optArg(args, 2), img)
			if err != nil {
				return err
			}
			return withProgrammer(optArg(args, 1), func(_ eeprog.Config, p *eeprog.Programmer) error {
				return p.Upload(addr, img.Data)
			})
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file> [port] [addr]",
		Short: "Compare the memory with a file",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(_ *cobra.Command, args []string) error {
			img, err := readImage(args[0])
			if err != nil {
				return err
			}
			addr, err := imageAddr(optArg(args, 2), img)
			if err != nil {
				return err
			}
			return withProgrammer(optArg(args, 1), func(_ eeprog.Config, p *eeprog.Programmer) error {
				res, err := p.Verify(addr, img.Data)
				if err != nil {
					return err
				}
				if err := res.Err(); err != nil {
					fmt.Fprintln(os.Stderr, err)
					return err
				}
				fmt.Fprintf(os.Stderr, "verify OK: %d bytes match\n", res.Bytes)
				return nil
			})
		},
	}
}
