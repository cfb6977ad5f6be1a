package main

import (
	"fmt"

	"github.com/michcald/eeprog"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [port]",
		Short: "Read and decode the status register",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withProgrammer(optArg(args, 0), func(_ eeprog.Config, p *eeprog.Programmer) error {
				s, err := p.Status()
				if err != nil {
					return err
				}
				fmt.Println(s)
				return nil
			})
		},
	}
}

func eraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "erase [port]",
		Short: "Erase the whole chip to 0xFF",
		Long:  "Erase the whole chip to 0xFF. Only the bit-bang transport supports it.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withProgrammer(optArg(args, 0), func(_ eeprog.Config, p *eeprog.Programmer) error {
				return p.Erase()
			})
		},
	}
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports usable with the serial proxy",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ports, err := eeprog.SerialPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("No serial ports found")
				return nil
			}
			for _, port := range ports {
				fmt.Println(port)
			}
			return nil
		},
	}
}
