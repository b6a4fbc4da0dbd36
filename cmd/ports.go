// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var portsDetails bool

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	Long: `List the serial ports present on this machine.

With --details, USB ports are shown with their vendor and product IDs and
serial number, which helps to tell several adapters apart.

Exit codes:
  0 - At least one port found
  1 - No ports found`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
	portsCmd.Flags().BoolVar(&portsDetails, "details", false, "Show USB vendor/product details")
}

func runPorts(cmd *cobra.Command, args []string) error {
	if portsDetails {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return fmt.Errorf("failed to list ports: %w", err)
		}
		if len(ports) == 0 {
			return errNoPorts
		}
		for _, port := range ports {
			if port.IsUSB {
				fmt.Printf("%-20s USB %s:%s  serial=%s  %s\n", port.Name, port.VID, port.PID, port.SerialNumber, port.Product)
			} else {
				fmt.Printf("%s\n", port.Name)
			}
		}
		return nil
	}

	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	if len(ports) == 0 {
		return errNoPorts
	}
	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}

var errNoPorts = fmt.Errorf("no serial ports found")
