// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

var hexCmd = &cobra.Command{
	Use:   "hex",
	Short: "Convert between text and the hex notation used by --hex",
}

var hexEncodeCmd = &cobra.Command{
	Use:   "encode <text>...",
	Short: "Print text as space-separated uppercase hex",
	Long: `Print the bytes of the text as space-separated uppercase hex pairs.

Arguments are joined with spaces. The configured newline is not appended.

Example:
  potterm hex encode "n0.val=5"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(terminal.ToHex([]byte(strings.Join(args, " "))))
		return nil
	},
}

var hexDecodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Print hex bytes as escaped text",
	Long: `Parse hex pairs and print the resulting bytes.

Digits may be separated by whitespace or run together. Control bytes are shown
in caret notation (^M for CR, ^[ for ESC, ^? for DEL) and bytes from 0x80
with an M- prefix.

Example:
  potterm hex decode "FF FF FF 6E 30"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := terminal.FromHex(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(terminal.Escape(string(data), false))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hexCmd)
	hexCmd.AddCommand(hexEncodeCmd)
	hexCmd.AddCommand(hexDecodeCmd)
}
