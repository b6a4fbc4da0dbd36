// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Potterm - serial terminal for four-channel potentiometer boards
//
// A CLI tool for talking to line-oriented serial devices and extracting
// n0..n3 field records from what they report.

package main

import (
	"os"

	"github.com/Thermoquad/potterm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
