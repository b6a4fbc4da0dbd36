// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "fmt"

// Encode produces the exact bytes to write for one line of user input.
//
// In text mode the input and newline terminator are written byte for byte.
// In hex mode the input is parsed as hex, re-rendered together with the
// terminator as one canonical hex string, and that string is decoded to
// the wire bytes.
func Encode(text string, mode Mode, newline NewlineMode) ([]byte, error) {
	data, _, err := EncodeEcho(text, mode, newline)
	return data, err
}

// EncodeEcho is Encode that also returns the line to echo into the local
// display: the input itself in text mode, the canonical hex in hex mode
func EncodeEcho(text string, mode Mode, newline NewlineMode) ([]byte, string, error) {
	switch mode {
	case ModeText:
		return []byte(text + newline.Terminator()), text, nil

	case ModeHex:
		payload, err := FromHex(text)
		if err != nil {
			return nil, "", err
		}
		canonical := joinHex(ToHex(payload), ToHex([]byte(newline.Terminator())))
		data, err := FromHex(canonical)
		if err != nil {
			return nil, "", fmt.Errorf("canonical hex %q: %w", canonical, err)
		}
		return data, canonical, nil

	default:
		return nil, "", fmt.Errorf("unknown send mode %d", mode)
	}
}

func joinHex(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
