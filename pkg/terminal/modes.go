// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"fmt"
	"strings"
)

// Terminator returns the bytes appended to every outbound line
func (n NewlineMode) Terminator() string {
	switch n {
	case NewlineCRLF:
		return "\r\n"
	case NewlineLF:
		return "\n"
	default:
		return ""
	}
}

func (n NewlineMode) String() string {
	switch n {
	case NewlineCRLF:
		return "crlf"
	case NewlineLF:
		return "lf"
	case NewlineNone:
		return "none"
	default:
		return fmt.Sprintf("newline(%d)", int(n))
	}
}

// Next cycles CRLF -> LF -> NONE -> CRLF
func (n NewlineMode) Next() NewlineMode {
	switch n {
	case NewlineCRLF:
		return NewlineLF
	case NewlineLF:
		return NewlineNone
	default:
		return NewlineCRLF
	}
}

// ParseNewlineMode accepts crlf, lf or none (case-insensitive)
func ParseNewlineMode(s string) (NewlineMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crlf", "\\r\\n":
		return NewlineCRLF, nil
	case "lf", "\\n":
		return NewlineLF, nil
	case "none", "":
		return NewlineNone, nil
	default:
		return NewlineCRLF, fmt.Errorf("unknown newline mode %q (use crlf, lf or none)", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeText:
		return "text"
	case ModeHex:
		return "hex"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts text or hex (case-insensitive)
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return ModeText, nil
	case "hex":
		return ModeHex, nil
	default:
		return ModeText, fmt.Errorf("unknown mode %q (use text or hex)", s)
	}
}

func (c ConnectionState) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(c))
	}
}
