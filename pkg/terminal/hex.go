// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"fmt"
	"strings"
)

const hexDigits = "0123456789ABCDEF"

// ToHex renders bytes as uppercase hex pairs separated by single spaces,
// e.g. []byte{0x41, 0x0D} -> "41 0D"
func ToHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(data)*3 - 1)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(hexDigits[b>>4])
		sb.WriteByte(hexDigits[b&0x0F])
	}
	return sb.String()
}

// FromHex parses hex digits of either case, ignoring ASCII whitespace.
// Any other character, or an odd number of digits, yields ErrMalformedHex.
func FromHex(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)/2)
	var acc byte
	digits := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isHexSeparator(c) {
			continue
		}
		v, ok := hexValue(c)
		if !ok {
			return nil, fmt.Errorf("%w: invalid character %q at offset %d", ErrMalformedHex, c, i)
		}
		acc = acc<<4 | v
		digits++
		if digits%2 == 0 {
			out = append(out, acc)
			acc = 0
		}
	}

	if digits%2 != 0 {
		return nil, fmt.Errorf("%w: odd digit count %d", ErrMalformedHex, digits)
	}
	return out, nil
}

func isHexSeparator(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
