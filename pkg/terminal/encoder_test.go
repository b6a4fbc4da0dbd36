// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// Encode Tests
// ============================================================

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		mode     Mode
		newline  NewlineMode
		expected []byte
		echo     string
	}{
		{name: "text crlf", text: "hello", mode: ModeText, newline: NewlineCRLF, expected: []byte("hello\r\n"), echo: "hello"},
		{name: "text lf", text: "a", mode: ModeText, newline: NewlineLF, expected: []byte("a\n"), echo: "a"},
		{name: "text none", text: "f", mode: ModeText, newline: NewlineNone, expected: []byte("f"), echo: "f"},
		{name: "text raw bytes", text: "\x00\xff", mode: ModeText, newline: NewlineNone, expected: []byte{0x00, 0xFF}, echo: "\x00\xff"},
		{name: "hex crlf", text: "41", mode: ModeHex, newline: NewlineCRLF, expected: []byte{0x41, 0x0D, 0x0A}, echo: "41 0D 0A"},
		{name: "hex lowercase packed", text: "a0ff", mode: ModeHex, newline: NewlineCRLF, expected: []byte{0xA0, 0xFF, 0x0D, 0x0A}, echo: "A0 FF 0D 0A"},
		{name: "hex none", text: "41 42", mode: ModeHex, newline: NewlineNone, expected: []byte{0x41, 0x42}, echo: "41 42"},
		{name: "hex empty input", text: "", mode: ModeHex, newline: NewlineCRLF, expected: []byte{0x0D, 0x0A}, echo: "0D 0A"},
		{name: "hex empty none", text: " ", mode: ModeHex, newline: NewlineNone, expected: []byte{}, echo: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, echo, err := EncodeEcho(tt.text, tt.mode, tt.newline)
			if err != nil {
				t.Fatalf("EncodeEcho error: %v", err)
			}
			if !bytes.Equal(data, tt.expected) {
				t.Errorf("data = %v, want %v", data, tt.expected)
			}
			if echo != tt.echo {
				t.Errorf("echo = %q, want %q", echo, tt.echo)
			}

			plain, err := Encode(tt.text, tt.mode, tt.newline)
			if err != nil || !bytes.Equal(plain, data) {
				t.Errorf("Encode = %v, %v; want %v", plain, err, data)
			}
		})
	}
}

func TestEncode_MalformedHex(t *testing.T) {
	for _, text := range []string{"4", "zz", "41 4"} {
		data, err := Encode(text, ModeHex, NewlineCRLF)
		if !errors.Is(err, ErrMalformedHex) {
			t.Errorf("Encode(%q) error = %v, want ErrMalformedHex", text, err)
		}
		if data != nil {
			t.Errorf("Encode(%q) produced %v alongside an error", text, data)
		}
	}
}

func TestEncode_TextModeIgnoresHexValidity(t *testing.T) {
	data, err := Encode("zz", ModeText, NewlineNone)
	if err != nil || string(data) != "zz" {
		t.Errorf("Encode = %q, %v", data, err)
	}
}

func TestEncode_UnknownMode(t *testing.T) {
	if _, err := Encode("x", Mode(9), NewlineCRLF); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

// ============================================================
// Mode Parsing Tests
// ============================================================

func TestParseNewlineMode(t *testing.T) {
	tests := []struct {
		input    string
		expected NewlineMode
		wantErr  bool
	}{
		{input: "crlf", expected: NewlineCRLF},
		{input: "CRLF", expected: NewlineCRLF},
		{input: "lf", expected: NewlineLF},
		{input: "none", expected: NewlineNone},
		{input: "cr", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseNewlineMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseNewlineMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.expected {
			t.Errorf("ParseNewlineMode(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestNewlineModeCycle(t *testing.T) {
	n := NewlineCRLF
	seen := []NewlineMode{n}
	for i := 0; i < 3; i++ {
		n = n.Next()
		seen = append(seen, n)
	}
	expected := []NewlineMode{NewlineCRLF, NewlineLF, NewlineNone, NewlineCRLF}
	for i := range expected {
		if seen[i] != expected[i] {
			t.Errorf("cycle[%d] = %s, want %s", i, seen[i], expected[i])
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("HEX"); err != nil || m != ModeHex {
		t.Errorf("ParseMode(HEX) = %s, %v", m, err)
	}
	if m, err := ParseMode("text"); err != nil || m != ModeText {
		t.Errorf("ParseMode(text) = %s, %v", m, err)
	}
	if _, err := ParseMode("binary"); err == nil {
		t.Error("ParseMode(binary) should fail")
	}
}
