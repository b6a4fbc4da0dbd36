// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

func printAll(t *testing.T, recordsOnly bool, reads ...string) string {
	t.Helper()
	var out bytes.Buffer
	p := newDisplayPrinter(&out, recordsOnly)
	r := terminal.NewReceiver(terminal.DefaultConfig())
	for _, read := range reads {
		p.Print(r.Ingest([]byte(read)), r.PendingCR())
	}
	p.Flush()
	return out.String()
}

func TestDisplayPrinter_SplitCRLF(t *testing.T) {
	got := printAll(t, false, "abc\r", "\ndef")
	if got != "abc\ndef" {
		t.Errorf("got %q, want %q", got, "abc\ndef")
	}
}

func TestDisplayPrinter_BareCRFlushed(t *testing.T) {
	tests := []struct {
		name  string
		reads []string
		want  string
	}{
		{"followed by text", []string{"a\r", "b"}, "a^Mb"},
		{"at end of stream", []string{"a\r"}, "a^M"},
		{"consecutive", []string{"\r", "\r", "\n"}, "^M\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := printAll(t, false, tt.reads...); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayPrinter_RecordsOnly(t *testing.T) {
	got := printAll(t, true, "n0.val=1 n1.val=2 ", "n2.val=3 n3.val=4\r\n")
	if strings.Count(got, "\n") != 1 || !strings.Contains(got, "n0=1 n1=2 n2=3 n3=4") {
		t.Errorf("got %q", got)
	}
}

func TestDisplayPrinter_RecordLineInDefaultMode(t *testing.T) {
	got := printAll(t, false, "n0.val=10n1.val=20n2.val=30n3.val=40\r\n")

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %q, want display line then record line", got)
	}
	if lines[0] != "n0.val=10n1.val=20n2.val=30n3.val=40" {
		t.Errorf("display line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[") || !strings.HasSuffix(lines[1], "] n0=10 n1=20 n2=30 n3=40") {
		t.Errorf("record line = %q", lines[1])
	}
}

func TestDisplayPrinter_RecordBreaksUnterminatedLine(t *testing.T) {
	got := printAll(t, false, "n0.val=1 n3.val=4", " tail\n")

	if !strings.HasPrefix(got, "n0.val=1 n3.val=4\n[") {
		t.Errorf("record not on its own line: %q", got)
	}
	if !strings.Contains(got, "] n0=1 n1=N/A n2=N/A n3=4\n tail\n") {
		t.Errorf("got %q", got)
	}
}
