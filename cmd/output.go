// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

// caretCR is the display placeholder of a bare CR
const caretCR = "^M"

// displayPrinter writes ingest batches to a stream that cannot be edited
// after the fact. A trailing ^M that the next batch may retract is held
// back until that batch arrives. Each record is written on its own line
// after the display text that completed it.
type displayPrinter struct {
	out         io.Writer
	held        string
	midLine     bool
	recordsOnly bool
}

func newDisplayPrinter(out io.Writer, recordsOnly bool) *displayPrinter {
	return &displayPrinter{out: out, recordsOnly: recordsOnly}
}

// Print writes one batch. pendingCR is the receiver's state after the
// batch was ingested.
func (p *displayPrinter) Print(b terminal.Batch, pendingCR bool) {
	if !p.recordsOnly {
		p.printDisplay(b, pendingCR)
	}

	for _, record := range b.Records {
		logger.Debug().Stringer("record", record).Msg("record")
		if p.midLine {
			io.WriteString(p.out, "\n")
			p.midLine = false
		}
		fmt.Fprintf(p.out, "[%s] %s\n", time.Now().Format("15:04:05.000"), record)
	}
}

func (p *displayPrinter) printDisplay(b terminal.Batch, pendingCR bool) {
	text := b.Display
	if b.Retract > 0 && p.held != "" {
		p.held = ""
	}
	if p.held != "" {
		text = p.held + text
		p.held = ""
	}
	if pendingCR && strings.HasSuffix(text, caretCR) {
		p.held = caretCR
		text = text[:len(text)-len(caretCR)]
	}
	p.write(text)
}

func (p *displayPrinter) write(text string) {
	if text == "" {
		return
	}
	io.WriteString(p.out, text)
	p.midLine = !strings.HasSuffix(text, "\n")
}

// Flush writes any held output
func (p *displayPrinter) Flush() {
	p.write(p.held)
	p.held = ""
}
