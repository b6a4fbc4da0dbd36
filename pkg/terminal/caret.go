// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "strings"

// Segment kinds produced by EscapeSegments
const (
	RunPlain   = iota // Printable text passed through
	RunEscaped        // Caret or meta placeholder for a non-printable byte
)

// Run is a contiguous piece of escaped output
type Run struct {
	Kind int
	Text string
}

// Escape renders raw bytes in caret notation so no control byte reaches the
// display: 0x00-0x1F become ^@..^_, 0x7F becomes ^?, and bytes with the high
// bit set get an M- prefix on the escape of their low seven bits. When
// newlineAware is set, LF is kept as a real line break.
func Escape(text string, newlineAware bool) string {
	if !needsEscape(text, newlineAware) {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text) + len(text)/2)
	for i := 0; i < len(text); i++ {
		b := text[i]
		if passesThrough(b, newlineAware) {
			sb.WriteByte(b)
			continue
		}
		writeEscaped(&sb, b)
	}
	return sb.String()
}

// EscapeSegments returns the same output as Escape, split into plain and
// escaped runs so a display sink can highlight placeholders
func EscapeSegments(text string, newlineAware bool) []Run {
	var runs []Run
	var sb strings.Builder
	kind := RunPlain

	flush := func() {
		if sb.Len() > 0 {
			runs = append(runs, Run{Kind: kind, Text: sb.String()})
			sb.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		b := text[i]
		next := RunEscaped
		if passesThrough(b, newlineAware) {
			next = RunPlain
		}
		if next != kind {
			flush()
			kind = next
		}
		if next == RunPlain {
			sb.WriteByte(b)
		} else {
			writeEscaped(&sb, b)
		}
	}
	flush()
	return runs
}

// appendRun adds run to runs, merging it into the last run of the same kind
func appendRun(runs []Run, run Run) []Run {
	if run.Text == "" {
		return runs
	}
	if n := len(runs); n > 0 && runs[n-1].Kind == run.Kind {
		runs[n-1].Text += run.Text
		return runs
	}
	return append(runs, run)
}

// trimRuns removes n bytes from the end of runs
func trimRuns(runs []Run, n int) []Run {
	for n > 0 && len(runs) > 0 {
		last := len(runs) - 1
		text := runs[last].Text
		if len(text) <= n {
			n -= len(text)
			runs = runs[:last]
			continue
		}
		runs[last].Text = text[:len(text)-n]
		n = 0
	}
	return runs
}

func joinRuns(runs []Run) string {
	if len(runs) == 1 {
		return runs[0].Text
	}
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

func needsEscape(text string, newlineAware bool) bool {
	for i := 0; i < len(text); i++ {
		if !passesThrough(text[i], newlineAware) {
			return true
		}
	}
	return false
}

func passesThrough(b byte, newlineAware bool) bool {
	if b == '\n' {
		return newlineAware
	}
	return b >= 0x20 && b < 0x7F
}

func writeEscaped(sb *strings.Builder, b byte) {
	if b >= 0x80 {
		sb.WriteString("M-")
		b &= 0x7F
		if b >= 0x20 && b < 0x7F {
			sb.WriteByte(b)
			return
		}
	}
	sb.WriteByte('^')
	if b == 0x7F {
		sb.WriteByte('?')
	} else {
		sb.WriteByte(b + 0x40)
	}
}
