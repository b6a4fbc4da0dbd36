// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package terminal reassembles a chunked serial text stream into display
// text and Nextion-style numeric tag records, and encodes outbound text or
// hex input for the wire.
//
// The package performs no I/O. A host feeds it chunks in transport order
// from a single goroutine and dispatches the results to its display and
// record sinks.
package terminal

// NewlineMode selects how logical line breaks are represented on the wire
type NewlineMode int

const (
	NewlineCRLF NewlineMode = iota
	NewlineLF
	NewlineNone
)

// Mode governs how outbound text is interpreted
type Mode int

const (
	ModeText Mode = iota
	ModeHex
)

// ConnectionState is owned by the transport; the session only observes it
// to gate sends
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// Tag record layout
const (
	FieldCount       = 4
	NotAvailable     = "N/A"
	CompletionMarker = "n3.val="
)

// Buffer limits
const (
	DefaultRecordBufferLimit = 4096
	DefaultScrollbackBytes   = 64 * 1024

	// RetractWidth is the display width of the ^M placeholder a trailing CR
	// renders as, and therefore what a split CRLF must remove
	RetractWidth = 2
)
