// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "github.com/rs/zerolog"

// Config holds the receiver settings for one session
type Config struct {
	Newline           NewlineMode
	Mode              Mode
	RecordBufferLimit int
	ScrollbackBytes   int
	Logger            *zerolog.Logger // nil disables logging

	// Scrollback, when set, is the display history a new session continues
	// instead of starting an empty one. Hosts pass the previous session's
	// history across reconnects.
	Scrollback *Scrollback
}

// DefaultConfig returns CRLF text mode with default buffer limits
func DefaultConfig() Config {
	return Config{
		Newline:           NewlineCRLF,
		Mode:              ModeText,
		RecordBufferLimit: DefaultRecordBufferLimit,
		ScrollbackBytes:   DefaultScrollbackBytes,
	}
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return *c.Logger
}

// Batch is the result of ingesting one group of chunks
type Batch struct {
	// Display is escaped text to append to the display
	Display string

	// Retract is the number of bytes to remove from the end of the
	// previously persisted display before appending Display. It is set
	// when a CRLF pair was split across batches.
	Retract int

	// Runs is Display split into plain text and escape placeholders
	Runs []Run

	// Records holds every record completed during the batch, in arrival
	// order
	Records []FieldRecord
}

// Empty reports whether the batch changes nothing
func (b Batch) Empty() bool {
	return b.Display == "" && b.Retract == 0 && len(b.Records) == 0
}

// Receiver routes inbound chunks through newline normalization and caret
// escaping to build display text, and independently through the tag
// accumulator to build records. It is not safe for concurrent use; callers
// must deliver chunks in transport order from one goroutine.
type Receiver struct {
	normalizer NewlineNormalizer
	tags       *TagAccumulator
	newline    NewlineMode
	mode       Mode
	logger     zerolog.Logger
}

// NewReceiver creates a receiver with empty session state
func NewReceiver(cfg Config) *Receiver {
	logger := cfg.logger()
	return &Receiver{
		tags:    NewTagAccumulator(cfg.RecordBufferLimit, logger),
		newline: cfg.Newline,
		mode:    cfg.Mode,
		logger:  logger,
	}
}

// Ingest processes chunks in order. Bytes map one-to-one onto characters;
// no charset decoding is attempted.
func (r *Receiver) Ingest(chunks ...[]byte) Batch {
	var batch Batch
	var runs []Run
	size := 0
	newlineAware := r.newline != NewlineNone

	for _, chunk := range chunks {
		text := string(chunk)

		if record, ok := r.tags.Feed(text); ok {
			r.logger.Debug().Stringer("record", record).Msg("record complete")
			batch.Records = append(batch.Records, record)
		}

		text, retract := r.normalizer.Normalize(text, r.newline)
		if retract {
			if size >= RetractWidth {
				runs = trimRuns(runs, RetractWidth)
				size -= RetractWidth
			} else {
				batch.Retract += RetractWidth
			}
		}

		for _, run := range EscapeSegments(text, newlineAware) {
			runs = appendRun(runs, run)
			size += len(run.Text)
		}
	}

	batch.Runs = runs
	batch.Display = joinRuns(runs)
	return batch
}

// Newline returns the active newline mode
func (r *Receiver) Newline() NewlineMode {
	return r.newline
}

// SetNewline switches the newline mode from the next Ingest call. A pending
// CR is dropped since it was recorded under the old convention.
func (r *Receiver) SetNewline(n NewlineMode) {
	if n != r.newline {
		r.normalizer.Reset()
	}
	r.newline = n
}

// Mode returns the active send mode
func (r *Receiver) Mode() Mode {
	return r.mode
}

// SetMode switches the send mode from the next Encode call
func (r *Receiver) SetMode(m Mode) {
	r.mode = m
}

// PendingCR reports whether the last chunk ended in a CR that the next
// chunk may complete. A display sink that cannot retract output can hold a
// trailing ^M back while this is set.
func (r *Receiver) PendingCR() bool {
	return r.normalizer.Pending()
}

// PendingRecordBytes returns the size of the partial record buffer
func (r *Receiver) PendingRecordBytes() int {
	return r.tags.Pending()
}

// RecordOverflows returns how many partial records were dropped
func (r *Receiver) RecordOverflows() int {
	return r.tags.Overflows()
}

// Reset discards the pending CR and any partial record
func (r *Receiver) Reset() {
	r.normalizer.Reset()
	r.tags.Reset()
}
