// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session owns all state for one physical connection: the connection state
// gate, the receiver's pending CR and record buffer, the display history
// and traffic statistics. A session is created when a connection attempt
// starts and discarded on disconnect; reconnecting builds a new one.
//
// Session is not safe for concurrent use. Receive and Send must be called
// from the same goroutine.
type Session struct {
	ID string

	state      ConnectionState
	receiver   *Receiver
	scrollback *Scrollback
	stats      *Statistics
	writer     io.Writer
	lastErr    error
	logger     zerolog.Logger
}

// NewSession creates a disconnected session writing to w
func NewSession(w io.Writer, cfg Config) *Session {
	id := uuid.New().String()
	logger := cfg.logger().With().Str("session", id).Logger()
	cfg.Logger = &logger

	scrollback := cfg.Scrollback
	if scrollback == nil {
		scrollback = NewScrollback(cfg.ScrollbackBytes)
	}

	return &Session{
		ID:         id,
		state:      Disconnected,
		receiver:   NewReceiver(cfg),
		scrollback: scrollback,
		stats:      NewStatistics(),
		writer:     w,
		logger:     logger,
	}
}

// Connecting marks a connection attempt in progress
func (s *Session) Connecting() {
	s.state = Connecting
	s.Status("connecting...")
}

// Connected marks the transport ready for writes
func (s *Session) Connected() {
	s.state = Connected
	s.lastErr = nil
	s.Status("connected")
	s.logger.Info().Msg("connected")
}

// ConnectError records a failed connection attempt and returns it as a
// *TransportError
func (s *Session) ConnectError(err error) error {
	return s.fail(OpConnect, err)
}

// IOError records a lost connection and returns it as a *TransportError
func (s *Session) IOError(err error) error {
	return s.fail(OpIO, err)
}

func (s *Session) fail(op string, err error) error {
	var te *TransportError
	if !errors.As(err, &te) {
		te = &TransportError{Op: op, Err: err}
	}
	s.lastErr = te
	s.state = Disconnected
	s.receiver.Reset()
	s.Status(te.Error())
	s.logger.Warn().Err(te.Err).Str("op", te.Op).Msg("transport error")
	return te
}

// Disconnect marks the session closed without an error
func (s *Session) Disconnect() {
	s.state = Disconnected
	s.receiver.Reset()
}

// State returns the current connection state
func (s *Session) State() ConnectionState {
	return s.state
}

// Err returns the transport error that ended the session, if any
func (s *Session) Err() error {
	return s.lastErr
}

// Receive ingests one batch of chunks, applies it to the display history
// and returns it so the caller can forward records
func (s *Session) Receive(chunks ...[]byte) Batch {
	batch := s.receiver.Ingest(chunks...)
	s.scrollback.Apply(batch)
	s.stats.RecordBatch(chunks, batch, s.receiver.RecordOverflows())
	return batch
}

// Send encodes text for the current mode and newline and writes it to the
// transport. It fails with ErrNotConnected, touching nothing, unless the
// session is connected. Malformed hex input is reported without affecting
// the connection; a write failure ends the session.
func (s *Session) Send(text string) ([]byte, error) {
	if s.state != Connected {
		return nil, ErrNotConnected
	}

	data, echo, err := EncodeEcho(text, s.receiver.Mode(), s.receiver.Newline())
	if err != nil {
		return nil, err
	}

	s.scrollback.AppendLine(SegmentSend, echo)
	n, err := s.writer.Write(data)
	s.stats.RecordSend(n, err)
	if err != nil {
		return nil, s.IOError(err)
	}

	s.logger.Debug().Int("bytes", n).Str("hex", ToHex(data)).Msg("sent")
	return data, nil
}

// Status appends a status line to the display history
func (s *Session) Status(text string) {
	s.scrollback.AppendLine(SegmentStatus, text)
}

// Receiver returns the session's receiver, for mode and newline changes
func (s *Session) Receiver() *Receiver {
	return s.receiver
}

// Scrollback returns the session's display history
func (s *Session) Scrollback() *Scrollback {
	return s.scrollback
}

// Statistics returns the session's traffic statistics
func (s *Session) Statistics() *Statistics {
	return s.stats
}
