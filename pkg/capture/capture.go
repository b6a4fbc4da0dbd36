// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records a session's raw traffic as a CBOR sequence: one
// header item followed by one array item per chunk, send or status line.
// Replaying the received chunks through a fresh receiver reproduces the
// session's display and records, including chunk boundaries.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Magic identifies a capture stream
const Magic = "potterm-capture"

// Version is the capture format version written by this package
const Version = 1

// ErrNotCapture is returned when a stream does not start with a valid header
var ErrNotCapture = errors.New("not a potterm capture")

// Kind is the direction of a captured item
type Kind uint8

const (
	KindReceive Kind = 1 // Raw chunk from the transport
	KindSend    Kind = 2 // Bytes written to the transport
	KindStatus  Kind = 3 // Connection status line
)

func (k Kind) String() string {
	switch k {
	case KindReceive:
		return "rx"
	case KindSend:
		return "tx"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Header opens a capture stream
type Header struct {
	Magic     string `cbor:"1,keyasint"`
	Version   int    `cbor:"2,keyasint"`
	SessionID string `cbor:"3,keyasint"`
	Started   int64  `cbor:"4,keyasint"` // Unix nanoseconds
	Newline   string `cbor:"5,keyasint"`
	Mode      string `cbor:"6,keyasint"`
}

// Entry is one captured item, encoded as [kind, time, data]
type Entry struct {
	_    struct{} `cbor:",toarray"`
	Kind Kind
	Time int64 // Unix nanoseconds
	Data []byte
}

// At returns the entry timestamp
func (e Entry) At() time.Time {
	return time.Unix(0, e.Time)
}

// Writer appends entries to a capture stream. It is safe for concurrent
// use, so the reader goroutine and the send path can share one writer.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	now func() time.Time
}

// NewWriter writes the header for a session and returns a writer for its
// entries
func NewWriter(w io.Writer, sessionID, newline, mode string) (*Writer, error) {
	cw := &Writer{enc: cbor.NewEncoder(w), now: time.Now}
	header := Header{
		Magic:     Magic,
		Version:   Version,
		SessionID: sessionID,
		Started:   cw.now().UnixNano(),
		Newline:   newline,
		Mode:      mode,
	}
	if err := cw.enc.Encode(header); err != nil {
		return nil, fmt.Errorf("write capture header: %w", err)
	}
	return cw, nil
}

// Write appends one entry stamped with the current time
func (w *Writer) Write(kind Kind, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := Entry{Kind: kind, Time: w.now().UnixNano(), Data: data}
	if err := w.enc.Encode(entry); err != nil {
		return fmt.Errorf("write capture %s entry: %w", kind, err)
	}
	return nil
}

// Reader iterates the entries of a capture stream
type Reader struct {
	dec    *cbor.Decoder
	header Header
}

// NewReader reads and checks the header of a capture stream
func NewReader(r io.Reader) (*Reader, error) {
	dec := cbor.NewDecoder(r)

	var header Header
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCapture, err)
	}
	if header.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrNotCapture, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("unsupported capture version %d", header.Version)
	}

	return &Reader{dec: dec, header: header}, nil
}

// Header returns the stream header
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next entry, or io.EOF at the end of the stream
func (r *Reader) Next() (Entry, error) {
	var entry Entry
	if err := r.dec.Decode(&entry); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("read capture entry: %w", err)
	}
	return entry, nil
}

// Received returns the data of every remaining receive entry in order
func (r *Reader) Received() ([][]byte, error) {
	var chunks [][]byte
	for {
		entry, err := r.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		if entry.Kind == KindReceive {
			chunks = append(chunks, entry.Data)
		}
	}
}
