// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// fieldPatterns[i] matches the first n<i>.val=<digits> tag, unanchored
var fieldPatterns = func() [FieldCount]*regexp.Regexp {
	var p [FieldCount]*regexp.Regexp
	for i := range p {
		p[i] = regexp.MustCompile(fmt.Sprintf(`n%d\.val=(\d+)`, i))
	}
	return p
}()

var completionMarker = []byte(CompletionMarker)

// FieldRecord is one complete set of the device's four numeric fields.
// Fields missing from the matched text hold NotAvailable.
type FieldRecord struct {
	Values [FieldCount]string
}

// NewFieldRecord builds a record with every field set to NotAvailable
func NewFieldRecord() FieldRecord {
	var r FieldRecord
	for i := range r.Values {
		r.Values[i] = NotAvailable
	}
	return r
}

// Value returns field i, or NotAvailable when i is out of range
func (r FieldRecord) Value(i int) string {
	if i < 0 || i >= FieldCount {
		return NotAvailable
	}
	return r.Values[i]
}

// Available reports whether field i was present in the record
func (r FieldRecord) Available(i int) bool {
	return r.Value(i) != NotAvailable
}

// Int parses field i as a decimal integer
func (r FieldRecord) Int(i int) (int64, bool) {
	if !r.Available(i) {
		return 0, false
	}
	v, err := strconv.ParseInt(r.Values[i], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (r FieldRecord) String() string {
	var sb strings.Builder
	for i, v := range r.Values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "n%d=%s", i, v)
	}
	return sb.String()
}

// TagAccumulator buffers incoming text until the last field's marker has
// been seen, then extracts all four fields and starts over.
//
// Completion is substring based: any occurrence of "n3.val=" in the buffer
// triggers extraction, and each field takes its first match independently.
// Records may therefore mix values from two overlapping device messages.
type TagAccumulator struct {
	buf       []byte // printable ASCII only
	limit     int
	overflows int
	logger    zerolog.Logger
}

// NewTagAccumulator creates an accumulator whose buffer is reset once it
// grows past limit bytes without completing a record. A limit <= 0 selects
// DefaultRecordBufferLimit.
func NewTagAccumulator(limit int, logger zerolog.Logger) *TagAccumulator {
	if limit <= 0 {
		limit = DefaultRecordBufferLimit
	}
	return &TagAccumulator{
		buf:    make([]byte, 0, 256),
		limit:  limit,
		logger: logger,
	}
}

// Feed appends text and returns a record if the buffer now holds a
// complete one
func (a *TagAccumulator) Feed(text string) (FieldRecord, bool) {
	for i := 0; i < len(text); i++ {
		if c := text[i]; c >= 0x20 && c <= 0x7E {
			a.buf = append(a.buf, c)
		}
	}

	if bytes.Contains(a.buf, completionMarker) {
		record := extractFields(a.buf)
		a.buf = a.buf[:0]
		return record, true
	}

	if len(a.buf) > a.limit {
		a.overflows++
		a.logger.Warn().
			Int("buffered", len(a.buf)).
			Int("limit", a.limit).
			Int("overflows", a.overflows).
			Msg("record buffer overflow, dropping incomplete record")
		a.buf = a.buf[:0]
	}

	return FieldRecord{}, false
}

// Pending returns the number of buffered bytes awaiting completion
func (a *TagAccumulator) Pending() int {
	return len(a.buf)
}

// Overflows returns how many times the buffer was dropped for exceeding
// its limit
func (a *TagAccumulator) Overflows() int {
	return a.overflows
}

// Reset discards any partial record
func (a *TagAccumulator) Reset() {
	a.buf = a.buf[:0]
}

func extractFields(text []byte) FieldRecord {
	record := NewFieldRecord()
	for i, re := range fieldPatterns {
		if m := re.FindSubmatch(text); m != nil {
			record.Values[i] = string(m[1])
		}
	}
	return record
}
