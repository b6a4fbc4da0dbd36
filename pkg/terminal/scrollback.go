// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "strings"

// SegmentKind tags where a piece of display text came from
type SegmentKind int

const (
	SegmentReceive SegmentKind = iota
	SegmentSend
	SegmentStatus
	SegmentEscaped // Caret or meta placeholders within received text
)

// Segment is one contiguous piece of display history
type Segment struct {
	Kind SegmentKind
	Text string
}

// Scrollback is the persisted display history of a session, bounded by
// total byte size. The oldest segments are dropped first.
type Scrollback struct {
	segments []Segment
	size     int
	limit    int
}

// NewScrollback creates a history holding at most limit bytes. A limit
// <= 0 selects DefaultScrollbackBytes.
func NewScrollback(limit int) *Scrollback {
	if limit <= 0 {
		limit = DefaultScrollbackBytes
	}
	return &Scrollback{limit: limit}
}

// Apply retracts and appends the display output of one ingest batch.
// Escape placeholders are kept as SegmentEscaped so a sink can highlight
// them. A retraction is honoured only when the history ends in the ^M
// placeholder it is meant to remove; a send echo, a status line or
// received text that merely reads "^M" is left intact.
func (s *Scrollback) Apply(b Batch) bool {
	retracted := false
	if b.Retract > 0 {
		retracted = s.retract(b.Retract)
	}
	if b.Runs == nil {
		s.Append(SegmentReceive, b.Display)
		return retracted
	}
	for _, run := range b.Runs {
		kind := SegmentReceive
		if run.Kind == RunEscaped {
			kind = SegmentEscaped
		}
		s.Append(kind, run.Text)
	}
	return retracted
}

// Append adds text of the given kind, merging with the previous segment
// when the kinds match
func (s *Scrollback) Append(kind SegmentKind, text string) {
	if text == "" {
		return
	}
	if n := len(s.segments); n > 0 && s.segments[n-1].Kind == kind {
		s.segments[n-1].Text += text
	} else {
		s.segments = append(s.segments, Segment{Kind: kind, Text: text})
	}
	s.size += len(text)
	s.trim()
}

// AppendLine appends text followed by a line break
func (s *Scrollback) AppendLine(kind SegmentKind, text string) {
	s.Append(kind, text+"\n")
}

func (s *Scrollback) retract(n int) bool {
	last := len(s.segments) - 1
	if last < 0 || s.segments[last].Kind != SegmentEscaped {
		return false
	}
	text := s.segments[last].Text
	if len(text) < n || !strings.HasSuffix(text, "^M") {
		return false
	}
	text = text[:len(text)-n]
	s.size -= n
	if text == "" {
		s.segments = s.segments[:last]
	} else {
		s.segments[last].Text = text
	}
	return true
}

func (s *Scrollback) trim() {
	for s.size > s.limit && len(s.segments) > 0 {
		excess := s.size - s.limit
		first := s.segments[0]
		if len(first.Text) <= excess {
			s.size -= len(first.Text)
			s.segments = s.segments[1:]
			continue
		}
		// Cut the head of the oldest segment at a line boundary if one
		// exists past the excess
		cut := excess
		if i := strings.IndexByte(first.Text[excess:], '\n'); i >= 0 {
			cut = excess + i + 1
		}
		s.segments[0].Text = first.Text[cut:]
		s.size -= cut
		if s.segments[0].Text == "" {
			s.segments = s.segments[1:]
		}
	}
}

// Segments returns a copy of the history
func (s *Scrollback) Segments() []Segment {
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Len returns the history size in bytes
func (s *Scrollback) Len() int {
	return s.size
}

// String returns the history as plain text
func (s *Scrollback) String() string {
	var sb strings.Builder
	sb.Grow(s.size)
	for _, seg := range s.segments {
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// Clear empties the history
func (s *Scrollback) Clear() {
	s.segments = nil
	s.size = 0
}
