// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type failingWriter struct {
	err error
}

func (w failingWriter) Write(p []byte) (int, error) {
	return 0, w.err
}

func newConnectedSession(w *bytes.Buffer) *Session {
	s := NewSession(w, DefaultConfig())
	s.Connecting()
	s.Connected()
	return s
}

// ============================================================
// Session Send Tests
// ============================================================

func TestSend_RejectedUnlessConnected(t *testing.T) {
	for _, setup := range []func(*Session){
		func(*Session) {},
		func(s *Session) { s.Connecting() },
		func(s *Session) { s.Connecting(); s.Connected(); s.Disconnect() },
	} {
		var w bytes.Buffer
		s := NewSession(&w, DefaultConfig())
		setup(s)
		before := s.Scrollback().String()

		data, err := s.Send("hello")
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("state %s: error = %v, want ErrNotConnected", s.State(), err)
		}
		if data != nil || w.Len() != 0 {
			t.Errorf("state %s: bytes produced on rejected send", s.State())
		}
		if s.Scrollback().String() != before {
			t.Errorf("state %s: scrollback changed on rejected send", s.State())
		}
		if s.Statistics().Snapshot().Sends != 0 {
			t.Errorf("state %s: statistics changed on rejected send", s.State())
		}
	}
}

func TestSend_TextMode(t *testing.T) {
	var w bytes.Buffer
	s := newConnectedSession(&w)

	data, err := s.Send("a")
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if string(data) != "a\r\n" || w.String() != "a\r\n" {
		t.Errorf("wrote %q (returned %q), want %q", w.String(), data, "a\r\n")
	}

	segs := s.Scrollback().Segments()
	last := segs[len(segs)-1]
	if last.Kind != SegmentSend || last.Text != "a\n" {
		t.Errorf("last segment = %+v, want send echo %q", last, "a\n")
	}

	snap := s.Statistics().Snapshot()
	if snap.Sends != 1 || snap.BytesSent != 3 {
		t.Errorf("stats sends=%d bytes=%d, want 1 and 3", snap.Sends, snap.BytesSent)
	}
}

func TestSend_HexModeEchoesCanonicalHex(t *testing.T) {
	var w bytes.Buffer
	s := newConnectedSession(&w)
	s.Receiver().SetMode(ModeHex)

	if _, err := s.Send("41"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if !bytes.Equal(w.Bytes(), []byte{0x41, 0x0D, 0x0A}) {
		t.Errorf("wrote %v", w.Bytes())
	}
	if !strings.HasSuffix(s.Scrollback().String(), "41 0D 0A\n") {
		t.Errorf("echo missing from history: %q", s.Scrollback().String())
	}
}

func TestSend_MalformedHexKeepsConnection(t *testing.T) {
	var w bytes.Buffer
	s := newConnectedSession(&w)
	s.Receiver().SetMode(ModeHex)

	_, err := s.Send("4g")
	if !errors.Is(err, ErrMalformedHex) {
		t.Fatalf("error = %v, want ErrMalformedHex", err)
	}
	if s.State() != Connected {
		t.Errorf("state = %s, want connected", s.State())
	}
	if w.Len() != 0 {
		t.Error("nothing should be written for malformed hex")
	}
}

func TestSend_WriteErrorEndsSession(t *testing.T) {
	writeErr := errors.New("broken pipe")
	s := NewSession(failingWriter{err: writeErr}, DefaultConfig())
	s.Connected()

	_, err := s.Send("x")
	var te *TransportError
	if !errors.As(err, &te) || te.Op != OpIO {
		t.Fatalf("error = %v, want *TransportError{Op: io}", err)
	}
	if !errors.Is(err, writeErr) {
		t.Error("transport error should wrap the write error")
	}
	if s.State() != Disconnected {
		t.Errorf("state = %s, want disconnected", s.State())
	}
	if !strings.Contains(s.Scrollback().String(), "connection lost: broken pipe") {
		t.Errorf("status line missing: %q", s.Scrollback().String())
	}
	if s.Statistics().Snapshot().SendErrors != 1 {
		t.Error("send error not counted")
	}
}

// ============================================================
// Session Lifecycle Tests
// ============================================================

func TestSession_StatusLines(t *testing.T) {
	var w bytes.Buffer
	s := NewSession(&w, DefaultConfig())
	s.Connecting()
	err := s.ConnectError(errors.New("no route"))

	if s.State() != Disconnected {
		t.Errorf("state = %s, want disconnected", s.State())
	}
	if err.Error() != "connection failed: no route" {
		t.Errorf("error = %q", err.Error())
	}
	if !errors.Is(s.Err(), err) {
		t.Errorf("Err() = %v, want %v", s.Err(), err)
	}
	want := "connecting...\nconnection failed: no route\n"
	if got := s.Scrollback().String(); got != want {
		t.Errorf("history = %q, want %q", got, want)
	}
}

func TestSession_IOErrorDiscardsPendingState(t *testing.T) {
	var w bytes.Buffer
	s := newConnectedSession(&w)
	s.Receive([]byte("n0.val=1 tail\r"))
	if s.Receiver().PendingRecordBytes() == 0 {
		t.Fatal("expected buffered record text")
	}

	s.IOError(errors.New("eof"))
	if s.Receiver().PendingRecordBytes() != 0 {
		t.Error("record buffer should be discarded with the session")
	}
	if s.Err() == nil {
		t.Error("Err() should hold the transport error")
	}
}

func TestSession_ReceiveUpdatesHistoryAndStats(t *testing.T) {
	var w bytes.Buffer
	s := newConnectedSession(&w)

	b := s.Receive([]byte("n0.val=1n3.val=2\r"), []byte("\nok"))
	if len(b.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(b.Records))
	}
	if !strings.HasSuffix(s.Scrollback().String(), "n0.val=1n3.val=2\nok") {
		t.Errorf("history = %q", s.Scrollback().String())
	}

	snap := s.Statistics().Snapshot()
	if snap.Chunks != 2 || snap.BytesReceived != 20 || snap.Records != 1 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestSession_SharedScrollbackAcrossReconnect(t *testing.T) {
	var w bytes.Buffer
	first := newConnectedSession(&w)
	first.Receive([]byte("before"))
	first.IOError(errors.New("gone"))

	cfg := DefaultConfig()
	cfg.Scrollback = first.Scrollback()
	second := NewSession(&w, cfg)
	second.Connected()
	second.Receive([]byte("after"))

	if second.ID == first.ID {
		t.Error("sessions should have distinct IDs")
	}
	if got := second.Scrollback().String(); !strings.Contains(got, "before") || !strings.HasSuffix(got, "after") {
		t.Errorf("history = %q", got)
	}
}

// ============================================================
// Scrollback Tests
// ============================================================

func TestScrollback_RetractOnlyReceivedCaret(t *testing.T) {
	sb := NewScrollback(0)
	sb.Append(SegmentReceive, "abc")
	sb.Append(SegmentEscaped, "^M")
	sb.AppendLine(SegmentSend, "typed")

	if sb.Apply(Batch{Display: "\n", Retract: RetractWidth}) {
		t.Error("retraction must not eat a send echo")
	}
	if got := sb.String(); got != "abc^Mtyped\n\n" {
		t.Errorf("history = %q", got)
	}

	sb.Clear()
	sb.Append(SegmentReceive, "xy")
	if sb.Apply(Batch{Retract: RetractWidth}) {
		t.Error("retraction requires a trailing ^M")
	}

	// Received text spelling out ^M is not a placeholder
	sb.Clear()
	sb.Append(SegmentReceive, "lit^M")
	if sb.Apply(Batch{Retract: RetractWidth}) {
		t.Error("retraction must not eat literal caret text")
	}
	if got := sb.String(); got != "lit^M" {
		t.Errorf("history = %q", got)
	}
}

func TestScrollback_RetractRemovesEmptiedSegment(t *testing.T) {
	sb := NewScrollback(0)
	sb.AppendLine(SegmentStatus, "connected")
	sb.Append(SegmentEscaped, "^M")
	if !sb.Apply(Batch{Display: "\nz", Retract: RetractWidth}) {
		t.Fatal("expected retraction")
	}
	segs := sb.Segments()
	if len(segs) != 2 || segs[1].Text != "\nz" {
		t.Errorf("segments = %+v", segs)
	}
	if sb.Len() != len("connected\n\nz") {
		t.Errorf("Len() = %d", sb.Len())
	}
}

func TestScrollback_TrimsOldestAtLineBoundary(t *testing.T) {
	sb := NewScrollback(16)
	sb.AppendLine(SegmentStatus, "connected")
	sb.Append(SegmentReceive, "line one\nline two\n")

	if sb.Len() > 16 {
		t.Errorf("Len() = %d exceeds limit", sb.Len())
	}
	if got := sb.String(); got != "line two\n" {
		t.Errorf("history = %q, want %q", got, "line two\n")
	}
}

func TestScrollback_KeepsEscapedRuns(t *testing.T) {
	r := NewReceiver(DefaultConfig())
	sb := NewScrollback(0)
	sb.Apply(r.Ingest([]byte("ok\x1b[1m\r")))
	sb.Apply(r.Ingest([]byte("\nnext\x00")))

	want := []Segment{
		{Kind: SegmentReceive, Text: "ok"},
		{Kind: SegmentEscaped, Text: "^["},
		{Kind: SegmentReceive, Text: "[1m\nnext"},
		{Kind: SegmentEscaped, Text: "^@"},
	}
	got := sb.Segments()
	if len(got) != len(want) {
		t.Fatalf("segments = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
