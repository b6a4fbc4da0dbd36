// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/potterm/pkg/config"
	"github.com/Thermoquad/potterm/pkg/terminal"
)

// fakeConn records writes and fails them once writeErr is set
type fakeConn struct {
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func (c *fakeConn) Read(p []byte) (int, error) { return 0, errors.New("not readable") }

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.written.Write(p)
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func newTestModel(t *testing.T) (terminalModel, *connectionManager) {
	t.Helper()
	appConfig = config.Default()
	cm := &connectionManager{done: make(chan struct{})}
	return initialTerminalModel(cm), cm
}

func step(m terminalModel, msgs ...tea.Msg) terminalModel {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(terminalModel)
	}
	return m
}

func connect(m terminalModel, cm *connectionManager, conn *fakeConn) terminalModel {
	cm.setConn(conn, "test")
	return step(m, connectingMsg{}, connectedMsg{connInfo: "test"})
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// ============================================================================
// Receive Tests
// ============================================================================

func TestTerminalModel_RecordUpdatesPanel(t *testing.T) {
	m, cm := newTestModel(t)
	m = connect(m, cm, &fakeConn{})

	m = step(m, chunkBatchMsg{chunks: [][]byte{
		[]byte("n0.val=12 n1.val=3"),
		[]byte("4 n3.val=7\r\n"),
	}})

	want := []string{"12", "34", terminal.NotAvailable, "7"}
	for i, w := range want {
		if got := m.values.Value(i); got != w {
			t.Errorf("Value(%d) = %q, want %q", i, got, w)
		}
	}
	if m.records != 1 {
		t.Errorf("records = %d, want 1", m.records)
	}
	if !strings.Contains(m.scrollback.String(), "n3.val=7\n") {
		t.Errorf("scrollback missing received text: %q", m.scrollback.String())
	}
}

func TestTerminalModel_ScrollbackSurvivesReconnect(t *testing.T) {
	m, cm := newTestModel(t)
	m = connect(m, cm, &fakeConn{})
	m = step(m, chunkBatchMsg{chunks: [][]byte{[]byte("before\n")}})
	m = step(m, connectionLostMsg{})
	m = connect(m, cm, &fakeConn{})

	got := m.scrollback.String()
	for _, want := range []string{"before\n", "connection lost: EOF\n", "connected\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("scrollback %q missing %q", got, want)
		}
	}
	if m.session.State() != terminal.Connected {
		t.Errorf("state = %v, want Connected", m.session.State())
	}
}

// ============================================================================
// Send Tests
// ============================================================================

func TestTerminalModel_SendRejectedWhileConnecting(t *testing.T) {
	m, _ := newTestModel(t)
	m = step(m, connectingMsg{})
	m.input.SetValue("abc")

	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.notice != "not connected" || !m.isError {
		t.Errorf("notice = %q (error %v), want not connected error", m.notice, m.isError)
	}
	if m.input.Value() != "abc" {
		t.Errorf("input cleared after rejected send: %q", m.input.Value())
	}
}

func TestTerminalModel_EnterSendsLine(t *testing.T) {
	m, cm := newTestModel(t)
	conn := &fakeConn{}
	m = connect(m, cm, conn)
	m.input.SetValue("hello")

	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})

	if got := conn.written.String(); got != "hello\r\n" {
		t.Errorf("written %q, want %q", got, "hello\r\n")
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestTerminalModel_PanelButtons(t *testing.T) {
	m, cm := newTestModel(t)
	conn := &fakeConn{}
	m = connect(m, cm, conn)

	m = step(m, tea.KeyMsg{Type: tea.KeyTab}, runeKey("2"), runeKey("+"), runeKey("-"))

	if got := conn.written.String(); got != "b\r\nf\r\ne\r\n" {
		t.Errorf("written %q, want %q", got, "b\r\nf\r\ne\r\n")
	}
	if m.selectedPot != "2" {
		t.Errorf("selectedPot = %q, want %q", m.selectedPot, "2")
	}
}

func TestTerminalModel_HexToggle(t *testing.T) {
	m, cm := newTestModel(t)
	conn := &fakeConn{}
	m = connect(m, cm, conn)

	m = step(m, tea.KeyMsg{Type: tea.KeyCtrlX})
	m.input.SetValue("41 42")
	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})

	if got := conn.written.Bytes(); !bytes.Equal(got, []byte{0x41, 0x42, 0x0D, 0x0A}) {
		t.Errorf("written % X, want 41 42 0D 0A", got)
	}
	if !strings.Contains(m.scrollback.String(), "41 42 0D 0A\n") {
		t.Errorf("hex echo missing: %q", m.scrollback.String())
	}
}

func TestTerminalModel_WriteFailureReportedOnce(t *testing.T) {
	m, cm := newTestModel(t)
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	m = connect(m, cm, conn)
	m.input.SetValue("x")

	m = step(m, tea.KeyMsg{Type: tea.KeyEnter})
	// The reader sees the closed connection afterwards
	m = step(m, connectionLostMsg{err: errors.New("closed")})

	if !conn.closed || cm.getConn() != nil {
		t.Error("failed send did not drop the connection")
	}
	if n := strings.Count(m.scrollback.String(), "connection lost"); n != 1 {
		t.Errorf("connection lost reported %d times, want 1: %q", n, m.scrollback.String())
	}
}

func TestTerminalModel_EscapesHighlighted(t *testing.T) {
	m, cm := newTestModel(t)
	m = connect(m, cm, &fakeConn{})

	m = step(m, chunkBatchMsg{chunks: [][]byte{[]byte("v\x1b1\r")}})
	m = step(m, chunkBatchMsg{chunks: [][]byte{[]byte("\n\x07")}})

	var escaped []string
	for _, seg := range m.scrollback.Segments() {
		if seg.Kind == terminal.SegmentEscaped {
			escaped = append(escaped, seg.Text)
		}
	}
	// The split CRLF placeholder is gone; the other escapes remain
	if strings.Join(escaped, ",") != "^[,^G" {
		t.Errorf("escaped segments = %q, want [^[ ^G]", escaped)
	}
	if !strings.Contains(m.renderScrollback(), "^[") {
		t.Error("rendered scrollback lost the ESC placeholder")
	}

	style := segmentStyle(terminal.SegmentEscaped)
	if style.GetBackground() != lipgloss.Color("238") {
		t.Errorf("escape background = %v, want highlighted", style.GetBackground())
	}
	if segmentStyle(terminal.SegmentReceive).GetBackground() == style.GetBackground() {
		t.Error("plain received text must not share the escape highlight")
	}
}
