// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Thermoquad/potterm/pkg/capture"
	"github.com/Thermoquad/potterm/pkg/terminal"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	panelWidth     = 26
	chromeHeight   = 10 // Header, input box, stats bar, notice and borders
	minViewHeight  = 3
	inputCharLimit = 512
)

// Focus states
const (
	focusInput = iota
	focusPanel
)

// potKeys are the buttons that select a pot; the rest adjust it
var potKeys = []string{"1", "2", "3", "4"}

//////////////////////////////////////////////////////////////
// Styles
//////////////////////////////////////////////////////////////

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("12")).
	Background(lipgloss.Color("235")).
	Padding(0, 1)

var headerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241"))

var labelStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("12")).
	Bold(true)

var valueStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("10"))

var errorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("9")).
	Bold(true)

var warningStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("11"))

var sendStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("14"))

// escapeStyle highlights caret placeholders for non-printable bytes
var escapeStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("11")).
	Background(lipgloss.Color("238"))

var plainStyle = lipgloss.NewStyle()

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

var focusedBoxStyle = boxStyle.
	BorderForeground(lipgloss.Color("12"))

var buttonStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("0")).
	Background(lipgloss.Color("12")).
	Padding(0, 1)

var selectedButtonStyle = buttonStyle.
	Background(lipgloss.Color("10"))

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// terminalModel is the Bubble Tea model for the terminal TUI. It is the
// only owner of the session: receive batches and key-press sends are both
// applied from Update, in the order the program delivers them.
type terminalModel struct {
	// Connection manager (transport for sends and reconnection)
	connMgr  *connectionManager
	connInfo string

	// Session state, replaced on every connection attempt
	session    *terminal.Session
	scrollback *terminal.Scrollback
	newline    terminal.NewlineMode
	mode       terminal.Mode

	// Latest record
	values      terminal.FieldRecord
	records     uint64
	lastRecord  time.Time
	selectedPot string

	// Components
	viewport     viewport.Model
	input        textinput.Model
	focusedField int

	// UI state
	width    int
	height   int
	notice   string
	noticeAt time.Time
	isError  bool
	retryIn  time.Duration
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type terminalTickMsg time.Time

type chunkBatchMsg struct {
	chunks [][]byte
}

type connectingMsg struct{}

type connectedMsg struct {
	connInfo string
}

type connectFailedMsg struct {
	err     error
	retryIn time.Duration
}

type connectionLostMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialTerminalModel(connMgr *connectionManager) terminalModel {
	ti := textinput.New()
	ti.Placeholder = "type a line and press Enter"
	ti.CharLimit = inputCharLimit
	ti.Prompt = "> "
	ti.Focus()

	vp := viewport.New(80, 14)

	cfg := sessionConfig()
	scrollback := terminal.NewScrollback(cfg.ScrollbackBytes)

	m := terminalModel{
		connMgr:      connMgr,
		scrollback:   scrollback,
		newline:      cfg.Newline,
		mode:         cfg.Mode,
		values:       terminal.NewFieldRecord(),
		viewport:     vp,
		input:        ti,
		focusedField: focusInput,
		width:        80,
		height:       24,
	}
	m.newSession()
	return m
}

// newSession starts a fresh session that continues the shared scrollback
// with the current send mode and newline settings
func (m *terminalModel) newSession() {
	cfg := sessionConfig()
	cfg.Newline = m.newline
	cfg.Mode = m.mode
	cfg.Scrollback = m.scrollback
	m.session = terminal.NewSession(m.connMgr, cfg)
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m terminalModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, terminalTickCmd())
}

func terminalTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return terminalTickMsg(t)
	})
}

func (m terminalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewportSize()
		m.refreshScrollback()

	case terminalTickMsg:
		if m.notice != "" && time.Since(m.noticeAt) > 5*time.Second {
			m.notice = ""
		}
		return m, terminalTickCmd()

	case connectingMsg:
		m.newSession()
		m.session.Connecting()
		m.captureStatus("connecting...")
		m.refreshScrollback()

	case connectedMsg:
		m.connInfo = msg.connInfo
		m.retryIn = 0
		m.session.Connected()
		m.captureStatus("connected")
		m.refreshScrollback()

	case connectFailedMsg:
		err := m.session.ConnectError(msg.err)
		m.captureStatus(err.Error())
		m.retryIn = msg.retryIn
		m.refreshScrollback()

	case connectionLostMsg:
		// A failed send has already ended the session
		if m.session.State() == terminal.Connected {
			cause := msg.err
			if cause == nil {
				cause = io.EOF
			}
			err := m.session.IOError(cause)
			m.captureStatus(err.Error())
			m.refreshScrollback()
		}

	case chunkBatchMsg:
		batch := m.session.Receive(msg.chunks...)
		for _, record := range batch.Records {
			m.values = record
			m.records++
			m.lastRecord = time.Now()
		}
		if !batch.Empty() {
			m.refreshScrollback()
		}
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusInput {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m terminalModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.cycleFocus()
		return m, nil

	case "ctrl+x":
		if m.mode == terminal.ModeHex {
			m.mode = terminal.ModeText
		} else {
			m.mode = terminal.ModeHex
		}
		m.session.Receiver().SetMode(m.mode)
		m.setNotice(fmt.Sprintf("send mode: %s", m.mode), false)
		return m, nil

	case "ctrl+n":
		m.newline = m.newline.Next()
		m.session.Receiver().SetNewline(m.newline)
		m.setNotice(fmt.Sprintf("newline: %s", m.newline), false)
		return m, nil

	case "ctrl+l":
		m.scrollback.Clear()
		m.refreshScrollback()
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "enter":
		if m.focusedField == focusInput {
			if m.send(m.input.Value()) {
				m.input.Reset()
			}
			return m, nil
		}
	}

	if m.focusedField == focusPanel {
		key := msg.String()
		if text, ok := appConfig.Buttons[key]; ok {
			if isPotKey(key) {
				m.selectedPot = key
			}
			m.send(text)
		}
		return m, nil
	}

	// Pass through to the input line
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *terminalModel) cycleFocus() {
	if m.focusedField == focusInput {
		m.focusedField = focusPanel
		m.input.Blur()
	} else {
		m.focusedField = focusInput
		m.input.Focus()
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// send writes one line and reports whether it was accepted
func (m *terminalModel) send(text string) bool {
	_, err := m.session.Send(text)

	var te *terminal.TransportError
	switch {
	case err == nil:
		m.refreshScrollback()
		return true

	case errors.Is(err, terminal.ErrNotConnected):
		m.setNotice("not connected", true)

	case errors.Is(err, terminal.ErrMalformedHex):
		m.setNotice(err.Error(), true)

	case errors.As(err, &te):
		m.captureStatus(te.Error())
		m.refreshScrollback()
		m.connMgr.drop()

	default:
		m.setNotice(err.Error(), true)
	}
	return false
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m terminalModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("POTTERM"))
	s.WriteString(" ")
	s.WriteString(m.renderConnectionStatus())
	s.WriteString(headerStyle.Render(fmt.Sprintf(" | %s | newline %s | Tab=focus ^X=hex ^N=newline ^L=clear ^C=quit",
		strings.ToUpper(m.mode.String()), m.newline)))
	s.WriteString("\n")

	// Scrollback | pot panel
	viewStyle := boxStyle.Width(m.viewport.Width + 2)
	scroll := viewStyle.Render(m.viewport.View())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, scroll, " ", m.renderPanel()))
	s.WriteString("\n")

	// Input line
	inputStyle := boxStyle.Width(m.width - 4)
	if m.focusedField == focusInput {
		inputStyle = focusedBoxStyle.Width(m.width - 4)
	}
	s.WriteString(inputStyle.Render(m.input.View()))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")

	if m.notice != "" {
		style := warningStyle
		if m.isError {
			style = errorStyle
		}
		s.WriteString(style.Render(m.notice))
	}

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m terminalModel) renderConnectionStatus() string {
	switch m.session.State() {
	case terminal.Connected:
		return valueStyle.Render(m.connInfo)
	case terminal.Connecting:
		return warningStyle.Render("CONNECTING...")
	default:
		if m.retryIn > 0 {
			return errorStyle.Render(fmt.Sprintf("DISCONNECTED (retry in %s)", m.retryIn))
		}
		return errorStyle.Render("RECONNECTING...")
	}
}

func (m terminalModel) renderPanel() string {
	var s strings.Builder

	s.WriteString(labelStyle.Render("POTS"))
	s.WriteString("\n")
	for _, key := range potKeys {
		if _, ok := appConfig.Buttons[key]; !ok {
			continue
		}
		style := buttonStyle
		if key == m.selectedPot {
			style = selectedButtonStyle
		}
		s.WriteString(style.Render(fmt.Sprintf("Pot %s", key)))
		s.WriteString(" ")
	}
	s.WriteString("\n\n")

	for _, key := range []string{"-", "+"} {
		if _, ok := appConfig.Buttons[key]; ok {
			s.WriteString(buttonStyle.Render(fmt.Sprintf(" %s ", key)))
			s.WriteString(" ")
		}
	}
	s.WriteString("\n\n")

	s.WriteString(labelStyle.Render("VALUES"))
	s.WriteString("\n")
	for i := 0; i < terminal.FieldCount; i++ {
		v := m.values.Value(i)
		style := valueStyle
		if !m.values.Available(i) {
			style = headerStyle
		}
		s.WriteString(fmt.Sprintf("Value%d=%s\n", i+1, style.Render(v)))
	}

	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s %d", labelStyle.Render("Records:"), m.records))
	if !m.lastRecord.IsZero() {
		s.WriteString(headerStyle.Render(fmt.Sprintf("\nlast %s", m.lastRecord.Format("15:04:05"))))
	}

	style := boxStyle.Width(panelWidth)
	if m.focusedField == focusPanel {
		style = focusedBoxStyle.Width(panelWidth)
	}
	return style.Render(s.String())
}

func (m terminalModel) renderStatisticsBar() string {
	snap := m.session.Statistics().Snapshot()

	content := fmt.Sprintf("%s %s  %s %s  %s %d  %s %s/s",
		labelStyle.Render("RX:"), valueStyle.Render(humanize.Bytes(snap.BytesReceived)),
		labelStyle.Render("TX:"), valueStyle.Render(humanize.Bytes(snap.BytesSent)),
		labelStyle.Render("Records:"), snap.Records,
		labelStyle.Render("Rate:"), valueStyle.Render(humanize.Bytes(uint64(snap.ByteRate))),
	)
	if snap.RecordOverflows > 0 {
		content += "  " + errorStyle.Render(fmt.Sprintf("Dropped: %d", snap.RecordOverflows))
	}

	return boxStyle.Width(m.width - 4).Render(content)
}

// renderScrollback styles each history segment by origin
func (m terminalModel) renderScrollback() string {
	var s strings.Builder
	for _, seg := range m.scrollback.Segments() {
		if seg.Kind == terminal.SegmentReceive {
			s.WriteString(seg.Text)
			continue
		}
		s.WriteString(segmentStyle(seg.Kind).Render(seg.Text))
	}
	return lipgloss.NewStyle().Width(m.viewport.Width).Render(s.String())
}

func segmentStyle(kind terminal.SegmentKind) lipgloss.Style {
	switch kind {
	case terminal.SegmentSend:
		return sendStyle
	case terminal.SegmentStatus:
		return warningStyle
	case terminal.SegmentEscaped:
		return escapeStyle
	default:
		return plainStyle
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *terminalModel) refreshScrollback() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderScrollback())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *terminalModel) updateViewportSize() {
	width := m.width - panelWidth - 9
	if width < 10 {
		width = 10
	}
	height := m.height - chromeHeight
	if height < minViewHeight {
		height = minViewHeight
	}
	m.viewport.Width = width
	m.viewport.Height = height
}

func (m *terminalModel) setNotice(text string, isError bool) {
	m.notice = text
	m.noticeAt = time.Now()
	m.isError = isError
}

func (m *terminalModel) captureStatus(text string) {
	if m.connMgr.capture == nil {
		return
	}
	if err := m.connMgr.capture.Write(capture.KindStatus, []byte(text)); err != nil {
		logger.Warn().Err(err).Msg("capture write failed")
	}
}

func isPotKey(key string) bool {
	for _, k := range potKeys {
		if k == key {
			return true
		}
	}
	return false
}
