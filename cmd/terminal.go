// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/capture"
)

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Interactive terminal with pot controls",
	Long: `Open an interactive terminal UI on the connection.

Received text scrolls in the main pane with control bytes shown in caret
notation. The side panel shows the latest value of each of the four fields
and the pot buttons.

Keys:
  Enter    send the input line (text, or hex with --hex / ctrl+x)
  Tab      switch between the input line and the pot panel
  1-4      (panel) select a pot
  + / -    (panel) increase / decrease the selected pot
  ctrl+x   toggle hex send mode
  ctrl+n   cycle the newline mode (crlf, lf, none)
  ctrl+l   clear the scrollback
  ctrl+c   quit

The connection is retried with exponential backoff when it fails or is
lost. Scrollback is kept across reconnects.

Supports both serial and WebSocket connections.`,
	RunE: runTerminal,
}

func init() {
	rootCmd.AddCommand(terminalCmd)
}

// errNoConnection is returned by writes between connections
var errNoConnection = errors.New("no open connection")

// connectionManager handles connection lifecycle and reconnection. All
// session state lives in the TUI model; the manager only reports
// connection events to it as messages.
type connectionManager struct {
	conn     Connection
	connInfo string
	mu       sync.RWMutex
	p        *tea.Program
	capture  *capture.Writer
	done     chan struct{}
	ctx      context.Context
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
	cm.connInfo = connInfo
}

// Write sends to the current connection. The session uses the manager as
// its transport so that a session never writes to a replaced connection.
func (cm *connectionManager) Write(p []byte) (int, error) {
	conn := cm.getConn()
	if conn == nil {
		return 0, errNoConnection
	}
	n, err := conn.Write(p)
	if err == nil && cm.capture != nil {
		if cerr := cm.capture.Write(capture.KindSend, p[:n]); cerr != nil {
			logger.Warn().Err(cerr).Msg("capture write failed")
		}
	}
	return n, err
}

// drop closes the current connection so the reader loop reconnects
func (cm *connectionManager) drop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn != nil {
		cm.conn.Close()
		cm.conn = nil
	}
}

func runTerminal(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Prompt before the TUI takes over the screen
	if err := resolvePassword(); err != nil {
		return err
	}

	cm := &connectionManager{
		done: make(chan struct{}),
		ctx:  ctx,
	}

	if recordPath != "" {
		w, closeCapture, err := openCapture(recordPath, uuid.NewString())
		if err != nil {
			return err
		}
		defer closeCapture()
		cm.capture = w
	}

	// Create TUI model with connection manager
	m := initialTerminalModel(cm)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	// Start connection loop
	go cm.connectionLoop()

	// Run TUI
	_, err := p.Run()
	close(cm.done) // Signal goroutines to stop
	cancel()
	cm.drop()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// connectionLoop connects, reads until the connection fails, and
// reconnects with exponential backoff
func (cm *connectionManager) connectionLoop() {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		cm.p.Send(connectingMsg{})

		conn, connInfo, err := OpenConnection(cm.ctx)
		if err != nil {
			select {
			case <-cm.done:
				return
			default:
			}
			cm.p.Send(connectFailedMsg{err: err, retryIn: backoff})

			select {
			case <-cm.done:
				return
			case <-time.After(backoff):
			}

			// Exponential backoff
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = 1 * time.Second
		cm.setConn(conn, connInfo)
		cm.p.Send(connectedMsg{connInfo: connInfo})

		readErr := cm.readFromConnection(conn)

		// Check if we're shutting down
		select {
		case <-cm.done:
			return
		default:
		}

		cm.drop()
		cm.p.Send(connectionLostMsg{err: readErr})

		select {
		case <-cm.done:
			return
		case <-time.After(backoff):
		}
	}
}

// readFromConnection forwards chunks to the TUI in batches until the
// connection fails. Batching keeps one Update per tick at high data rates
// while preserving arrival order.
func (cm *connectionManager) readFromConnection(conn Connection) error {
	chunkChan := make(chan []byte, 256)
	readerDone := make(chan struct{})
	var readErr error

	// Reader goroutine - copies chunks to the batch channel
	go func() {
		defer close(readerDone)
		readErr = readChunks(conn, chunkChan, cm.done)
	}()

	// Batch sender - sends batched chunks to TUI at fixed rate
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cm.done:
			return nil
		case <-readerDone:
			// Flush what arrived before the failure
			if batch := drainChunks(chunkChan); len(batch) > 0 {
				cm.sendBatch(batch)
			}
			return readErr
		case <-ticker.C:
			if batch := drainChunks(chunkChan); len(batch) > 0 {
				cm.sendBatch(batch)
			}
		}
	}
}

func (cm *connectionManager) sendBatch(batch [][]byte) {
	if cm.capture != nil {
		for _, chunk := range batch {
			if err := cm.capture.Write(capture.KindReceive, chunk); err != nil {
				logger.Warn().Err(err).Msg("capture write failed")
				break
			}
		}
	}
	cm.p.Send(chunkBatchMsg{chunks: batch})
}

// drainChunks takes every chunk currently queued without blocking
func drainChunks(ch <-chan []byte) [][]byte {
	var batch [][]byte
	for {
		select {
		case chunk := <-ch:
			batch = append(batch, chunk)
		default:
			return batch
		}
	}
}
