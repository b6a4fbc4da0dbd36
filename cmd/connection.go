// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection is a byte link to the device
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

const (
	// readBufferSize bounds one chunk read from a connection
	readBufferSize = 256

	// envPassword holds the WebSocket password
	envPassword = "POTTERM_PASSWORD"

	wsHandshakeTimeout = 10 * time.Second
	wsDialTimeout      = 15 * time.Second
)

// ErrConnectionClosed is returned by a WebSocket link after its first read
// failure
var ErrConnectionClosed = errors.New("websocket connection closed")

// SerialConnection is a serial port link
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *SerialConnection) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *SerialConnection) Close() error                { return s.port.Close() }

// WebSocketConnection carries the byte stream in WebSocket frames. Text and
// binary frames are both treated as raw bytes; a frame larger than the read
// buffer is handed out over several reads. Reads and writes may happen on
// different goroutines.
type WebSocketConnection struct {
	conn    *websocket.Conn
	pending []byte
	closed  atomic.Bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, ErrConnectionClosed
	}

	for len(w.pending) == 0 {
		kind, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed.Store(true)
			return 0, err
		}
		if kind == websocket.BinaryMessage || kind == websocket.TextMessage {
			w.pending = data
		}
	}

	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, ErrConnectionClosed
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	w.closed.Store(true)
	return w.conn.Close()
}

// OpenSerialConnection opens portName as 8N1 at baudRate
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection dials a ws:// or wss:// bridge. Credentials are
// sent as HTTP Basic auth when both are set.
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	ctx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, basicAuthHeader(username, password))
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket handshake failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket dial failed: %w", err)
	}
	return &WebSocketConnection{conn: conn}, nil
}

func basicAuthHeader(username, password string) http.Header {
	h := http.Header{}
	if username != "" && password != "" {
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(username+":"+password)))
	}
	return h
}

// GetPassword returns POTTERM_PASSWORD, or prompts on stderr. Input is
// hidden when stdin is a terminal.
func GetPassword() (string, error) {
	if pw := os.Getenv(envPassword); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// passwordCache holds the WebSocket password once prompted, so reconnects
// do not prompt again
var passwordCache string

// resolvePassword prompts once per process when a username is configured
func resolvePassword() error {
	if appConfig.URL == "" || appConfig.Username == "" || passwordCache != "" {
		return nil
	}
	pw, err := GetPassword()
	if err != nil {
		return err
	}
	passwordCache = pw
	return nil
}

// OpenConnection opens the link described by the resolved settings and
// returns it with a one-line description
func OpenConnection(ctx context.Context) (Connection, string, error) {
	switch {
	case appConfig.URL != "":
		if err := resolvePassword(); err != nil {
			return nil, "", err
		}
		conn, err := OpenWebSocketConnection(ctx, appConfig.URL, appConfig.Username, passwordCache, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", appConfig.URL), nil

	case appConfig.Port != "":
		conn, err := OpenSerialConnection(appConfig.Port, appConfig.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", appConfig.Port, appConfig.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// readChunks copies each read from conn onto chunks until the connection
// fails or done is closed. The returned error is nil only on shutdown.
func readChunks(conn Connection, chunks chan<- []byte, done <-chan struct{}) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				return err
			}
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case chunks <- data:
		case <-done:
			return nil
		}
	}
}
