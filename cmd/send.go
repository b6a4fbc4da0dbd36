// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

var sendListen int

var sendCmd = &cobra.Command{
	Use:   "send <text>...",
	Short: "Send one line and exit",
	Long: `Send one line over the connection, terminated by the configured newline.

Arguments are joined with spaces. With --hex the line is parsed as hex bytes
(e.g. "41 42 0D") and the newline is appended as bytes.

With --listen the command keeps reading for the given number of seconds
after sending and prints what is received.

Examples:
  potterm send --port /dev/ttyUSB0 a
  potterm send --port /dev/ttyUSB0 --hex --newline none "FF FF FF"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().IntVar(&sendListen, "listen", 0, "Seconds to print received text after sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	// Validate before opening the port
	if _, err := terminal.Encode(text, appConfig.Mode, appConfig.Newline); err != nil {
		return err
	}

	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		return err
	}
	defer conn.Close()

	session := terminal.NewSession(conn, sessionConfig())
	session.Connected()

	data, err := session.Send(text)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Sent %d bytes to %s: %s\n", len(data), connInfo, terminal.ToHex(data))

	if sendListen <= 0 {
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	chunks := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readChunks(conn, chunks, done)
	}()

	printer := newDisplayPrinter(os.Stdout, false)
	defer printer.Flush()
	timeout := time.After(time.Duration(sendListen) * time.Second)
	for {
		select {
		case data := <-chunks:
			printer.Print(session.Receive(data), session.Receiver().PendingCR())
		case err := <-readErr:
			return session.IOError(err)
		case <-timeout:
			return nil
		}
	}
}
