// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

var waitRecordTimeout int

var waitRecordCmd = &cobra.Command{
	Use:   "wait_record",
	Short: "Test connection by waiting for a complete record",
	Long: `Wait for a complete record of the four fields until timeout.

This command connects to a serial port or WebSocket and reads until the
device has reported n3.val=, then prints the extracted fields. Any other
received text is ignored.

Exit codes:
  0 - Record received before timeout
  1 - Timeout reached without receiving a record
  2 - Connection error

Useful for checking that a board is wired up and reporting.`,
	RunE: runWaitRecord,
}

func init() {
	rootCmd.AddCommand(waitRecordCmd)
	waitRecordCmd.Flags().IntVar(&waitRecordTimeout, "timeout", 10, "Timeout in seconds to wait for a record")
}

func runWaitRecord(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Potterm - Record Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", waitRecordTimeout)
	fmt.Printf("Waiting for a complete record...\n\n")

	session := terminal.NewSession(conn, sessionConfig())
	session.Connected()

	done := make(chan struct{})
	defer close(done)
	chunks := make(chan []byte, 64)
	readErr := make(chan error, 1)

	// Reader goroutine
	go func() {
		readErr <- readChunks(conn, chunks, done)
	}()

	timeout := time.After(time.Duration(waitRecordTimeout) * time.Second)
	for {
		select {
		case data := <-chunks:
			batch := session.Receive(data)
			if len(batch.Records) == 0 {
				continue
			}
			record := batch.Records[0]
			snap := session.Statistics().Snapshot()
			fmt.Printf("SUCCESS: Received record\n")
			for i := 0; i < terminal.FieldCount; i++ {
				fmt.Printf("  n%d: %s\n", i, record.Value(i))
			}
			fmt.Printf("  Bytes read: %d in %d chunks\n", snap.BytesReceived, snap.Chunks)
			os.Exit(0)

		case err := <-readErr:
			fmt.Fprintf(os.Stderr, "%v\n", session.IOError(err))
			os.Exit(2)

		case <-timeout:
			fmt.Fprintf(os.Stderr, "TIMEOUT: No complete record received within %d seconds\n", waitRecordTimeout)
			if n := session.Receiver().PendingRecordBytes(); n > 0 {
				fmt.Fprintf(os.Stderr, "(%d bytes buffered without n3.val=)\n", n)
			}
			os.Exit(1)
		}
	}
}
