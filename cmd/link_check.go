// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test raw connection stability",
	Long: `Test a serial or WebSocket connection without interpreting the data.

This command connects and just waits, printing each received chunk as hex
along with any errors encountered. Useful for debugging flaky adapters,
wrong baud rates and bridge disconnects.

Exit codes:
  0 - Test completed normally
  1 - Connection lost during the test
  2 - Connection error`,
	RunE: runLinkCheck,
}

var linkCheckDuration int

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(cmd.Context())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	done := make(chan struct{})
	defer close(done)
	chunks := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		errChan <- readChunks(conn, chunks, done)
	}()

	stats := terminal.NewStatistics()
	start := time.Now()
	endTime := start.Add(time.Duration(linkCheckDuration) * time.Second)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-chunks:
			stats.RecordBatch([][]byte{data}, terminal.Batch{}, 0)
			fmt.Printf("[%s] Received %d bytes: %s\n",
				time.Now().Format("15:04:05.000"), len(data), terminal.ToHex(data))

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			printLinkCheckResults(stats.Snapshot(), time.Since(start))
			fmt.Printf("Result: FAILED (connection error)\n")
			os.Exit(1)

		case <-heartbeat.C:
			// Just a heartbeat to show the test is running
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	printLinkCheckResults(stats.Snapshot(), time.Since(start))
	fmt.Printf("Result: PASSED (connection stable)\n")

	return nil
}

func printLinkCheckResults(snap terminal.StatsSnapshot, elapsed time.Duration) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", snap.Chunks)
	fmt.Printf("Bytes received: %s\n", humanize.Bytes(snap.BytesReceived))
}
