// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/capture"
	"github.com/Thermoquad/potterm/pkg/terminal"
)

var (
	replayChunked     bool
	replayRecordsOnly bool
	replayShowSent    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Replay a recorded session",
	Long: `Replay a capture file written with --record.

Received chunks are fed through the same receive path as a live session,
so the display and extracted records match what was seen at the time. The
newline mode stored in the capture is used unless --newline is given.

By default chunks are replayed one by one as they arrived. With
--chunked=false all received bytes are ingested in a single pass, which
must produce the same output.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayChunked, "chunked", true, "Replay chunks with their original boundaries")
	replayCmd.Flags().BoolVar(&replayRecordsOnly, "records-only", false, "Print only extracted records")
	replayCmd.Flags().BoolVar(&replayShowSent, "show-sent", false, "Print sent lines and status entries to stderr")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	reader, err := capture.NewReader(f)
	if err != nil {
		return err
	}
	header := reader.Header()

	cfg := sessionConfig()
	if !cmd.Flags().Changed("newline") {
		if n, err := terminal.ParseNewlineMode(header.Newline); err == nil {
			cfg.Newline = n
		}
	}
	receiver := terminal.NewReceiver(cfg)

	fmt.Fprintf(os.Stderr, "Session %s started %s (newline %s)\n",
		header.SessionID, time.Unix(0, header.Started).Format("2006-01-02 15:04:05"), cfg.Newline)

	printer := newDisplayPrinter(os.Stdout, replayRecordsOnly)
	defer printer.Flush()

	if !replayChunked {
		chunks, err := reader.Received()
		if err != nil {
			return err
		}
		var all []byte
		for _, c := range chunks {
			all = append(all, c...)
		}
		printer.Print(receiver.Ingest(all), receiver.PendingCR())
		return nil
	}

	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch entry.Kind {
		case capture.KindReceive:
			printer.Print(receiver.Ingest(entry.Data), receiver.PendingCR())
		case capture.KindSend, capture.KindStatus:
			if replayShowSent {
				fmt.Fprintf(os.Stderr, "[%s %s] %s\n", entry.At().Format("15:04:05.000"), entry.Kind,
					terminal.Escape(string(entry.Data), true))
			}
		}
	}
}
