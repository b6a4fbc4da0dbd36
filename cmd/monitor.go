// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/potterm/pkg/capture"
	"github.com/Thermoquad/potterm/pkg/metrics"
	"github.com/Thermoquad/potterm/pkg/publish"
	"github.com/Thermoquad/potterm/pkg/terminal"
)

var (
	statsInterval int
	recordsOnly   bool
	mqttBroker    string
	mqttTopic     string
	metricsAddr   string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream received text and records to stdout",
	Long: `Continuously display received text as it arrives, in caret notation,
and extract complete records of the four fields.

Records are logged at info level, or printed one per line with
--records-only. Statistics are printed at a configurable interval.

Records can be forwarded to an MQTT broker (--mqtt-broker), session
counters can be exposed for Prometheus (--metrics-addr), and the raw
traffic can be captured for replay (--record).

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds, 0 disables)")
	monitorCmd.Flags().BoolVar(&recordsOnly, "records-only", false, "Print only records, one per line")
	monitorCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "Publish records to this MQTT broker (tcp://host:1883)")
	monitorCmd.Flags().StringVar(&mqttTopic, "mqtt-topic", "", "MQTT topic (default from config)")
	monitorCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	session := terminal.NewSession(conn, sessionConfig())
	session.Connected()

	fmt.Fprintf(os.Stderr, "Potterm - Monitor\n")
	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)
	fmt.Fprintf(os.Stderr, "Newline: %s\n", appConfig.Newline)
	if statsInterval > 0 {
		fmt.Fprintf(os.Stderr, "Statistics interval: %d seconds\n", statsInterval)
	}
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to exit\n\n")

	var recorder *capture.Writer
	if recordPath != "" {
		w, closeCapture, err := openCapture(recordPath, session.ID)
		if err != nil {
			return err
		}
		defer closeCapture()
		recorder = w
	}

	publisher, err := openPublisher(session.ID)
	if err != nil {
		return err
	}
	var records *publish.Queue
	if publisher != nil {
		records = publish.NewQueue(publisher, publish.DefaultQueueSize)
		defer records.Close()
	}

	if metricsAddr != "" {
		registry, err := metrics.NewRegistry(session.Statistics)
		if err != nil {
			return err
		}
		srv := metrics.NewServer(metricsAddr, registry, logger)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
	}

	printer := newDisplayPrinter(os.Stdout, recordsOnly)
	defer printer.Flush()

	// Channel for non-blocking reads
	done := make(chan struct{})
	defer close(done)
	chunks := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readChunks(conn, chunks, done)
	}()

	// Statistics ticker
	var statsC <-chan time.Time
	if statsInterval > 0 {
		statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for {
		select {
		case data := <-chunks:
			if recorder != nil {
				if err := recorder.Write(capture.KindReceive, data); err != nil {
					logger.Warn().Err(err).Msg("capture write failed")
				}
			}

			batch := session.Receive(data)
			printer.Print(batch, session.Receiver().PendingCR())

			if records != nil {
				for _, record := range batch.Records {
					records.Enqueue(record)
				}
			}

		case err := <-readErr:
			printer.Flush()
			if err == nil {
				return nil
			}
			te := session.IOError(err)
			if recorder != nil {
				recorder.Write(capture.KindStatus, []byte(te.Error()))
			}
			fmt.Fprintf(os.Stderr, "\n%s\n", te)
			fmt.Fprint(os.Stderr, session.Statistics().String())
			return te

		case <-statsC:
			// Print statistics
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, session.Statistics().String())
			fmt.Fprintln(os.Stderr)

		case <-ctx.Done():
			printer.Flush()
			fmt.Fprintln(os.Stderr)
			fmt.Fprint(os.Stderr, session.Statistics().String())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		}
	}
}

// openPublisher connects the MQTT record publisher when a broker is
// configured, by flag or config file
func openPublisher(sessionID string) (*publish.Publisher, error) {
	opts := publish.Options{
		Broker:    appConfig.MQTT.Broker,
		Topic:     appConfig.MQTT.Topic,
		ClientID:  appConfig.MQTT.ClientID,
		QoS:       appConfig.MQTT.QoS,
		Retain:    appConfig.MQTT.Retain,
		SessionID: sessionID,
	}
	if mqttBroker != "" {
		opts.Broker = mqttBroker
	}
	if mqttTopic != "" {
		opts.Topic = mqttTopic
	}
	if opts.Broker == "" {
		return nil, nil
	}

	p, err := publish.Connect(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Publishing records to %s (topic %s)\n", opts.Broker, opts.Topic)
	return p, nil
}

// openCapture creates a capture file for the given session or run ID
func openCapture(path, id string) (*capture.Writer, func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create capture: %w", err)
	}
	w, err := capture.NewWriter(f, id, appConfig.Newline.String(), appConfig.Mode.String())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return w, func() { f.Close() }, nil
}
