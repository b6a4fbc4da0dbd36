// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes session statistics to Prometheus. The collector
// reads a statistics snapshot on every scrape, so the session stays the
// only owner of its counters.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/potterm/pkg/terminal"
)

const namespace = "potterm"

// Source supplies the statistics of the current session. It may return nil
// between sessions.
type Source func() *terminal.Statistics

type counterDesc struct {
	desc  *prometheus.Desc
	value func(terminal.StatsSnapshot) uint64
}

// Collector implements prometheus.Collector over a Source
type Collector struct {
	source   Source
	counters []counterDesc
	byteRate *prometheus.Desc
	uptime   *prometheus.Desc
}

// NewCollector creates a collector reading from source
func NewCollector(source Source) *Collector {
	counter := func(name, help string, value func(terminal.StatsSnapshot) uint64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
			value: value,
		}
	}

	return &Collector{
		source: source,
		counters: []counterDesc{
			counter("chunks_received_total", "Chunks delivered by the transport.",
				func(s terminal.StatsSnapshot) uint64 { return s.Chunks }),
			counter("bytes_received_total", "Bytes delivered by the transport.",
				func(s terminal.StatsSnapshot) uint64 { return s.BytesReceived }),
			counter("bytes_sent_total", "Bytes written to the transport.",
				func(s terminal.StatsSnapshot) uint64 { return s.BytesSent }),
			counter("sends_total", "Lines sent.",
				func(s terminal.StatsSnapshot) uint64 { return s.Sends }),
			counter("send_errors_total", "Sends that failed to write.",
				func(s terminal.StatsSnapshot) uint64 { return s.SendErrors }),
			counter("records_total", "Complete field records extracted.",
				func(s terminal.StatsSnapshot) uint64 { return s.Records }),
			counter("record_overflows_total", "Partial records dropped for exceeding the buffer limit.",
				func(s terminal.StatsSnapshot) uint64 { return s.RecordOverflows }),
			counter("split_crlf_total", "CRLF pairs split across receive batches.",
				func(s terminal.StatsSnapshot) uint64 { return s.Retractions }),
		},
		byteRate: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "receive_bytes_per_second"),
			"Average receive rate over the session.", nil, nil),
		uptime: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "session_uptime_seconds"),
			"Seconds since the session started.", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.byteRate
	ch <- c.uptime
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source()
	if stats == nil {
		return
	}
	snap := stats.Snapshot()

	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(snap)))
	}
	ch <- prometheus.MustNewConstMetric(c.byteRate, prometheus.GaugeValue, snap.ByteRate)
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, time.Since(snap.StartTime).Seconds())
}

// NewRegistry returns a registry holding the session collector and the Go
// runtime collectors
func NewRegistry(source Source) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(NewCollector(source)); err != nil {
		return nil, fmt.Errorf("register session collector: %w", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, nil
}

// Server serves /metrics and /health
type Server struct {
	addr     string
	registry *prometheus.Registry
	logger   zerolog.Logger

	mu     sync.Mutex
	server *http.Server
	bound  net.Addr
}

// NewServer creates a metrics server listening on addr
func NewServer(addr string, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	return &Server{addr: addr, registry: registry, logger: logger}
}

// Handler returns the server's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start binds the listen address and serves in the background until Stop
// is called. Bind failures are returned.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("metrics server already running")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv
	s.bound = ln.Addr()

	s.logger.Info().Stringer("addr", s.bound).Msg("serving metrics")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return nil
}

// Addr returns the bound address while the server is running
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.bound = nil
	return err
}
