// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics tracks traffic for one session. It is the only core type that
// is safe for concurrent use, so a metrics endpoint can read it while the
// session goroutine updates it.
type Statistics struct {
	mu sync.Mutex
	s  StatsSnapshot
}

// StatsSnapshot is a point-in-time copy of the counters
type StatsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Chunks          uint64
	BytesReceived   uint64
	BytesSent       uint64
	Sends           uint64
	SendErrors      uint64
	Records         uint64
	RecordOverflows uint64
	Retractions     uint64

	// Rates (calculated)
	ByteRate   float64 // bytes/sec received
	RecordRate float64 // records/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{s: StatsSnapshot{StartTime: now, LastUpdateTime: now}}
}

// RecordBatch accounts for one ingest batch
func (st *Statistics) RecordBatch(chunks [][]byte, b Batch, overflows int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.Chunks += uint64(len(chunks))
	for _, c := range chunks {
		st.s.BytesReceived += uint64(len(c))
	}
	st.s.Records += uint64(len(b.Records))
	if b.Retract > 0 {
		st.s.Retractions++
	}
	if uint64(overflows) > st.s.RecordOverflows {
		st.s.RecordOverflows = uint64(overflows)
	}
	st.s.LastUpdateTime = time.Now()
}

// RecordSend accounts for one send attempt
func (st *Statistics) RecordSend(n int, err error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.Sends++
	if err != nil {
		st.s.SendErrors++
	}
	st.s.BytesSent += uint64(n)
	st.s.LastUpdateTime = time.Now()
}

// Snapshot returns the counters with rates calculated as of now
func (st *Statistics) Snapshot() StatsSnapshot {
	st.mu.Lock()
	defer st.mu.Unlock()

	snap := st.s
	elapsed := time.Since(snap.StartTime).Seconds()
	if elapsed > 0 {
		snap.ByteRate = float64(snap.BytesReceived) / elapsed
		snap.RecordRate = float64(snap.Records) / elapsed
	}
	return snap
}

// String returns a formatted statistics summary
func (st *Statistics) String() string {
	s := st.Snapshot()
	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Chunks:          %8d\n", s.Chunks)
	result += fmt.Sprintf("Received:        %8s\n", humanize.Bytes(s.BytesReceived))
	result += fmt.Sprintf("Sent:            %8s (%d lines)\n", humanize.Bytes(s.BytesSent), s.Sends)
	result += fmt.Sprintf("Records:         %8d\n", s.Records)

	if s.SendErrors > 0 {
		result += fmt.Sprintf("Send Errors:     %8d\n", s.SendErrors)
	}
	if s.RecordOverflows > 0 {
		result += fmt.Sprintf("Buffer Drops:    %8d\n", s.RecordOverflows)
	}
	if s.Retractions > 0 {
		result += fmt.Sprintf("Split CRLF:      %8d\n", s.Retractions)
	}

	result += fmt.Sprintf("Byte Rate:       %8s/sec\n", humanize.Bytes(uint64(s.ByteRate)))
	result += fmt.Sprintf("Record Rate:     %8.1f records/sec\n", s.RecordRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	st.s = StatsSnapshot{StartTime: now, LastUpdateTime: now}
}
