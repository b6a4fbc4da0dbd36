// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, or default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// No token ends in CR, so a stream never holds "\r\r". A chunk boundary
// between two CRs is the one split whose display differs from the
// unsplit stream.
var fuzzTokens = []string{
	"a", "b", "Z", " ", "\x1b", "\x00", "\x7f", "\xfe",
	"\r\n", "\n", "\rq", "n1.val=42", "n3.val=7",
}

func randomStream(rng *rand.Rand) string {
	var sb strings.Builder
	n := rng.Intn(40)
	for i := 0; i < n; i++ {
		sb.WriteString(fuzzTokens[rng.Intn(len(fuzzTokens))])
	}
	return sb.String()
}

// randomCuts splits s at random offsets, including empty chunks
func randomCuts(rng *rand.Rand, s string) [][]byte {
	var chunks [][]byte
	for len(s) > 0 {
		n := rng.Intn(len(s) + 1)
		chunks = append(chunks, []byte(s[:n]))
		s = s[n:]
	}
	return chunks
}

// randomBatches groups chunks into consecutive batches
func randomBatches(rng *rand.Rand, chunks [][]byte) [][][]byte {
	var batches [][][]byte
	for len(chunks) > 0 {
		n := 1 + rng.Intn(len(chunks))
		batches = append(batches, chunks[:n])
		chunks = chunks[n:]
	}
	return batches
}

// ============================================================
// Receiver Fuzz Tests
// ============================================================

func TestFuzz_DisplayIndependentOfChunking(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		stream := randomStream(rng)

		want := NewReceiver(DefaultConfig()).Ingest([]byte(stream)).Display

		r := NewReceiver(DefaultConfig())
		sb := NewScrollback(1 << 20)
		for _, batch := range randomBatches(rng, randomCuts(rng, stream)) {
			sb.Apply(r.Ingest(batch...))
		}

		if got := sb.String(); got != want {
			t.Fatalf("round %d: stream %q\nchunked: %q\nwhole:   %q", round, stream, got, want)
		}
	}
}

func TestFuzz_DisplayHasNoControlBytes(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		raw := make([]byte, rng.Intn(64))
		rng.Read(raw)

		for _, mode := range []NewlineMode{NewlineCRLF, NewlineLF, NewlineNone} {
			cfg := DefaultConfig()
			cfg.Newline = mode
			display := NewReceiver(cfg).Ingest(randomCuts(rng, string(raw))...).Display

			for i := 0; i < len(display); i++ {
				c := display[i]
				if c == '\n' && mode != NewlineNone {
					continue
				}
				if c < 0x20 || c >= 0x7F {
					t.Fatalf("round %d mode %s: byte 0x%02X in display %q", round, mode, c, display)
				}
			}
		}
	}
}

func TestFuzz_RecordBufferBounded(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	const limit = 64

	acc := NewTagAccumulator(limit, zerolog.Nop())
	for round := 0; round < rounds; round++ {
		chunk := make([]byte, rng.Intn(32))
		rng.Read(chunk)
		if rng.Intn(10) == 0 {
			chunk = append(chunk, CompletionMarker...)
		}

		acc.Feed(string(chunk))
		if acc.Pending() > limit {
			t.Fatalf("round %d: %d bytes pending, limit %d", round, acc.Pending(), limit)
		}
	}
}

// ============================================================
// Hex Fuzz Tests
// ============================================================

func TestFuzz_HexRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		data := make([]byte, rng.Intn(48))
		rng.Read(data)

		decoded, err := FromHex(ToHex(data))
		if err != nil {
			t.Fatalf("round %d: FromHex(ToHex(%v)) error: %v", round, data, err)
		}
		if !bytes.Equal(decoded, data) {
			t.Fatalf("round %d: round trip %v -> %v", round, data, decoded)
		}
	}
}

func TestFuzz_FromHexArbitraryInput(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()
	const alphabet = "0123456789abcdefABCDEFxyz \t\r\n-"

	for round := 0; round < rounds; round++ {
		n := rng.Intn(24)
		input := make([]byte, n)
		for i := range input {
			input[i] = alphabet[rng.Intn(len(alphabet))]
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("round %d: FromHex(%q) panicked: %v", round, input, r)
				}
			}()
			data, err := FromHex(string(input))
			if err != nil {
				if !errors.Is(err, ErrMalformedHex) || data != nil {
					t.Fatalf("round %d: FromHex(%q) = %v, %v", round, input, data, err)
				}
				return
			}
			// Any accepted input re-renders to the canonical form
			again, err := FromHex(ToHex(data))
			if err != nil || !bytes.Equal(again, data) {
				t.Fatalf("round %d: canonical form of %q did not round trip", round, input)
			}
		}()
	}
}

func TestFuzz_EncodeHexMatchesText(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for round := 0; round < rounds; round++ {
		payload := make([]byte, rng.Intn(16))
		for i := range payload {
			payload[i] = byte(0x20 + rng.Intn(0x5F))
		}
		newline := []NewlineMode{NewlineCRLF, NewlineLF, NewlineNone}[rng.Intn(3)]

		text, err := Encode(string(payload), ModeText, newline)
		if err != nil {
			t.Fatalf("round %d: text encode error: %v", round, err)
		}
		hex, err := Encode(ToHex(payload), ModeHex, newline)
		if err != nil {
			t.Fatalf("round %d: hex encode error: %v", round, err)
		}
		if !bytes.Equal(text, hex) {
			t.Fatalf("round %d: text %v != hex %v", round, text, hex)
		}
	}
}
