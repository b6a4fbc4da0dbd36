// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import "strings"

// NewlineNormalizer converts CRLF to LF across chunk boundaries. It carries
// one bit between calls: whether the previous chunk ended in a bare CR that
// may be the first half of a split CRLF pair.
type NewlineNormalizer struct {
	pendingCR bool
}

// Normalize rewrites raw for the given newline mode. The returned flag asks
// the caller to remove the ^M placeholder emitted for the previous chunk's
// trailing CR, because this chunk completes the pair with a leading LF.
func (n *NewlineNormalizer) Normalize(raw string, mode NewlineMode) (string, bool) {
	if mode != NewlineCRLF {
		n.pendingCR = false
		return raw, false
	}
	if len(raw) == 0 {
		return raw, false
	}

	// Must be read from the raw chunk before the replacement below
	endsInCR := raw[len(raw)-1] == '\r'

	out := strings.ReplaceAll(raw, "\r\n", "\n")
	retract := n.pendingCR && out[0] == '\n'

	n.pendingCR = endsInCR
	return out, retract
}

// Pending reports whether the last chunk ended in a bare CR
func (n *NewlineNormalizer) Pending() bool {
	return n.pendingCR
}

// Reset clears the pending CR flag
func (n *NewlineNormalizer) Reset() {
	n.pendingCR = false
}
