// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHex is returned when hex input has an invalid digit or an
	// odd digit count
	ErrMalformedHex = errors.New("malformed hex")

	// ErrNotConnected is returned when a send is attempted outside a
	// connected session
	ErrNotConnected = errors.New("not connected")
)

// Transport error operations
const (
	OpConnect = "connect"
	OpIO      = "io"
)

// TransportError carries a transport-origin failure through unchanged so
// its message can be displayed
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	switch e.Op {
	case OpConnect:
		return fmt.Sprintf("connection failed: %v", e.Err)
	default:
		return fmt.Sprintf("connection lost: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
