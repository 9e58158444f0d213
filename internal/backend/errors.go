package backend

import (
	"errors"
	"fmt"
)

// ErrNotFound means neither the primary nor the legacy endpoint knows the
// product code.
var ErrNotFound = errors.New("product not registered in master")

// ServerError is a non-404 non-2xx backend reply. Detail carries the
// server-provided message when one exists.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend error (status %d)", e.Status)
}

// NetworkError is a transport-level failure. Timeout distinguishes an expired
// request deadline from an unreachable backend.
type NetworkError struct {
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("backend request timed out: %v", e.Err)
	}
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
