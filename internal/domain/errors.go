package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrImageNotFound   = errors.New("image not found")
	// ErrBusy is returned for any state-mutating intent while a submission
	// is in flight. The intent is rejected, never queued.
	ErrBusy = errors.New("a submission is already in flight")
	// ErrNotReady is returned when the submit guard fails: no staged images
	// or an empty prompt.
	ErrNotReady = errors.New("at least one image and a prompt are required")
)

// ReadError signals that a staged image's byte source could not be read
// while encoding for transport.
type ReadError struct {
	Name string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Name, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// TransportError signals a network-level failure reaching the remote
// collaborator before any service response was obtained.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError signals that the remote service explicitly rejected the
// request. Error() returns the service's message verbatim so the UI error
// channel shows exactly what the collaborator said; the HTTP status is kept
// for logging and tests.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("remote service error (status %d)", e.Status)
}
