package model

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below
var (
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrDecodeFailure     = errors.New("decode failure")
	ErrValidation        = errors.New("validation failure")
)

// RemoteUnavailableError means the call could not complete or the service
// answered with a non-success status
type RemoteUnavailableError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Cause      error
}

func (e *RemoteUnavailableError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("remote unavailable: %s: status %d", e.Endpoint, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("remote unavailable: %s: %v", e.Endpoint, e.Cause)
	default:
		return fmt.Sprintf("remote unavailable: %s", e.Endpoint)
	}
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Cause
}

func (e *RemoteUnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}

// DecodeError means the response did not match the expected shape. It is
// also a remote-unavailable failure: callers that only care whether the
// service answered usefully can test for ErrRemoteUnavailable alone.
type DecodeError struct {
	Endpoint string
	Message  string
	Cause    error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode failure: %s: %s: %v", e.Endpoint, e.Message, e.Cause)
	}
	return fmt.Sprintf("decode failure: %s: %s", e.Endpoint, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecodeFailure || target == ErrRemoteUnavailable
}

// ValidationError is a local pre-call check failure; it never reaches the network
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
