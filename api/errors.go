// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-relay.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the relay.
var (
	// ErrWouldBlock signals that a non-blocking call has no data or capacity
	// right now. It is a "try again later" condition, never a failure.
	ErrWouldBlock = errors.New("operation would block")

	ErrClosed           = fmt.Errorf("resource is closed")
	ErrBackpressure     = fmt.Errorf("outbound queue limit exceeded")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrNotSupported     = fmt.Errorf("operation not supported")
	ErrAlreadyExists    = fmt.Errorf("resource already exists")
	ErrNotFound         = fmt.Errorf("resource not found")
	ErrHandshakeTooLong = fmt.Errorf("handshake request exceeds size limit")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeResourceExhausted
	ErrCodeTimeout
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeInternal
)

// Error represents a structured error with code, context and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}
