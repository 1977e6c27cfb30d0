// Copyright (c) Trisense Systems.
// Licensed under the MIT License.
package mqttlink

import "fmt"

// NotConnectedError is returned when a command requires an established
// session and the bridge is not connected. No transport I/O has occurred.
type NotConnectedError struct{}

func (*NotConnectedError) Error() string {
	return "session is not connected"
}

// AlreadyConnectedError is returned by Connect while a session is already
// established. The existing session is left untouched.
type AlreadyConnectedError struct{}

func (*AlreadyConnectedError) Error() string {
	return "session is already connected"
}

// InvalidArgumentError indicates that the caller has provided an invalid
// value for a command argument. The command was rejected before any I/O. It
// may wrap an underlying error using Go standard error wrapping.
type InvalidArgumentError struct {
	wrapped error
	message string
}

func (e *InvalidArgumentError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.wrapped
}

// ResolutionError indicates that the broker hostname could not be resolved
// to an address of the requested family.
type ResolutionError struct {
	Host    string
	wrapped error
}

func (e *ResolutionError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("cannot resolve broker %q: %v", e.Host, e.wrapped)
	}
	return fmt.Sprintf("cannot resolve broker %q", e.Host)
}

func (e *ResolutionError) Unwrap() error {
	return e.wrapped
}

// TransportError indicates a socket or TLS level failure. Command-path
// transport errors are the only command errors that force the session
// disconnected.
type TransportError struct {
	wrapped error
	message string
}

func (e *TransportError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *TransportError) Unwrap() error {
	return e.wrapped
}

// MessageTooLargeError indicates that an inbound payload exceeds the fixed
// receive buffer. The event is dropped; the connection stays up.
type MessageTooLargeError struct {
	Size  int
	Limit int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf(
		"inbound payload of %d bytes exceeds the %d byte receive buffer",
		e.Size,
		e.Limit,
	)
}

// EngineError indicates a protocol-level rejection by the engine, such as a
// continuation issued in a state the engine considers malformed.
type EngineError struct {
	wrapped error
	message string
}

func (e *EngineError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *EngineError) Unwrap() error {
	return e.wrapped
}

// StreamActiveError is returned when a publish is attempted while a
// streaming publish session is open. Exactly one stream may be open at a
// time.
type StreamActiveError struct{}

func (*StreamActiveError) Error() string {
	return "a streaming publish session is already open"
}
