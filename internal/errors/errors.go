package errors

import (
	"errors"
	"fmt"
)

// ClientError is the base interface for all errors produced by this SDK.
type ClientError interface {
	error
	IsClientError() bool
}

// Compile-time verification that all error types implement ClientError.
var (
	_ ClientError = (*TransportError)(nil)
	_ ClientError = (*ProtocolError)(nil)
	_ ClientError = (*ToolError)(nil)
	_ ClientError = (*ConnectError)(nil)
	_ ClientError = (*InvalidArgumentsError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the session is not in the Ready state.
	ErrNotConnected = errors.New("session not connected")

	// ErrAlreadyConnected indicates Connect was called on a live session.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrSessionClosed indicates the session has been closed and cannot be
	// reused. Sessions are single-use; create a new one with New.
	ErrSessionClosed = errors.New("session closed")

	// ErrTimeout indicates a request deadline elapsed before a response arrived.
	ErrTimeout = errors.New("request timeout")

	// ErrConnectionLost indicates the transport dropped while requests were
	// in flight.
	ErrConnectionLost = errors.New("connection lost")

	// ErrUnknownTool indicates a qualified tool name does not resolve to any
	// connected server's tool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrDuplicateLabel indicates a server label is already registered.
	ErrDuplicateLabel = errors.New("duplicate server label")
)

// TransportError indicates an HTTP or network level failure. A non-2xx
// status never carries a JSON-RPC result, so it is always surfaced as one
// of these rather than a response.
type TransportError struct {
	Op     string // "post" or "stream"
	URL    string
	Status int // HTTP status code, 0 when the request never completed
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport: %s %s returned HTTP %d", e.Op, e.URL, e.Status)
	}

	return fmt.Sprintf("transport: %s %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsClientError implements ClientError.
func (e *TransportError) IsClientError() bool { return true }

// ProtocolError indicates an inbound frame violated the JSON-RPC framing
// rules. This error preserves the original raw data that failed to parse.
type ProtocolError struct {
	RawData string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: failed to decode message: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsClientError implements ClientError.
func (e *ProtocolError) IsClientError() bool { return true }

// ToolError indicates the server reported that a tool call failed, either
// as a JSON-RPC error object or as an isError result.
type ToolError struct {
	Tool    string
	Code    int // JSON-RPC error code, 0 for isError results
	Message string
}

func (e *ToolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("tool %q failed (code %d): %s", e.Tool, e.Code, e.Message)
	}

	return fmt.Sprintf("tool %q failed: %s", e.Tool, e.Message)
}

// IsClientError implements ClientError.
func (e *ToolError) IsClientError() bool { return true }

// ConnectError indicates a session failed to establish or handshake.
type ConnectError struct {
	Label string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %q: %v", e.Label, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsClientError implements ClientError.
func (e *ConnectError) IsClientError() bool { return true }

// InvalidArgumentsError indicates tool arguments failed local schema
// validation. The request was never sent to the server.
type InvalidArgumentsError struct {
	Tool string
	Err  error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error {
	return e.Err
}

// IsClientError implements ClientError.
func (e *InvalidArgumentsError) IsClientError() bool { return true }
