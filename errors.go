package mcpclient

import "github.com/hivedev/mcp-client-go/internal/errors"

// Re-export error types from internal package

// TransportError indicates an HTTP or network level failure.
type TransportError = errors.TransportError

// ProtocolError indicates an inbound frame violated JSON-RPC framing.
type ProtocolError = errors.ProtocolError

// ToolError indicates the server reported a failed tool call.
type ToolError = errors.ToolError

// ConnectError indicates a session failed to establish or handshake.
type ConnectError = errors.ConnectError

// InvalidArgumentsError indicates tool arguments failed schema validation.
type InvalidArgumentsError = errors.InvalidArgumentsError

// ClientError is the base interface for all errors produced by this SDK.
type ClientError = errors.ClientError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the session is not in the ready state.
	ErrNotConnected = errors.ErrNotConnected

	// ErrAlreadyConnected indicates Connect was called on a live session.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrTimeout indicates a request deadline elapsed before a response arrived.
	ErrTimeout = errors.ErrTimeout

	// ErrConnectionLost indicates the transport dropped with requests in flight.
	ErrConnectionLost = errors.ErrConnectionLost

	// ErrUnknownTool indicates a qualified tool name does not resolve.
	ErrUnknownTool = errors.ErrUnknownTool

	// ErrDuplicateLabel indicates a server label is already registered.
	ErrDuplicateLabel = errors.ErrDuplicateLabel
)
