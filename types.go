package mcpclient

import (
	"github.com/hivedev/mcp-client-go/internal/manager"
	"github.com/hivedev/mcp-client-go/internal/session"
	"github.com/hivedev/mcp-client-go/internal/wire"
)

// Re-export types from internal packages

// ===== Protocol Payloads =====

// ToolDescriptor describes a tool an MCP server exposes.
type ToolDescriptor = wire.ToolDescriptor

// ToolResult is the payload returned by a tool invocation.
type ToolResult = wire.ToolResult

// Content is one block of a tool result.
type Content = wire.Content

// Implementation identifies a protocol party during the handshake.
type Implementation = wire.Implementation

// ServerCapabilities is the capability set a server reports on connect.
type ServerCapabilities = wire.ServerCapabilities

// ===== Session Lifecycle =====

// SessionState is the lifecycle phase of a server session.
type SessionState = session.State

const (
	// StateDisconnected is the initial state before connecting.
	StateDisconnected = session.StateDisconnected
	// StateConnecting means the transport is being established.
	StateConnecting = session.StateConnecting
	// StateHandshaking means the initialize exchange is in flight.
	StateHandshaking = session.StateHandshaking
	// StateReady means the session accepts requests.
	StateReady = session.StateReady
	// StateReconnecting means automatic recovery is in progress.
	StateReconnecting = session.StateReconnecting
	// StateClosed means the session was closed and cannot be reused.
	StateClosed = session.StateClosed
)

// ===== Aggregation =====

// CatalogEntry is one tool in the aggregated catalog.
type CatalogEntry = manager.CatalogEntry

// Status is one server's view in a Report.
type Status = manager.Status

// Report maps server labels to their connection status.
type Report = manager.Report
