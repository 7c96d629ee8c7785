// Package session manages the protocol lifecycle for a single MCP server:
// the initialize handshake, request/response correlation, timeout
// enforcement, and automatic reconnect with bounded exponential backoff.
package session
