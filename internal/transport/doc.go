// Package transport implements the streamable HTTP transport for MCP
// servers: JSON-RPC requests go out as POSTs, responses return on the POST
// body as JSON or server-sent events, and a hanging GET carries
// server-initiated frames. The transport reports each connection failure
// exactly once and leaves retry policy to its caller.
package transport
