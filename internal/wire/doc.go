// Package wire defines the JSON-RPC 2.0 envelopes and MCP payload types
// exchanged with servers. It owns encoding, decoding, and the classification
// of inbound frames into responses and notifications.
package wire
