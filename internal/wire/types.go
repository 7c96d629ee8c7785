package wire

import (
	"encoding/json"
	"strings"
)

// Implementation identifies a protocol party during the handshake.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities advertises what this client supports. The core client
// consumes tools only, so the structure is intentionally sparse.
type ClientCapabilities struct {
	Roots    map[string]any `json:"roots,omitempty"`
	Sampling map[string]any `json:"sampling,omitempty"`
}

// ServerCapabilities is the capability set a server reports in its
// initialize result. Unknown capability groups are ignored.
type ServerCapabilities struct {
	Tools     map[string]any `json:"tools,omitempty"`
	Resources map[string]any `json:"resources,omitempty"`
	Prompts   map[string]any `json:"prompts,omitempty"`
	Logging   map[string]any `json:"logging,omitempty"`
}

// SupportsTools reports whether the server advertised the tools capability.
func (c *ServerCapabilities) SupportsTools() bool {
	return c.Tools != nil
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the server's half of the handshake.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ToolDescriptor describes a tool a server exposes. InputSchema is kept as
// raw JSON: the client validates against it but never needs to interpret
// it structurally beyond that.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Clone returns a deep copy so catalog consumers cannot mutate the
// session's view of the tool.
func (d *ToolDescriptor) Clone() *ToolDescriptor {
	out := &ToolDescriptor{
		Name:        d.Name,
		Description: d.Description,
	}

	if d.InputSchema != nil {
		out.InputSchema = make(json.RawMessage, len(d.InputSchema))
		copy(out.InputSchema, d.InputSchema)
	}

	return out
}

// ListToolsResult is the payload of a tools/list response.
type ListToolsResult struct {
	Tools      []*ToolDescriptor `json:"tools"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// ListToolsParams carries the pagination cursor for tools/list.
type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// CallToolParams is the payload of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Content is one block of a tool result. Only text blocks carry data the
// adapter renders; other types are preserved verbatim.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToolResult is the payload of a tools/call response.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text concatenates the text blocks of the result, one per line.
func (r *ToolResult) Text() string {
	var parts []string
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}

	return strings.Join(parts, "\n")
}
