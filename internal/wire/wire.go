package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Version is the JSON-RPC protocol version carried in every envelope.
const Version = "2.0"

// ProtocolVersion is the MCP revision this client negotiates.
const ProtocolVersion = "2024-11-05"

// Method names for every operation the client issues.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodListTools   = "tools/list"
	MethodCallTool    = "tools/call"
	MethodPing        = "ping"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
	CodeRequestTimeout = -32001
)

// ID is a JSON-RPC request identifier. The client always generates string
// IDs, but servers may echo numeric IDs, so decoding accepts both.
type ID string

// UnmarshalJSON accepts both string and integer identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)

		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID(strconv.FormatInt(n, 10))

		return nil
	}

	return fmt.Errorf("id: expected string or integer, got %s", data)
}

// Request is an outbound JSON-RPC request expecting a response.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      ID     `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a request envelope with the protocol version filled in.
func NewRequest(id ID, method string, params any) *Request {
	return &Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Notification is a JSON-RPC message without an ID. It never receives a
// response. Outbound notifications carry typed params; inbound ones keep
// the raw payload for the session to dispatch on.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification builds a notification envelope, marshaling params eagerly
// so a malformed payload fails at construction rather than at send time.
func NewNotification(method string, params any) (*Notification, error) {
	n := &Notification{
		JSONRPC: Version,
		Method:  method,
	}

	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}

		n.Params = raw
	}

	return n, nil
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response is an inbound JSON-RPC response. Exactly one of Result and Err
// is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Err     *Error          `json:"error,omitempty"`
}

// Message is any inbound frame: a *Response or a *Notification.
type Message interface {
	message()
}

func (*Response) message()     {}
func (*Notification) message() {}
