package wire

import (
	"encoding/json"
	"fmt"

	"github.com/hivedev/mcp-client-go/internal/errors"
)

// DecodeMessage classifies a raw inbound frame as a response or a
// notification. A frame with an "id" field is a response; a frame with a
// "method" and no "id" is a notification. Anything else is a protocol error.
//
// Server-to-client requests (frames carrying both "id" and "method") are not
// part of the operations this client supports; they are surfaced as
// notifications so the session can log and skip them without stalling the
// read loop.
func DecodeMessage(data []byte) (Message, error) {
	var probe struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &errors.ProtocolError{
			RawData: string(data),
			Err:     err,
		}
	}

	if probe.JSONRPC != Version {
		return nil, &errors.ProtocolError{
			RawData: string(data),
			Err:     fmt.Errorf("unsupported jsonrpc version %q", probe.JSONRPC),
		}
	}

	switch {
	case len(probe.ID) > 0 && probe.ID[0] != 'n' && probe.Method == "":
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, &errors.ProtocolError{
				RawData: string(data),
				Err:     err,
			}
		}

		return &resp, nil

	case probe.Method != "":
		var note Notification
		if err := json.Unmarshal(data, &note); err != nil {
			return nil, &errors.ProtocolError{
				RawData: string(data),
				Err:     err,
			}
		}

		return &note, nil

	default:
		return nil, &errors.ProtocolError{
			RawData: string(data),
			Err:     fmt.Errorf("frame has neither id nor method"),
		}
	}
}
