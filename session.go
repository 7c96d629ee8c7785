package mcpclient

import "github.com/hivedev/mcp-client-go/internal/session"

// Session manages the connection to a single MCP server. Most applications
// should use Manager; Session is for callers that talk to exactly one
// server and want direct control over its lifecycle.
type Session = session.Session

// NewSession creates a session for one server. The configuration is
// validated and defaulted first. Connect must be called before use.
func NewSession(cfg *ServerConfig, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := applyOptions(opts)

	return session.New(cfg, options.sessionOptions(cfg)...), nil
}
