package mcpclient

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hivedev/mcp-client-go/internal/session"
	"github.com/hivedev/mcp-client-go/internal/transport"
	"github.com/hivedev/mcp-client-go/internal/wire"
)

// Option configures managers and sessions using the functional options
// pattern.
type Option func(*clientOptions)

// clientOptions collects settings shared by every session a manager builds.
type clientOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
	clientInfo wire.Implementation
	dial       func(cfg *ServerConfig) session.DialFunc
}

// applyOptions applies functional options over the defaults.
func applyOptions(opts []Option) *clientOptions {
	options := &clientOptions{
		logger: NopLogger(),
		clientInfo: wire.Implementation{
			Name:    "mcp-client-go",
			Version: "1.0.0",
		},
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.dial == nil {
		options.dial = func(cfg *ServerConfig) session.DialFunc {
			return func(ctx context.Context) (transport.Transport, error) {
				topts := []transport.Option{
					transport.WithHeaders(cfg.Headers),
					transport.WithLogger(options.logger),
				}

				if options.httpClient != nil {
					topts = append(topts, transport.WithHTTPClient(options.httpClient))
				}

				return transport.New(cfg.Endpoint, topts...), nil
			}
		}
	}

	return options
}

// sessionOptions translates the shared settings into per-session options.
func (o *clientOptions) sessionOptions(cfg *ServerConfig) []session.Option {
	return []session.Option{
		session.WithLogger(o.logger),
		session.WithClientInfo(o.clientInfo),
		session.WithDial(o.dial(cfg)),
	}
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the HTTP client shared by every server connection.
// Use this to configure TLS, proxies, or connection pooling.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithClientInfo sets the identity reported to servers during the
// handshake.
func WithClientInfo(name, version string) Option {
	return func(o *clientOptions) {
		o.clientInfo = wire.Implementation{Name: name, Version: version}
	}
}
