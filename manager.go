package mcpclient

import (
	"context"
	"fmt"
	"sort"

	"github.com/hivedev/mcp-client-go/internal/manager"
	"github.com/hivedev/mcp-client-go/internal/session"
)

// Manager aggregates tools from multiple MCP servers behind one catalog.
//
// Tools are addressed by qualified name, "<label>.<tool>", where the label
// comes from the server's configuration entry. Servers are isolated failure
// domains: one server being down only removes its own tools.
//
// Lifecycle: managers are single-use. After Close(), create a new manager
// with NewManager().
//
// Example usage:
//
//	mgr := mcpclient.NewManager(mcpclient.WithLogger(slog.Default()))
//	defer mgr.Close()
//
//	if err := mgr.AddServer(&mcpclient.ServerConfig{
//	    Label:    "docs",
//	    Endpoint: "https://docs.example.com/mcp",
//	}); err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := mgr.ConnectAll(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := mgr.Invoke(ctx, "docs.search", map[string]any{"query": "go"})
type Manager interface {
	// AddServer registers a server without connecting it.
	// Returns ErrDuplicateLabel when the label is already taken.
	AddServer(cfg *ServerConfig) error

	// RemoveServer disconnects and forgets a server. Its tools leave the
	// catalog. Removing an unknown label is a no-op.
	RemoveServer(label string) error

	// ConnectAll connects every registered server concurrently and returns
	// a per-server report. It fails only when no server could connect.
	ConnectAll(ctx context.Context) (Report, error)

	// ConnectServer connects a single registered server.
	ConnectServer(ctx context.Context, label string) error

	// Catalog returns every ready server's tools under qualified names,
	// sorted for deterministic iteration.
	Catalog(ctx context.Context) []CatalogEntry

	// Invoke routes a qualified tool name to its owning server.
	// Returns ErrUnknownTool when the name does not resolve, and ToolError
	// when the server reports a failed call.
	Invoke(ctx context.Context, qualifiedName string, args map[string]any) (*ToolResult, error)

	// Report snapshots every server's state and last connect error.
	Report() Report

	// HealthCheck pings every ready server and reports per-server liveness.
	HealthCheck(ctx context.Context) Report

	// Close disconnects every server. Safe to call multiple times.
	Close() error
}

// NewManager creates an empty manager. Add servers with AddServer, or use
// NewManagerFromConfig to populate one from a YAML file.
func NewManager(opts ...Option) Manager {
	return newManagerImpl(applyOptions(opts))
}

// NewManagerFromConfig creates a manager with every enabled server from
// the given configuration file registered. Servers are not yet connected;
// call ConnectAll.
func NewManagerFromConfig(path string, opts ...Option) (Manager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	mgr := NewManager(opts...)

	servers := cfg.EnabledServers()
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Label < servers[j].Label
	})

	for _, srv := range servers {
		if err := mgr.AddServer(srv); err != nil {
			mgr.Close()

			return nil, fmt.Errorf("register %s: %w", srv.Label, err)
		}
	}

	return mgr, nil
}

// managerImpl backs the public Manager interface with the internal
// implementation.
type managerImpl struct {
	inner *manager.Manager
}

func newManagerImpl(options *clientOptions) *managerImpl {
	inner := manager.New(
		manager.WithLogger(options.logger),
		manager.WithSessionFactory(func(cfg *ServerConfig) *session.Session {
			return session.New(cfg, options.sessionOptions(cfg)...)
		}),
	)

	return &managerImpl{inner: inner}
}

func (m *managerImpl) AddServer(cfg *ServerConfig) error {
	return m.inner.AddServer(cfg)
}

func (m *managerImpl) RemoveServer(label string) error {
	return m.inner.RemoveServer(label)
}

func (m *managerImpl) ConnectAll(ctx context.Context) (Report, error) {
	return m.inner.ConnectAll(ctx)
}

func (m *managerImpl) ConnectServer(ctx context.Context, label string) error {
	return m.inner.ConnectServer(ctx, label)
}

func (m *managerImpl) Catalog(ctx context.Context) []CatalogEntry {
	return m.inner.Catalog(ctx)
}

func (m *managerImpl) Invoke(ctx context.Context, qualifiedName string, args map[string]any) (*ToolResult, error) {
	return m.inner.Invoke(ctx, qualifiedName, args)
}

func (m *managerImpl) Report() Report {
	return m.inner.Report()
}

func (m *managerImpl) HealthCheck(ctx context.Context) Report {
	return m.inner.HealthCheck(ctx)
}

func (m *managerImpl) Close() error {
	return m.inner.DisconnectAll()
}
