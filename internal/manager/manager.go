package manager

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hivedev/mcp-client-go/internal/config"
	"github.com/hivedev/mcp-client-go/internal/errors"
	"github.com/hivedev/mcp-client-go/internal/session"
	"github.com/hivedev/mcp-client-go/internal/wire"
)

// Status is one server's view in a Report.
type Status struct {
	State session.State
	Err   error
}

// Report maps server labels to their connection status.
type Report map[string]Status

// CatalogEntry is one tool in the aggregated catalog. Descriptor is a copy;
// mutating it does not affect the owning session.
type CatalogEntry struct {
	// QualifiedName is "<label>.<tool>".
	QualifiedName string

	// Owner is the label of the server providing the tool.
	Owner string

	Descriptor *wire.ToolDescriptor
}

// SessionFactory builds the session for one server. Overridden in tests.
type SessionFactory func(cfg *config.Server) *session.Session

// Manager owns one session per configured server and aggregates their tools
// into a single namespaced catalog.
//
// Failure domains are isolated: one server failing to connect, or dropping
// later, never affects the others.
type Manager struct {
	log     *slog.Logger
	factory SessionFactory

	mu       sync.Mutex
	configs  map[string]*config.Server
	sessions map[string]*session.Session
	lastErr  map[string]error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger. Sessions built by the default
// factory inherit it.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.log = logger
		}
	}
}

// WithSessionFactory overrides session construction.
func WithSessionFactory(factory SessionFactory) Option {
	return func(m *Manager) {
		m.factory = factory
	}
}

// New creates an empty manager. Servers are added with AddServer.
func New(opts ...Option) *Manager {
	m := &Manager{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		configs:  make(map[string]*config.Server),
		sessions: make(map[string]*session.Session),
		lastErr:  make(map[string]error),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.log = m.log.With("component", "manager")

	if m.factory == nil {
		m.factory = func(cfg *config.Server) *session.Session {
			return session.New(cfg, session.WithLogger(m.log))
		}
	}

	return m
}

// AddServer registers a server. The session is created immediately but not
// connected; use ConnectAll or ConnectServer.
func (m *Manager) AddServer(cfg *config.Server) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[cfg.Label]; exists {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateLabel, cfg.Label)
	}

	m.configs[cfg.Label] = cfg
	m.sessions[cfg.Label] = m.factory(cfg)
	m.log.Debug("Server registered", "server", cfg.Label, "endpoint", cfg.Endpoint)

	return nil
}

// RemoveServer closes and forgets a server's session. Removing an unknown
// label is a no-op.
func (m *Manager) RemoveServer(label string) error {
	m.mu.Lock()
	sess, ok := m.sessions[label]
	delete(m.sessions, label)
	delete(m.configs, label)
	delete(m.lastErr, label)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.log.Debug("Server removed", "server", label)

	return sess.Close()
}

// ConnectAll connects every registered server concurrently. Each server is
// its own failure domain: the returned report carries per-server outcomes
// and ConnectAll itself only fails when no server could connect.
func (m *Manager) ConnectAll(ctx context.Context) (Report, error) {
	m.mu.Lock()
	labels := make([]string, 0, len(m.sessions))
	for label := range m.sessions {
		labels = append(labels, label)
	}
	m.mu.Unlock()

	var g errgroup.Group

	for _, label := range labels {
		g.Go(func() error {
			err := m.connectOne(ctx, label)

			m.mu.Lock()
			m.lastErr[label] = err
			m.mu.Unlock()

			if err != nil {
				m.log.Warn("Server failed to connect", "server", label, "error", err)
			}

			return nil
		})
	}

	// Goroutines never return errors; the group is used for the join.
	_ = g.Wait()

	report := m.Report()

	if len(report) > 0 && report.readyCount() == 0 {
		return report, fmt.Errorf("no servers available: %w", report.firstError())
	}

	return report, nil
}

// connectOne runs the connect-then-catalog sequence for one server. A
// session that closed permanently, from a failed handshake or a spent
// reconnect budget, is replaced with a fresh one so the label can be
// retried.
func (m *Manager) connectOne(ctx context.Context, label string) error {
	m.mu.Lock()
	sess, ok := m.sessions[label]
	if ok && sess.State() == session.StateClosed {
		sess = m.factory(m.configs[label])
		m.sessions[label] = sess
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: no server labeled %q", errors.ErrUnknownTool, label)
	}

	if sess.State() != session.StateDisconnected {
		return nil
	}

	if err := sess.Connect(ctx); err != nil {
		return err
	}

	if _, err := sess.ListTools(ctx); err != nil {
		return fmt.Errorf("fetch tools: %w", err)
	}

	return nil
}

// ConnectServer connects a single registered server.
func (m *Manager) ConnectServer(ctx context.Context, label string) error {
	err := m.connectOne(ctx, label)

	m.mu.Lock()
	if _, ok := m.sessions[label]; ok {
		m.lastErr[label] = err
	}
	m.mu.Unlock()

	return err
}

// Report snapshots every server's state and last connect error.
func (m *Manager) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := make(Report, len(m.sessions))
	for label, sess := range m.sessions {
		report[label] = Status{
			State: sess.State(),
			Err:   m.lastErr[label],
		}
	}

	return report
}

func (r Report) readyCount() int {
	n := 0

	for _, status := range r {
		if status.State == session.StateReady {
			n++
		}
	}

	return n
}

func (r Report) firstError() error {
	labels := make([]string, 0, len(r))
	for label := range r {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	for _, label := range labels {
		if r[label].Err != nil {
			return r[label].Err
		}
	}

	return nil
}

// Catalog aggregates the tools of every ready server under qualified names,
// sorted for deterministic iteration. Sessions whose cache went stale are
// refreshed first; a refresh failure drops that server from the catalog
// rather than failing the whole call.
func (m *Manager) Catalog(ctx context.Context) []CatalogEntry {
	m.mu.Lock()
	sessions := make(map[string]*session.Session, len(m.sessions))
	for label, sess := range m.sessions {
		sessions[label] = sess
	}
	m.mu.Unlock()

	var entries []CatalogEntry

	for label, sess := range sessions {
		if sess.State() != session.StateReady {
			continue
		}

		tools, stale := sess.Tools()

		if stale {
			refreshed, err := sess.ListTools(ctx)
			if err != nil {
				m.log.Warn("Catalog refresh failed", "server", label, "error", err)

				continue
			}

			tools = refreshed
		}

		for _, tool := range tools {
			entries = append(entries, CatalogEntry{
				QualifiedName: label + "." + tool.Name,
				Owner:         label,
				Descriptor:    tool.Clone(),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].QualifiedName < entries[j].QualifiedName
	})

	return entries
}

// Invoke routes a qualified tool name to its owning session and calls the
// tool. The qualified name is "<label>.<tool>"; tool names may themselves
// contain dots, so the split happens at the first one. Only ready servers
// resolve: a label whose session is down fails with ErrUnknownTool, the
// same as its tools being absent from the catalog.
func (m *Manager) Invoke(ctx context.Context, qualifiedName string, args map[string]any) (*wire.ToolResult, error) {
	label, tool, found := strings.Cut(qualifiedName, ".")
	if !found || label == "" || tool == "" {
		return nil, fmt.Errorf("%w: %q is not a qualified name", errors.ErrUnknownTool, qualifiedName)
	}

	sess, err := m.session(label)
	if err != nil {
		return nil, err
	}

	if state := sess.State(); state != session.StateReady {
		return nil, fmt.Errorf("%w: server %q is %s", errors.ErrUnknownTool, label, state)
	}

	start := time.Now()
	m.log.Debug("Tool invocation started", "tool", qualifiedName)

	result, err := sess.CallTool(ctx, tool, args)

	if err != nil {
		m.log.Warn("Tool invocation failed",
			"tool", qualifiedName, "duration", time.Since(start), "error", err)
	} else {
		m.log.Info("Tool invocation complete",
			"tool", qualifiedName, "duration", time.Since(start))
	}

	return result, err
}

// HealthCheck pings every ready server concurrently and reports the
// outcome per label.
func (m *Manager) HealthCheck(ctx context.Context) Report {
	m.mu.Lock()
	sessions := make(map[string]*session.Session, len(m.sessions))
	for label, sess := range m.sessions {
		sessions[label] = sess
	}
	m.mu.Unlock()

	var (
		mu     sync.Mutex
		report = make(Report, len(sessions))
		g      errgroup.Group
	)

	for label, sess := range sessions {
		g.Go(func() error {
			status := Status{State: sess.State()}

			if status.State == session.StateReady {
				status.Err = sess.Ping(ctx)
			}

			mu.Lock()
			report[label] = status
			mu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return report
}

// DisconnectAll closes every session, continuing past individual failures
// and joining whatever errors occurred.
func (m *Manager) DisconnectAll() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session.Session)
	m.configs = make(map[string]*config.Server)
	m.lastErr = make(map[string]error)
	m.mu.Unlock()

	var errs []error

	for label, sess := range sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", label, err))
		}
	}

	m.log.Info("All sessions closed", "server_count", len(sessions))

	return stderrors.Join(errs...)
}

// session looks a label up, mapping misses to ErrUnknownTool because the
// only caller-visible key is the qualified tool name.
func (m *Manager) session(label string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[label]
	if !ok {
		return nil, fmt.Errorf("%w: no server labeled %q", errors.ErrUnknownTool, label)
	}

	return sess, nil
}
