package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hivedev/mcp-client-go/internal/config"
	"github.com/hivedev/mcp-client-go/internal/errors"
	"github.com/hivedev/mcp-client-go/internal/transport"
	"github.com/hivedev/mcp-client-go/internal/wire"
)

// DialFunc builds a fresh transport for one connection attempt. Each
// reconnect dials anew; transports are never reused across drops.
type DialFunc func(ctx context.Context) (transport.Transport, error)

// Session manages the protocol lifecycle for one MCP server.
//
// The Session handles:
//   - The initialize handshake and capability capture
//   - Correlating requests with responses through unique request IDs
//   - Request timeout enforcement
//   - Automatic reconnect with exponential backoff after a drop
//   - Failing all in-flight requests when the connection is lost
type Session struct {
	label      string
	cfg        *config.Server
	dial       DialFunc
	clientInfo wire.Implementation
	log        *slog.Logger

	// Request tracking
	pendingMu sync.Mutex
	pending   map[wire.ID]*pendingRequest

	mu         sync.Mutex
	state      State
	transport  transport.Transport
	serverInfo wire.Implementation
	caps       wire.ServerCapabilities
	tools      []*wire.ToolDescriptor
	toolsStale bool

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingRequest tracks an outgoing request awaiting its response.
type pendingRequest struct {
	method  string
	outcome chan outcome
}

// outcome carries either a response or a terminal error to the waiter.
type outcome struct {
	resp *wire.Response
	err  error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithClientInfo overrides the client identity sent during the handshake.
func WithClientInfo(info wire.Implementation) Option {
	return func(s *Session) {
		s.clientInfo = info
	}
}

// WithDial overrides how transports are built. Used by the manager to
// inject shared HTTP clients, and by tests to inject fakes.
func WithDial(dial DialFunc) Option {
	return func(s *Session) {
		s.dial = dial
	}
}

// New creates a session for the given server. The configuration must have
// been validated; New does not apply defaults.
func New(cfg *config.Server, opts ...Option) *Session {
	s := &Session{
		label: cfg.Label,
		cfg:   cfg,
		clientInfo: wire.Implementation{
			Name:    "mcp-client-go",
			Version: "1.0.0",
		},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending: make(map[wire.ID]*pendingRequest, 10),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.log = s.log.With("component", "session", "server", s.label)

	if s.dial == nil {
		s.dial = func(ctx context.Context) (transport.Transport, error) {
			return transport.New(
				cfg.Endpoint,
				transport.WithHeaders(cfg.Headers),
				transport.WithLogger(s.log),
			), nil
		}
	}

	return s
}

// Label returns the server label this session is bound to.
func (s *Session) Label() string {
	return s.label
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// ServerInfo returns the identity the server reported during the handshake.
func (s *Session) ServerInfo() wire.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.serverInfo
}

// Connect establishes the transport and performs the initialize handshake.
// Failure is terminal: the session moves to Closed and the error comes back
// wrapped in a ConnectError carrying the server label. Retrying a server
// means building a new session; connect itself never retries.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case StateClosed:
		s.mu.Unlock()

		return errors.ErrSessionClosed
	case StateDisconnected:
	default:
		s.mu.Unlock()

		return errors.ErrAlreadyConnected
	}

	s.state = StateConnecting
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	if err := s.establish(ctx); err != nil {
		s.terminate()

		return &errors.ConnectError{Label: s.label, Err: err}
	}

	s.log.Info("Session ready", "server_name", s.ServerInfo().Name)

	return nil
}

// establish dials, starts the read loop, and runs the handshake. It is the
// shared core of Connect and the reconnect loop.
func (s *Session) establish(ctx context.Context) error {
	tr, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	if err := tr.Connect(ctx); err != nil {
		tr.Close()

		return fmt.Errorf("connect transport: %w", err)
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		tr.Close()

		return errors.ErrSessionClosed
	}
	s.transport = tr
	s.state = StateHandshaking
	s.mu.Unlock()

	s.wg.Add(1)

	go s.readLoop(tr)

	if err := s.handshake(ctx, tr); err != nil {
		s.teardownTransport(tr)

		return err
	}

	s.setState(StateReady)

	return nil
}

// handshake performs the initialize exchange and announces readiness.
func (s *Session) handshake(ctx context.Context, tr transport.Transport) error {
	params := &wire.InitializeParams{
		ProtocolVersion: wire.ProtocolVersion,
		ClientInfo:      s.clientInfo,
	}

	resp, err := s.roundTrip(ctx, tr, wire.MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	if resp.Err != nil {
		return fmt.Errorf("initialize rejected: %w", resp.Err)
	}

	var result wire.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return &errors.ProtocolError{RawData: string(resp.Result), Err: err}
	}

	s.mu.Lock()
	s.serverInfo = result.ServerInfo
	s.caps = result.Capabilities
	s.mu.Unlock()

	s.log.Debug("Handshake complete",
		"server_name", result.ServerInfo.Name,
		"protocol_version", result.ProtocolVersion,
		"supports_tools", result.Capabilities.SupportsTools(),
	)

	note, err := wire.NewNotification(wire.MethodInitialized, nil)
	if err != nil {
		return err
	}

	if err := tr.Notify(ctx, note); err != nil {
		return fmt.Errorf("announce initialized: %w", err)
	}

	return nil
}

// roundTrip sends a request and blocks until its response arrives, the
// request times out, or the session shuts down.
func (s *Session) roundTrip(
	ctx context.Context,
	tr transport.Transport,
	method string,
	params any,
) (*wire.Response, error) {
	id := wire.ID(ulid.Make().String())

	pending := &pendingRequest{
		method:  method,
		outcome: make(chan outcome, 1),
	}

	s.pendingMu.Lock()
	s.pending[id] = pending
	s.pendingMu.Unlock()

	s.log.Debug("Sending request", "request_id", id, "method", method)

	if err := tr.Send(ctx, wire.NewRequest(id, method, params)); err != nil {
		s.removePending(id)

		return nil, err
	}

	timeout := s.cfg.RequestTimeout

	select {
	case out := <-pending.outcome:
		if out.err != nil {
			return nil, out.err
		}

		s.log.Debug("Received response", "request_id", id, "method", method)

		return out.resp, nil

	case <-time.After(timeout):
		s.removePending(id)
		s.log.Warn("Request timed out", "request_id", id, "method", method, "timeout", timeout)

		return nil, fmt.Errorf("%s: %w after %s", method, errors.ErrTimeout, timeout)

	case <-ctx.Done():
		s.removePending(id)

		return nil, ctx.Err()

	case <-s.done:
		s.removePending(id)

		return nil, errors.ErrSessionClosed
	}
}

func (s *Session) removePending(id wire.ID) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// readLoop routes inbound frames for one transport until it drops or the
// session closes.
func (s *Session) readLoop(tr transport.Transport) {
	defer s.wg.Done()

	msgs, errs := tr.Messages()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			switch m := msg.(type) {
			case *wire.Response:
				s.deliver(m)
			case *wire.Notification:
				s.handleNotification(m)
			}

		case err := <-errs:
			s.handleDisconnect(tr, err)

			return

		case <-s.done:
			return
		}
	}
}

// deliver routes a response to its waiter. Responses whose waiter already
// gave up (timeout or disconnect) are logged and dropped.
func (s *Session) deliver(resp *wire.Response) {
	s.pendingMu.Lock()
	pending, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.pendingMu.Unlock()

	if !ok {
		s.log.Debug("Dropping response with no waiter", "request_id", resp.ID)

		return
	}

	pending.outcome <- outcome{resp: resp}
}

func (s *Session) handleNotification(note *wire.Notification) {
	switch note.Method {
	case "notifications/tools/list_changed":
		s.mu.Lock()
		s.toolsStale = true
		s.mu.Unlock()

		s.log.Debug("Tool catalog marked stale")
	default:
		s.log.Debug("Ignoring notification", "method", note.Method)
	}
}

// failAllPending resolves every in-flight request with the given error.
func (s *Session) failAllPending(err error) {
	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[wire.ID]*pendingRequest, 10)
	s.pendingMu.Unlock()

	for id, p := range pending {
		s.log.Debug("Failing in-flight request", "request_id", id, "method", p.method)
		p.outcome <- outcome{err: err}
	}
}

// handleDisconnect reacts to a transport-level failure: every waiter fails
// immediately and recovery starts in the background.
func (s *Session) handleDisconnect(tr transport.Transport, cause error) {
	select {
	case <-s.done:
		return
	default:
	}

	s.log.Warn("Connection lost", "error", cause)

	s.failAllPending(fmt.Errorf("%w: %v", errors.ErrConnectionLost, cause))
	s.teardownTransport(tr)
	s.setState(StateReconnecting)

	s.wg.Add(1)

	go s.reconnectLoop()
}

// reconnectLoop retries establish with exponential backoff until it
// succeeds or the attempt budget is spent.
func (s *Session) reconnectLoop() {
	defer s.wg.Done()

	delay := s.cfg.ReconnectDelay

	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		select {
		case <-time.After(delay):
		case <-s.done:
			return
		}

		s.log.Info("Reconnecting", "attempt", attempt, "max_attempts", s.cfg.MaxReconnects)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
		err := s.establish(ctx)
		cancel()

		if err == nil {
			s.mu.Lock()
			s.toolsStale = true
			s.mu.Unlock()

			s.log.Info("Reconnected", "attempt", attempt)

			return
		}

		select {
		case <-s.done:
			return
		default:
		}

		s.log.Warn("Reconnect attempt failed", "attempt", attempt, "error", err)
		s.setState(StateReconnecting)
		delay *= 2
	}

	s.log.Error("Reconnect budget exhausted, closing session", "max_attempts", s.cfg.MaxReconnects)
	s.terminate()
}

// ListTools fetches the server's tool catalog, following pagination, and
// caches the result.
func (s *Session) ListTools(ctx context.Context) ([]*wire.ToolDescriptor, error) {
	tr, err := s.readyTransport()
	if err != nil {
		return nil, err
	}

	var (
		tools  []*wire.ToolDescriptor
		cursor string
	)

	for {
		resp, err := s.roundTrip(ctx, tr, wire.MethodListTools, &wire.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}

		if resp.Err != nil {
			return nil, fmt.Errorf("tools/list: %w", resp.Err)
		}

		var page wire.ListToolsResult
		if err := json.Unmarshal(resp.Result, &page); err != nil {
			return nil, &errors.ProtocolError{RawData: string(resp.Result), Err: err}
		}

		tools = append(tools, page.Tools...)

		if page.NextCursor == "" {
			break
		}

		cursor = page.NextCursor
	}

	s.mu.Lock()
	s.tools = tools
	s.toolsStale = false
	s.mu.Unlock()

	s.log.Debug("Tool catalog refreshed", "tool_count", len(tools))

	return tools, nil
}

// Tools returns the cached catalog and whether it may be out of date. The
// cache goes stale after a reconnect or a list_changed notification.
func (s *Session) Tools() ([]*wire.ToolDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tools, s.toolsStale
}

// CallTool invokes a tool by its server-local name. Server-reported
// failures, both JSON-RPC errors and isError results, come back as a
// ToolError.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*wire.ToolResult, error) {
	tr, err := s.readyTransport()
	if err != nil {
		return nil, err
	}

	params := &wire.CallToolParams{
		Name:      name,
		Arguments: args,
	}

	resp, err := s.roundTrip(ctx, tr, wire.MethodCallTool, params)
	if err != nil {
		return nil, err
	}

	if resp.Err != nil {
		return nil, &errors.ToolError{
			Tool:    name,
			Code:    resp.Err.Code,
			Message: resp.Err.Message,
		}
	}

	var result wire.ToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, &errors.ProtocolError{RawData: string(resp.Result), Err: err}
	}

	if result.IsError {
		return &result, &errors.ToolError{
			Tool:    name,
			Message: result.Text(),
		}
	}

	return &result, nil
}

// Ping checks connection liveness.
func (s *Session) Ping(ctx context.Context) error {
	tr, err := s.readyTransport()
	if err != nil {
		return err
	}

	resp, err := s.roundTrip(ctx, tr, wire.MethodPing, nil)
	if err != nil {
		return err
	}

	if resp.Err != nil {
		return fmt.Errorf("ping: %w", resp.Err)
	}

	return nil
}

// readyTransport returns the live transport, or an error describing why
// requests cannot be accepted right now.
func (s *Session) readyTransport() (transport.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return s.transport, nil
	case StateClosed:
		return nil, errors.ErrSessionClosed
	default:
		return nil, fmt.Errorf("%w (state %s)", errors.ErrNotConnected, s.state)
	}
}

// Close shuts the session down. In-flight requests fail immediately and
// the transport is torn down. Safe to call multiple times.
func (s *Session) Close() error {
	s.terminate()
	s.wg.Wait()

	return nil
}

// terminate moves the session to its final Closed state. It does not wait
// for background goroutines, so the reconnect loop can call it when the
// attempt budget runs out.
func (s *Session) terminate() {
	s.closeOnce.Do(func() {
		s.log.Debug("Closing session")

		close(s.done)
		s.failAllPending(errors.ErrSessionClosed)

		s.mu.Lock()
		tr := s.transport
		s.transport = nil
		s.state = StateClosed
		s.mu.Unlock()

		if tr != nil {
			tr.Close()
		}

		s.log.Info("Session closed")
	})
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	s.state = state
}

func (s *Session) teardownTransport(tr transport.Transport) {
	s.mu.Lock()
	if s.transport == tr {
		s.transport = nil
	}
	s.mu.Unlock()

	tr.Close()
}
