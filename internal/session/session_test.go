package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hivedev/mcp-client-go/internal/config"
	sdkerrors "github.com/hivedev/mcp-client-go/internal/errors"
	"github.com/hivedev/mcp-client-go/internal/transport"
	"github.com/hivedev/mcp-client-go/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTransport is an in-memory Transport with a scriptable responder.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []*wire.Request
	notes     []*wire.Notification
	responder func(req *wire.Request) wire.Message

	msgs chan wire.Message
	errs chan error

	closeOnce  sync.Once
	connectErr error
}

func newFakeTransport() *fakeTransport {
	ft := &fakeTransport{
		msgs: make(chan wire.Message, 16),
		errs: make(chan error, 1),
	}
	ft.responder = ft.defaultRespond

	return ft
}

func (f *fakeTransport) Connect(ctx context.Context) error { return f.connectErr }

func (f *fakeTransport) Messages() (<-chan wire.Message, <-chan error) {
	return f.msgs, f.errs
}

func (f *fakeTransport) Send(ctx context.Context, req *wire.Request) error {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	responder := f.responder
	f.mu.Unlock()

	if responder != nil {
		if msg := responder(req); msg != nil {
			f.msgs <- msg
		}
	}

	return nil
}

func (f *fakeTransport) Notify(ctx context.Context, note *wire.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notes = append(f.notes, note)

	return nil
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() {
		close(f.msgs)
	})

	return nil
}

func (f *fakeTransport) setResponder(fn func(req *wire.Request) wire.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responder = fn
}

func (f *fakeTransport) sentRequests() []*wire.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*wire.Request(nil), f.sent...)
}

func (f *fakeTransport) sentNotifications() []*wire.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*wire.Notification(nil), f.notes...)
}

// dropRequest suppresses the auto-response for matching methods.
func (f *fakeTransport) dropRequest(method string) {
	inner := f.defaultRespond

	f.setResponder(func(req *wire.Request) wire.Message {
		if req.Method == method {
			return nil
		}

		return inner(req)
	})
}

func (f *fakeTransport) defaultRespond(req *wire.Request) wire.Message {
	switch req.Method {
	case wire.MethodInitialize:
		return resultResponse(req.ID, `{
			"protocolVersion": "2024-11-05",
			"capabilities": {"tools": {}},
			"serverInfo": {"name": "fake-server", "version": "0.1.0"}
		}`)
	case wire.MethodListTools:
		return resultResponse(req.ID, `{"tools": [
			{"name": "search", "description": "Full-text search", "inputSchema": {"type": "object"}}
		]}`)
	case wire.MethodPing:
		return resultResponse(req.ID, `{}`)
	case wire.MethodCallTool:
		return resultResponse(req.ID, `{"content": [{"type": "text", "text": "ok"}]}`)
	default:
		return &wire.Response{
			JSONRPC: wire.Version,
			ID:      req.ID,
			Err:     &wire.Error{Code: wire.CodeMethodNotFound, Message: "method not found"},
		}
	}
}

func resultResponse(id wire.ID, result string) *wire.Response {
	return &wire.Response{
		JSONRPC: wire.Version,
		ID:      id,
		Result:  json.RawMessage(result),
	}
}

func testConfig() *config.Server {
	return &config.Server{
		Label:          "docs",
		Endpoint:       "https://docs.example.com/mcp",
		RequestTimeout: time.Second,
		ConnectTimeout: time.Second,
		MaxReconnects:  2,
		ReconnectDelay: 10 * time.Millisecond,
	}
}

// connectedSession builds a session connected through the given fake.
func connectedSession(t *testing.T, ft *fakeTransport, opts ...Option) *Session {
	t.Helper()

	opts = append(opts, WithDial(func(ctx context.Context) (transport.Transport, error) {
		return ft, nil
	}))

	s := New(testConfig(), opts...)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}

func TestConnect_Handshake(t *testing.T) {
	ft := newFakeTransport()
	s := connectedSession(t, ft)

	require.Equal(t, StateReady, s.State())
	require.Equal(t, "fake-server", s.ServerInfo().Name)

	notes := ft.sentNotifications()
	require.Len(t, notes, 1)
	require.Equal(t, wire.MethodInitialized, notes[0].Method)

	reqs := ft.sentRequests()
	require.Len(t, reqs, 1)
	require.Equal(t, wire.MethodInitialize, reqs[0].Method)
}

func TestConnect_Twice(t *testing.T) {
	ft := newFakeTransport()
	s := connectedSession(t, ft)

	require.ErrorIs(t, s.Connect(context.Background()), sdkerrors.ErrAlreadyConnected)
}

func TestConnect_HandshakeRejected(t *testing.T) {
	ft := newFakeTransport()
	ft.setResponder(func(req *wire.Request) wire.Message {
		return &wire.Response{
			JSONRPC: wire.Version,
			ID:      req.ID,
			Err:     &wire.Error{Code: wire.CodeInvalidRequest, Message: "unsupported protocol"},
		}
	})

	s := New(testConfig(), WithDial(func(ctx context.Context) (transport.Transport, error) {
		return ft, nil
	}))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	err := s.Connect(context.Background())

	var cerr *sdkerrors.ConnectError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "docs", cerr.Label)

	// Handshake failure is terminal.
	require.Equal(t, StateClosed, s.State())
	require.ErrorIs(t, s.Connect(context.Background()), sdkerrors.ErrSessionClosed)
}

func TestListTools_Pagination(t *testing.T) {
	ft := newFakeTransport()
	ft.setResponder(func(req *wire.Request) wire.Message {
		if req.Method != wire.MethodListTools {
			return ft.defaultRespond(req)
		}

		params := req.Params.(*wire.ListToolsParams)
		if params.Cursor == "" {
			return resultResponse(req.ID, `{"tools": [{"name": "alpha"}], "nextCursor": "page2"}`)
		}

		return resultResponse(req.ID, `{"tools": [{"name": "beta"}]}`)
	})

	s := connectedSession(t, ft)

	tools, err := s.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	require.Equal(t, "alpha", tools[0].Name)
	require.Equal(t, "beta", tools[1].Name)

	cached, stale := s.Tools()
	require.Len(t, cached, 2)
	require.False(t, stale)
}

func TestCallTool_Success(t *testing.T) {
	ft := newFakeTransport()
	s := connectedSession(t, ft)

	result, err := s.CallTool(context.Background(), "search", map[string]any{"query": "go"})
	require.NoError(t, err)
	require.Equal(t, "ok", result.Text())
}

func TestCallTool_JSONRPCError(t *testing.T) {
	ft := newFakeTransport()
	ft.setResponder(func(req *wire.Request) wire.Message {
		if req.Method != wire.MethodCallTool {
			return ft.defaultRespond(req)
		}

		return &wire.Response{
			JSONRPC: wire.Version,
			ID:      req.ID,
			Err:     &wire.Error{Code: wire.CodeInvalidParams, Message: "missing query"},
		}
	})

	s := connectedSession(t, ft)

	_, err := s.CallTool(context.Background(), "search", nil)

	var terr *sdkerrors.ToolError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, wire.CodeInvalidParams, terr.Code)
	require.Equal(t, "search", terr.Tool)
}

func TestCallTool_IsErrorResult(t *testing.T) {
	ft := newFakeTransport()
	ft.setResponder(func(req *wire.Request) wire.Message {
		if req.Method != wire.MethodCallTool {
			return ft.defaultRespond(req)
		}

		return resultResponse(req.ID, `{"content": [{"type": "text", "text": "index unavailable"}], "isError": true}`)
	})

	s := connectedSession(t, ft)

	result, err := s.CallTool(context.Background(), "search", nil)

	var terr *sdkerrors.ToolError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, "index unavailable", terr.Message)
	require.NotNil(t, result)
	require.True(t, result.IsError)
}

func TestCallTool_NotConnected(t *testing.T) {
	s := New(testConfig(), WithDial(func(ctx context.Context) (transport.Transport, error) {
		return newFakeTransport(), nil
	}))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	_, err := s.CallTool(context.Background(), "search", nil)
	require.ErrorIs(t, err, sdkerrors.ErrNotConnected)
}

func TestRoundTrip_OutOfOrderResponses(t *testing.T) {
	ft := newFakeTransport()

	var (
		mu     sync.Mutex
		queued []*wire.Request
	)

	ft.setResponder(func(req *wire.Request) wire.Message {
		if req.Method != wire.MethodCallTool {
			return ft.defaultRespond(req)
		}

		mu.Lock()
		queued = append(queued, req)
		ready := len(queued) == 2
		var first, second *wire.Request
		if ready {
			first, second = queued[0], queued[1]
		}
		mu.Unlock()

		// Answer both calls only once the second arrives, later call first.
		if ready {
			ft.msgs <- resultResponse(second.ID, fmt.Sprintf(
				`{"content": [{"type": "text", "text": %q}]}`, toolName(second)))
			ft.msgs <- resultResponse(first.ID, fmt.Sprintf(
				`{"content": [{"type": "text", "text": %q}]}`, toolName(first)))
		}

		return nil
	})

	s := connectedSession(t, ft)

	results := make(map[string]string, 2)

	var (
		resMu sync.Mutex
		wg    sync.WaitGroup
	)

	for _, name := range []string{"first", "second"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			result, err := s.CallTool(context.Background(), name, nil)
			require.NoError(t, err)

			resMu.Lock()
			results[name] = result.Text()
			resMu.Unlock()
		}()
	}

	wg.Wait()

	require.Equal(t, "first", results["first"])
	require.Equal(t, "second", results["second"])
}

func toolName(req *wire.Request) string {
	return req.Params.(*wire.CallToolParams).Name
}

func TestRoundTrip_TimeoutThenLateResponse(t *testing.T) {
	ft := newFakeTransport()
	ft.dropRequest(wire.MethodCallTool)

	cfg := testConfig()
	cfg.RequestTimeout = 50 * time.Millisecond

	s := New(cfg, WithDial(func(ctx context.Context) (transport.Transport, error) {
		return ft, nil
	}))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	_, err := s.CallTool(context.Background(), "search", nil)
	require.ErrorIs(t, err, sdkerrors.ErrTimeout)

	// A response arriving after the waiter gave up must be discarded.
	reqs := ft.sentRequests()
	late := reqs[len(reqs)-1]
	ft.msgs <- resultResponse(late.ID, `{"content": []}`)

	require.NoError(t, s.Ping(context.Background()))
}

func TestDisconnect_FailsInFlightAndReconnects(t *testing.T) {
	ft := newFakeTransport()
	ft.dropRequest(wire.MethodCallTool)

	reconnected := newFakeTransport()

	dials := 0
	dial := func(ctx context.Context) (transport.Transport, error) {
		dials++
		if dials == 1 {
			return ft, nil
		}

		return reconnected, nil
	}

	s := New(testConfig(), WithDial(dial))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	callErr := make(chan error, 1)

	go func() {
		_, err := s.CallTool(context.Background(), "search", nil)
		callErr <- err
	}()

	// Wait until the call is in flight, then sever the connection.
	require.Eventually(t, func() bool {
		return len(ft.sentRequests()) == 2
	}, time.Second, 5*time.Millisecond)

	ft.errs <- fmt.Errorf("connection reset")

	select {
	case err := <-callErr:
		require.ErrorIs(t, err, sdkerrors.ErrConnectionLost)
	case <-time.After(time.Second):
		t.Fatal("in-flight call did not fail")
	}

	require.Eventually(t, func() bool {
		return s.State() == StateReady
	}, time.Second, 5*time.Millisecond)

	_, stale := s.Tools()
	require.True(t, stale)

	require.NoError(t, s.Ping(context.Background()))
}

func TestReconnect_BudgetExhausted(t *testing.T) {
	ft := newFakeTransport()

	dials := 0
	dial := func(ctx context.Context) (transport.Transport, error) {
		dials++
		if dials == 1 {
			return ft, nil
		}

		return nil, fmt.Errorf("server unreachable")
	}

	s := New(testConfig(), WithDial(dial))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	ft.errs <- fmt.Errorf("connection reset")

	require.Eventually(t, func() bool {
		return s.State() == StateClosed
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 3, dials)

	_, err := s.ListTools(context.Background())
	require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
}

func TestClose_FailsPendingAndRejectsReuse(t *testing.T) {
	ft := newFakeTransport()
	ft.dropRequest(wire.MethodCallTool)

	s := New(testConfig(), WithDial(func(ctx context.Context) (transport.Transport, error) {
		return ft, nil
	}))
	require.NoError(t, s.Connect(context.Background()))

	callErr := make(chan error, 1)

	go func() {
		_, err := s.CallTool(context.Background(), "search", nil)
		callErr <- err
	}()

	require.Eventually(t, func() bool {
		return len(ft.sentRequests()) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())

	select {
	case err := <-callErr:
		require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("pending call did not fail on close")
	}

	require.ErrorIs(t, s.Connect(context.Background()), sdkerrors.ErrSessionClosed)

	_, err := s.CallTool(context.Background(), "search", nil)
	require.ErrorIs(t, err, sdkerrors.ErrSessionClosed)
}

func TestListChangedNotification_MarksCatalogStale(t *testing.T) {
	ft := newFakeTransport()
	s := connectedSession(t, ft)

	_, err := s.ListTools(context.Background())
	require.NoError(t, err)

	_, stale := s.Tools()
	require.False(t, stale)

	ft.msgs <- &wire.Notification{
		JSONRPC: wire.Version,
		Method:  "notifications/tools/list_changed",
	}

	require.Eventually(t, func() bool {
		_, stale := s.Tools()

		return stale
	}, time.Second, 5*time.Millisecond)
}
