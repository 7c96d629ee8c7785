package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/hivedev/mcp-client-go/internal/errors"
	"github.com/hivedev/mcp-client-go/internal/wire"
)

// Transport moves JSON-RPC frames to and from one MCP server. Implementations
// surface each connection failure exactly once on the error channel and never
// retry silently; retry policy belongs to the session.
type Transport interface {
	// Connect establishes the transport. It must be called before Send.
	Connect(ctx context.Context) error

	// Messages returns the inbound message and error channels. The message
	// channel carries every decodable frame regardless of which HTTP leg it
	// arrived on.
	Messages() (<-chan wire.Message, <-chan error)

	// Send posts a request. Any response arrives on the message channel,
	// not as a return value.
	Send(ctx context.Context, req *wire.Request) error

	// Notify posts a notification. No response is expected.
	Notify(ctx context.Context, note *wire.Notification) error

	// Close tears the transport down and releases its goroutines. It is
	// safe to call multiple times.
	Close() error
}

const (
	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"

	headerSessionID   = "Mcp-Session-Id"
	headerLastEventID = "Last-Event-ID"

	// inboundBuffer absorbs bursts from the SSE stream so slow consumers
	// do not stall body reads.
	inboundBuffer = 32
)

// StreamTransport speaks MCP's streamable HTTP flavor: requests go out as
// POSTs, responses come back on the POST body as JSON or SSE, and an
// optional hanging GET carries server-initiated frames.
type StreamTransport struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
	logger   *slog.Logger

	msgs chan wire.Message
	errs chan error
	done chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.Mutex
	connected   bool
	sessionID   string
	lastEventID string
	streaming   bool
}

// Option configures a StreamTransport.
type Option func(*StreamTransport)

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *StreamTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithHeaders attaches headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(t *StreamTransport) {
		t.headers = h
	}
}

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *StreamTransport) {
		if logger != nil {
			t.logger = logger.With("component", "transport")
		}
	}
}

// New creates a StreamTransport for the given endpoint.
func New(endpoint string, opts ...Option) *StreamTransport {
	t := &StreamTransport{
		endpoint: endpoint,
		client:   http.DefaultClient,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		msgs:     make(chan wire.Message, inboundBuffer),
		errs:     make(chan error, 1),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Connect marks the transport live. The hanging GET stream is deferred
// until the server has assigned a session ID, which happens on the first
// POST response.
func (t *StreamTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return errors.ErrSessionClosed
	default:
	}

	t.connected = true
	t.logger.Debug("Transport connected", "endpoint", t.endpoint)

	return nil
}

// Messages implements Transport.
func (t *StreamTransport) Messages() (<-chan wire.Message, <-chan error) {
	return t.msgs, t.errs
}

// Send implements Transport.
func (t *StreamTransport) Send(ctx context.Context, req *wire.Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", req.Method, err)
	}

	return t.post(ctx, body)
}

// Notify implements Transport.
func (t *StreamTransport) Notify(ctx context.Context, note *wire.Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", note.Method, err)
	}

	return t.post(ctx, body)
}

func (t *StreamTransport) post(ctx context.Context, body []byte) error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()

		return errors.ErrNotConnected
	}
	t.mu.Unlock()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return &errors.TransportError{Op: "post", URL: t.endpoint, Err: err}
	}

	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeJSON+", "+contentTypeSSE)
	t.applyHeaders(httpReq)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &errors.TransportError{Op: "post", URL: t.endpoint, Err: err}
	}

	if sid := resp.Header.Get(headerSessionID); sid != "" {
		t.setSessionID(sid)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()

		return &errors.TransportError{Op: "post", URL: t.endpoint, Status: resp.StatusCode}
	}

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent:
		// Notification accepted, nothing to read.
		resp.Body.Close()

	case mediaType(resp.Header.Get("Content-Type")) == contentTypeSSE:
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer resp.Body.Close()
			t.readEvents(resp.Body, false)
		}()

	default:
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer resp.Body.Close()
			t.readJSONBody(resp.Body)
		}()
	}

	// Server-initiated frames only flow once a session exists.
	t.startStream()

	return nil
}

// readJSONBody decodes a single JSON frame from a POST response body.
func (t *StreamTransport) readJSONBody(body io.Reader) {
	data, err := io.ReadAll(body)
	if err != nil {
		t.reportError(&errors.TransportError{Op: "post", URL: t.endpoint, Err: err})

		return
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return
	}

	t.decodeAndEmit(data)
}

// readEvents drains one SSE body, emitting every data frame. For the
// hanging GET (stream=true), a broken read is reported so the session can
// reconnect; POST bodies ending early report the same way since a response
// may still be outstanding.
func (t *StreamTransport) readEvents(body io.Reader, stream bool) {
	scanner := newSSEScanner(body)

	for {
		ev, err := scanner.Next()
		if err == io.EOF {
			if stream {
				t.reportError(&errors.TransportError{
					Op:  "stream",
					URL: t.endpoint,
					Err: fmt.Errorf("event stream ended: %w", io.ErrUnexpectedEOF),
				})
			}

			return
		}

		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}

			op := "post"
			if stream {
				op = "stream"
			}

			t.reportError(&errors.TransportError{Op: op, URL: t.endpoint, Err: err})

			return
		}

		if ev.ID != "" {
			t.setLastEventID(ev.ID)
		}

		if ev.Type != "message" {
			t.logger.Debug("Skipping non-message event", "event_type", ev.Type)

			continue
		}

		t.decodeAndEmit([]byte(ev.Data))
	}
}

// startStream opens the hanging GET once a session ID is known. Servers
// that do not support server-initiated frames answer 405 and the stream
// stays off without error.
func (t *StreamTransport) startStream() {
	t.mu.Lock()
	if t.streaming || t.sessionID == "" || !t.connected {
		t.mu.Unlock()

		return
	}

	t.streaming = true
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.runStream()
	}()
}

func (t *StreamTransport) runStream() {
	req, err := http.NewRequest(http.MethodGet, t.endpoint, nil)
	if err != nil {
		t.reportError(&errors.TransportError{Op: "stream", URL: t.endpoint, Err: err})

		return
	}

	req.Header.Set("Accept", contentTypeSSE)
	t.applyHeaders(req)

	if id := t.getLastEventID(); id != "" {
		req.Header.Set(headerLastEventID, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-t.done
		cancel()
	}()

	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		select {
		case <-t.done:
		default:
			t.reportError(&errors.TransportError{Op: "stream", URL: t.endpoint, Err: err})
		}

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		t.logger.Debug("Server does not accept GET streams")

		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.reportError(&errors.TransportError{Op: "stream", URL: t.endpoint, Status: resp.StatusCode})

		return
	}

	t.logger.Debug("Event stream established")
	t.readEvents(resp.Body, true)
}

// decodeAndEmit classifies a frame and forwards it, dropping it with a log
// line when it cannot be decoded.
func (t *StreamTransport) decodeAndEmit(data []byte) {
	msg, err := wire.DecodeMessage(data)
	if err != nil {
		t.logger.Warn("Dropping undecodable frame", "error", err)

		return
	}

	select {
	case t.msgs <- msg:
	case <-t.done:
	}
}

// reportError delivers a connection-level failure. The channel holds one
// error; later failures from the same teardown are logged and dropped.
func (t *StreamTransport) reportError(err error) {
	select {
	case t.errs <- err:
	default:
		t.logger.Debug("Suppressing duplicate transport error", "error", err)
	}
}

// Close implements Transport. It ends the session server-side with a
// best-effort DELETE when a session ID was assigned.
func (t *StreamTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.connected = false
		sid := t.sessionID
		t.mu.Unlock()

		close(t.done)

		if sid != "" {
			req, err := http.NewRequest(http.MethodDelete, t.endpoint, nil)
			if err == nil {
				req.Header.Set(headerSessionID, sid)
				t.applyHeaders(req)

				if resp, derr := t.client.Do(req); derr == nil {
					resp.Body.Close()
				}
			}
		}

		t.wg.Wait()
		close(t.msgs)
	})

	return nil
}

// SessionID returns the server-assigned session identifier, if any.
func (t *StreamTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sessionID
}

func (t *StreamTransport) setSessionID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessionID != id {
		t.logger.Debug("Session established", "session_id", id)
	}

	t.sessionID = id
}

func (t *StreamTransport) getLastEventID() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastEventID
}

func (t *StreamTransport) setLastEventID(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastEventID = id
}

func (t *StreamTransport) applyHeaders(req *http.Request) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	t.mu.Lock()
	sid := t.sessionID
	t.mu.Unlock()

	if sid != "" && req.Header.Get(headerSessionID) == "" {
		req.Header.Set(headerSessionID, sid)
	}
}

// mediaType strips parameters from a Content-Type value.
func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}

	return strings.TrimSpace(ct)
}
