package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/supportdesk/ticketsync/internal/observability"
)

var ErrNotConnected = errors.New("push channel not connected")

// Handler receives the raw payload of a named event. Handlers run on the
// single reader goroutine, one event at a time, in arrival order.
type Handler func(payload json.RawMessage)

// Subscription identifies one registered handler for Off.
type Subscription struct {
	event string
	id    string
}

type Config struct {
	URL string
	// Token supplies the current session credential; the dial loop exits
	// when it reports no token.
	Token      func() (string, bool)
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
	Dialer     *websocket.Dialer
}

// Channel maintains at most one live hub connection and redials with
// backoff for as long as it is started. Stop closes the connection and
// stops redialing; the session layer decides when either happens.
type Channel struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu              sync.RWMutex
	conn            *websocket.Conn
	connected       bool
	handlers        map[string]map[string]Handler
	connectHooks    map[string]func()
	disconnectHooks map[string]func()
	pending         map[string]chan error

	writeMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Channel {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Channel{
		cfg:             cfg,
		logger:          cfg.Logger,
		dialer:          dialer,
		handlers:        make(map[string]map[string]Handler),
		connectHooks:    make(map[string]func()),
		disconnectHooks: make(map[string]func()),
		pending:         make(map[string]chan error),
	}
}

// Start launches the dial loop; it is a no-op while already running.
func (c *Channel) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, c.done)
}

// Stop tears down the current connection and stops redialing. No leave
// calls are attempted; the connection is simply gone.
func (c *Channel) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.closeConn()
	<-done
}

func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// On registers a handler for a named event; the returned subscription is
// the capability to deregister it, so reconnect cycles cannot leak
// handlers.
func (c *Channel) On(event string, h Handler) Subscription {
	id := uuid.NewString()
	c.mu.Lock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[string]Handler)
	}
	c.handlers[event][id] = h
	c.mu.Unlock()
	return Subscription{event: event, id: id}
}

func (c *Channel) Off(sub Subscription) {
	c.mu.Lock()
	if hs, ok := c.handlers[sub.event]; ok {
		delete(hs, sub.id)
		if len(hs) == 0 {
			delete(c.handlers, sub.event)
		}
	}
	c.mu.Unlock()
}

// OnConnect registers a hook fired from the connection goroutine each time
// a dial succeeds, including reconnects.
func (c *Channel) OnConnect(fn func()) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.connectHooks[id] = fn
	c.mu.Unlock()
	return id
}

func (c *Channel) OnDisconnect(fn func()) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.disconnectHooks[id] = fn
	c.mu.Unlock()
	return id
}

// Invoke sends a client-to-server call and waits for its ack. Failures are
// returned to the caller, never swallowed.
func (c *Channel) Invoke(ctx context.Context, target string, args ...string) error {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	id := uuid.NewString()
	ack := make(chan error, 1)
	c.mu.Lock()
	c.pending[id] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(frame{Type: frameInvocation, ID: id, Target: target, Args: args}); err != nil {
		return fmt.Errorf("send invocation %q: %w", target, err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-ack:
		if err != nil {
			return fmt.Errorf("invoke %q: %w", target, err)
		}
		return nil
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	backoff := c.cfg.MinBackoff
	for ctx.Err() == nil {
		token, ok := c.cfg.Token()
		if !ok {
			c.logger.Debug("no session token, leaving dial loop")
			return
		}
		header := http.Header{"Authorization": {"Bearer " + token}}
		conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			observability.RecordPushConnection("dial_failed")
			c.logger.Warn("hub dial failed", "url", c.cfg.URL, "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter(backoff)):
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			continue
		}

		backoff = c.cfg.MinBackoff
		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		observability.RecordPushConnection("connected")
		c.logger.Info("hub connected", "url", c.cfg.URL)
		c.fireHooks(c.snapshotHooks(true))

		c.readLoop(conn)

		c.closeConn()
		c.fireHooks(c.snapshotHooks(false))
		if ctx.Err() != nil {
			return
		}
		observability.RecordPushConnection("dropped")
		c.logger.Warn("hub connection lost, redialing")
	}
}

// readLoop is the ordering point of the whole pipeline: one goroutine,
// one frame at a time, handlers run to completion before the next read.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("discarding malformed frame", "error", err)
			continue
		}
		switch f.Type {
		case frameEvent:
			c.dispatch(f.Target, f.Payload)
		case frameAck:
			c.resolveAck(f.ID, f.Error)
		case framePing:
			if err := c.send(frame{Type: framePong}); err != nil {
				c.logger.Debug("pong failed", "error", err)
			}
		default:
			c.logger.Debug("ignoring unknown frame type", "type", f.Type)
		}
	}
}

func (c *Channel) dispatch(event string, payload json.RawMessage) {
	c.mu.RLock()
	hs := make([]Handler, 0, len(c.handlers[event]))
	for _, h := range c.handlers[event] {
		hs = append(hs, h)
	}
	c.mu.RUnlock()
	for _, h := range hs {
		h(payload)
	}
}

func (c *Channel) resolveAck(id, errMsg string) {
	c.mu.RLock()
	ack, ok := c.pending[id]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if errMsg != "" {
		ack <- errors.New(errMsg)
		return
	}
	ack <- nil
}

func (c *Channel) send(f frame) error {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(f)
}

// closeConn drops the live connection and fails every in-flight invoke.
func (c *Channel) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	for id, ack := range c.pending {
		select {
		case ack <- ErrNotConnected:
		default:
		}
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) snapshotHooks(connect bool) []func() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.disconnectHooks
	if connect {
		src = c.connectHooks
	}
	hooks := make([]func(), 0, len(src))
	for _, fn := range src {
		hooks = append(hooks, fn)
	}
	return hooks
}

func (c *Channel) fireHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}

func jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
