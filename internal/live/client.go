package live

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/flowwatch/internal/cache"
	"github.com/vk/flowwatch/internal/eventbuf"
	"github.com/vk/flowwatch/internal/task"
)

// Client is a live update session that survives connection loss.
type Client struct {
	dialer      Dialer
	invalidator cache.Invalidator
	opts        options
	logger      *slog.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func() bool
	status    Status
	events    *eventbuf.Buffer[task.Event]
	conn      Conn
	sessionID string
	dialing   bool
	timer     *time.Timer
	closed    bool

	wg sync.WaitGroup
}

// New creates a client. Nothing happens until Start is called.
func New(dialer Dialer, invalidator cache.Invalidator, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		dialer:      dialer,
		invalidator: invalidator,
		opts:        o,
		logger:      o.logger.With("component", "live"),
		status:      StatusConnecting,
		events:      eventbuf.New[task.Event](o.bufferSize),
	}
}

// Start opens the session. It is a no-op while a session is being
// established or is active, and after Close. The client is closed when ctx
// is done.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.ctx == nil {
		c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
		c.stopWatch = context.AfterFunc(ctx, func() { _ = c.Close() })
		c.logger.Debug("Live client starting.",
			"buffer_size", c.events.Cap(),
			"reconnect_delay", c.opts.reconnectDelay,
		)
	}
	c.mu.Unlock()

	c.connect()
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastEvent returns the most recently accepted event.
func (c *Client) LastEvent() (task.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events.Latest()
}

// Events returns the recent event history, newest first.
func (c *Client) Events() []task.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events.Items()
}

// EventCount is the number of buffered events.
func (c *Client) EventCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events.Len()
}

// SessionID identifies the current or most recent connection attempt.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Close tears the client down. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTimerLocked()
	conn := c.conn
	c.conn = nil
	cancel, stopWatch := c.cancel, c.stopWatch
	changed := c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if cancel != nil {
		cancel()
	}

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()

	c.logger.Debug("Live client closed.")
	c.emitStatus(StatusDisconnected, changed)
	return err
}

// connect starts one dial unless a session is already being established or
// active.
func (c *Client) connect() {
	c.mu.Lock()
	if c.closed || c.dialing || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.dialing = true
	c.stopTimerLocked()
	c.sessionID = uuid.NewString()
	sessionID, ctx := c.sessionID, c.ctx
	changed := c.setStatusLocked(StatusConnecting)
	c.wg.Add(1)
	c.mu.Unlock()

	c.emitStatus(StatusConnecting, changed)
	go c.dial(ctx, sessionID)
}

func (c *Client) dial(ctx context.Context, sessionID string) {
	defer c.wg.Done()
	logger := c.logger.With("session_id", sessionID)
	logger.Debug("Dialing.")

	dialCtx := ctx
	if c.opts.connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.opts.connectTimeout)
		defer cancel()
	}
	conn, err := c.dialer.Dial(dialCtx)

	c.mu.Lock()
	c.dialing = false
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		changed := c.setStatusLocked(StatusError)
		c.mu.Unlock()

		logger.Error("Failed to connect.", "error", err, "retry_in", c.opts.reconnectDelay)
		c.emitStatus(StatusError, changed)
		c.scheduleReconnect()
		return
	}

	c.conn = conn
	c.stopTimerLocked()
	changed := c.setStatusLocked(StatusConnected)
	c.wg.Add(1)
	c.mu.Unlock()

	logger.Info("Connected.")
	c.emitStatus(StatusConnected, changed)
	go c.receive(conn, logger)
}

func (c *Client) receive(conn Conn, logger *slog.Logger) {
	defer c.wg.Done()
	for {
		data, err := conn.Receive()
		if err != nil {
			c.handleDisconnect(conn, err, logger)
			return
		}
		c.handleMessage(data, logger)
	}
}

// handleMessage ingests one raw payload.
func (c *Client) handleMessage(data []byte, logger *slog.Logger) {
	ev, err := task.ParseEvent(data)
	if err != nil {
		logger.Warn("Discarding malformed message.", "error", err, "size", len(data))
		return
	}
	if len(ev.Ignored) > 0 {
		logger.Debug("Ignoring undecodable event fields.", "task_id", ev.TaskID, "fields", ev.Ignored)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.events.Push(ev)
	c.mu.Unlock()

	logger.Debug("Task event received.", "task_id", ev.TaskID, "state", ev.State)
	c.invalidator.Invalidate(cache.CollectionTasks)
	c.invalidator.Invalidate(cache.CollectionGraphs)

	if c.opts.eventHook != nil {
		c.opts.eventHook(ev)
	}
}

func (c *Client) handleDisconnect(conn Conn, cause error, logger *slog.Logger) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := StatusError
	if errors.Is(cause, ErrClosed) || errors.Is(cause, io.EOF) {
		next = StatusDisconnected
	}
	changed := c.setStatusLocked(next)
	c.mu.Unlock()

	_ = conn.Close()
	if next == StatusDisconnected {
		logger.Info("Disconnected, reconnecting.", "retry_in", c.opts.reconnectDelay)
	} else {
		logger.Error("Connection failed, reconnecting.", "error", cause, "retry_in", c.opts.reconnectDelay)
	}
	c.emitStatus(next, changed)
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.timer = time.AfterFunc(c.opts.reconnectDelay, c.connect)
}

func (c *Client) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Client) setStatusLocked(s Status) bool {
	if c.status == s {
		return false
	}
	c.status = s
	return true
}

func (c *Client) emitStatus(s Status, changed bool) {
	if changed && c.opts.statusHook != nil {
		c.opts.statusHook(s)
	}
}
