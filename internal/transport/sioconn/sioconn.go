// Package sioconn implements live.Dialer on top of a socket.io namespace.
// Task events arrive as a named socket.io event; the engine.io layer is
// restricted to the WebSocket transport.
package sioconn

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/live"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is the socket.io event that carries task events.
const DefaultEvent = "task_event"

// Config describes the socket.io endpoint.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	Logger             *slog.Logger
}

// Dialer opens socket.io sessions.
type Dialer struct {
	cfg     Config
	baseURL string
	path    string
	logger  *slog.Logger
}

// New validates cfg and returns a dialer.
func New(cfg Config) (*Dialer, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse socket.io URL", goerr.V("url", cfg.URL))
	}
	if parsed.Host == "" {
		return nil, goerr.New("socket.io URL has no host", goerr.V("url", cfg.URL))
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.Event == "" {
		cfg.Event = DefaultEvent
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dialer{
		cfg:     cfg,
		baseURL: fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host),
		path:    parsed.Path,
		logger:  logger.With("transport", "socketio", "url", cfg.URL, "namespace", cfg.Namespace),
	}, nil
}

func (d *Dialer) options() *socket.Options {
	opts := socket.DefaultOptions()
	if d.path != "" {
		opts.SetPath(d.path)
	}
	if d.cfg.InsecureSkipVerify {
		d.logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))
	// The live client owns the retry policy.
	opts.SetReconnection(false)
	return opts
}

// Dial implements live.Dialer. It returns once the namespace is joined.
func (d *Dialer) Dial(ctx context.Context) (live.Conn, error) {
	opts := d.options()
	manager := socket.NewManager(d.baseURL, opts)
	io := manager.Socket(d.cfg.Namespace, opts)

	conn := newConn(io)
	connectChan := make(chan error, 1)

	io.Once(types.EventName("connect"), func(...any) {
		d.logger.Debug("Socket.io namespace joined.", "sid", io.Id())
		signalConnect(connectChan, nil)
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		signalConnect(connectChan, connectError(errs))
	})
	io.On(types.EventName("disconnect"), func(reasons ...any) {
		d.logger.Debug("Socket.io disconnected.", "reason", reasons)
		conn.end(live.ErrClosed)
	})
	io.On(types.EventName(d.cfg.Event), func(data ...any) {
		payload, err := encodePayload(data)
		if err != nil {
			d.logger.Warn("Dropping undecodable socket.io payload.", "error", err)
			return
		}
		conn.push(payload)
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, goerr.Wrap(err, "socket.io connection failed", goerr.V("url", d.cfg.URL))
		}
		return conn, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, goerr.Wrap(ctx.Err(), "context done while waiting for socket.io connection", goerr.V("url", d.cfg.URL))
	}
}

// signalConnect reports the first connect outcome. Later outcomes, or ones
// arriving after Dial gave up, are dropped so library goroutines never block.
func signalConnect(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

func connectError(errs []any) error {
	if len(errs) > 0 {
		if err, ok := errs[0].(error); ok {
			return err
		}
		return goerr.New("connect_error", goerr.V("detail", errs[0]))
	}
	return goerr.New("connect_error")
}

// encodePayload turns the first event argument into raw JSON text.
func encodePayload(data []any) ([]byte, error) {
	if len(data) == 0 {
		return nil, goerr.New("event carried no payload")
	}
	switch v := data[0].(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to re-encode payload")
		}
		return b, nil
	}
}

// Conn is one socket.io session.
type Conn struct {
	io *socket.Socket

	msgs   chan []byte
	done   chan struct{}
	once   sync.Once
	reason error
}

func newConn(io *socket.Socket) *Conn {
	return &Conn{
		io:   io,
		msgs: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

func (c *Conn) push(payload []byte) {
	select {
	case c.msgs <- payload:
	case <-c.done:
	}
}

func (c *Conn) end(reason error) {
	c.once.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Receive returns the next event payload. Payloads already queued are
// delivered before the end of the session is reported.
func (c *Conn) Receive() ([]byte, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	default:
	}
	select {
	case m := <-c.msgs:
		return m, nil
	case <-c.done:
		return nil, c.reason
	}
}

// Close leaves the namespace.
func (c *Conn) Close() error {
	c.end(live.ErrClosed)
	if c.io != nil {
		c.io.Disconnect()
	}
	return nil
}
