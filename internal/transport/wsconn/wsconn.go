// Package wsconn implements live.Dialer over a plain WebSocket connection.
package wsconn

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/live"
)

// Config describes the WebSocket endpoint.
type Config struct {
	URL                string
	Header             http.Header
	InsecureSkipVerify bool
	// HandshakeTimeout bounds the opening handshake. Zero uses the
	// gorilla default.
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Dialer opens WebSocket sessions.
type Dialer struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

// New validates cfg and returns a dialer.
func New(cfg Config) (*Dialer, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse websocket URL", goerr.V("url", cfg.URL))
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, goerr.New("websocket URL must use ws or wss", goerr.V("url", cfg.URL))
	}

	d := *websocket.DefaultDialer
	if cfg.HandshakeTimeout > 0 {
		d.HandshakeTimeout = cfg.HandshakeTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("transport", "websocket", "url", cfg.URL)

	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Dialer{cfg: cfg, dialer: &d, logger: logger}, nil
}

// Dial implements live.Dialer.
func (d *Dialer) Dial(ctx context.Context) (live.Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, d.cfg.URL, d.cfg.Header)
	if err != nil {
		opts := []goerr.Option{goerr.V("url", d.cfg.URL)}
		if resp != nil {
			opts = append(opts, goerr.V("status", resp.StatusCode))
		}
		return nil, goerr.Wrap(err, "websocket dial failed", opts...)
	}
	d.logger.Debug("WebSocket handshake complete.")
	return &Conn{ws: ws}, nil
}

// Conn is one WebSocket session.
type Conn struct {
	ws        *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Receive returns the next data frame. Normal closure codes map to
// live.ErrClosed.
func (c *Conn) Receive() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err == nil {
		return data, nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil, goerr.Wrap(live.ErrClosed, err.Error())
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil, live.ErrClosed
	}
	return nil, goerr.Wrap(err, "websocket read failed")
}

// Close sends a close frame and releases the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
