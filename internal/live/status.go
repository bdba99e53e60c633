package live

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// Status is the connection state exposed to consumers.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

func (s Status) String() string {
	return string(s)
}

// ErrClosed is returned by Conn.Receive when the peer closed the session
// normally.
var ErrClosed = goerr.New("connection closed")

// Conn is one established session.
type Conn interface {
	// Receive blocks until the next message arrives. It must return an
	// error once Close has been called.
	Receive() ([]byte, error)
	Close() error
}

// Dialer opens sessions. Implementations must give up when ctx is done.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}
