package live

import (
	"log/slog"
	"time"

	"github.com/vk/flowwatch/internal/eventbuf"
	"github.com/vk/flowwatch/internal/task"
)

// DefaultReconnectDelay is the fixed pause between a lost session and the
// next attempt.
const DefaultReconnectDelay = 3 * time.Second

type options struct {
	reconnectDelay time.Duration
	connectTimeout time.Duration
	bufferSize     int
	logger         *slog.Logger
	statusHook     func(Status)
	eventHook      func(task.Event)
}

func defaultOptions() options {
	return options{
		reconnectDelay: DefaultReconnectDelay,
		bufferSize:     eventbuf.DefaultCapacity,
		logger:         slog.Default(),
	}
}

// Option configures a Client.
type Option func(*options)

// WithReconnectDelay sets the fixed reconnection delay.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reconnectDelay = d
		}
	}
}

// WithConnectTimeout bounds each dial attempt. Zero leaves attempts
// unbounded, in which case a dial that never completes keeps the client in
// connecting.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.connectTimeout = d
		}
	}
}

// WithBufferSize sets how many recent events are kept.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStatusHook registers a callback for every status change.
func WithStatusHook(fn func(Status)) Option {
	return func(o *options) {
		o.statusHook = fn
	}
}

// WithEventHook registers a callback run after each accepted event.
func WithEventHook(fn func(task.Event)) Option {
	return func(o *options) {
		o.eventHook = fn
	}
}
