package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/eventbuf"
	"github.com/vk/flowwatch/internal/layout"
	"github.com/vk/flowwatch/internal/live"
)

// Supported live transports.
const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Defaults for a backend running on localhost.
const (
	DefaultLiveURL    = "ws://localhost:8000/celery-flow/ws"
	DefaultAPIURL     = "http://localhost:8000/celery-flow/api"
	DefaultAPITimeout = 10 * time.Second
)

// Config is the resolved viewer configuration.
type Config struct {
	Live   LiveConfig
	API    APIConfig
	Layout LayoutConfig
}

// LiveConfig configures the live update connection.
type LiveConfig struct {
	URL                string
	Transport          string
	Namespace          string
	Event              string
	ReconnectDelay     time.Duration
	ConnectTimeout     time.Duration
	BufferSize         int
	InsecureSkipVerify bool
}

// APIConfig configures the REST node-map provider.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LayoutConfig configures diagram spacing.
type LayoutConfig struct {
	ColumnWidth float64
	RowHeight   float64
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Live: LiveConfig{
			URL:            DefaultLiveURL,
			Transport:      TransportWebSocket,
			Namespace:      "/",
			Event:          "task_event",
			ReconnectDelay: live.DefaultReconnectDelay,
			BufferSize:     eventbuf.DefaultCapacity,
		},
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: DefaultAPITimeout,
		},
		Layout: LayoutConfig{
			ColumnWidth: layout.DefaultColumnWidth,
			RowHeight:   layout.DefaultRowHeight,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Live.URL == "" {
		return goerr.New("live.url must not be empty")
	}
	switch c.Live.Transport {
	case TransportWebSocket, TransportSocketIO:
	default:
		return goerr.New("live.transport must be 'websocket' or 'socketio'", goerr.V("transport", c.Live.Transport))
	}
	if c.Live.ReconnectDelay <= 0 {
		return goerr.New("live.reconnect_delay must be positive", goerr.V("reconnect_delay", c.Live.ReconnectDelay))
	}
	if c.Live.ConnectTimeout < 0 {
		return goerr.New("live.connect_timeout must not be negative", goerr.V("connect_timeout", c.Live.ConnectTimeout))
	}
	if c.Live.BufferSize <= 0 {
		return goerr.New("live.buffer_size must be positive", goerr.V("buffer_size", c.Live.BufferSize))
	}
	if c.API.BaseURL == "" {
		return goerr.New("api.base_url must not be empty")
	}
	if c.Layout.ColumnWidth <= 0 || c.Layout.RowHeight <= 0 {
		return goerr.New("layout spacing must be positive",
			goerr.V("column_width", c.Layout.ColumnWidth),
			goerr.V("row_height", c.Layout.RowHeight),
		)
	}
	return nil
}

// LayoutOptions converts the layout block for the layout engine.
func (c *Config) LayoutOptions() layout.Options {
	return layout.Options{ColumnWidth: c.Layout.ColumnWidth, RowHeight: c.Layout.RowHeight}
}
