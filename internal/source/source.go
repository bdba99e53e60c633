// Package source fetches node maps and graph roots from the backend REST
// API. It is the single writer of the "graphs" cache collection: callers
// route its results through cache.Load.
package source

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/task"
	"resty.dev/v3"
)

// ErrNotFound is returned when the requested graph does not exist.
var ErrNotFound = goerr.New("graph not found")

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// GraphResponse is the body of GET /graphs/{root}.
type GraphResponse struct {
	RootID string       `json:"root_id"`
	Nodes  task.NodeMap `json:"nodes"`
}

// GraphListResponse is the body of GET /graphs.
type GraphListResponse struct {
	Graphs []task.GraphNode `json:"graphs"`
	Total  int              `json:"total"`
}

// Health is the body of GET /health.
type Health struct {
	Status               string `json:"status"`
	ConsumerRunning      bool   `json:"consumer_running"`
	WebsocketConnections int    `json:"websocket_connections"`
	NodeCount            int    `json:"node_count"`
}

// Config describes the REST endpoint.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to the backend REST API.
type Client struct {
	http   *resty.Client
	base   string
	logger *slog.Logger
}

// New creates a client for cfg.BaseURL, e.g. http://host/celery-flow/api.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, goerr.New("api base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   hc,
		base:   cfg.BaseURL,
		logger: logger.With("component", "source"),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// Graph fetches the node map rooted at rootID.
func (c *Client) Graph(ctx context.Context, rootID string) (task.NodeMap, error) {
	var out GraphResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("rootId", rootID).
		SetResult(&out).
		Get("/graphs/{rootId}")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch graph", goerr.V("root_id", rootID), goerr.V("base_url", c.base))
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, goerr.Wrap(ErrNotFound, "backend has no such graph", goerr.V("root_id", rootID))
	}
	if res.IsError() {
		return nil, goerr.New("graph request failed",
			goerr.V("root_id", rootID),
			goerr.V("status", res.StatusCode()),
			goerr.V("body", res.String()),
		)
	}

	if out.Nodes == nil {
		out.Nodes = task.NodeMap{}
	}
	c.logger.Debug("Graph fetched.", "root_id", rootID, "nodes", len(out.Nodes))
	return out.Nodes, nil
}

// Roots lists root tasks, most recent first.
func (c *Client) Roots(ctx context.Context, limit int) ([]task.GraphNode, error) {
	req := c.http.R().SetContext(ctx)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	var out GraphListResponse
	res, err := req.SetResult(&out).Get("/graphs")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list graphs", goerr.V("base_url", c.base))
	}
	if res.IsError() {
		return nil, goerr.New("graph list request failed", goerr.V("status", res.StatusCode()), goerr.V("body", res.String()))
	}
	return out.Graphs, nil
}

// Health reports backend health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	res, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return Health{}, goerr.Wrap(err, "failed to fetch health", goerr.V("base_url", c.base))
	}
	if res.IsError() {
		return Health{}, goerr.New("health request failed", goerr.V("status", res.StatusCode()))
	}
	return out, nil
}
