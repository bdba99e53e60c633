package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vk/flowwatch/internal/cache"
	"github.com/vk/flowwatch/internal/ctxlog"
	"github.com/vk/flowwatch/internal/live"
	"github.com/vk/flowwatch/internal/source"
)

// DefaultBackendPollInterval is how often the backend health endpoint is
// polled.
const DefaultBackendPollInterval = 10 * time.Second

// HealthReport is the body of GET /health.
type HealthReport struct {
	Status     string        `json:"status"`
	Connection live.Status   `json:"connection"`
	SessionID  string        `json:"session_id"`
	Events     int           `json:"events"`
	Generation uint64        `json:"generation"`
	Backend    BackendStatus `json:"backend"`
}

// BackendStatus is the outcome of the latest backend health poll.
type BackendStatus struct {
	Reachable            bool      `json:"reachable"`
	Status               string    `json:"status,omitempty"`
	ConsumerRunning      bool      `json:"consumer_running"`
	WebsocketConnections int       `json:"websocket_connections"`
	NodeCount            int       `json:"node_count"`
	Error                string    `json:"error,omitempty"`
	CheckedAt            time.Time `json:"checked_at,omitzero"`
}

// backendHealth holds the latest poll result.
type backendHealth struct {
	mu     sync.Mutex
	status BackendStatus
}

func (b *backendHealth) get() BackendStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *backendHealth) set(s BackendStatus) (changed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	changed = b.status.Reachable != s.Reachable || b.status.CheckedAt.IsZero()
	b.status = s
	return changed
}

// checkBackend polls the backend health endpoint once.
func (a *App) checkBackend(ctx context.Context) BackendStatus {
	h, err := a.source.Health(ctx)
	status := BackendStatus{CheckedAt: time.Now().UTC()}
	if err != nil {
		status.Error = err.Error()
	} else {
		status = backendStatus(h, status.CheckedAt)
	}

	logger := ctxlog.FromContext(ctx)
	if a.backend.set(status) {
		if status.Reachable {
			logger.Info("Backend reachable.", "status", status.Status, "consumer_running", status.ConsumerRunning)
		} else {
			logger.Warn("Backend unreachable.", "error", status.Error)
		}
	}
	return status
}

func backendStatus(h source.Health, at time.Time) BackendStatus {
	return BackendStatus{
		Reachable:            true,
		Status:               h.Status,
		ConsumerRunning:      h.ConsumerRunning,
		WebsocketConnections: h.WebsocketConnections,
		NodeCount:            h.NodeCount,
		CheckedAt:            at,
	}
}

// pollBackend checks backend health immediately and then on every tick
// until ctx is done.
func (a *App) pollBackend(ctx context.Context) error {
	ctx = ctxlog.With(ctx, "component", "backend-health")
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	a.checkBackend(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.checkBackend(ctx)
		}
	}
}

// Health reports the live session and cache state.
func (a *App) Health() HealthReport {
	return HealthReport{
		Status:     "ok",
		Connection: a.live.Status(),
		SessionID:  a.live.SessionID(),
		Events:     a.live.EventCount(),
		Generation: a.store.Generation(cache.CollectionGraphs),
		Backend:    a.backend.get(),
	}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(a.Health()); err != nil {
		logger.Warn("Failed to write health report.", "error", err)
	}
}

// Handler returns the health check mux.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	return mux
}

// newHealthCheckServer configures the health check server without starting it.
func (a *App) newHealthCheckServer() {
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.HealthcheckPort),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// healthCheckServer runs the health check HTTP server until it is closed.
func (a *App) healthCheckServer() error {
	logger := ctxlog.FromContext(a.ctx)
	addr := a.httpServer.Addr
	logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Health check server failed unexpectedly", "error", err)
		return err
	}
	return nil
}

func (a *App) closeHealthCheckServer() error {
	logger := ctxlog.FromContext(a.ctx)
	if a.httpServer == nil {
		logger.Debug("Health check server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Health check server shut down gracefully.")
	return nil
}
