// Package watch is the terminal host for the viewer. It ties the live
// client's invalidation signals to the node-map provider and the layout
// engine, and hands every recomputed diagram to a Renderer.
package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/vk/flowwatch/internal/cache"
	"github.com/vk/flowwatch/internal/layout"
	"github.com/vk/flowwatch/internal/live"
	"github.com/vk/flowwatch/internal/task"
)

// rootsKey caches the most recent roots inside the "graphs" collection.
const rootsKey = "\x00roots"

// DefaultRecent is how many recent events a frame carries.
const DefaultRecent = 5

// Source provides node maps. It is satisfied by *source.Client.
type Source interface {
	Graph(ctx context.Context, rootID string) (task.NodeMap, error)
	Roots(ctx context.Context, limit int) ([]task.GraphNode, error)
}

// Feed exposes the live session state. It is satisfied by *live.Client.
type Feed interface {
	Status() live.Status
	Events() []task.Event
}

// Renderer draws a frame.
type Renderer interface {
	Render(ctx context.Context, f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, f Frame) error

// Render calls f(ctx, fr).
func (f RendererFunc) Render(ctx context.Context, fr Frame) error {
	return f(ctx, fr)
}

// Frame is one rendered view of the graph.
type Frame struct {
	RootID string
	// Generation is the "graphs" generation the frame was built from.
	Generation uint64
	Layout     layout.Result
	Status     live.Status
	Recent     []task.Event
	// Err is the fetch error, if any. Layout then holds the last good
	// diagram for the same root.
	Err error
	At  time.Time
}

// Config wires a Watcher.
type Config struct {
	Store    *cache.Store
	Source   Source
	Feed     Feed
	Engine   *layout.Engine
	Renderer Renderer
	// RootID pins the watched graph. Empty follows the most recent root.
	RootID string
	Recent int
	Logger *slog.Logger
}

// Watcher re-renders the graph whenever it goes stale.
type Watcher struct {
	cfg    Config
	logger *slog.Logger
	kick   chan struct{}

	lastRoot   string
	lastLayout layout.Result
}

// New creates a watcher.
func New(cfg Config) *Watcher {
	if cfg.Engine == nil {
		cfg.Engine = layout.New(layout.DefaultOptions())
	}
	if cfg.Recent <= 0 {
		cfg.Recent = DefaultRecent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:    cfg,
		logger: logger.With("component", "watch"),
		kick:   make(chan struct{}, 1),
	}
}

// Notify asks for a re-render without invalidating anything, e.g. after a
// connection status change. It never blocks.
func (w *Watcher) Notify() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run renders once and then after every "graphs" invalidation or Notify,
// until ctx is done. Fetch and render failures are logged and never end the
// loop.
func (w *Watcher) Run(ctx context.Context) error {
	graphs, unsubscribe := w.cfg.Store.Subscribe(cache.CollectionGraphs)
	defer unsubscribe()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-graphs:
			w.refresh(ctx)
		case <-w.kick:
			w.refresh(ctx)
		}
	}
}

func (w *Watcher) refresh(ctx context.Context) {
	f := w.Frame(ctx)
	if f.Err != nil {
		w.logger.Warn("Failed to refresh graph.", "root_id", f.RootID, "error", f.Err)
	}
	if ctx.Err() != nil {
		return
	}
	if err := w.cfg.Renderer.Render(ctx, f); err != nil {
		w.logger.Error("Failed to render frame.", "error", err)
	}
}

// Frame builds the current view. Fresh cached node maps are reused; stale
// ones are refetched.
func (w *Watcher) Frame(ctx context.Context) Frame {
	f := Frame{
		Generation: w.cfg.Store.Generation(cache.CollectionGraphs),
		Layout:     layout.Result{Nodes: []layout.PositionedNode{}, Edges: []layout.Edge{}},
		At:         time.Now(),
	}
	if w.cfg.Feed != nil {
		f.Status = w.cfg.Feed.Status()
		f.Recent = recent(w.cfg.Feed.Events(), w.cfg.Recent)
	}

	rootID, err := w.resolveRoot(ctx)
	if err != nil {
		f.Err = err
		f.RootID = w.lastRoot
		f.Layout = w.lastLayout
		return f
	}
	f.RootID = rootID
	if rootID == "" {
		return f
	}

	nodes, err := cache.Load(ctx, w.cfg.Store, cache.CollectionGraphs, rootID, func(ctx context.Context) (task.NodeMap, error) {
		return w.cfg.Source.Graph(ctx, rootID)
	})
	if err != nil {
		f.Err = err
		if rootID == w.lastRoot {
			f.Layout = w.lastLayout
		}
		return f
	}

	f.Layout = w.cfg.Engine.Compute(nodes, rootID)
	w.lastRoot, w.lastLayout = rootID, f.Layout
	return f
}

func (w *Watcher) resolveRoot(ctx context.Context) (string, error) {
	if w.cfg.RootID != "" {
		return w.cfg.RootID, nil
	}
	roots, err := cache.Load(ctx, w.cfg.Store, cache.CollectionGraphs, rootsKey, func(ctx context.Context) ([]task.GraphNode, error) {
		return w.cfg.Source.Roots(ctx, 1)
	})
	if err != nil {
		return "", err
	}
	if len(roots) == 0 {
		return "", nil
	}
	return roots[0].ID, nil
}

func recent(events []task.Event, n int) []task.Event {
	if len(events) > n {
		return events[:n]
	}
	return events
}
