package render

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vk/flowwatch/internal/layout"
	"github.com/vk/flowwatch/internal/live"
	"github.com/vk/flowwatch/internal/task"
	"github.com/vk/flowwatch/internal/watch"
)

// FrameDocument is the JSON shape of one frame.
type FrameDocument struct {
	RootID     string                  `json:"root_id"`
	Generation uint64                  `json:"generation"`
	Status     live.Status             `json:"status"`
	Error      string                  `json:"error,omitempty"`
	Nodes      []layout.PositionedNode `json:"nodes"`
	Edges      []layout.Edge           `json:"edges"`
	Recent     []task.Event            `json:"recent"`
	At         time.Time               `json:"at"`
}

// Document converts a frame to its JSON shape.
func Document(f watch.Frame) FrameDocument {
	doc := FrameDocument{
		RootID:     f.RootID,
		Generation: f.Generation,
		Status:     f.Status,
		Nodes:      f.Layout.Nodes,
		Edges:      f.Layout.Edges,
		Recent:     f.Recent,
		At:         f.At.UTC(),
	}
	if f.Err != nil {
		doc.Error = f.Err.Error()
	}
	if doc.Nodes == nil {
		doc.Nodes = []layout.PositionedNode{}
	}
	if doc.Edges == nil {
		doc.Edges = []layout.Edge{}
	}
	if doc.Recent == nil {
		doc.Recent = []task.Event{}
	}
	return doc
}

// JSON renders frames as newline-delimited JSON.
type JSON struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSON creates a JSON renderer writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{enc: json.NewEncoder(w)}
}

// Render writes f as one JSON line.
func (j *JSON) Render(_ context.Context, f watch.Frame) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(Document(f)); err != nil {
		return goerr.Wrap(err, "failed to encode frame", goerr.V("root_id", f.RootID))
	}
	return nil
}
