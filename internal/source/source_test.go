package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowwatch/internal/task"
)

func newBackend(t *testing.T) (*Client, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/celery-flow/api", Timeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestGraph_DecodesNodeMap(t *testing.T) {
	t.Parallel()

	c, mux := newBackend(t)
	mux.HandleFunc("GET /celery-flow/api/graphs/{root}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "root-1", r.PathValue("root"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"root_id": "root-1",
			"nodes": {
				"root-1": {"task_id": "root-1", "name": "app.tasks.main", "state": "SUCCESS", "parent_id": null, "children": ["c-1"]},
				"c-1": {"task_id": "c-1", "name": "app.tasks.sub", "state": "STARTED", "parent_id": "root-1", "children": []}
			}
		}`))
	})

	nodes, err := c.Graph(context.Background(), "root-1")
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, []string{"c-1"}, nodes["root-1"].Children)
	assert.Nil(t, nodes["root-1"].ParentID)
	assert.Equal(t, task.StateStarted, nodes["c-1"].State)
	require.NotNil(t, nodes["c-1"].ParentID)
	assert.Equal(t, "root-1", *nodes["c-1"].ParentID)
}

func TestGraph_NotFound(t *testing.T) {
	t.Parallel()

	c, mux := newBackend(t)
	mux.HandleFunc("GET /celery-flow/api/graphs/{root}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"detail": "not found"})
	})

	_, err := c.Graph(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGraph_ServerError(t *testing.T) {
	t.Parallel()

	c, mux := newBackend(t)
	mux.HandleFunc("GET /celery-flow/api/graphs/{root}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Graph(context.Background(), "r")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRoots_PassesLimit(t *testing.T) {
	t.Parallel()

	c, mux := newBackend(t)
	mux.HandleFunc("GET /celery-flow/api/graphs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		writeJSON(w, GraphListResponse{
			Graphs: []task.GraphNode{{ID: "newest", Name: "app.main", State: task.StateStarted}},
			Total:  1,
		})
	})

	roots, err := c.Roots(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "newest", roots[0].ID)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	c, mux := newBackend(t)
	mux.HandleFunc("GET /celery-flow/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Health{Status: "ok", ConsumerRunning: true, NodeCount: 3})
	})

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 3, h.NodeCount)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}
