package layout

import (
	"github.com/vk/flowwatch/internal/task"
)

const (
	// DefaultColumnWidth is the horizontal distance between two levels.
	DefaultColumnWidth = 250
	// DefaultRowHeight is the vertical distance between two nodes of a level.
	DefaultRowHeight = 100
)

// Options controls node spacing.
type Options struct {
	ColumnWidth float64
	RowHeight   float64
}

// DefaultOptions returns the standard spacing.
func DefaultOptions() Options {
	return Options{ColumnWidth: DefaultColumnWidth, RowHeight: DefaultRowHeight}
}

// PositionedNode is a task placed on the diagram.
type PositionedNode struct {
	ID    string     `json:"id"`
	Level int        `json:"level"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	State task.State `json:"state"`
	Name  string     `json:"name"`
	// Label is the last segment of Name, the part shown on the node.
	Label string `json:"label"`
}

// Edge is a parent to child link.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	// Animated is set when the target task is executing.
	Animated bool `json:"animated"`
}

// Result is the output of one layout pass.
type Result struct {
	Nodes []PositionedNode `json:"nodes"`
	Edges []Edge           `json:"edges"`
}

// Engine computes layouts with fixed spacing options.
type Engine struct {
	opts Options
}

// New creates an engine. Non-positive spacing values fall back to the
// defaults.
func New(opts Options) *Engine {
	if opts.ColumnWidth <= 0 {
		opts.ColumnWidth = DefaultColumnWidth
	}
	if opts.RowHeight <= 0 {
		opts.RowHeight = DefaultRowHeight
	}
	return &Engine{opts: opts}
}

var defaultEngine = New(DefaultOptions())

// Compute lays out nodes reachable from rootID with the default spacing.
func Compute(nodes task.NodeMap, rootID string) Result {
	return defaultEngine.Compute(nodes, rootID)
}

// Options returns the spacing used by the engine.
func (e *Engine) Options() Options {
	return e.opts
}

// Compute lays out every node reachable from rootID.
func (e *Engine) Compute(nodes task.NodeMap, rootID string) Result {
	levels := assignLevels(nodes, rootID)
	return e.place(nodes, rootID, levels)
}

// EdgeID is the identifier used for the edge from source to target.
func EdgeID(source, target string) string {
	return source + "-" + target
}

type queued struct {
	id    string
	level int
}

// assignLevels is the first breadth-first pass.
func assignLevels(nodes task.NodeMap, rootID string) map[string]int {
	levels := make(map[string]int, len(nodes))
	visited := make(map[string]struct{}, len(nodes))
	queue := []queued{{id: rootID, level: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if _, seen := visited[cur.id]; seen {
			continue
		}
		visited[cur.id] = struct{}{}

		n, ok := nodes[cur.id]
		if !ok {
			continue
		}
		levels[cur.id] = cur.level

		for _, child := range n.Children {
			if _, seen := visited[child]; !seen {
				queue = append(queue, queued{id: child, level: cur.level + 1})
			}
		}
	}
	return levels
}

// place is the second breadth-first pass. It has its own visited set and
// never reuses the traversal order of the level pass.
func (e *Engine) place(nodes task.NodeMap, rootID string, levels map[string]int) Result {
	res := Result{
		Nodes: make([]PositionedNode, 0, len(levels)),
		Edges: []Edge{},
	}
	visited := make(map[string]struct{}, len(levels))
	nextY := make(map[int]float64)
	queue := []string{rootID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}

		n, ok := nodes[id]
		if !ok {
			continue
		}

		level := levels[id]
		y := nextY[level]
		nextY[level] = y + e.opts.RowHeight

		res.Nodes = append(res.Nodes, PositionedNode{
			ID:    id,
			Level: level,
			X:     float64(level) * e.opts.ColumnWidth,
			Y:     y,
			State: n.State,
			Name:  n.Name,
			Label: n.ShortName(),
		})

		for _, child := range n.Children {
			target, exists := nodes[child]
			res.Edges = append(res.Edges, Edge{
				ID:       EdgeID(id, child),
				Source:   id,
				Target:   child,
				Animated: exists && target.State.Active(),
			})
			if _, seen := visited[child]; !seen {
				queue = append(queue, child)
			}
		}
	}
	return res
}

// Empty reports whether nothing was placed.
func (r Result) Empty() bool {
	return len(r.Nodes) == 0
}
