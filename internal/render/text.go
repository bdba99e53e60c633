package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/vk/flowwatch/internal/layout"
	"github.com/vk/flowwatch/internal/live"
	"github.com/vk/flowwatch/internal/task"
	"github.com/vk/flowwatch/internal/watch"
)

const clearScreen = "\x1b[H\x1b[2J"

var stateColors = map[task.State]color.Color{
	task.StatePending:  color.FgDarkGray,
	task.StateReceived: color.FgBlue,
	task.StateStarted:  color.FgCyan,
	task.StateSuccess:  color.FgGreen,
	task.StateFailure:  color.FgRed,
	task.StateRetry:    color.FgYellow,
	task.StateRevoked:  color.FgMagenta,
	task.StateRejected: color.FgRed,
}

var statusColors = map[live.Status]color.Color{
	live.StatusConnecting:   color.FgYellow,
	live.StatusConnected:    color.FgGreen,
	live.StatusDisconnected: color.FgDarkGray,
	live.StatusError:        color.FgRed,
}

// TextOptions configures the Text renderer.
type TextOptions struct {
	// Color enables ANSI state colors.
	Color bool
	// Clear redraws in place by clearing the terminal before each frame.
	Clear bool
}

// Text renders frames as an indented tree.
type Text struct {
	mu   sync.Mutex
	w    io.Writer
	opts TextOptions
}

// NewText creates a text renderer writing to w.
func NewText(w io.Writer, opts TextOptions) *Text {
	return &Text{w: w, opts: opts}
}

// Render writes f in a single write call.
func (t *Text) Render(_ context.Context, f watch.Frame) error {
	var buf bytes.Buffer
	if t.opts.Clear {
		buf.WriteString(clearScreen)
	}
	t.header(&buf, f)
	t.tree(&buf, f.Layout)
	t.recent(&buf, f.Recent)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.w.Write(buf.Bytes())
	return err
}

func (t *Text) header(buf *bytes.Buffer, f watch.Frame) {
	root := f.RootID
	if root == "" {
		root = "(none)"
	}
	fmt.Fprintf(buf, "root %s  live %s  generation %d  finished %d/%d\n",
		root, t.paint(statusColors[f.Status], string(f.Status)), f.Generation,
		finished(f.Layout), len(f.Layout.Nodes))
	if f.Err != nil {
		fmt.Fprintf(buf, "error: %v\n", f.Err)
	}
	buf.WriteString("\n")
}

func (t *Text) tree(buf *bytes.Buffer, r layout.Result) {
	if r.Empty() {
		buf.WriteString("no tasks\n")
		return
	}

	animated := make(map[string]bool)
	for _, e := range r.Edges {
		if e.Animated {
			animated[e.Target] = true
		}
	}

	for _, n := range Ordered(r) {
		marker := " "
		if animated[n.ID] {
			marker = "*"
		}
		fmt.Fprintf(buf, "%s%s %s (%s) %s\n",
			strings.Repeat("  ", n.Level), marker, n.Label, task.ShortID(n.ID),
			t.paint(stateColors[n.State], string(n.State)))
	}
}

func (t *Text) recent(buf *bytes.Buffer, events []task.Event) {
	if len(events) == 0 {
		return
	}
	buf.WriteString("\nrecent\n")
	for _, e := range events {
		ts := "-"
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.UTC().Format("15:04:05.000")
		}
		fmt.Fprintf(buf, "  %s %s %s (%s)\n",
			ts, t.paint(stateColors[e.State], string(e.State)), task.ShortName(e.Name), task.ShortID(e.TaskID))
	}
}

func (t *Text) paint(c color.Color, s string) string {
	if !t.opts.Color || c == 0 {
		return s
	}
	return c.Sprint(s)
}

// finished counts nodes in a terminal state.
func finished(r layout.Result) int {
	n := 0
	for _, node := range r.Nodes {
		if node.State.Terminal() {
			n++
		}
	}
	return n
}

// Ordered returns the nodes sorted by level, then vertical slot.
func Ordered(r layout.Result) []layout.PositionedNode {
	nodes := make([]layout.PositionedNode, len(r.Nodes))
	copy(nodes, r.Nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Level != nodes[j].Level {
			return nodes[i].Level < nodes[j].Level
		}
		return nodes[i].Y < nodes[j].Y
	})
	return nodes
}
