package task

import "strings"

// GraphNode is the display-relevant state of a single task.
//
// Children is trusted as given: the layout engine never reconciles it against
// ParentID.
type GraphNode struct {
	ID       string   `json:"task_id"`
	Name     string   `json:"name"`
	State    State    `json:"state"`
	ParentID *string  `json:"parent_id"`
	Children []string `json:"children"`
}

// ShortName returns the last segment of the dotted task name.
func (n GraphNode) ShortName() string {
	return ShortName(n.Name)
}

// NodeMap maps task id to node for one connected graph.
type NodeMap map[string]GraphNode

// ShortName returns the part of name after the last '.'.
func ShortName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ShortID truncates an id to its first eight characters.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
