// Package layout turns a task node map into a leveled diagram: every task
// reachable from a root gets an integer level (its breadth-first distance
// from the root) and a screen position, and every parent/child reference
// becomes a directed edge.
//
// # Algorithm
//
// Compute runs two independent breadth-first traversals from the root, each
// with its own visited set:
//
//  1. Level pass. The root gets level 0 and every newly discovered child
//     gets its parent's level plus one. A node keeps the level from the
//     first path that reaches it; later encounters are ignored.
//  2. Position pass. Each visited node is placed at x = level * ColumnWidth
//     and takes the next free vertical slot of its level. Every level owns
//     its own counter, advanced by RowHeight. Every entry in a node's
//     Children list yields an edge, including duplicates and ids missing
//     from the map, but an already visited id is never enqueued again.
//
// Children lists are walked in the order given, so the output is fully
// determined by the input.
//
// # Degradation
//
// Compute never fails. A missing root yields an empty result, dangling child
// ids are skipped, and nodes unreachable from the root are left out.
//
// # Thread-Safety
//
// Compute holds no state between calls and is safe for concurrent use.
package layout
