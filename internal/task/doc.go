// Package task defines the wire-level data model shared by the live update
// client and the layout engine: task states, graph nodes as returned by the
// node-map provider, and the task events pushed over the live connection.
//
// Values of these types are recreated on every fetch or message. Nothing in
// this package keeps identity across fetches.
package task
