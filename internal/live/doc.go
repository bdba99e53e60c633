// Package live maintains the persistent connection that pushes task events
// to the viewer.
//
// # State Machine
//
//	connecting ──► connected ──► disconnected ─┐
//	     │             │                       │ after ReconnectDelay
//	     └──► error ◄──┘                       │
//	           │                               │
//	           └───────────► connecting ◄──────┘
//
// A failed dial or a transport error moves the client to error; a normal
// closure moves it to disconnected. Either way exactly one reconnection is
// scheduled after a fixed delay. There is no terminal failure state: the
// client retries for as long as it has not been closed.
//
// # Event Ingestion
//
// Each session has a single receive goroutine, so messages are handled in
// delivery order. A message that does not parse as a task event is logged
// and dropped. A valid event becomes the last event, is pushed onto a
// bounded newest-first history, and causes exactly one invalidation of the
// "tasks" collection and one of the "graphs" collection. The client never
// patches cached data itself.
//
// # Teardown
//
// Close cancels the pending reconnection timer, closes the active session
// and waits for the client's goroutines to exit. Hooks run on those
// goroutines and must not call Close.
package live
