// Package app wires the viewer together: it resolves configuration, builds
// the cache, the node-map provider, the live client and the watcher, and
// supervises them for the lifetime of a run. It is decoupled from any
// specific entrypoint like a CLI.
package app
