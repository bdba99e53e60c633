// Package cache holds the fetched collections ("tasks", "graphs") that the
// live update client marks stale.
//
// # Mutation contract
//
// A Store keeps one generation counter per collection. Invalidate is the
// only operation the live client may call: it bumps the counter and signals
// subscribers. Cached values are written exclusively by Load, which stamps
// each value with the generation observed before its fetch started. A value
// is served only while its stamp matches the current generation, so an
// invalidation that lands during a fetch still forces the next read to
// refetch.
//
// Concurrent Loads of the same key and generation share a single fetch.
//
// # Thread-Safety
//
// All Store methods are safe for concurrent use.
package cache
