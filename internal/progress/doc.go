// Package progress tracks which tracks of an import have become available and
// fans import events out to subscribers.
//
// Index owns the static chunk ownership map and the growing sets of completed
// chunks and tracks. Chunks may complete in any order; each track is reported
// complete exactly once, when the last chunk it owns completes.
//
// Hub is a registry of filtered subscriptions. Each published event is
// delivered, in order, to every subscription whose filter matches.
// Subscriptions that have been closed, or that stop receiving, are pruned
// from the registry the next time a delivery to them fails.
package progress
