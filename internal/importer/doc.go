// Package importer runs the album import pipeline.
//
// Start writes the album scaffold, then runs a producer, a pool of
// encryption workers, a pool of upload workers and a single collector,
// connected by bounded channels. The producer blocks when the encryption
// queue is full, which throttles file reads to the pace of the slowest stage.
// Chunks reach the collector in any order; the collector records each one,
// updates the completion index and publishes progress through the hub.
//
// The first read, crypto, transport or persistence error cancels the whole
// pipeline. The album is marked failed and one Failed event is published.
// Chunks already uploaded stay where they are.
package importer
