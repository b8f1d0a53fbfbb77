// Package store persists album import metadata in SQLite: albums, their
// source files, tracks, stored chunk records, and per-track byte positions.
//
// The import pipeline writes an album scaffold in the queued state before any
// bytes move, then appends one chunk record per uploaded chunk and one
// position per completed track. Chunk records and positions are never
// updated afterwards; the reassembly reader only reads them.
//
// Schema changes bump the version in schema.go; users delete the database to
// adopt the new schema.
package store
