// Package app builds the process-wide dependency context.
//
// Open constructs the store, storage backend, keyring-derived sealer,
// progress hub, importer and reassembly service exactly once and hands them
// out by reference. Nothing in Spool keeps these in package-level state;
// commands and the API server receive an *App instead.
package app
