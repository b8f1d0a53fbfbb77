// Package daemon coordinates the long-running "spool serve" process.
//
// It wires the app context and the HTTP API into a single lifecycle with
// flock-based locking in the data directory to prevent multiple instances
// from sharing one metadata database. Imports started through the API run on
// the daemon's context and are cancelled when it stops.
package daemon
