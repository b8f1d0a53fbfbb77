// Package faults defines the error taxonomy shared by the chunk pipeline.
//
// Every failure that leaves a component is tagged with one of the sentinel
// markers (read, crypto, transport, persistence, configuration, validation,
// not found) so callers can classify it with errors.Is without parsing
// messages. Wrap builds the "component: operation: message: cause" chain the
// rest of the repository logs and reports in Failed events.
package faults
