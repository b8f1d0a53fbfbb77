// Package storage defines the upload/download capability chunks are stored
// through and ships two implementations: Local, which writes objects under a
// directory tree, and Memory, an in-process map used by tests and dry runs.
//
// Locators returned by Upload are opaque to callers. They are persisted with
// each chunk record and handed back to Download unchanged.
package storage
