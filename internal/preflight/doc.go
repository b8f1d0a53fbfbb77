// Package preflight provides readiness checks for the filesystem paths,
// keys and services Spool depends on.
//
// These checks run in two contexts:
//   - The CLI "spool import" command calls RunAll before starting an import
//     and refuses to run when any check fails.
//   - The CLI "spool status" command prints every result, plus CheckServer
//     for a running "spool serve" instance.
package preflight
