// Command spool imports music folders into encrypted chunk storage and
// streams tracks back out.
//
// Commands that touch the library open the app context themselves; "spool
// serve" runs the HTTP API with a single-instance lock. Logs go to stderr and
// the configured log directory so stdout stays usable for tables, JSON and
// extracted audio.
package main
