// Package logs reads the spool log file for `spool logs`.
//
// Last returns the final lines of the file together with the offset of its
// end, and Follow polls from that offset so the CLI can keep printing new
// lines until its context is cancelled. Lines can be narrowed to one album
// with MatchAlbum, which understands both the console and JSON log formats.
package logs
