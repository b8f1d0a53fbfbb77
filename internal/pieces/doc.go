// Package pieces bridges a torrent's piece layout and the import pipeline's
// chunk layout over the same byte stream.
//
// Mapper is pure arithmetic: it reports which part of each chunk a piece
// covers, and the reverse. Tracker records completed pieces as a download
// progresses, and Gate turns the two into a chunker.Gate so the producer
// waits for the pieces beneath a chunk before reading it.
//
// The byte stream is the source files concatenated in discovery order, so the
// torrent's file order must match that order for the layouts to line up.
package pieces
