// Package chunker splits the concatenated byte stream of an album's source
// files into fixed-size chunks and owns the arithmetic that relates files,
// tracks, and chunk boundaries.
//
// Chunks ignore file boundaries: a chunk may start inside one file and end in
// the next. Every chunk but the last is exactly ChunkSize bytes long and
// indices run contiguously from zero. Layout computes the same boundaries
// without reading any bytes, which is what the importer uses to derive chunk
// ownership and track positions up front.
package chunker
