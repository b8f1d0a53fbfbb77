// Package reassembly rebuilds a track's bytes from stored chunks.
//
// A Reader covers one track position. It fetches, verifies, and decrypts one
// chunk at a time as the caller reads, so playback can start before later
// chunks are touched, and Seek simply moves the cursor; the next Read fetches
// whatever chunk the new offset falls in. Failures are returned from the Read
// that hit them and never affect other readers.
package reassembly
