// Package encryption provides the chunk encryption capability used by the
// import pipeline and the reassembly reader.
//
// Each chunk is sealed independently with XChaCha20-Poly1305 under a key
// derived from the album master key, so chunks can be encrypted and decrypted
// in any order on any number of workers. The random nonce and the
// authentication tag travel inside the frame; nothing else is needed to
// decrypt. Optional zstd or lz4 compression runs before sealing and is
// recorded in the authenticated frame header.
package encryption
