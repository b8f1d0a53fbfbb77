// Package keyring owns the album master key. The key is a random 32-byte
// secret sealed with age to an X25519 identity kept on local disk; the
// encryption package derives the per-chunk AEAD key from it.
//
// A Keyring is constructed once at process start and handed to the
// components that need it.
package keyring
