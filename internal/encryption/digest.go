package encryption

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest returns the hex BLAKE3-256 digest of a sealed frame. It is stored
// next to each chunk record so corruption in transit is caught before the
// AEAD is consulted. It is never used as a chunk identifier.
func Digest(frame []byte) string {
	sum := blake3.Sum256(frame)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest compares frame against a digest produced by Digest. An empty
// want skips the check for records written without one.
func VerifyDigest(frame []byte, want string) error {
	if want == "" {
		return nil
	}
	if got := Digest(frame); got != want {
		return fmt.Errorf("digest mismatch: got %s, want %s", got, want)
	}
	return nil
}
