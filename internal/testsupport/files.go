package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// Pattern returns size deterministic bytes derived from seed. Different seeds
// produce different streams so misplaced bytes are caught by comparisons.
func Pattern(seed byte, size int) []byte {
	out := make([]byte, size)
	state := uint32(seed)*2654435761 + 1
	for i := range out {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		out[i] = byte(state)
	}
	return out
}

// WritePatternFile writes Pattern(seed, size) to path and returns the bytes.
func WritePatternFile(t testing.TB, path string, seed byte, size int) []byte {
	t.Helper()
	data := Pattern(seed, size)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}

// Concat joins byte slices in order.
func Concat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}
