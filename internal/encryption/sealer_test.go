package encryption_test

import (
	"bytes"
	"errors"
	"testing"

	"spool/internal/encryption"
	"spool/internal/testsupport"
)

func testKey(seed byte) []byte {
	return testsupport.Pattern(seed, encryption.KeySize)
}

func TestSealerRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":        {},
		"random":       testsupport.Pattern(7, 4096),
		"compressible": bytes.Repeat([]byte("spool"), 2000),
	}
	for _, compression := range []encryption.Compression{encryption.CompressionNone, encryption.CompressionLZ4, encryption.CompressionZstd} {
		sealer, err := encryption.NewSealer(testKey(1), compression)
		if err != nil {
			t.Fatalf("NewSealer(%s): %v", compression, err)
		}
		for name, payload := range payloads {
			t.Run(compression.String()+"/"+name, func(t *testing.T) {
				frame, err := sealer.Encrypt(payload)
				if err != nil {
					t.Fatalf("Encrypt: %v", err)
				}
				if frame[0] != encryption.FrameVersion {
					t.Fatalf("frame version = %d", frame[0])
				}
				got, err := sealer.Decrypt(frame)
				if err != nil {
					t.Fatalf("Decrypt: %v", err)
				}
				if !bytes.Equal(got, payload) {
					t.Fatal("decrypted payload differs")
				}
			})
		}
	}
}

func TestSealerCompressionShrinksRepetitiveData(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 64*1024)
	for _, compression := range []encryption.Compression{encryption.CompressionLZ4, encryption.CompressionZstd} {
		sealer, err := encryption.NewSealer(testKey(2), compression)
		if err != nil {
			t.Fatalf("NewSealer: %v", err)
		}
		frame, err := sealer.Encrypt(payload)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if len(frame) >= len(payload) {
			t.Fatalf("%s frame is %d bytes, expected smaller than %d", compression, len(frame), len(payload))
		}
		if encryption.Compression(frame[1]) != compression {
			t.Fatalf("frame tag = %d, want %s", frame[1], compression)
		}
	}
}

func TestSealerFallsBackToNoneForRandomData(t *testing.T) {
	sealer, err := encryption.NewSealer(testKey(3), encryption.CompressionZstd)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	payload := testsupport.Pattern(9, 8192)
	frame, err := sealer.Encrypt(payload)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if encryption.Compression(frame[1]) != encryption.CompressionNone {
		t.Fatalf("expected none tag, got %d", frame[1])
	}
	if len(frame) != len(payload)+encryption.Overhead {
		t.Fatalf("frame size = %d, want %d", len(frame), len(payload)+encryption.Overhead)
	}
}

func TestSealerNoncesDiffer(t *testing.T) {
	sealer, err := encryption.NewSealer(testKey(4), encryption.CompressionNone)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	a, _ := sealer.Encrypt([]byte("same"))
	b, _ := sealer.Encrypt([]byte("same"))
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext produced identical frames")
	}
}

func TestSealerRejectsTampering(t *testing.T) {
	sealer, err := encryption.NewSealer(testKey(5), encryption.CompressionNone)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	frame, err := sealer.Encrypt([]byte("track bytes"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	t.Run("body", func(t *testing.T) {
		bad := bytes.Clone(frame)
		bad[len(bad)-1] ^= 0x01
		if _, err := sealer.Decrypt(bad); err == nil {
			t.Fatal("expected authentication failure")
		}
	})
	t.Run("compression tag", func(t *testing.T) {
		bad := bytes.Clone(frame)
		bad[1] = byte(encryption.CompressionLZ4)
		if _, err := sealer.Decrypt(bad); err == nil {
			t.Fatal("expected authentication failure for altered header")
		}
	})
	t.Run("version", func(t *testing.T) {
		bad := bytes.Clone(frame)
		bad[0] = 0x7f
		if _, err := sealer.Decrypt(bad); !errors.Is(err, encryption.ErrMalformed) {
			t.Fatalf("expected malformed error, got %v", err)
		}
	})
	t.Run("truncated", func(t *testing.T) {
		if _, err := sealer.Decrypt(frame[:encryption.Overhead-1]); !errors.Is(err, encryption.ErrMalformed) {
			t.Fatalf("expected malformed error, got %v", err)
		}
	})
	t.Run("wrong key", func(t *testing.T) {
		other, err := encryption.NewSealer(testKey(6), encryption.CompressionNone)
		if err != nil {
			t.Fatalf("NewSealer: %v", err)
		}
		if _, err := other.Decrypt(frame); err == nil {
			t.Fatal("expected failure with a different key")
		}
	})
}

func TestNewSealerValidatesInput(t *testing.T) {
	if _, err := encryption.NewSealer(make([]byte, 16), encryption.CompressionNone); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := encryption.NewSealer(testKey(1), encryption.Compression(42)); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

func TestParseCompression(t *testing.T) {
	tests := map[string]encryption.Compression{
		"":      encryption.CompressionNone,
		"none":  encryption.CompressionNone,
		"LZ4":   encryption.CompressionLZ4,
		" zstd": encryption.CompressionZstd,
	}
	for input, want := range tests {
		got, err := encryption.ParseCompression(input)
		if err != nil || got != want {
			t.Fatalf("ParseCompression(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := encryption.ParseCompression("brotli"); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

func TestDigest(t *testing.T) {
	frame := []byte("sealed frame")
	digest := encryption.Digest(frame)
	if len(digest) != 64 {
		t.Fatalf("digest length = %d, want 64 hex chars", len(digest))
	}
	if err := encryption.VerifyDigest(frame, digest); err != nil {
		t.Fatalf("VerifyDigest: %v", err)
	}
	if err := encryption.VerifyDigest([]byte("other"), digest); err == nil {
		t.Fatal("expected mismatch")
	}
	if err := encryption.VerifyDigest(frame, ""); err != nil {
		t.Fatalf("empty digest should skip verification: %v", err)
	}
}
