package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Encryptor seals and opens chunk payloads. Implementations must be safe for
// concurrent use.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// KeySize is the size in bytes of the master key and every derived key.
const KeySize = 32

// FrameVersion is the leading byte of every sealed frame. It is covered by
// the AEAD as additional data together with the compression tag.
const FrameVersion byte = 0x01

// Overhead is the fixed number of bytes a frame adds to its sealed body:
// version, compression tag, nonce and Poly1305 tag.
const Overhead = 2 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

const headerSize = 2 + chacha20poly1305.NonceSizeX

// maxPlainSize bounds the length prefix of compressed frames.
const maxPlainSize = 1 << 30

var hkdfInfoChunk = []byte("spool.chunk.v1")

// ErrMalformed reports a frame that cannot be parsed before authentication.
var ErrMalformed = errors.New("malformed frame")

// Sealer is the XChaCha20-Poly1305 Encryptor.
type Sealer struct {
	aead        cipher.AEAD
	compression Compression
}

// NewSealer derives the chunk key from masterKey and returns a Sealer that
// compresses with the given algorithm before sealing.
func NewSealer(masterKey []byte, compression Compression) (*Sealer, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(masterKey))
	}
	if !compression.valid() {
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
	key, err := deriveKey(masterKey, hkdfInfoChunk)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return &Sealer{aead: aead, compression: compression}, nil
}

// Compression reports the algorithm the sealer tries before sealing.
func (s *Sealer) Compression() Compression { return s.compression }

// Encrypt seals plaintext into a new frame. If compression does not shrink
// the payload the frame is stored uncompressed.
func (s *Sealer) Encrypt(plaintext []byte) ([]byte, error) {
	tag := CompressionNone
	body := plaintext
	if s.compression != CompressionNone && len(plaintext) > 0 {
		compressed, err := compress(plaintext, s.compression)
		switch {
		case err == nil:
			prefixed := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(compressed)), uint64(len(plaintext)))
			if len(prefixed)+len(compressed) < len(plaintext) {
				body = append(prefixed, compressed...)
				tag = s.compression
			}
		case errors.Is(err, errIncompressible):
		default:
			return nil, err
		}
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	out := make([]byte, headerSize, headerSize+len(body)+s.aead.Overhead())
	out[0] = FrameVersion
	out[1] = byte(tag)
	copy(out[2:], nonce[:])
	return s.aead.Seal(out, nonce[:], body, out[:2]), nil
}

// Decrypt authenticates and opens a frame produced by Encrypt.
func (s *Sealer) Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < Overhead {
		return nil, fmt.Errorf("%w: %d bytes, minimum is %d", ErrMalformed, len(frame), Overhead)
	}
	if frame[0] != FrameVersion {
		return nil, fmt.Errorf("%w: version %d is not supported", ErrMalformed, frame[0])
	}
	tag := Compression(frame[1])
	if !tag.valid() {
		return nil, fmt.Errorf("%w: compression tag %d", ErrMalformed, frame[1])
	}

	body, err := s.aead.Open(nil, frame[2:headerSize], frame[headerSize:], frame[:2])
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key or tampered data): %w", err)
	}
	if tag == CompressionNone {
		return body, nil
	}

	size, n := binary.Uvarint(body)
	if n <= 0 || size > maxPlainSize {
		return nil, fmt.Errorf("%w: bad length prefix", ErrMalformed)
	}
	return decompress(body[n:], tag, int(size))
}

func deriveKey(master, info []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, master, nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return derived, nil
}
