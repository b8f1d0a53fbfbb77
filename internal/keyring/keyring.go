package keyring

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"

	"spool/internal/encryption"
)

var (
	// ErrExists is returned by Generate when key material is already present.
	ErrExists = errors.New("key material already exists")
	// ErrMissing is returned by Load when the identity or sealed key is absent.
	ErrMissing = errors.New("key material not found")
)

// Keyring holds the unsealed master key and the public recipient it is
// sealed to.
type Keyring struct {
	MasterKey []byte
	Recipient string
}

// Generate creates a new age identity and master key, writing the identity to
// identityFile and the sealed key to sealedKeyFile. Existing files are never
// overwritten.
func Generate(identityFile, sealedKeyFile string) (*Keyring, error) {
	for _, path := range []string{identityFile, sealedKeyFile} {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("inspect %s: %w", path, err)
		}
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age identity: %w", err)
	}
	master := make([]byte, encryption.KeySize)
	if _, err := io.ReadFull(rand.Reader, master); err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}

	sealed, err := seal(master, identity.Recipient())
	if err != nil {
		return nil, err
	}

	var ident bytes.Buffer
	fmt.Fprintf(&ident, "# created: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&ident, "# public key: %s\n", identity.Recipient().String())
	fmt.Fprintf(&ident, "%s\n", identity.String())

	if err := writePrivate(identityFile, ident.Bytes()); err != nil {
		return nil, err
	}
	if err := writePrivate(sealedKeyFile, sealed); err != nil {
		return nil, err
	}
	return &Keyring{MasterKey: master, Recipient: identity.Recipient().String()}, nil
}

// Load reads the identity and unseals the master key.
func Load(identityFile, sealedKeyFile string) (*Keyring, error) {
	identData, err := os.ReadFile(identityFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, identityFile)
		}
		return nil, fmt.Errorf("read identity: %w", err)
	}
	identities, err := age.ParseIdentities(bytes.NewReader(identData))
	if err != nil {
		return nil, fmt.Errorf("parse identity %s: %w", identityFile, err)
	}

	sealed, err := os.ReadFile(sealedKeyFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, sealedKeyFile)
		}
		return nil, fmt.Errorf("read sealed key: %w", err)
	}
	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(sealed)), identities...)
	if err != nil {
		return nil, fmt.Errorf("unseal master key: %w", err)
	}
	master, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read unsealed master key: %w", err)
	}
	if len(master) != encryption.KeySize {
		return nil, fmt.Errorf("master key is %d bytes, expected %d", len(master), encryption.KeySize)
	}

	var recipient string
	if x, ok := identities[0].(*age.X25519Identity); ok {
		recipient = x.Recipient().String()
	}
	return &Keyring{MasterKey: master, Recipient: recipient}, nil
}

// Ephemeral returns an in-memory keyring with a random master key. Nothing is
// written to disk.
func Ephemeral() (*Keyring, error) {
	master := make([]byte, encryption.KeySize)
	if _, err := io.ReadFull(rand.Reader, master); err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}
	return &Keyring{MasterKey: master}, nil
}

// Sealer builds the chunk Encryptor for this keyring.
func (k *Keyring) Sealer(compression encryption.Compression) (*encryption.Sealer, error) {
	return encryption.NewSealer(k.MasterKey, compression)
}

func seal(master []byte, recipient age.Recipient) ([]byte, error) {
	var out bytes.Buffer
	armored := armor.NewWriter(&out)
	w, err := age.Encrypt(armored, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(master); err != nil {
		return nil, fmt.Errorf("sealing master key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	if err := armored.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return out.Bytes(), nil
}

func writePrivate(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
