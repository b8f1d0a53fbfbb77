package keyring_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spool/internal/encryption"
	"spool/internal/keyring"
)

func TestGenerateAndLoad(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "keys", "identity.age")
	sealed := filepath.Join(dir, "keys", "master.key.age")

	generated, err := keyring.Generate(identity, sealed)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(generated.MasterKey) != encryption.KeySize {
		t.Fatalf("master key length = %d", len(generated.MasterKey))
	}
	if !strings.HasPrefix(generated.Recipient, "age1") {
		t.Fatalf("unexpected recipient %q", generated.Recipient)
	}

	info, err := os.Stat(identity)
	if err != nil {
		t.Fatalf("stat identity: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("identity mode = %v, want 0600", info.Mode().Perm())
	}
	raw, err := os.ReadFile(sealed)
	if err != nil {
		t.Fatalf("read sealed key: %v", err)
	}
	if bytes.Contains(raw, generated.MasterKey) {
		t.Fatal("sealed key file contains the plaintext master key")
	}

	loaded, err := keyring.Load(identity, sealed)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(loaded.MasterKey, generated.MasterKey) {
		t.Fatal("loaded master key differs from generated key")
	}
	if loaded.Recipient != generated.Recipient {
		t.Fatalf("recipient = %q, want %q", loaded.Recipient, generated.Recipient)
	}
}

func TestGenerateRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	identity := filepath.Join(dir, "identity.age")
	sealed := filepath.Join(dir, "master.key.age")
	if _, err := keyring.Generate(identity, sealed); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := keyring.Generate(identity, sealed); !errors.Is(err, keyring.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestLoadMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := keyring.Load(filepath.Join(dir, "nope"), filepath.Join(dir, "nope2"))
	if !errors.Is(err, keyring.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestLoadWithForeignIdentityFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := keyring.Generate(filepath.Join(dir, "a.age"), filepath.Join(dir, "a.key")); err != nil {
		t.Fatalf("Generate a: %v", err)
	}
	if _, err := keyring.Generate(filepath.Join(dir, "b.age"), filepath.Join(dir, "b.key")); err != nil {
		t.Fatalf("Generate b: %v", err)
	}
	if _, err := keyring.Load(filepath.Join(dir, "b.age"), filepath.Join(dir, "a.key")); err == nil {
		t.Fatal("expected unseal failure with the wrong identity")
	}
}

func TestEphemeralSealer(t *testing.T) {
	ring, err := keyring.Ephemeral()
	if err != nil {
		t.Fatalf("Ephemeral: %v", err)
	}
	sealer, err := ring.Sealer(encryption.CompressionNone)
	if err != nil {
		t.Fatalf("Sealer: %v", err)
	}
	frame, err := sealer.Encrypt([]byte("chunk"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plain, err := sealer.Decrypt(frame)
	if err != nil || string(plain) != "chunk" {
		t.Fatalf("Decrypt = %q, %v", plain, err)
	}
}
