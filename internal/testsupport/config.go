package testsupport

import (
	"path/filepath"
	"testing"

	"spool/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The memory backend and small worker pools are the defaults so tests stay fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.Dir = filepath.Join(base, "objects")
	cfg.Storage.MinFreeGiB = 0
	cfg.Pipeline.ChunkSizeBytes = 1000
	cfg.Pipeline.EncryptWorkers = 2
	cfg.Pipeline.UploadWorkers = 2
	cfg.Pipeline.QueueDepth = 2
	cfg.Keyring.IdentityFile = filepath.Join(base, "keys", "identity.age")
	cfg.Keyring.SealedKeyFile = filepath.Join(base, "keys", "master.key.age")

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithLocalStorage switches the test config to the filesystem backend.
func WithLocalStorage() ConfigOption {
	return func(c *config.Config) {
		c.Storage.Backend = config.BackendLocal
	}
}

// WithChunkSize overrides the pipeline chunk size.
func WithChunkSize(size int) ConfigOption {
	return func(c *config.Config) {
		c.Pipeline.ChunkSizeBytes = size
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
