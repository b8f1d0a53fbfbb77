package app

import (
	"errors"
	"fmt"
	"log/slog"

	"spool/internal/config"
	"spool/internal/encryption"
	"spool/internal/faults"
	"spool/internal/importer"
	"spool/internal/keyring"
	"spool/internal/logging"
	"spool/internal/progress"
	"spool/internal/reassembly"
	"spool/internal/storage"
	"spool/internal/store"
)

// App is the dependency context shared by every command and the API server.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      *store.Store
	Backend    storage.Backend
	Keyring    *keyring.Keyring
	Sealer     *encryption.Sealer
	Hub        *progress.Hub
	Importer   *importer.Importer
	Reassembly *reassembly.Service
}

// Option customizes Open.
type Option func(*options)

type options struct {
	keyring *keyring.Keyring
	backend storage.Backend
}

// WithKeyring uses kr instead of loading the configured key files.
func WithKeyring(kr *keyring.Keyring) Option {
	return func(o *options) { o.keyring = kr }
}

// WithBackend uses backend instead of the configured one.
func WithBackend(backend storage.Backend) Option {
	return func(o *options) { o.backend = backend }
}

// Open wires every component from cfg. A nil logger discards logs.
func Open(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "app", "open", "config is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kr := o.keyring
	if kr == nil {
		loaded, err := keyring.Load(cfg.Keyring.IdentityFile, cfg.Keyring.SealedKeyFile)
		if err != nil {
			if errors.Is(err, keyring.ErrMissing) {
				return nil, faults.Wrap(faults.ErrConfiguration, "app", "load keyring", "run `spool key init` first", err)
			}
			return nil, faults.Wrap(faults.ErrCrypto, "app", "load keyring", "", err)
		}
		kr = loaded
	}
	compression, err := encryption.ParseCompression(cfg.Pipeline.Compression)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "app", "compression", "", err)
	}
	sealer, err := kr.Sealer(compression)
	if err != nil {
		return nil, faults.Wrap(faults.ErrCrypto, "app", "sealer", "", err)
	}

	backend := o.backend
	if backend == nil {
		if backend, err = storage.Open(cfg); err != nil {
			return nil, faults.Wrap(faults.ErrConfiguration, "app", "storage", "", err)
		}
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, "app", "open store", cfg.DatabasePath(), err)
	}

	hub := progress.NewHub(logger)
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Store:      st,
		Backend:    backend,
		Keyring:    kr,
		Sealer:     sealer,
		Hub:        hub,
		Importer:   importer.New(st, backend, sealer, hub, importer.OptionsFromConfig(cfg), logger),
		Reassembly: reassembly.NewService(st, backend, sealer, logger),
	}

	label := cfg.Storage.Backend
	if d, ok := backend.(storage.Describer); ok {
		label = d.Describe()
	}
	logger.Debug("app ready",
		logging.String("database", st.Path()),
		logging.String("storage", label),
		logging.String("compression", compression.String()),
	)
	return a, nil
}

// Close releases the store.
func (a *App) Close() error {
	if a == nil || a.Store == nil {
		return nil
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
