package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir must be set when storage.backend is local")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (use local or memory)", c.Storage.Backend)
	}
	if c.Storage.MinFreeGiB < 0 {
		return errors.New("storage.min_free_gib must be zero or positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ChunkSizeBytes <= 0 {
		return errors.New("pipeline.chunk_size_bytes must be positive")
	}
	if c.Pipeline.EncryptWorkers < 1 {
		return errors.New("pipeline.encrypt_workers must be at least 1")
	}
	if c.Pipeline.UploadWorkers < 1 {
		return errors.New("pipeline.upload_workers must be at least 1")
	}
	if c.Pipeline.QueueDepth < 1 {
		return errors.New("pipeline.queue_depth must be at least 1")
	}
	switch c.Pipeline.Compression {
	case CompressionNone, CompressionZstd, CompressionLZ4:
	default:
		return fmt.Errorf("pipeline.compression: unsupported value %q (use none, zstd, or lz4)", c.Pipeline.Compression)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
