package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizeKeyring(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeDiscovery()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultBackend
	}
	if strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = defaultStorageDir
	}
	var err error
	if c.Storage.Dir, err = expandPath(c.Storage.Dir); err != nil {
		return fmt.Errorf("storage.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeKeyring() error {
	if value, ok := os.LookupEnv("SPOOL_IDENTITY_FILE"); ok && strings.TrimSpace(value) != "" {
		c.Keyring.IdentityFile = value
	}
	if strings.TrimSpace(c.Keyring.IdentityFile) == "" {
		c.Keyring.IdentityFile = defaultIdentityFile
	}
	if strings.TrimSpace(c.Keyring.SealedKeyFile) == "" {
		c.Keyring.SealedKeyFile = defaultSealedKeyFile
	}
	var err error
	if c.Keyring.IdentityFile, err = expandPath(c.Keyring.IdentityFile); err != nil {
		return fmt.Errorf("keyring.identity_file: %w", err)
	}
	if c.Keyring.SealedKeyFile, err = expandPath(c.Keyring.SealedKeyFile); err != nil {
		return fmt.Errorf("keyring.sealed_key_file: %w", err)
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.Compression = strings.ToLower(strings.TrimSpace(c.Pipeline.Compression))
	if c.Pipeline.Compression == "" {
		c.Pipeline.Compression = defaultCompression
	}
}

func (c *Config) normalizeDiscovery() {
	if len(c.Discovery.Extensions) == 0 {
		c.Discovery.Extensions = append([]string(nil), defaultExtensions...)
		return
	}
	normalized := make([]string, 0, len(c.Discovery.Extensions))
	for _, ext := range c.Discovery.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Discovery.Extensions = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
