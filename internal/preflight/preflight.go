package preflight

import (
	"context"

	"spool/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Storage.Backend == config.BackendLocal {
		results = append(results, CheckDirectoryAccess("Storage directory", cfg.Storage.Dir))
	}
	results = append(results,
		CheckKeyring(cfg.Keyring.IdentityFile, cfg.Keyring.SealedKeyFile),
		CheckDatabase(ctx, cfg.DatabasePath()),
		CheckStorage(cfg),
	)
	return results
}
