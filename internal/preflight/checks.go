package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"spool/internal/config"
	"spool/internal/keyring"
	"spool/internal/storage"
	"spool/internal/store"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckKeyring verifies that the identity opens the sealed master key.
func CheckKeyring(identityFile, sealedKeyFile string) Result {
	const name = "Keyring"

	kr, err := keyring.Load(identityFile, sealedKeyFile)
	switch {
	case errors.Is(err, keyring.ErrMissing):
		return Result{Name: name, Detail: "not initialized (run: spool key init)"}
	case err != nil:
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "recipient " + kr.Recipient}
}

// CheckDatabase opens the metadata database, creating it when absent, and
// confirms its schema version.
func CheckDatabase(ctx context.Context, path string) Result {
	const name = "Metadata database"

	st, err := store.OpenPath(path)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMismatch) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: open: %v)", path, err)}
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d albums)", path, total)}
}

// CheckStorage opens the configured backend and, when it reports capacity,
// confirms the configured headroom is available.
func CheckStorage(cfg *config.Config) Result {
	const name = "Chunk storage"

	backend, err := storage.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	label := cfg.Storage.Backend
	if d, ok := backend.(storage.Describer); ok {
		label = d.Describe()
	}
	reporter, ok := backend.(storage.SpaceReporter)
	if !ok {
		return Result{Name: name, Passed: true, Detail: label}
	}
	free, err := reporter.FreeBytes()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: free space: %v)", label, err)}
	}
	if need := cfg.MinFreeBytes(); free < need {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s free, %s required)", label, formatBytes(free), formatBytes(need))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free)", label, formatBytes(free))}
}

// CheckServer probes the health endpoint of a running API server.
func CheckServer(ctx context.Context, bind string) Result {
	const name = "API server"

	bind = strings.TrimSpace(bind)
	if bind == "" {
		return Result{Name: name, Detail: "missing bind address"}
	}
	base := bind
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, strings.TrimRight(base, "/")+"/api/health", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	var body struct {
		Status        string `json:"status"`
		Subscriptions int    `json:"subscriptions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (decode: %v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s on %s (%d subscribers)", body.Status, bind, body.Subscriptions)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "not responding (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "not responding (timed out)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return "not running"
	}
	return err.Error()
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
