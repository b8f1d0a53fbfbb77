package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const localScheme = "local:"

// Local stores each chunk as a file under Root, fanned out by the first four
// characters of the chunk identifier.
type Local struct {
	root string
}

// NewLocal creates root if needed and returns a backend rooted there.
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage: local root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute object directory.
func (l *Local) Root() string { return l.root }

// Describe implements Describer.
func (l *Local) Describe() string { return "local:" + l.root }

// Upload writes data via a temp file and rename so a crash never leaves a
// partial object at the final path.
func (l *Local) Upload(ctx context.Context, chunkID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := objectPath(chunkID)
	if err != nil {
		return "", err
	}
	final := filepath.Join(l.root, rel)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(final), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		cleanup()
		return "", fmt.Errorf("commit object: %w", err)
	}
	return localScheme + filepath.ToSlash(rel), nil
}

// Download reads the object named by a locator returned from Upload.
func (l *Local) Download(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.resolve(location)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// FreeBytes reports space available to unprivileged writers on the root's
// filesystem.
func (l *Local) FreeBytes() (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(l.root, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", l.root, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func (l *Local) resolve(location string) (string, error) {
	rel, ok := strings.CutPrefix(location, localScheme)
	if !ok || rel == "" {
		return "", fmt.Errorf("storage: unsupported locator %q", location)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: locator %q escapes object root", location)
	}
	return filepath.Join(l.root, clean), nil
}

func objectPath(chunkID string) (string, error) {
	id := strings.TrimSpace(chunkID)
	if len(id) < 4 || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("storage: invalid chunk id %q", chunkID)
	}
	return filepath.Join(id[:2], id[2:4], id), nil
}
