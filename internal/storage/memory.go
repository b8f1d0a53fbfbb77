package storage

import (
	"bytes"
	"context"
	"fmt"
	"sync"
)

const memoryScheme = "mem:"

// Memory keeps objects in a map. The zero value is not usable; call NewMemory.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	uploads int

	failUpload   func(chunkID string) error
	failDownload func(location string) error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Describe implements Describer.
func (m *Memory) Describe() string { return "memory" }

// FailUploads installs a hook consulted before each upload. A non-nil return
// fails that upload.
func (m *Memory) FailUploads(fn func(chunkID string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpload = fn
}

// FailDownloads installs a hook consulted before each download.
func (m *Memory) FailDownloads(fn func(location string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDownload = fn
}

// Upload stores a copy of data.
func (m *Memory) Upload(ctx context.Context, chunkID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpload != nil {
		if err := m.failUpload(chunkID); err != nil {
			return "", err
		}
	}
	location := memoryScheme + chunkID
	m.objects[location] = bytes.Clone(data)
	m.uploads++
	return location, nil
}

// Download returns a copy of the stored object.
func (m *Memory) Download(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failDownload != nil {
		if err := m.failDownload(location); err != nil {
			return nil, err
		}
	}
	data, ok := m.objects[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return bytes.Clone(data), nil
}

// Put replaces the object at location. Tests use it to corrupt stored chunks.
func (m *Memory) Put(location string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[location] = bytes.Clone(data)
}

// Delete removes the object at location.
func (m *Memory) Delete(location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, location)
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Uploads returns how many successful uploads have been accepted.
func (m *Memory) Uploads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads
}
