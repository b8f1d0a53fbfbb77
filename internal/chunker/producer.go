package chunker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"spool/internal/discovery"
	"spool/internal/faults"
)

// Chunk is one fixed-size unit of the concatenated stream.
type Chunk struct {
	ID    string
	Index int
	Data  []byte
}

// Gate blocks until the bytes of chunk index may be read. Torrent-backed
// sources use it to wait for the pieces underneath a chunk.
type Gate func(ctx context.Context, index int) error

// Option customizes a Producer.
type Option func(*Producer)

// WithGate installs a readiness gate consulted before each chunk is read.
func WithGate(gate Gate) Option {
	return func(p *Producer) { p.gate = gate }
}

// WithIDFunc overrides chunk identifier generation.
func WithIDFunc(fn func() string) Option {
	return func(p *Producer) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// WithOpener overrides how source files are opened.
func WithOpener(open func(path string) (io.ReadCloser, error)) Option {
	return func(p *Producer) {
		if open != nil {
			p.open = open
		}
	}
}

// Producer reads files sequentially and emits chunks in index order.
// A Producer is single-use.
type Producer struct {
	layout *Layout
	gate   Gate
	newID  func() string
	open   func(path string) (io.ReadCloser, error)
}

// NewProducer validates the file list and chunk size.
func NewProducer(files []discovery.File, chunkSize int64, opts ...Option) (*Producer, error) {
	layout, err := NewLayout(files, chunkSize)
	if err != nil {
		return nil, faults.Wrap(faults.ErrValidation, "chunker", "layout", "", err)
	}
	p := &Producer{
		layout: layout,
		newID:  uuid.NewString,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Layout returns the chunk layout the producer follows.
func (p *Producer) Layout() *Layout { return p.layout }

// Run emits every chunk on out and closes it when done. Cancelling ctx stops
// production without error. A read failure aborts immediately; the chunk in
// flight is discarded.
func (p *Producer) Run(ctx context.Context, out chan<- Chunk) error {
	defer close(out)

	chunkSize := p.layout.ChunkSize
	var (
		buf   []byte
		index int
	)

	emit := func() bool {
		chunk := Chunk{ID: p.newID(), Index: index, Data: buf}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return false
		}
		index++
		buf = nil
		return true
	}

	for _, span := range p.layout.Spans {
		if span.Size == 0 {
			continue
		}
		rc, err := p.open(span.Path)
		if err != nil {
			return faults.Wrap(faults.ErrRead, "chunker", "open", span.Path, err)
		}

		var read int64
		for read < span.Size {
			if buf == nil {
				if p.gate != nil {
					if err := p.gate(ctx, index); err != nil {
						_ = rc.Close()
						if ctx.Err() != nil {
							return nil
						}
						return faults.Wrap(faults.ErrRead, "chunker", "gate", fmt.Sprintf("chunk %d", index), err)
					}
				}
				buf = make([]byte, 0, chunkSize)
			}
			want := int(min(int64(cap(buf)-len(buf)), span.Size-read))
			n, err := io.ReadFull(rc, buf[len(buf):len(buf)+want])
			buf = buf[:len(buf)+n]
			read += int64(n)
			if err != nil {
				_ = rc.Close()
				if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
					err = fmt.Errorf("file shrank to %d of %d bytes", read, span.Size)
				}
				return faults.Wrap(faults.ErrRead, "chunker", "read", span.Path, err)
			}
			if int64(len(buf)) == chunkSize {
				if !emit() {
					_ = rc.Close()
					return nil
				}
			}
		}
		if err := rc.Close(); err != nil {
			return faults.Wrap(faults.ErrRead, "chunker", "close", span.Path, err)
		}
	}

	if len(buf) > 0 {
		emit()
	}
	return nil
}
