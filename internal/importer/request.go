package importer

import (
	"fmt"
	"strings"

	"spool/internal/chunker"
	"spool/internal/config"
	"spool/internal/discovery"
	"spool/internal/encryption"
	"spool/internal/faults"
	"spool/internal/storage"
)

// Request describes one album import.
type Request struct {
	Title      string
	SourcePath string
	Files      []discovery.File
	// Tracks maps tracks to files. Empty means discovery.Tracks(Files).
	Tracks []discovery.TrackSource
	// ChunkSize overrides Options.ChunkSize when positive.
	ChunkSize int64
	// Gate, when set, is consulted before each chunk is read. Torrent
	// sources pass pieces.Gate here.
	Gate chunker.Gate
	// EventBuffer is the capacity of the handle's event channel.
	EventBuffer int
}

// Options are the pipeline settings shared by every import.
type Options struct {
	ChunkSize      int64
	EncryptWorkers int
	UploadWorkers  int
	QueueDepth     int
	MinFreeBytes   uint64
}

// OptionsFromConfig reads the pipeline section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ChunkSize:      int64(cfg.Pipeline.ChunkSizeBytes),
		EncryptWorkers: cfg.Pipeline.EncryptWorkers,
		UploadWorkers:  cfg.Pipeline.UploadWorkers,
		QueueDepth:     cfg.Pipeline.QueueDepth,
		MinFreeBytes:   cfg.MinFreeBytes(),
	}
}

func (o Options) normalized() Options {
	if o.EncryptWorkers < 1 {
		o.EncryptWorkers = 1
	}
	if o.UploadWorkers < 1 {
		o.UploadWorkers = 1
	}
	if o.QueueDepth < 1 {
		o.QueueDepth = 1
	}
	return o
}

const defaultEventBuffer = 64

// plan is a validated request.
type plan struct {
	title      string
	sourcePath string
	files      []discovery.File
	tracks     []discovery.TrackSource
	layout     *chunker.Layout
	gate       chunker.Gate
	buffer     int
}

func (imp *Importer) preflight(req Request) (*plan, error) {
	if len(req.Files) == 0 {
		return nil, faults.Wrap(faults.ErrValidation, "importer", "preflight", "no source files", nil)
	}
	chunkSize := imp.opts.ChunkSize
	if req.ChunkSize != 0 {
		chunkSize = req.ChunkSize
	}
	if chunkSize <= 0 {
		return nil, faults.Wrap(faults.ErrValidation, "importer", "preflight",
			fmt.Sprintf("chunk size must be positive, got %d", chunkSize), nil)
	}
	layout, err := chunker.NewLayout(req.Files, chunkSize)
	if err != nil {
		return nil, faults.Wrap(faults.ErrValidation, "importer", "preflight", "", err)
	}

	tracks := req.Tracks
	if len(tracks) == 0 {
		if tracks, err = discovery.Tracks(req.Files); err != nil {
			return nil, faults.Wrap(faults.ErrRead, "importer", "preflight", "derive tracks", err)
		}
	}
	for _, tr := range tracks {
		if _, ok := layout.SpanOf(tr.Path); !ok {
			return nil, faults.Wrap(faults.ErrValidation, "importer", "preflight",
				fmt.Sprintf("track %d references %s, which is not a source file", tr.Number, tr.Path), nil)
		}
	}

	if reporter, ok := imp.backend.(storage.SpaceReporter); ok {
		free, err := reporter.FreeBytes()
		if err != nil {
			return nil, faults.Wrap(faults.ErrTransport, "importer", "preflight", "free space", err)
		}
		need := uint64(layout.Total) + uint64(layout.ChunkCount())*encryption.Overhead + imp.opts.MinFreeBytes
		if free < need {
			return nil, faults.Wrap(faults.ErrValidation, "importer", "preflight",
				fmt.Sprintf("storage has %d bytes free, import needs %d", free, need), nil)
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		if req.SourcePath != "" {
			title = discovery.InferAlbumTitle(req.SourcePath)
		} else {
			title = "Unknown Album"
		}
	}
	buffer := req.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &plan{
		title:      title,
		sourcePath: req.SourcePath,
		files:      req.Files,
		tracks:     tracks,
		layout:     layout,
		gate:       req.Gate,
		buffer:     buffer,
	}, nil
}
