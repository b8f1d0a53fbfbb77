package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spool/internal/chunker"
	"spool/internal/encryption"
	"spool/internal/faults"
	"spool/internal/logging"
	"spool/internal/progress"
	"spool/internal/storage"
	"spool/internal/store"
)

// Persister is the slice of the metadata store the pipeline writes through.
type Persister interface {
	CreateAlbumScaffold(ctx context.Context, scaffold store.Scaffold) (*store.Album, []store.Track, error)
	SetAlbumStatus(ctx context.Context, id int64, status store.Status) error
	SetTracksStatus(ctx context.Context, albumID int64, status store.Status) error
	RecordChunk(ctx context.Context, rec store.ChunkRecord) (bool, error)
	CompleteTrack(ctx context.Context, pos store.TrackPosition) error
	FailAlbum(ctx context.Context, id int64, message string) error
}

// ErrCancelled is returned by Handle.Wait when the import was cancelled.
var ErrCancelled = fmt.Errorf("import cancelled: %w", context.Canceled)

// Importer starts album imports. One Importer serves any number of
// concurrent imports.
type Importer struct {
	store   Persister
	backend storage.Backend
	enc     encryption.Encryptor
	hub     *progress.Hub
	opts    Options
	logger  *slog.Logger
}

// New wires the pipeline dependencies.
func New(st Persister, backend storage.Backend, enc encryption.Encryptor, hub *progress.Hub, opts Options, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if hub == nil {
		hub = progress.NewHub(logger)
	}
	return &Importer{
		store:   st,
		backend: backend,
		enc:     enc,
		hub:     hub,
		opts:    opts.normalized(),
		logger:  logging.NewComponentLogger(logger, "importer"),
	}
}

// Hub returns the hub progress is published through.
func (imp *Importer) Hub() *progress.Hub { return imp.hub }

// Start validates req, writes the album scaffold and launches the pipeline in
// the background. The import runs until it finishes, fails, ctx is cancelled
// or Handle.Cancel is called.
func (imp *Importer) Start(ctx context.Context, req Request) (*Handle, error) {
	p, err := imp.preflight(req)
	if err != nil {
		return nil, err
	}

	scaffold := store.Scaffold{
		Title:       p.title,
		SourcePath:  p.sourcePath,
		ChunkSize:   p.layout.ChunkSize,
		TotalBytes:  p.layout.Total,
		TotalChunks: p.layout.ChunkCount(),
	}
	fileIndex := make(map[string]int, len(p.layout.Spans))
	for i, span := range p.layout.Spans {
		fileIndex[span.Path] = i
		scaffold.Files = append(scaffold.Files, store.ScaffoldFile{Path: span.Path, Offset: span.Offset, Size: span.Size})
	}
	for _, tr := range p.tracks {
		scaffold.Tracks = append(scaffold.Tracks, store.ScaffoldTrack{Number: tr.Number, Title: tr.Title, File: fileIndex[tr.Path]})
	}

	album, tracks, err := imp.store.CreateAlbumScaffold(ctx, scaffold)
	if err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, "importer", "scaffold", "", err)
	}

	bindings := make([]chunker.TrackFile, len(tracks))
	ids := make([]int64, len(tracks))
	positions := make(map[int64]chunker.Position, len(tracks))
	for i, tr := range tracks {
		bindings[i] = chunker.TrackFile{TrackID: tr.ID, Path: tr.FilePath}
		ids[i] = tr.ID
		span, _ := p.layout.SpanOf(tr.FilePath)
		positions[tr.ID] = p.layout.Position(span)
	}
	ownership, err := p.layout.Ownership(bindings)
	if err != nil {
		return nil, faults.Wrap(faults.ErrValidation, "importer", "ownership", "", err)
	}

	base, cancel := context.WithCancel(ctx)
	h := &Handle{
		AlbumID:     album.ID,
		Tracks:      tracks,
		TotalChunks: p.layout.ChunkCount(),
		sub:         imp.hub.Subscribe(progress.ByAlbum(album.ID), p.buffer),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	job := &job{
		imp:       imp,
		plan:      p,
		album:     album,
		index:     progress.NewIndex(p.layout.ChunkCount(), ownership, ids),
		positions: positions,
		logger:    imp.logger.With(logging.Int64(logging.FieldAlbumID, album.ID)),
	}
	go job.run(base, h)
	return h, nil
}

// Handle tracks one running import.
type Handle struct {
	AlbumID     int64
	Tracks      []store.Track
	TotalChunks int

	sub    *progress.Subscription
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Events streams the album's events. The channel is closed after the Complete
// or Failed event, or after Detach.
func (h *Handle) Events() <-chan progress.Event { return h.sub.Events() }

// Detach stops event delivery to this handle. The import keeps running.
func (h *Handle) Detach() { h.sub.Close() }

// Cancel stops the import. The album is marked failed.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the import has reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the import finishes and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

type job struct {
	imp       *Importer
	plan      *plan
	album     *store.Album
	index     *progress.Index
	positions map[int64]chunker.Position
	logger    *slog.Logger
}

type sealedChunk struct {
	chunker.Chunk
	frame []byte
}

type storedChunk struct {
	sealedChunk
	location string
}

func (j *job) run(base context.Context, h *Handle) {
	defer close(h.done)
	defer h.sub.Close()
	defer h.cancel()

	started := time.Now()
	albumID := j.album.ID
	j.logger.Info("import started",
		logging.String("title", j.album.Title),
		logging.Int("chunks", j.index.Total()),
		logging.Int("tracks", len(h.Tracks)),
		logging.Int64("bytes", j.plan.layout.Total),
	)

	err := j.execute(base)
	if err == nil {
		if err = j.imp.store.SetAlbumStatus(base, albumID, store.StatusComplete); err != nil {
			err = faults.Wrap(faults.ErrPersistence, "importer", "complete album", "", err)
		}
	}
	if err == nil {
		j.imp.hub.Publish(progress.Complete(albumID, j.index.Total()))
		j.logger.Info("import complete",
			logging.Int("chunks", j.index.Total()),
			logging.Duration("elapsed", time.Since(started)),
		)
		return
	}

	if base.Err() != nil && errors.Is(err, context.Canceled) {
		err = ErrCancelled
	}
	message := err.Error()
	if ferr := j.imp.store.FailAlbum(context.WithoutCancel(base), albumID, message); ferr != nil {
		j.logger.Error("mark album failed", logging.Error(ferr))
	}
	j.imp.hub.Publish(progress.Failed(albumID, err))
	j.logger.Error("import failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, faults.Kind(err)),
		logging.Int("chunks_done", j.index.Snapshot().Current),
		logging.Duration("elapsed", time.Since(started)),
	)
	h.err = err
}

func (j *job) execute(base context.Context) error {
	albumID := j.album.ID
	if err := j.imp.store.SetAlbumStatus(base, albumID, store.StatusImporting); err != nil {
		return faults.Wrap(faults.ErrPersistence, "importer", "start album", "", err)
	}
	if err := j.imp.store.SetTracksStatus(base, albumID, store.StatusImporting); err != nil {
		return faults.Wrap(faults.ErrPersistence, "importer", "start tracks", "", err)
	}
	j.imp.hub.Publish(progress.Started(albumID, j.index.Total()))

	for _, id := range j.index.Unowned() {
		if err := j.completeTrack(base, id); err != nil {
			return err
		}
	}

	ctx, abort := context.WithCancel(base)
	defer abort()

	var (
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			if base.Err() != nil {
				err = ErrCancelled
			}
			firstErr = err
			abort()
		})
	}

	producer, err := chunker.NewProducer(j.plan.files, j.plan.layout.ChunkSize, chunker.WithGate(j.plan.gate))
	if err != nil {
		return err
	}

	depth := j.imp.opts.QueueDepth
	chunks := make(chan chunker.Chunk, depth)
	sealed := make(chan sealedChunk, depth)
	stored := make(chan storedChunk, depth)

	var producers sync.WaitGroup
	producers.Go(func() {
		if err := producer.Run(ctx, chunks); err != nil {
			fail(err)
		}
	})

	var encrypters sync.WaitGroup
	for range j.imp.opts.EncryptWorkers {
		encrypters.Go(func() { j.encrypt(ctx, chunks, sealed, fail) })
	}
	go func() {
		encrypters.Wait()
		close(sealed)
	}()

	var uploaders sync.WaitGroup
	for range j.imp.opts.UploadWorkers {
		uploaders.Go(func() { j.upload(ctx, sealed, stored, fail) })
	}
	go func() {
		uploaders.Wait()
		close(stored)
	}()

	for sc := range stored {
		if ctx.Err() != nil {
			continue
		}
		if err := j.collect(ctx, sc); err != nil {
			fail(err)
		}
	}
	producers.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := base.Err(); err != nil {
		return err
	}
	if snap := j.index.Snapshot(); snap.Current != snap.Total {
		return faults.Wrap(faults.ErrValidation, "importer", "finish",
			fmt.Sprintf("%d of %d chunks stored", snap.Current, snap.Total), nil)
	}
	return nil
}

func (j *job) encrypt(ctx context.Context, in <-chan chunker.Chunk, out chan<- sealedChunk, fail func(error)) {
	for c := range in {
		frame, err := j.imp.enc.Encrypt(c.Data)
		if err != nil {
			fail(faults.Wrap(faults.ErrCrypto, "importer", "encrypt", fmt.Sprintf("chunk %d", c.Index), err))
			return
		}
		select {
		case out <- sealedChunk{Chunk: c, frame: frame}:
		case <-ctx.Done():
			return
		}
	}
}

func (j *job) upload(ctx context.Context, in <-chan sealedChunk, out chan<- storedChunk, fail func(error)) {
	for sc := range in {
		if ctx.Err() != nil {
			return
		}
		location, err := j.imp.backend.Upload(ctx, sc.ID, sc.frame)
		if err != nil {
			fail(faults.Wrap(faults.ErrTransport, "importer", "upload", fmt.Sprintf("chunk %d", sc.Index), err))
			return
		}
		select {
		case out <- storedChunk{sealedChunk: sc, location: location}:
		case <-ctx.Done():
			return
		}
	}
}

func (j *job) collect(ctx context.Context, sc storedChunk) error {
	albumID := j.album.ID
	inserted, err := j.imp.store.RecordChunk(ctx, store.ChunkRecord{
		ChunkID:   sc.ID,
		AlbumID:   albumID,
		Index:     sc.Index,
		Location:  sc.location,
		Size:      int64(len(sc.frame)),
		PlainSize: int64(len(sc.Data)),
		Digest:    encryption.Digest(sc.frame),
	})
	if err != nil {
		return faults.Wrap(faults.ErrPersistence, "importer", "record chunk", fmt.Sprintf("chunk %d", sc.Index), err)
	}
	if !inserted {
		j.logger.Warn("chunk already recorded", logging.Int(logging.FieldChunkIndex, sc.Index), logging.String("chunk_id", sc.ID))
	}

	update, ok := j.index.Complete(sc.Index)
	if !ok {
		j.logger.Warn("duplicate chunk completion", logging.Int(logging.FieldChunkIndex, sc.Index))
		return nil
	}
	for _, id := range update.Completed {
		if err := j.completeTrack(ctx, id); err != nil {
			return err
		}
	}
	j.imp.hub.Publish(progress.ProgressOf(albumID, update.Snapshot))
	return nil
}

func (j *job) completeTrack(ctx context.Context, trackID int64) error {
	pos := store.TrackPosition{TrackID: trackID, Position: j.positions[trackID]}
	if err := j.imp.store.CompleteTrack(ctx, pos); err != nil {
		return faults.Wrap(faults.ErrPersistence, "importer", "complete track", fmt.Sprintf("track %d", trackID), err)
	}
	j.imp.hub.Publish(progress.TrackComplete(j.album.ID, trackID))
	j.logger.Debug("track available", logging.Int64(logging.FieldTrackID, trackID))
	return nil
}
