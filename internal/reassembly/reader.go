package reassembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"spool/internal/chunker"
	"spool/internal/encryption"
	"spool/internal/faults"
	"spool/internal/logging"
	"spool/internal/storage"
	"spool/internal/store"
)

// ChunkSource resolves stored chunk records.
type ChunkSource interface {
	ChunkByIndex(ctx context.Context, albumID int64, index int) (*store.ChunkRecord, error)
}

// Metadata is the read-only view of persisted metadata a Service needs.
type Metadata interface {
	ChunkSource
	GetTrack(ctx context.Context, id int64) (*store.Track, error)
	GetAlbum(ctx context.Context, id int64) (*store.Album, error)
	TrackPosition(ctx context.Context, trackID int64) (*store.TrackPosition, error)
}

// Service opens readers over stored albums.
type Service struct {
	meta    Metadata
	backend storage.Backend
	enc     encryption.Encryptor
	logger  *slog.Logger
}

// NewService wires the metadata, storage and decryption capabilities.
func NewService(meta Metadata, backend storage.Backend, enc encryption.Encryptor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		meta:    meta,
		backend: backend,
		enc:     enc,
		logger:  logging.NewComponentLogger(logger, "reassembly"),
	}
}

// Open returns a reader over pos within an album stored with chunkSize.
func (s *Service) Open(ctx context.Context, albumID, chunkSize int64, pos chunker.Position) *Reader {
	return &Reader{
		ctx:       ctx,
		source:    s.meta,
		backend:   s.backend,
		enc:       s.enc,
		logger:    s.logger,
		albumID:   albumID,
		chunkSize: chunkSize,
		pos:       pos,
		size:      pos.Length(chunkSize),
		cached:    -1,
	}
}

// OpenTrack returns a reader over a completed track.
func (s *Service) OpenTrack(ctx context.Context, trackID int64) (*Reader, *store.Track, error) {
	track, err := s.meta.GetTrack(ctx, trackID)
	if err != nil {
		return nil, nil, faults.Wrap(faults.ErrPersistence, "reassembly", "get track", "", err)
	}
	if track == nil {
		return nil, nil, faults.Wrap(faults.ErrNotFound, "reassembly", "get track", fmt.Sprintf("track %d", trackID), nil)
	}
	album, err := s.meta.GetAlbum(ctx, track.AlbumID)
	if err != nil {
		return nil, nil, faults.Wrap(faults.ErrPersistence, "reassembly", "get album", "", err)
	}
	if album == nil {
		return nil, nil, faults.Wrap(faults.ErrNotFound, "reassembly", "get album", fmt.Sprintf("album %d", track.AlbumID), nil)
	}
	pos, err := s.meta.TrackPosition(ctx, trackID)
	if err != nil {
		return nil, nil, faults.Wrap(faults.ErrPersistence, "reassembly", "get position", "", err)
	}
	if pos == nil {
		return nil, nil, faults.Wrap(faults.ErrNotFound, "reassembly", "get position",
			fmt.Sprintf("track %d is %s", trackID, track.Status), nil)
	}
	return s.Open(ctx, album.ID, album.ChunkSize, pos.Position), track, nil
}

// ReadRange returns exactly the bytes [offset, offset+length) of pos, clipped
// to the end of the range.
func (s *Service) ReadRange(ctx context.Context, albumID, chunkSize int64, pos chunker.Position, offset, length int64) ([]byte, error) {
	return s.Open(ctx, albumID, chunkSize, pos).ReadRange(offset, length)
}

// Reader streams one track position. It implements io.ReadSeeker and is not
// safe for concurrent use.
type Reader struct {
	ctx       context.Context
	source    ChunkSource
	backend   storage.Backend
	enc       encryption.Encryptor
	logger    *slog.Logger
	albumID   int64
	chunkSize int64
	pos       chunker.Position
	size      int64
	offset    int64

	cached int
	data   []byte
}

// Size returns the total number of bytes the reader covers.
func (r *Reader) Size() int64 { return r.size }

// Position returns the chunk coordinates the reader covers.
func (r *Reader) Position() chunker.Position { return r.pos }

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.offset >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	abs := r.pos.StreamOffset(r.chunkSize) + r.offset
	index := int(abs / r.chunkSize)
	within := abs % r.chunkSize

	data, err := r.chunk(index)
	if err != nil {
		return 0, err
	}
	if within >= int64(len(data)) {
		return 0, faults.Wrap(faults.ErrValidation, "reassembly", "read",
			fmt.Sprintf("chunk %d holds %d bytes, need offset %d", index, len(data), within), nil)
	}
	end := min(int64(len(data)), within+(r.size-r.offset))
	n := copy(p, data[within:end])
	r.offset += int64(n)
	return n, nil
}

// Seek implements io.Seeker. Seeking past the end is allowed; the next Read
// returns io.EOF.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = r.offset + offset
	case io.SeekEnd:
		next = r.size + offset
	default:
		return r.offset, fmt.Errorf("reassembly: invalid whence %d", whence)
	}
	if next < 0 {
		return r.offset, errors.New("reassembly: negative position")
	}
	r.offset = next
	return next, nil
}

// ReadRange seeks to offset and reads up to length bytes. Reading zero bytes
// at the end of the range is valid; an offset beyond it is not.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, faults.Wrap(faults.ErrValidation, "reassembly", "read range",
			fmt.Sprintf("offset %d length %d", offset, length), nil)
	}
	if offset > r.size {
		return nil, faults.Wrap(faults.ErrValidation, "reassembly", "read range",
			fmt.Sprintf("offset %d beyond size %d", offset, r.size), nil)
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, min(length, r.size-offset))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close drops the cached chunk.
func (r *Reader) Close() error {
	r.data = nil
	r.cached = -1
	return nil
}

func (r *Reader) chunk(index int) ([]byte, error) {
	if index == r.cached {
		return r.data, nil
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}

	rec, err := r.source.ChunkByIndex(r.ctx, r.albumID, index)
	if err != nil {
		return nil, faults.Wrap(faults.ErrPersistence, "reassembly", "lookup", fmt.Sprintf("chunk %d", index), err)
	}
	if rec == nil {
		return nil, faults.Wrap(faults.ErrNotFound, "reassembly", "lookup", fmt.Sprintf("chunk %d of album %d", index, r.albumID), nil)
	}

	frame, err := r.backend.Download(r.ctx, rec.Location)
	if err != nil {
		return nil, faults.Wrap(faults.ErrTransport, "reassembly", "download", fmt.Sprintf("chunk %d", index), err)
	}
	if rec.Size > 0 && int64(len(frame)) != rec.Size {
		return nil, faults.Wrap(faults.ErrTransport, "reassembly", "verify",
			fmt.Sprintf("chunk %d is %d bytes, recorded %d", index, len(frame), rec.Size), nil)
	}
	if err := encryption.VerifyDigest(frame, rec.Digest); err != nil {
		return nil, faults.Wrap(faults.ErrTransport, "reassembly", "verify", fmt.Sprintf("chunk %d", index), err)
	}

	plain, err := r.enc.Decrypt(frame)
	if err != nil {
		return nil, faults.Wrap(faults.ErrCrypto, "reassembly", "decrypt", fmt.Sprintf("chunk %d", index), err)
	}
	if rec.PlainSize > 0 && int64(len(plain)) != rec.PlainSize {
		return nil, faults.Wrap(faults.ErrCrypto, "reassembly", "decrypt",
			fmt.Sprintf("chunk %d decrypted to %d bytes, recorded %d", index, len(plain), rec.PlainSize), nil)
	}
	if index < r.pos.EndChunk && int64(len(plain)) != r.chunkSize {
		return nil, faults.Wrap(faults.ErrValidation, "reassembly", "decrypt",
			fmt.Sprintf("chunk %d is %d bytes, expected %d", index, len(plain), r.chunkSize), nil)
	}

	r.logger.Debug("chunk fetched",
		logging.Int64(logging.FieldAlbumID, r.albumID),
		logging.Int(logging.FieldChunkIndex, index),
		logging.Int("bytes", len(plain)),
	)
	r.cached = index
	r.data = plain
	return plain, nil
}
