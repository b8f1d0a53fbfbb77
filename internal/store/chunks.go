package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// RecordChunk persists a stored chunk. Recording the same chunk_id twice is a
// no-op; inserted reports whether a row was written.
func (s *Store) RecordChunk(ctx context.Context, rec ChunkRecord) (inserted bool, err error) {
	if strings.TrimSpace(rec.ChunkID) == "" {
		return false, errors.New("chunk id is required")
	}
	if rec.Location == "" {
		return false, errors.New("storage location is required")
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO chunks (
            chunk_id, album_id, chunk_index, storage_location, size, plain_size, digest, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(chunk_id) DO NOTHING`,
		rec.ChunkID,
		rec.AlbumID,
		rec.Index,
		rec.Location,
		rec.Size,
		rec.PlainSize,
		nullableString(rec.Digest),
		nowString(),
	)
	if err != nil {
		return false, fmt.Errorf("record chunk %d: %w", rec.Index, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ChunkByIndex returns the record for one chunk of an album, or nil when it
// has not been stored.
func (s *Store) ChunkByIndex(ctx context.Context, albumID int64, index int) (*ChunkRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+chunkColumns+` FROM chunks WHERE album_id = ? AND chunk_index = ?`,
		albumID, index,
	)
	rec, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	return rec, nil
}

// Chunks returns the stored chunk records of an album in index order.
func (s *Store) Chunks(ctx context.Context, albumID int64) ([]*ChunkRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+chunkColumns+` FROM chunks WHERE album_id = ? ORDER BY chunk_index`,
		albumID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []*ChunkRecord
	for rows.Next() {
		rec, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ChunkCount returns how many chunks of an album are stored.
func (s *Store) ChunkCount(ctx context.Context, albumID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM chunks WHERE album_id = ?`, albumID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// CompleteTrack stores a track's position and marks it complete. A position
// already stored for the track is left in place.
func (s *Store) CompleteTrack(ctx context.Context, pos TrackPosition) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO track_positions (
                track_id, start_chunk_index, end_chunk_index, start_byte_offset, end_byte_offset
            ) VALUES (?, ?, ?, ?, ?)
            ON CONFLICT(track_id) DO NOTHING`,
			pos.TrackID, pos.StartChunk, pos.EndChunk, pos.StartOffset, pos.EndOffset,
		); err != nil {
			return fmt.Errorf("record track position: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE tracks SET status = ?, updated_at = ? WHERE id = ?`,
			StatusComplete, nowString(), pos.TrackID,
		)
		if err != nil {
			return fmt.Errorf("complete track: %w", err)
		}
		return expectRow(res, "track", pos.TrackID)
	})
}

// TrackPosition returns the stored position of a track, or nil when the track
// has not completed.
func (s *Store) TrackPosition(ctx context.Context, trackID int64) (*TrackPosition, error) {
	var pos TrackPosition
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT track_id, start_chunk_index, end_chunk_index, start_byte_offset, end_byte_offset
         FROM track_positions WHERE track_id = ?`,
		trackID,
	).Scan(&pos.TrackID, &pos.StartChunk, &pos.EndChunk, &pos.StartOffset, &pos.EndOffset)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track position: %w", err)
	}
	return &pos, nil
}
