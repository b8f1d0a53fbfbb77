package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateAlbumScaffold writes the album, its files and its tracks in the
// queued state inside one transaction. The returned tracks carry their
// assigned identifiers in the same order as scaffold.Tracks.
func (s *Store) CreateAlbumScaffold(ctx context.Context, scaffold Scaffold) (*Album, []Track, error) {
	if strings.TrimSpace(scaffold.Title) == "" {
		return nil, nil, errors.New("album title is required")
	}
	if scaffold.ChunkSize <= 0 {
		return nil, nil, fmt.Errorf("chunk size must be positive, got %d", scaffold.ChunkSize)
	}
	for i, tr := range scaffold.Tracks {
		if tr.File < 0 || tr.File >= len(scaffold.Files) {
			return nil, nil, fmt.Errorf("track %d references file %d of %d", i, tr.File, len(scaffold.Files))
		}
	}

	var (
		albumID int64
		tracks  []Track
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := nowString()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO albums (
                title, source_path, status, chunk_size, total_bytes, total_chunks,
                created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			scaffold.Title,
			nullableString(scaffold.SourcePath),
			StatusQueued,
			scaffold.ChunkSize,
			scaffold.TotalBytes,
			scaffold.TotalChunks,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert album: %w", err)
		}
		if albumID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("album id: %w", err)
		}

		fileIDs := make([]int64, len(scaffold.Files))
		for i, f := range scaffold.Files {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO album_files (album_id, ordinal, path, byte_offset, size) VALUES (?, ?, ?, ?, ?)`,
				albumID, i, f.Path, f.Offset, f.Size,
			)
			if err != nil {
				return fmt.Errorf("insert file %s: %w", f.Path, err)
			}
			if fileIDs[i], err = res.LastInsertId(); err != nil {
				return fmt.Errorf("file id: %w", err)
			}
		}

		tracks = make([]Track, 0, len(scaffold.Tracks))
		for _, tr := range scaffold.Tracks {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO tracks (album_id, file_id, number, title, status, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
				albumID, fileIDs[tr.File], tr.Number, nullableString(tr.Title), StatusQueued, now,
			)
			if err != nil {
				return fmt.Errorf("insert track %d: %w", tr.Number, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("track id: %w", err)
			}
			tracks = append(tracks, Track{
				ID:       id,
				AlbumID:  albumID,
				FileID:   fileIDs[tr.File],
				Number:   tr.Number,
				Title:    tr.Title,
				Status:   StatusQueued,
				FilePath: scaffold.Files[tr.File].Path,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	album, err := s.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, nil, err
	}
	return album, tracks, nil
}

// GetAlbum fetches an album by identifier. It returns nil when none exists.
func (s *Store) GetAlbum(ctx context.Context, id int64) (*Album, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
	album, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get album: %w", err)
	}
	return album, nil
}

// ListAlbums returns albums ordered by identifier, optionally filtered by
// status.
func (s *Store) ListAlbums(ctx context.Context, statuses ...Status) ([]*Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ",") + `)`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	var albums []*Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, album)
	}
	return albums, rows.Err()
}

// SetAlbumStatus records an album status transition.
func (s *Store) SetAlbumStatus(ctx context.Context, id int64, status Status) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE albums SET status = ?, updated_at = ? WHERE id = ?`,
		status, nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("set album status: %w", err)
	}
	return expectRow(res, "album", id)
}

// FailAlbum marks the album failed with message and fails every track that
// has not completed. Already completed tracks keep their status and position.
func (s *Store) FailAlbum(ctx context.Context, id int64, message string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		now := nowString()
		res, err := tx.ExecContext(ctx,
			`UPDATE albums SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
			StatusFailed, nullableString(message), now, id,
		)
		if err != nil {
			return fmt.Errorf("fail album: %w", err)
		}
		if err := expectRow(res, "album", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tracks SET status = ?, updated_at = ? WHERE album_id = ? AND status != ?`,
			StatusFailed, now, id, StatusComplete,
		); err != nil {
			return fmt.Errorf("fail tracks: %w", err)
		}
		return nil
	})
}

// ListFiles returns an album's source files in stream order.
func (s *Store) ListFiles(ctx context.Context, albumID int64) ([]AlbumFile, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, album_id, ordinal, path, byte_offset, size FROM album_files WHERE album_id = ? ORDER BY ordinal`,
		albumID,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []AlbumFile
	for rows.Next() {
		var f AlbumFile
		if err := rows.Scan(&f.ID, &f.AlbumID, &f.Ordinal, &f.Path, &f.Offset, &f.Size); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// ListTracks returns an album's tracks ordered by number.
func (s *Store) ListTracks(ctx context.Context, albumID int64) ([]*Track, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+trackColumns+` FROM tracks t JOIN album_files f ON f.id = t.file_id
         WHERE t.album_id = ? ORDER BY t.number, t.id`,
		albumID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

// GetTrack fetches a track by identifier. It returns nil when none exists.
func (s *Store) GetTrack(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+trackColumns+` FROM tracks t JOIN album_files f ON f.id = t.file_id WHERE t.id = ?`,
		id,
	)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return track, nil
}

// SetTracksStatus moves every queued or importing track of an album to status.
func (s *Store) SetTracksStatus(ctx context.Context, albumID int64, status Status) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	if _, err := s.execWithRetry(ctx,
		`UPDATE tracks SET status = ?, updated_at = ? WHERE album_id = ? AND status IN (?, ?)`,
		status, nowString(), albumID, StatusQueued, StatusImporting,
	); err != nil {
		return fmt.Errorf("set tracks status: %w", err)
	}
	return nil
}

func expectRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d not found", kind, id)
	}
	return nil
}
