package store

import (
	"database/sql"
	"errors"
	"time"
)

const albumColumns = "id, title, source_path, status, chunk_size, total_bytes, total_chunks, error_message, created_at, updated_at"

const trackColumns = "t.id, t.album_id, t.file_id, t.number, t.title, t.status, f.path, t.updated_at"

const chunkColumns = "chunk_id, album_id, chunk_index, storage_location, size, plain_size, digest, created_at"

type scanner interface{ Scan(dest ...any) error }

func scanAlbum(row scanner) (*Album, error) {
	var (
		album      Album
		sourcePath sql.NullString
		statusStr  string
		errMsg     sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := row.Scan(
		&album.ID,
		&album.Title,
		&sourcePath,
		&statusStr,
		&album.ChunkSize,
		&album.TotalBytes,
		&album.TotalChunks,
		&errMsg,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	album.SourcePath = sourcePath.String
	album.Status = Status(statusStr)
	album.ErrorMessage = errMsg.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		album.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		album.UpdatedAt = updated
	}
	return &album, nil
}

func scanTrack(row scanner) (*Track, error) {
	var (
		track      Track
		title      sql.NullString
		statusStr  string
		updatedRaw sql.NullString
	)
	if err := row.Scan(
		&track.ID,
		&track.AlbumID,
		&track.FileID,
		&track.Number,
		&title,
		&statusStr,
		&track.FilePath,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	track.Title = title.String
	track.Status = Status(statusStr)
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		track.UpdatedAt = updated
	}
	return &track, nil
}

func scanChunk(row scanner) (*ChunkRecord, error) {
	var (
		rec        ChunkRecord
		digest     sql.NullString
		createdRaw sql.NullString
	)
	if err := row.Scan(
		&rec.ChunkID,
		&rec.AlbumID,
		&rec.Index,
		&rec.Location,
		&rec.Size,
		&rec.PlainSize,
		&digest,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	rec.Digest = digest.String
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rec.CreatedAt = created
	}
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
