package api

import (
	"context"

	"spool/internal/store"
)

// AlbumReader abstracts the metadata queries the API needs.
type AlbumReader interface {
	ListAlbums(ctx context.Context, statuses ...store.Status) ([]*store.Album, error)
	GetAlbum(ctx context.Context, id int64) (*store.Album, error)
	ListTracks(ctx context.Context, albumID int64) ([]*store.Track, error)
	GetTrack(ctx context.Context, id int64) (*store.Track, error)
	Stats(ctx context.Context) (map[store.Status]int, error)
}

// AlbumService exposes read-only album operations returning API DTOs.
type AlbumService struct {
	store AlbumReader
}

// NewAlbumService constructs an AlbumService around the provided reader.
func NewAlbumService(store AlbumReader) *AlbumService {
	if store == nil {
		return nil
	}
	return &AlbumService{store: store}
}

// List returns albums filtered by status.
func (s *AlbumService) List(ctx context.Context, statuses ...store.Status) ([]Album, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	albums, err := s.store.ListAlbums(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromAlbums(albums), nil
}

// Describe fetches one album with its tracks. It returns nil when the album
// does not exist.
func (s *AlbumService) Describe(ctx context.Context, id int64) (*AlbumResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	album, err := s.store.GetAlbum(ctx, id)
	if err != nil || album == nil {
		return nil, err
	}
	tracks, err := s.store.ListTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AlbumResponse{Album: FromAlbum(album), Tracks: FromTracks(tracks)}, nil
}

// Tracks lists an album's tracks. ok is false when the album does not exist.
func (s *AlbumService) Tracks(ctx context.Context, albumID int64) (tracks []Track, ok bool, err error) {
	if s == nil || s.store == nil {
		return nil, false, nil
	}
	album, err := s.store.GetAlbum(ctx, albumID)
	if err != nil || album == nil {
		return nil, false, err
	}
	rows, err := s.store.ListTracks(ctx, albumID)
	if err != nil {
		return nil, true, err
	}
	return FromTracks(rows), true, nil
}

// Stats returns album counts keyed by status string.
func (s *AlbumService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeAlbumStats(stats), nil
}
