package api

import (
	"fmt"
	"path/filepath"

	"spool/internal/store"
)

// FromAlbum converts a store album to its API representation.
func FromAlbum(album *store.Album) Album {
	if album == nil {
		return Album{}
	}
	dto := Album{
		ID:           album.ID,
		Title:        album.Title,
		SourcePath:   album.SourcePath,
		Status:       string(album.Status),
		ChunkSize:    album.ChunkSize,
		TotalBytes:   album.TotalBytes,
		TotalChunks:  album.TotalChunks,
		ErrorMessage: album.ErrorMessage,
	}
	if !album.CreatedAt.IsZero() {
		dto.CreatedAt = album.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !album.UpdatedAt.IsZero() {
		dto.UpdatedAt = album.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromAlbums converts a slice of albums.
func FromAlbums(albums []*store.Album) []Album {
	out := make([]Album, 0, len(albums))
	for _, album := range albums {
		if album == nil {
			continue
		}
		out = append(out, FromAlbum(album))
	}
	return out
}

// FromTrack converts a store track. Only completed tracks get a stream URL.
func FromTrack(track *store.Track) Track {
	if track == nil {
		return Track{}
	}
	dto := Track{
		ID:        track.ID,
		AlbumID:   track.AlbumID,
		Number:    track.Number,
		Title:     track.Title,
		Status:    string(track.Status),
		File:      filepath.Base(track.FilePath),
		Available: track.Status == store.StatusComplete,
	}
	if dto.Available {
		dto.StreamURL = fmt.Sprintf("/api/tracks/%d/stream", track.ID)
	}
	return dto
}

// FromTracks converts a slice of tracks.
func FromTracks(tracks []*store.Track) []Track {
	out := make([]Track, 0, len(tracks))
	for _, track := range tracks {
		if track == nil {
			continue
		}
		out = append(out, FromTrack(track))
	}
	return out
}

// MergeAlbumStats exposes counts keyed by status string, with every status
// present.
func MergeAlbumStats(stats map[store.Status]int) map[string]int {
	out := map[string]int{
		string(store.StatusQueued):    0,
		string(store.StatusImporting): 0,
		string(store.StatusComplete):  0,
		string(store.StatusFailed):    0,
	}
	for status, n := range stats {
		out[string(status)] = n
	}
	return out
}
