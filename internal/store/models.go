package store

import (
	"strings"
	"time"

	"spool/internal/chunker"
)

// Status is the lifecycle state shared by albums and tracks.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusImporting Status = "importing"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

var statusSet = map[Status]struct{}{
	StatusQueued:    {},
	StatusImporting: {},
	StatusComplete:  {},
	StatusFailed:    {},
}

// ParseStatus normalizes a textual status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Album is one imported source.
type Album struct {
	ID           int64
	Title        string
	SourcePath   string
	Status       Status
	ChunkSize    int64
	TotalBytes   int64
	TotalChunks  int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AlbumFile is a source file and its span in the album's byte stream.
type AlbumFile struct {
	ID      int64
	AlbumID int64
	Ordinal int
	Path    string
	Offset  int64
	Size    int64
}

// Track is a playable unit backed by one album file. Several tracks may share
// a file.
type Track struct {
	ID        int64
	AlbumID   int64
	FileID    int64
	Number    int
	Title     string
	Status    Status
	FilePath  string
	UpdatedAt time.Time
}

// ChunkRecord is the persisted location of one sealed chunk.
type ChunkRecord struct {
	ChunkID   string
	AlbumID   int64
	Index     int
	Location  string
	Size      int64
	PlainSize int64
	Digest    string
	CreatedAt time.Time
}

// TrackPosition is a track's byte range in chunk coordinates.
type TrackPosition struct {
	TrackID int64
	chunker.Position
}

// ScaffoldFile describes a file for CreateAlbumScaffold.
type ScaffoldFile struct {
	Path   string
	Offset int64
	Size   int64
}

// ScaffoldTrack describes a track for CreateAlbumScaffold. File indexes into
// Scaffold.Files.
type ScaffoldTrack struct {
	Number int
	Title  string
	File   int
}

// Scaffold is everything written before the first chunk is produced.
type Scaffold struct {
	Title       string
	SourcePath  string
	ChunkSize   int64
	TotalBytes  int64
	TotalChunks int
	Files       []ScaffoldFile
	Tracks      []ScaffoldTrack
}
