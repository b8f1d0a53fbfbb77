package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Album describes an imported album in a transport-friendly format.
type Album struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	SourcePath   string `json:"sourcePath,omitempty"`
	Status       string `json:"status"`
	ChunkSize    int64  `json:"chunkSize"`
	TotalBytes   int64  `json:"totalBytes"`
	TotalChunks  int    `json:"totalChunks"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Track describes one track of an album.
type Track struct {
	ID        int64  `json:"id"`
	AlbumID   int64  `json:"albumId"`
	Number    int    `json:"number"`
	Title     string `json:"title,omitempty"`
	Status    string `json:"status"`
	File      string `json:"file"`
	Available bool   `json:"available"`
	StreamURL string `json:"streamUrl,omitempty"`
}

// AlbumListResponse wraps a collection of albums.
type AlbumListResponse struct {
	Albums []Album `json:"albums"`
}

// AlbumResponse wraps a single album and its tracks.
type AlbumResponse struct {
	Album  Album   `json:"album"`
	Tracks []Track `json:"tracks"`
}

// TrackListResponse wraps an album's tracks.
type TrackListResponse struct {
	Tracks []Track `json:"tracks"`
}

// ImportRequest starts an import of every eligible file under Path.
type ImportRequest struct {
	Path      string `json:"path"`
	Title     string `json:"title,omitempty"`
	ChunkSize int64  `json:"chunkSize,omitempty"`
}

// ImportResponse reports the scaffold of an accepted import.
type ImportResponse struct {
	AlbumID     int64   `json:"albumId"`
	TotalChunks int     `json:"totalChunks"`
	Tracks      []Track `json:"tracks"`
	EventsURL   string  `json:"eventsUrl"`
}

// HealthResponse is served by /api/health.
type HealthResponse struct {
	Status        string         `json:"status"`
	Subscriptions int            `json:"subscriptions"`
	Albums        map[string]int `json:"albums"`
}

// ErrorResponse carries a failure message and its taxonomy kind.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
