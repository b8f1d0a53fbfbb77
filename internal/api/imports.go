package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"spool/internal/discovery"
	"spool/internal/importer"
	"spool/internal/logging"
	"spool/internal/store"
)

const maxImportBody = 64 << 10

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "importer unavailable", "")
		return
	}
	var req ImportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), "validation")
		return
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path is required", "validation")
		return
	}

	files, err := discovery.Discover(path, s.discovery)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, discovery.ErrNoFiles) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err.Error(), "read")
		return
	}

	handle, err := s.importer.Start(s.baseCtx, importer.Request{
		Title:      req.Title,
		SourcePath: path,
		Files:      files,
		ChunkSize:  req.ChunkSize,
	})
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	// Progress is followed through /events; nothing reads the handle's own stream.
	handle.Detach()

	logging.WithContext(r.Context(), s.logger).Info("import accepted",
		logging.Int64(logging.FieldAlbumID, handle.AlbumID),
		logging.String("path", path),
		logging.Int("chunks", handle.TotalChunks),
	)

	tracks := make([]*store.Track, len(handle.Tracks))
	for i := range handle.Tracks {
		tracks[i] = &handle.Tracks[i]
	}
	s.writeJSON(w, http.StatusAccepted, ImportResponse{
		AlbumID:     handle.AlbumID,
		TotalChunks: handle.TotalChunks,
		Tracks:      FromTracks(tracks),
		EventsURL:   fmt.Sprintf("/api/albums/%d/events", handle.AlbumID),
	})
}
