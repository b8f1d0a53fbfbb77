package api

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"spool/internal/store"
)

var audioTypes = map[string]string{
	".flac": "audio/flac",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".wav":  "audio/wav",
	".aiff": "audio/aiff",
	".ape":  "audio/x-ape",
	".wv":   "audio/x-wavpack",
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// handleStream serves a completed track with Range support. Shared-file
// tracks serve their whole source file.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	track, err := s.store.GetTrack(r.Context(), id)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	if track == nil {
		s.writeError(w, http.StatusNotFound, "track not found", "not_found")
		return
	}
	if track.Status != store.StatusComplete {
		s.writeError(w, http.StatusConflict, "track is "+string(track.Status), "")
		return
	}

	reader, _, err := s.reader.OpenTrack(r.Context(), id)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentTypeFor(track.FilePath))
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filepath.Base(track.FilePath), track.UpdatedAt, reader)
}
