package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"spool/internal/logging"
	"spool/internal/progress"
	"spool/internal/store"
)

const (
	eventBuffer  = 64
	writeTimeout = 10 * time.Second
)

// handleEvents upgrades to a websocket and forwards the album's progress
// events until the terminal event or until the client goes away. A track
// query narrows the stream to that track's completion plus album lifecycle
// events. Albums that already finished get a single synthesized terminal
// event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	albumID, ok := s.pathID(w, r)
	if !ok {
		return
	}
	filter := progress.ByAlbum(albumID)
	var trackID int64
	if value := r.URL.Query().Get("track"); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid track id", "validation")
			return
		}
		trackID = parsed
		filter = progress.ByTrack(albumID, trackID)
	}
	if s.hub == nil {
		s.writeError(w, http.StatusServiceUnavailable, "progress hub unavailable", "")
		return
	}

	// Subscribe before reading the album so a finish in between is not lost.
	sub := s.hub.Subscribe(filter, eventBuffer)
	defer sub.Close()

	album, err := s.store.GetAlbum(r.Context(), albumID)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	if album == nil {
		s.writeError(w, http.StatusNotFound, "album not found", "not_found")
		return
	}
	var pending []progress.Event
	if trackID != 0 {
		track, err := s.store.GetTrack(r.Context(), trackID)
		if err != nil {
			s.writeFault(w, r, err)
			return
		}
		if track == nil || track.AlbumID != albumID {
			s.writeError(w, http.StatusNotFound, "track not found", "not_found")
			return
		}
		if track.Status == store.StatusComplete {
			pending = append(pending, progress.TrackComplete(albumID, trackID))
		}
	}
	switch album.Status {
	case store.StatusComplete:
		pending = append(pending, progress.Complete(albumID, album.TotalChunks))
	case store.StatusFailed:
		evt := progress.Failed(albumID, nil)
		evt.Error = album.ErrorMessage
		pending = append(pending, evt)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	logger := logging.WithContext(r.Context(), s.logger).With(logging.Int64(logging.FieldAlbumID, albumID))
	logger.Debug("event stream opened", logging.Int64(logging.FieldTrackID, trackID))

	// The read loop only notices the client closing.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	send := func(evt progress.Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(evt); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logger.Debug("event stream write failed", logging.Error(err))
			}
			return false
		}
		return true
	}

	finished := false
	for _, evt := range pending {
		if !send(evt) {
			return
		}
		finished = finished || evt.Terminal()
	}
	for !finished {
		evt, open := <-sub.Events()
		if !open {
			return
		}
		if !send(evt) {
			return
		}
		finished = evt.Terminal()
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "import finished"),
		time.Now().Add(writeTimeout))
	logger.Debug("event stream closed")
}
