package progress

import (
	"time"

	"spool/internal/faults"
)

// Kind names an event type.
type Kind string

const (
	KindStarted       Kind = "started"
	KindProgress      Kind = "progress"
	KindTrackComplete Kind = "track_complete"
	KindComplete      Kind = "complete"
	KindFailed        Kind = "failed"
)

// Event is one entry of an album's progress stream.
type Event struct {
	Kind      Kind      `json:"kind"`
	AlbumID   int64     `json:"album_id"`
	TrackID   int64     `json:"track_id,omitempty"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	Error     string    `json:"error,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Time      time.Time `json:"time"`
}

// Terminal reports whether no further events follow for the album.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindFailed
}

// Lifecycle reports whether the event is an album-level lifecycle event.
func (e Event) Lifecycle() bool {
	return e.Kind == KindStarted || e.Terminal()
}

func Started(albumID int64, total int) Event {
	return Event{Kind: KindStarted, AlbumID: albumID, Total: total, Percent: Percent(0, total), Time: time.Now().UTC()}
}

func ProgressOf(albumID int64, snap Snapshot) Event {
	return Event{
		Kind:    KindProgress,
		AlbumID: albumID,
		Current: snap.Current,
		Total:   snap.Total,
		Percent: snap.Percent,
		Time:    time.Now().UTC(),
	}
}

func TrackComplete(albumID, trackID int64) Event {
	return Event{Kind: KindTrackComplete, AlbumID: albumID, TrackID: trackID, Time: time.Now().UTC()}
}

func Complete(albumID int64, total int) Event {
	return Event{Kind: KindComplete, AlbumID: albumID, Current: total, Total: total, Percent: 100, Time: time.Now().UTC()}
}

// Failed carries the human-readable error and its taxonomy name.
func Failed(albumID int64, err error) Event {
	evt := Event{Kind: KindFailed, AlbumID: albumID, Time: time.Now().UTC()}
	if err != nil {
		evt.Error = err.Error()
		evt.ErrorKind = faults.Kind(err)
	}
	return evt
}
