package progress

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"

	"spool/internal/logging"
)

// Filter selects the events a subscription receives.
type Filter func(Event) bool

// All matches every event.
func All() Filter {
	return func(Event) bool { return true }
}

// ByAlbum matches every event of one album.
func ByAlbum(albumID int64) Filter {
	return func(e Event) bool { return e.AlbumID == albumID }
}

// ByTrack matches completion of one track plus the album lifecycle events
// around it.
func ByTrack(albumID, trackID int64) Filter {
	return func(e Event) bool {
		if e.AlbumID != albumID {
			return false
		}
		if e.Kind == KindTrackComplete {
			return e.TrackID == trackID
		}
		return e.Lifecycle()
	}
}

// DefaultSendTimeout bounds how long a delivery may wait on a subscriber that
// is not receiving before the subscription is treated as abandoned. A reader
// that stays this far behind is pruned even if it never called Close, and
// Publish blocks for up to this long per such reader.
const DefaultSendTimeout = 5 * time.Second

// HubOption customizes a Hub.
type HubOption func(*Hub)

// WithSendTimeout overrides DefaultSendTimeout. Zero waits indefinitely for
// subscribers that are still open.
func WithSendTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.sendTimeout = d }
}

// Hub fans events out to filtered subscriptions.
type Hub struct {
	mu          sync.Mutex
	subs        map[uint64]*Subscription
	nextID      uint64
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Hub{
		subs:        make(map[uint64]*Subscription),
		sendTimeout: DefaultSendTimeout,
		logger:      logging.NewComponentLogger(logger, "progress"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscription with the given channel buffer. A nil
// filter matches everything.
func (h *Hub) Subscribe(filter Filter, buffer int) *Subscription {
	if filter == nil {
		filter = All()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		filter: filter,
		ch:     make(chan Event, max(buffer, 0)),
		done:   make(chan struct{}),
	}
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers evt to every matching subscription, in registration order,
// from a snapshot of the registry taken at call time. Subscriptions whose delivery fails are
// removed.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	timeout := h.sendTimeout
	h.mu.Unlock()
	slices.SortFunc(targets, func(a, b *Subscription) int { return cmp.Compare(a.id, b.id) })

	var failed []*Subscription
	for _, sub := range targets {
		if !sub.filter(evt) {
			continue
		}
		if !sub.deliver(evt, timeout) {
			failed = append(failed, sub)
		}
	}
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	for _, sub := range failed {
		delete(h.subs, sub.id)
	}
	h.mu.Unlock()
	for _, sub := range failed {
		sub.Close()
		h.logger.Debug("subscription pruned",
			logging.Int64("subscription_id", int64(sub.id)),
			logging.String("event_kind", string(evt.Kind)),
			logging.Int64(logging.FieldAlbumID, evt.AlbumID),
		)
	}
}

// Len returns the number of registered subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Subscription is one registered receiver. The receiving side stops by
// calling Close; the hub notices on its next delivery attempt.
type Subscription struct {
	id     uint64
	filter Filter
	ch     chan Event
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	closed bool
}

// ID returns the registry identifier.
func (s *Subscription) ID() uint64 { return s.id }

// Events returns the receive channel. It is closed after Close.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close abandons the subscription. It is safe to call more than once and
// from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *Subscription) deliver(evt Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case s.ch <- evt:
		return true
	case <-s.done:
		return false
	case <-expired:
		return false
	}
}
