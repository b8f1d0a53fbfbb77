package pieces

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"spool/internal/chunker"
)

// ErrTrackerClosed is returned by Wait after Close.
var ErrTrackerClosed = errors.New("piece tracker closed")

// Tracker records which pieces of a torrent have been downloaded and lets
// callers wait for specific pieces.
type Tracker struct {
	mu      sync.Mutex
	total   int
	done    map[int]struct{}
	changed chan struct{}
	closed  bool
}

// NewTracker tracks totalPieces pieces, none complete.
func NewTracker(totalPieces int) *Tracker {
	return &Tracker{
		total:   totalPieces,
		done:    make(map[int]struct{}),
		changed: make(chan struct{}),
	}
}

// MarkComplete records a downloaded piece and wakes waiters. It reports
// whether the piece was newly recorded.
func (t *Tracker) MarkComplete(piece int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if piece < 0 || piece >= t.total || t.closed {
		return false
	}
	if _, ok := t.done[piece]; ok {
		return false
	}
	t.done[piece] = struct{}{}
	close(t.changed)
	t.changed = make(chan struct{})
	return true
}

// Complete reports whether a piece has been recorded.
func (t *Tracker) Complete(piece int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.done[piece]
	return ok
}

// Completed returns the recorded pieces in ascending order.
func (t *Tracker) Completed() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.done))
	for p := range t.done {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Close releases every waiter with ErrTrackerClosed.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.changed)
}

// Wait blocks until every listed piece is complete or ctx ends.
func (t *Tracker) Wait(ctx context.Context, pieces ...int) error {
	for {
		t.mu.Lock()
		missing := false
		for _, p := range pieces {
			if _, ok := t.done[p]; !ok {
				missing = true
				break
			}
		}
		if !missing {
			t.mu.Unlock()
			return nil
		}
		if t.closed {
			t.mu.Unlock()
			return ErrTrackerClosed
		}
		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Gate returns a chunker.Gate that blocks before chunk i until every piece
// overlapping it is complete.
func Gate(m *Mapper, t *Tracker) chunker.Gate {
	return func(ctx context.Context, index int) error {
		ranges := m.ChunkToPieces(index)
		if len(ranges) == 0 {
			return fmt.Errorf("chunk %d is outside the piece layout", index)
		}
		ids := make([]int, len(ranges))
		for i, r := range ranges {
			ids[i] = r.Index
		}
		return t.Wait(ctx, ids...)
	}
}

// CoveredChunks returns, in ascending order, every chunk whose bytes are
// entirely inside completed pieces.
func CoveredChunks(m *Mapper, completed []int) []int {
	have := make(map[int]struct{}, len(completed))
	for _, p := range completed {
		have[p] = struct{}{}
	}
	candidates := make(map[int]struct{})
	for p := range have {
		for _, r := range m.PieceToChunks(p) {
			candidates[r.Index] = struct{}{}
		}
	}

	var out []int
	for c := range candidates {
		covered := true
		for _, r := range m.ChunkToPieces(c) {
			if _, ok := have[r.Index]; !ok {
				covered = false
				break
			}
		}
		if covered {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// Prioritize returns every piece index once, with the pieces backing the
// preferred chunks first in the order those chunks are listed, followed by
// the remaining pieces in ascending order.
func Prioritize(m *Mapper, preferredChunks []int) []int {
	seen := make(map[int]struct{}, m.TotalPieces)
	out := make([]int, 0, m.TotalPieces)
	for _, c := range preferredChunks {
		for _, r := range m.ChunkToPieces(c) {
			if _, ok := seen[r.Index]; ok {
				continue
			}
			seen[r.Index] = struct{}{}
			out = append(out, r.Index)
		}
	}
	for p := 0; p < m.TotalPieces; p++ {
		if _, ok := seen[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}
