package progress

import (
	"math"
	"slices"
	"sync"
)

// Snapshot is the chunk-level progress of an import.
type Snapshot struct {
	Current int
	Total   int
	Percent int
}

// Update is the result of recording one chunk completion.
type Update struct {
	Snapshot
	// Completed lists tracks that became available with this chunk, in
	// ascending identifier order.
	Completed []int64
}

// Percent returns round(100*current/total) clamped to [0, 100]. A zero total
// is 100 percent.
func Percent(current, total int) int {
	if total <= 0 {
		return 100
	}
	pct := int(math.Round(100 * float64(current) / float64(total)))
	return max(0, min(pct, 100))
}

// Index detects per-track completion as chunks finish in any order. It is
// safe for concurrent use.
type Index struct {
	mu         sync.Mutex
	total      int
	owners     map[int][]int64
	remaining  map[int64]int
	doneChunks map[int]struct{}
	doneTracks map[int64]struct{}
}

// NewIndex builds an index over totalChunks chunks. ownership maps a chunk
// index to the tracks whose bytes it holds; tracks lists every track of the
// import, including tracks that own no chunk.
func NewIndex(totalChunks int, ownership map[int][]int64, tracks []int64) *Index {
	idx := &Index{
		total:      totalChunks,
		owners:     make(map[int][]int64, len(ownership)),
		remaining:  make(map[int64]int, len(tracks)),
		doneChunks: make(map[int]struct{}, totalChunks),
		doneTracks: make(map[int64]struct{}, len(tracks)),
	}
	for _, id := range tracks {
		idx.remaining[id] = 0
	}
	for chunk, ids := range ownership {
		if chunk < 0 || chunk >= totalChunks {
			continue
		}
		seen := make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			idx.owners[chunk] = append(idx.owners[chunk], id)
			idx.remaining[id]++
		}
	}
	return idx
}

// Total returns the fixed chunk count.
func (x *Index) Total() int { return x.total }

// Owners returns the tracks owning a chunk.
func (x *Index) Owners(chunk int) []int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.owners[chunk])
}

// Unowned marks complete, and returns, every track that owns no chunk. Such
// tracks are available as soon as the import starts.
func (x *Index) Unowned() []int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []int64
	for id, left := range x.remaining {
		if left != 0 {
			continue
		}
		if _, done := x.doneTracks[id]; done {
			continue
		}
		x.doneTracks[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Complete records a finished chunk. ok is false, and nothing changes, when
// the chunk is out of range or was already recorded.
func (x *Index) Complete(chunk int) (update Update, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if chunk < 0 || chunk >= x.total {
		return Update{Snapshot: x.snapshotLocked()}, false
	}
	if _, dup := x.doneChunks[chunk]; dup {
		return Update{Snapshot: x.snapshotLocked()}, false
	}
	x.doneChunks[chunk] = struct{}{}

	for _, id := range x.owners[chunk] {
		x.remaining[id]--
		if x.remaining[id] > 0 {
			continue
		}
		if _, done := x.doneTracks[id]; done {
			continue
		}
		x.doneTracks[id] = struct{}{}
		update.Completed = append(update.Completed, id)
	}
	slices.Sort(update.Completed)
	update.Snapshot = x.snapshotLocked()
	return update, true
}

// TrackComplete reports whether a track has been marked complete.
func (x *Index) TrackComplete(id int64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, done := x.doneTracks[id]
	return done
}

// Snapshot returns current progress.
func (x *Index) Snapshot() Snapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.snapshotLocked()
}

func (x *Index) snapshotLocked() Snapshot {
	current := len(x.doneChunks)
	return Snapshot{Current: current, Total: x.total, Percent: Percent(current, x.total)}
}
