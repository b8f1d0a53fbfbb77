package chunker

import (
	"fmt"
	"sort"

	"spool/internal/discovery"
)

// Span is a file's location inside the concatenated stream.
type Span struct {
	Path   string
	Offset int64
	Size   int64
}

// End returns the exclusive end offset of the span.
func (s Span) End() int64 { return s.Offset + s.Size }

// Position describes a byte range of the stream in chunk coordinates.
// StartOffset is inclusive within StartChunk; EndOffset is exclusive within
// EndChunk. An empty range has StartChunk == EndChunk and equal offsets.
type Position struct {
	StartChunk  int
	EndChunk    int
	StartOffset int64
	EndOffset   int64
}

// Empty reports whether the position covers no bytes.
func (p Position) Empty() bool {
	return p.StartChunk == p.EndChunk && p.StartOffset >= p.EndOffset
}

// Length returns the number of bytes covered for the given chunk size.
func (p Position) Length(chunkSize int64) int64 {
	if p.Empty() {
		return 0
	}
	if p.StartChunk == p.EndChunk {
		return p.EndOffset - p.StartOffset
	}
	middle := int64(p.EndChunk-p.StartChunk-1) * chunkSize
	return (chunkSize - p.StartOffset) + middle + p.EndOffset
}

// StreamOffset returns the absolute stream offset of the first byte.
func (p Position) StreamOffset(chunkSize int64) int64 {
	return int64(p.StartChunk)*chunkSize + p.StartOffset
}

// TrackFile binds a track identifier to the source file that backs it.
type TrackFile struct {
	TrackID int64
	Path    string
}

// Layout maps an ordered file list onto chunk boundaries.
type Layout struct {
	ChunkSize int64
	Spans     []Span
	Total     int64

	byPath map[string]int
}

// NewLayout computes file spans for files in the order given.
func NewLayout(files []discovery.File, chunkSize int64) (*Layout, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	layout := &Layout{ChunkSize: chunkSize, byPath: make(map[string]int, len(files))}
	var offset int64
	for i, f := range files {
		if f.Size < 0 {
			return nil, fmt.Errorf("file %q has negative size", f.Path)
		}
		if _, dup := layout.byPath[f.Path]; dup {
			return nil, fmt.Errorf("file %q listed twice", f.Path)
		}
		layout.byPath[f.Path] = i
		layout.Spans = append(layout.Spans, Span{Path: f.Path, Offset: offset, Size: f.Size})
		offset += f.Size
	}
	layout.Total = offset
	return layout, nil
}

// ChunkCount returns ceil(Total / ChunkSize).
func (l *Layout) ChunkCount() int {
	return int((l.Total + l.ChunkSize - 1) / l.ChunkSize)
}

// ChunkLen returns the expected length of chunk index, or 0 when out of range.
func (l *Layout) ChunkLen(index int) int64 {
	count := l.ChunkCount()
	if index < 0 || index >= count {
		return 0
	}
	if index < count-1 {
		return l.ChunkSize
	}
	if rem := l.Total % l.ChunkSize; rem != 0 {
		return rem
	}
	return l.ChunkSize
}

// SpanOf returns the span of path.
func (l *Layout) SpanOf(path string) (Span, bool) {
	i, ok := l.byPath[path]
	if !ok {
		return Span{}, false
	}
	return l.Spans[i], true
}

// Position converts a stream span into chunk coordinates.
func (l *Layout) Position(span Span) Position {
	start := span.Offset
	if span.Size == 0 {
		return Position{
			StartChunk:  int(start / l.ChunkSize),
			EndChunk:    int(start / l.ChunkSize),
			StartOffset: start % l.ChunkSize,
			EndOffset:   start % l.ChunkSize,
		}
	}
	last := span.End() - 1
	return Position{
		StartChunk:  int(start / l.ChunkSize),
		EndChunk:    int(last / l.ChunkSize),
		StartOffset: start % l.ChunkSize,
		EndOffset:   last%l.ChunkSize + 1,
	}
}

// Chunks returns the inclusive chunk index range touched by span. ok is false
// for empty spans, which touch no chunk.
func (l *Layout) Chunks(span Span) (first, last int, ok bool) {
	if span.Size == 0 {
		return 0, 0, false
	}
	return int(span.Offset / l.ChunkSize), int((span.End() - 1) / l.ChunkSize), true
}

// Ownership maps every chunk index to the sorted set of track identifiers whose
// source file bytes fall inside it. Tracks sharing a file share every chunk of
// that file.
func (l *Layout) Ownership(tracks []TrackFile) (map[int][]int64, error) {
	sets := make(map[int]map[int64]struct{})
	for _, tf := range tracks {
		span, ok := l.SpanOf(tf.Path)
		if !ok {
			return nil, fmt.Errorf("track %d references unknown file %q", tf.TrackID, tf.Path)
		}
		first, last, ok := l.Chunks(span)
		if !ok {
			continue
		}
		for idx := first; idx <= last; idx++ {
			set := sets[idx]
			if set == nil {
				set = make(map[int64]struct{})
				sets[idx] = set
			}
			set[tf.TrackID] = struct{}{}
		}
	}

	ownership := make(map[int][]int64, len(sets))
	for idx, set := range sets {
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		ownership[idx] = ids
	}
	return ownership, nil
}
