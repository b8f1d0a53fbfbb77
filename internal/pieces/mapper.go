package pieces

import (
	"fmt"
)

// Range is the part of unit Index that overlaps the queried unit, as a
// half-open byte range [Start, End) relative to the start of unit Index.
type Range struct {
	Index int
	Start int64
	End   int64
}

// Len returns the number of bytes in the range.
func (r Range) Len() int64 { return r.End - r.Start }

// Mapper relates pieces of PieceLength bytes and chunks of ChunkSize bytes
// that both partition [0, TotalSize).
type Mapper struct {
	PieceLength int64
	ChunkSize   int64
	TotalPieces int
	TotalSize   int64
}

// NewMapper validates the layout parameters. totalPieces may be zero, in
// which case it is derived from totalSize; otherwise it must agree with it.
func NewMapper(pieceLength, chunkSize int64, totalPieces int, totalSize int64) (*Mapper, error) {
	if pieceLength <= 0 {
		return nil, fmt.Errorf("piece length must be positive, got %d", pieceLength)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if totalSize < 0 {
		return nil, fmt.Errorf("total size must not be negative, got %d", totalSize)
	}
	derived := int(ceilDiv(totalSize, pieceLength))
	if totalPieces == 0 {
		totalPieces = derived
	}
	if totalPieces != derived {
		return nil, fmt.Errorf("%d pieces of %d bytes cannot cover %d bytes (expected %d pieces)",
			totalPieces, pieceLength, totalSize, derived)
	}
	return &Mapper{
		PieceLength: pieceLength,
		ChunkSize:   chunkSize,
		TotalPieces: totalPieces,
		TotalSize:   totalSize,
	}, nil
}

// TotalChunks returns the number of chunks in the layout.
func (m *Mapper) TotalChunks() int {
	return int(ceilDiv(m.TotalSize, m.ChunkSize))
}

// PieceSpan returns the stream byte range [start, end) of a piece.
func (m *Mapper) PieceSpan(piece int) (start, end int64, ok bool) {
	if piece < 0 || piece >= m.TotalPieces {
		return 0, 0, false
	}
	start = int64(piece) * m.PieceLength
	return start, min(start+m.PieceLength, m.TotalSize), true
}

// ChunkSpan returns the stream byte range [start, end) of a chunk.
func (m *Mapper) ChunkSpan(chunk int) (start, end int64, ok bool) {
	if chunk < 0 || chunk >= m.TotalChunks() {
		return 0, 0, false
	}
	start = int64(chunk) * m.ChunkSize
	return start, min(start+m.ChunkSize, m.TotalSize), true
}

// PieceToChunks returns, in chunk order, the portion of every chunk that the
// piece covers. An out-of-range piece yields nil.
func (m *Mapper) PieceToChunks(piece int) []Range {
	start, end, ok := m.PieceSpan(piece)
	if !ok {
		return nil
	}
	return overlaps(start, end, m.ChunkSize)
}

// ChunkToPieces returns, in piece order, the portion of every piece that the
// chunk covers. An out-of-range chunk yields nil.
func (m *Mapper) ChunkToPieces(chunk int) []Range {
	start, end, ok := m.ChunkSpan(chunk)
	if !ok {
		return nil
	}
	return overlaps(start, end, m.PieceLength)
}

// overlaps splits the stream range [start, end) at multiples of unit and
// returns each overlapping unit with the sub-range relative to that unit.
func overlaps(start, end, unit int64) []Range {
	if end <= start {
		return nil
	}
	first := int(start / unit)
	last := int((end - 1) / unit)
	out := make([]Range, 0, last-first+1)
	for i := first; i <= last; i++ {
		base := int64(i) * unit
		out = append(out, Range{
			Index: i,
			Start: max(start, base) - base,
			End:   min(end, base+unit) - base,
		})
	}
	return out
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
