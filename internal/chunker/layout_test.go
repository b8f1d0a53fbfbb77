package chunker_test

import (
	"reflect"
	"testing"

	"spool/internal/chunker"
	"spool/internal/discovery"
)

func TestLayoutChunkSizing(t *testing.T) {
	tests := []struct {
		name      string
		sizes     []int64
		chunkSize int64
		want      []int64
	}{
		{name: "album", sizes: []int64{2097152, 3145728, 1572864}, chunkSize: 1048576, want: []int64{1048576, 1048576, 1048576, 1048576, 1048576, 1048576, 524288}},
		{name: "straddle", sizes: []int64{1500, 1200}, chunkSize: 1000, want: []int64{1000, 1000, 700}},
		{name: "exact multiple", sizes: []int64{1000, 1000}, chunkSize: 500, want: []int64{500, 500, 500, 500}},
		{name: "empty files only", sizes: []int64{0, 0}, chunkSize: 10, want: []int64{}},
		{name: "single byte", sizes: []int64{1}, chunkSize: 10, want: []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make([]discovery.File, len(tt.sizes))
			for i, size := range tt.sizes {
				files[i] = discovery.File{Path: string(rune('a'+i)) + ".flac", Size: size}
			}
			layout, err := chunker.NewLayout(files, tt.chunkSize)
			if err != nil {
				t.Fatalf("NewLayout: %v", err)
			}
			if got := layout.ChunkCount(); got != len(tt.want) {
				t.Fatalf("ChunkCount = %d, want %d", got, len(tt.want))
			}
			got := make([]int64, 0, len(tt.want))
			for i := 0; i < layout.ChunkCount(); i++ {
				got = append(got, layout.ChunkLen(i))
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("chunk lengths = %v, want %v", got, tt.want)
			}
			if layout.ChunkLen(layout.ChunkCount()) != 0 || layout.ChunkLen(-1) != 0 {
				t.Fatal("expected zero length for out of range chunk")
			}
		})
	}
}

func TestNewLayoutRejectsInvalidInput(t *testing.T) {
	if _, err := chunker.NewLayout([]discovery.File{{Path: "a", Size: 1}}, 0); err == nil {
		t.Fatal("expected error for zero chunk size")
	}
	if _, err := chunker.NewLayout([]discovery.File{{Path: "a", Size: -1}}, 10); err == nil {
		t.Fatal("expected error for negative file size")
	}
	if _, err := chunker.NewLayout([]discovery.File{{Path: "a", Size: 1}, {Path: "a", Size: 2}}, 10); err == nil {
		t.Fatal("expected error for duplicate path")
	}
}

func TestLayoutPosition(t *testing.T) {
	files := []discovery.File{
		{Path: "one.flac", Size: 1500},
		{Path: "empty.cue", Size: 0},
		{Path: "two.flac", Size: 1200},
	}
	layout, err := chunker.NewLayout(files, 1000)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}

	tests := []struct {
		path string
		want chunker.Position
		len  int64
	}{
		{path: "one.flac", want: chunker.Position{StartChunk: 0, EndChunk: 1, StartOffset: 0, EndOffset: 500}, len: 1500},
		{path: "empty.cue", want: chunker.Position{StartChunk: 1, EndChunk: 1, StartOffset: 500, EndOffset: 500}, len: 0},
		{path: "two.flac", want: chunker.Position{StartChunk: 1, EndChunk: 2, StartOffset: 500, EndOffset: 700}, len: 1200},
	}
	for _, tt := range tests {
		span, ok := layout.SpanOf(tt.path)
		if !ok {
			t.Fatalf("SpanOf(%s) missing", tt.path)
		}
		got := layout.Position(span)
		if got != tt.want {
			t.Fatalf("Position(%s) = %+v, want %+v", tt.path, got, tt.want)
		}
		if l := got.Length(layout.ChunkSize); l != tt.len {
			t.Fatalf("Length(%s) = %d, want %d", tt.path, l, tt.len)
		}
		if off := got.StreamOffset(layout.ChunkSize); off != span.Offset {
			t.Fatalf("StreamOffset(%s) = %d, want %d", tt.path, off, span.Offset)
		}
	}
}

func TestLayoutOwnershipSharedFile(t *testing.T) {
	files := []discovery.File{
		{Path: "disc.wav", Size: 2500},
		{Path: "bonus.flac", Size: 300},
	}
	layout, err := chunker.NewLayout(files, 1000)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	owners, err := layout.Ownership([]chunker.TrackFile{
		{TrackID: 2, Path: "disc.wav"},
		{TrackID: 1, Path: "disc.wav"},
		{TrackID: 3, Path: "bonus.flac"},
	})
	if err != nil {
		t.Fatalf("Ownership: %v", err)
	}
	want := map[int][]int64{
		0: {1, 2},
		1: {1, 2},
		2: {1, 2, 3},
	}
	if !reflect.DeepEqual(owners, want) {
		t.Fatalf("Ownership = %v, want %v", owners, want)
	}

	if _, err := layout.Ownership([]chunker.TrackFile{{TrackID: 9, Path: "missing.flac"}}); err == nil {
		t.Fatal("expected error for unknown file")
	}
}
