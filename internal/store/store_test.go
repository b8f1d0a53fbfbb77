package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"spool/internal/chunker"
	"spool/internal/store"
	"spool/internal/testsupport"
)

func newScaffold() store.Scaffold {
	return store.Scaffold{
		Title:       "Kind of Blue",
		SourcePath:  "/music/kind-of-blue",
		ChunkSize:   1000,
		TotalBytes:  2700,
		TotalChunks: 3,
		Files: []store.ScaffoldFile{
			{Path: "/music/kind-of-blue/disc.wav", Offset: 0, Size: 1500},
			{Path: "/music/kind-of-blue/bonus.flac", Offset: 1500, Size: 1200},
		},
		Tracks: []store.ScaffoldTrack{
			{Number: 1, Title: "So What", File: 0},
			{Number: 2, Title: "Freddie Freeloader", File: 0},
			{Number: 3, Title: "Flamenco Sketches (alt)", File: 1},
		},
	}
}

func TestCreateAlbumScaffold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	album, tracks, err := s.CreateAlbumScaffold(ctx, newScaffold())
	if err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	if album.ID == 0 || album.Status != store.StatusQueued {
		t.Fatalf("unexpected album %#v", album)
	}
	if album.TotalChunks != 3 || album.ChunkSize != 1000 || album.TotalBytes != 2700 {
		t.Fatalf("album sizing not persisted: %#v", album)
	}
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks", len(tracks))
	}
	if tracks[0].FileID != tracks[1].FileID || tracks[0].FileID == tracks[2].FileID {
		t.Fatalf("file sharing not preserved: %#v", tracks)
	}

	listed, err := s.ListTracks(ctx, album.ID)
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	if len(listed) != 3 || listed[2].FilePath != "/music/kind-of-blue/bonus.flac" || listed[1].Title != "Freddie Freeloader" {
		t.Fatalf("unexpected tracks %#v", listed)
	}
	for _, tr := range listed {
		if tr.Status != store.StatusQueued {
			t.Fatalf("track %d status %s, want queued", tr.ID, tr.Status)
		}
	}

	files, err := s.ListFiles(ctx, album.ID)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[1].Offset != 1500 || files[1].Ordinal != 1 {
		t.Fatalf("unexpected files %#v", files)
	}
}

func TestCreateAlbumScaffoldValidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	bad := newScaffold()
	bad.Tracks[0].File = 5
	if _, _, err := s.CreateAlbumScaffold(ctx, bad); err == nil {
		t.Fatal("expected error for dangling file reference")
	}
	bad = newScaffold()
	bad.Title = " "
	if _, _, err := s.CreateAlbumScaffold(ctx, bad); err == nil {
		t.Fatal("expected error for empty title")
	}
	albums, err := s.ListAlbums(ctx)
	if err != nil {
		t.Fatalf("ListAlbums: %v", err)
	}
	if len(albums) != 0 {
		t.Fatalf("rejected scaffolds left %d albums", len(albums))
	}
}

func TestRecordChunkIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	album, _, err := s.CreateAlbumScaffold(ctx, newScaffold())
	if err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	rec := store.ChunkRecord{
		ChunkID:   "chunk-a",
		AlbumID:   album.ID,
		Index:     1,
		Location:  "mem:chunk-a",
		Size:      1042,
		PlainSize: 1000,
		Digest:    "abc",
	}
	inserted, err := s.RecordChunk(ctx, rec)
	if err != nil || !inserted {
		t.Fatalf("first RecordChunk = %v, %v", inserted, err)
	}
	inserted, err = s.RecordChunk(ctx, rec)
	if err != nil || inserted {
		t.Fatalf("second RecordChunk = %v, %v; want no-op", inserted, err)
	}

	other := rec
	other.ChunkID = "chunk-b"
	if _, err := s.RecordChunk(ctx, other); err == nil {
		t.Fatal("expected error for a second chunk at the same index")
	}

	got, err := s.ChunkByIndex(ctx, album.ID, 1)
	if err != nil {
		t.Fatalf("ChunkByIndex: %v", err)
	}
	if got == nil || got.Location != "mem:chunk-a" || got.Digest != "abc" || got.PlainSize != 1000 {
		t.Fatalf("unexpected record %#v", got)
	}
	missing, err := s.ChunkByIndex(ctx, album.ID, 0)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unstored chunk, got %#v, %v", missing, err)
	}
	count, err := s.ChunkCount(ctx, album.ID)
	if err != nil || count != 1 {
		t.Fatalf("ChunkCount = %d, %v", count, err)
	}
}

func TestCompleteTrackStoresPosition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	_, tracks, err := s.CreateAlbumScaffold(ctx, newScaffold())
	if err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	pos := store.TrackPosition{
		TrackID:  tracks[2].ID,
		Position: chunker.Position{StartChunk: 1, EndChunk: 2, StartOffset: 500, EndOffset: 700},
	}
	if err := s.CompleteTrack(ctx, pos); err != nil {
		t.Fatalf("CompleteTrack: %v", err)
	}
	got, err := s.TrackPosition(ctx, tracks[2].ID)
	if err != nil {
		t.Fatalf("TrackPosition: %v", err)
	}
	if got == nil || *got != pos {
		t.Fatalf("TrackPosition = %#v, want %#v", got, pos)
	}
	track, err := s.GetTrack(ctx, tracks[2].ID)
	if err != nil || track == nil || track.Status != store.StatusComplete {
		t.Fatalf("GetTrack = %#v, %v", track, err)
	}

	none, err := s.TrackPosition(ctx, tracks[0].ID)
	if err != nil || none != nil {
		t.Fatalf("expected no position for incomplete track, got %#v, %v", none, err)
	}
}

func TestFailAlbumKeepsCompletedTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	album, tracks, err := s.CreateAlbumScaffold(ctx, newScaffold())
	if err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	if err := s.SetAlbumStatus(ctx, album.ID, store.StatusImporting); err != nil {
		t.Fatalf("SetAlbumStatus: %v", err)
	}
	if err := s.CompleteTrack(ctx, store.TrackPosition{TrackID: tracks[2].ID}); err != nil {
		t.Fatalf("CompleteTrack: %v", err)
	}
	if err := s.FailAlbum(ctx, album.ID, "upload failed"); err != nil {
		t.Fatalf("FailAlbum: %v", err)
	}

	got, err := s.GetAlbum(ctx, album.ID)
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if got.Status != store.StatusFailed || got.ErrorMessage != "upload failed" {
		t.Fatalf("unexpected album %#v", got)
	}
	listed, err := s.ListTracks(ctx, album.ID)
	if err != nil {
		t.Fatalf("ListTracks: %v", err)
	}
	want := []store.Status{store.StatusFailed, store.StatusFailed, store.StatusComplete}
	for i, tr := range listed {
		if tr.Status != want[i] {
			t.Fatalf("track %d status %s, want %s", tr.Number, tr.Status, want[i])
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[store.StatusFailed] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}

func TestSetAlbumStatusRejectsUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	album, _, err := s.CreateAlbumScaffold(ctx, newScaffold())
	if err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	if err := s.SetAlbumStatus(ctx, album.ID, store.Status("paused")); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if err := s.SetAlbumStatus(ctx, album.ID+100, store.StatusComplete); err == nil {
		t.Fatal("expected error for missing album")
	}
}

func TestListAlbumsFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	s := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, _, err := s.CreateAlbumScaffold(ctx, newScaffold())
	if err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	if _, _, err := s.CreateAlbumScaffold(ctx, newScaffold()); err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	if err := s.SetAlbumStatus(ctx, first.ID, store.StatusComplete); err != nil {
		t.Fatalf("SetAlbumStatus: %v", err)
	}

	complete, err := s.ListAlbums(ctx, store.StatusComplete)
	if err != nil {
		t.Fatalf("ListAlbums: %v", err)
	}
	if len(complete) != 1 || complete[0].ID != first.ID {
		t.Fatalf("unexpected filtered albums %#v", complete)
	}
	all, err := s.ListAlbums(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAlbums all = %d, %v", len(all), err)
	}
}

func TestReopenPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.db")
	s, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	album, _, err := s.CreateAlbumScaffold(context.Background(), newScaffold())
	if err != nil {
		t.Fatalf("CreateAlbumScaffold: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetAlbum(context.Background(), album.ID)
	if err != nil || got == nil || got.Title != "Kind of Blue" {
		t.Fatalf("GetAlbum after reopen = %#v, %v", got, err)
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := store.ParseStatus(" Complete "); !ok || st != store.StatusComplete {
		t.Fatalf("ParseStatus = %v, %v", st, ok)
	}
	if _, ok := store.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status")
	}
	if !store.StatusFailed.Terminal() || store.StatusImporting.Terminal() {
		t.Fatal("Terminal misreports")
	}
}
