package importer_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spool/internal/discovery"
	"spool/internal/encryption"
	"spool/internal/faults"
	"spool/internal/importer"
	"spool/internal/keyring"
	"spool/internal/pieces"
	"spool/internal/progress"
	"spool/internal/reassembly"
	"spool/internal/storage"
	"spool/internal/store"
	"spool/internal/testsupport"
)

type fixture struct {
	store    *store.Store
	backend  *storage.Memory
	importer *importer.Importer
	reader   *reassembly.Service
	sealer   *encryption.Sealer
	dir      string
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	kr, err := keyring.Ephemeral()
	if err != nil {
		t.Fatalf("ephemeral keyring: %v", err)
	}
	sealer, err := kr.Sealer(0)
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	backend := storage.NewMemory()
	return &fixture{
		store:    st,
		backend:  backend,
		importer: importer.New(st, backend, sealer, progress.NewHub(nil), importer.OptionsFromConfig(cfg), nil),
		reader:   reassembly.NewService(st, backend, sealer, nil),
		sealer:   sealer,
		dir:      t.TempDir(),
	}
}

func (f *fixture) file(t *testing.T, name string, seed byte, size int) (discovery.File, []byte) {
	t.Helper()
	path := filepath.Join(f.dir, name)
	data := testsupport.WritePatternFile(t, path, seed, size)
	return discovery.File{Path: path, Size: int64(size)}, data
}

func drain(t *testing.T, h *importer.Handle) []progress.Event {
	t.Helper()
	var events []progress.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case evt, ok := <-h.Events():
			if !ok {
				return events
			}
			events = append(events, evt)
		case <-timeout:
			t.Fatalf("event stream did not close; got %d events", len(events))
		}
	}
}

func (f *fixture) readTrack(t *testing.T, trackID int64) []byte {
	t.Helper()
	r, _, err := f.reader.OpenTrack(context.Background(), trackID)
	if err != nil {
		t.Fatalf("open track %d: %v", trackID, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read track %d: %v", trackID, err)
	}
	return data
}

func TestImportSharedAndSeparateFiles(t *testing.T) {
	f := newFixture(t)
	image, imageData := f.file(t, "disc.flac", 1, 2500)
	bonus, bonusData := f.file(t, "bonus.flac", 2, 1200)

	h, err := f.importer.Start(context.Background(), importer.Request{
		Title: "Shared",
		Files: []discovery.File{image, bonus},
		Tracks: []discovery.TrackSource{
			{Number: 1, Title: "One", Path: image.Path},
			{Number: 2, Title: "Two", Path: image.Path},
			{Number: 3, Title: "Bonus", Path: bonus.Path},
		},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := drain(t, h)
	if err := h.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if h.TotalChunks != 4 {
		t.Fatalf("expected 4 chunks, got %d", h.TotalChunks)
	}

	if events[0].Kind != progress.KindStarted {
		t.Fatalf("first event %s, want started", events[0].Kind)
	}
	last := events[len(events)-1]
	if last.Kind != progress.KindComplete || last.Percent != 100 {
		t.Fatalf("last event %+v, want complete at 100", last)
	}
	prev := 0
	var progressCount, trackCount int
	for _, evt := range events {
		switch evt.Kind {
		case progress.KindProgress:
			progressCount++
			if evt.Current <= prev {
				t.Fatalf("progress went from %d to %d", prev, evt.Current)
			}
			prev = evt.Current
		case progress.KindTrackComplete:
			trackCount++
		}
	}
	if progressCount != 4 || trackCount != 3 {
		t.Fatalf("got %d progress and %d track events", progressCount, trackCount)
	}
	if prev != 4 {
		t.Fatalf("final progress %d, want 4", prev)
	}

	album, err := f.store.GetAlbum(context.Background(), h.AlbumID)
	if err != nil || album == nil {
		t.Fatalf("get album: %v", err)
	}
	if album.Status != store.StatusComplete {
		t.Fatalf("album status %s", album.Status)
	}
	if n, _ := f.store.ChunkCount(context.Background(), h.AlbumID); n != 4 {
		t.Fatalf("recorded %d chunks", n)
	}

	want := [][]byte{imageData, imageData, bonusData}
	for i, tr := range h.Tracks {
		if got := f.readTrack(t, tr.ID); !bytes.Equal(got, want[i]) {
			t.Fatalf("track %d: reassembled %d bytes differ from source", tr.Number, len(got))
		}
	}
}

func TestImportUploadFailure(t *testing.T) {
	f := newFixture(t)
	a, _ := f.file(t, "a.flac", 1, 5000)

	var uploads atomic.Int32
	f.backend.FailUploads(func(string) error {
		if uploads.Add(1) == 3 {
			return errors.New("bucket unavailable")
		}
		return nil
	})

	h, err := f.importer.Start(context.Background(), importer.Request{Title: "Broken", Files: []discovery.File{a}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := drain(t, h)
	err = h.Wait()
	if !errors.Is(err, faults.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	failed := 0
	for _, evt := range events {
		if evt.Kind == progress.KindFailed {
			failed++
		}
		if evt.Kind == progress.KindComplete {
			t.Fatal("complete published for failed import")
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed event, got %d", failed)
	}
	last := events[len(events)-1]
	if last.Kind != progress.KindFailed || last.ErrorKind != "transport" {
		t.Fatalf("last event %+v", last)
	}

	album, _ := f.store.GetAlbum(context.Background(), h.AlbumID)
	if album.Status != store.StatusFailed || album.ErrorMessage == "" {
		t.Fatalf("album %+v", album)
	}
	tracks, _ := f.store.ListTracks(context.Background(), h.AlbumID)
	for _, tr := range tracks {
		if tr.Status != store.StatusFailed {
			t.Fatalf("track %d status %s", tr.ID, tr.Status)
		}
	}
}

func TestImportWaitsForPieces(t *testing.T) {
	f := newFixture(t)
	a, aData := f.file(t, "a.flac", 3, 2100)
	b, bData := f.file(t, "b.flac", 4, 900)

	mapper, err := pieces.NewMapper(512, 1000, 0, a.Size+b.Size)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	tracker := pieces.NewTracker(mapper.TotalPieces)
	defer tracker.Close()

	h, err := f.importer.Start(context.Background(), importer.Request{
		Title: "Torrent",
		Files: []discovery.File{a, b},
		Gate:  pieces.Gate(mapper, tracker),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-h.Done():
		t.Fatal("import finished before any piece arrived")
	case <-time.After(50 * time.Millisecond):
	}
	if f.backend.Uploads() != 0 {
		t.Fatalf("uploaded %d chunks without pieces", f.backend.Uploads())
	}

	for _, p := range pieces.Prioritize(mapper, []int{2}) {
		tracker.MarkComplete(p)
	}
	events := drain(t, h)
	if err := h.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if events[len(events)-1].Kind != progress.KindComplete {
		t.Fatalf("last event %s", events[len(events)-1].Kind)
	}
	if got := f.readTrack(t, h.Tracks[0].ID); !bytes.Equal(got, aData) {
		t.Fatal("track a differs")
	}
	if got := f.readTrack(t, h.Tracks[1].ID); !bytes.Equal(got, bData) {
		t.Fatal("track b differs")
	}
}

func TestImportCancel(t *testing.T) {
	f := newFixture(t)
	a, _ := f.file(t, "a.flac", 5, 3000)
	tracker := pieces.NewTracker(3)
	mapper, err := pieces.NewMapper(1000, 1000, 3, 3000)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}

	h, err := f.importer.Start(context.Background(), importer.Request{
		Title: "Stalled",
		Files: []discovery.File{a},
		Gate:  pieces.Gate(mapper, tracker),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	h.Cancel()
	events := drain(t, h)
	if err := h.Wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if events[len(events)-1].Kind != progress.KindFailed {
		t.Fatalf("last event %s", events[len(events)-1].Kind)
	}
	album, _ := f.store.GetAlbum(context.Background(), h.AlbumID)
	if album.Status != store.StatusFailed || album.ErrorMessage != importer.ErrCancelled.Error() {
		t.Fatalf("album %+v", album)
	}
}

func TestImportEmptyFiles(t *testing.T) {
	f := newFixture(t)
	empty, _ := f.file(t, "00-silence.flac", 6, 0)
	a, aData := f.file(t, "01-song.flac", 7, 1500)

	h, err := f.importer.Start(context.Background(), importer.Request{Files: []discovery.File{empty, a}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := drain(t, h)
	if err := h.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(h.Tracks) != 2 {
		t.Fatalf("expected derived tracks, got %d", len(h.Tracks))
	}
	var firstTrack int64
	for _, evt := range events {
		if evt.Kind == progress.KindTrackComplete {
			firstTrack = evt.TrackID
			break
		}
	}
	if firstTrack != h.Tracks[0].ID {
		t.Fatalf("empty track should complete first, got %d", firstTrack)
	}
	if got := f.readTrack(t, h.Tracks[0].ID); len(got) != 0 {
		t.Fatalf("empty track read %d bytes", len(got))
	}
	if got := f.readTrack(t, h.Tracks[1].ID); !bytes.Equal(got, aData) {
		t.Fatal("second track differs")
	}
}

func TestImportAllEmpty(t *testing.T) {
	f := newFixture(t)
	empty, _ := f.file(t, "blank.flac", 8, 0)

	h, err := f.importer.Start(context.Background(), importer.Request{Title: "Blank", Files: []discovery.File{empty}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events := drain(t, h)
	if err := h.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if h.TotalChunks != 0 {
		t.Fatalf("expected no chunks, got %d", h.TotalChunks)
	}
	last := events[len(events)-1]
	if last.Kind != progress.KindComplete || last.Percent != 100 {
		t.Fatalf("last event %+v", last)
	}
}

type cramped struct {
	*storage.Memory
	free uint64
}

func (c cramped) FreeBytes() (uint64, error) { return c.free, nil }

func TestStartRejectsInsufficientSpace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	kr, _ := keyring.Ephemeral()
	sealer, _ := kr.Sealer(0)
	imp := importer.New(st, cramped{Memory: storage.NewMemory(), free: 100}, sealer, nil, importer.OptionsFromConfig(cfg), nil)

	path := filepath.Join(t.TempDir(), "a.flac")
	testsupport.WritePatternFile(t, path, 1, 2000)
	_, err := imp.Start(context.Background(), importer.Request{Files: []discovery.File{{Path: path, Size: 2000}}})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	albums, err := st.ListAlbums(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(albums) != 0 {
		t.Fatalf("scaffold written for rejected import: %d albums", len(albums))
	}
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)
	a, _ := f.file(t, "a.flac", 1, 10)

	cases := []struct {
		name string
		req  importer.Request
	}{
		{"no files", importer.Request{Title: "x"}},
		{"bad chunk size", importer.Request{Files: []discovery.File{a}, ChunkSize: -1}},
		{"unknown track file", importer.Request{
			Files:  []discovery.File{a},
			Tracks: []discovery.TrackSource{{Number: 1, Path: "/elsewhere.flac"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.importer.Start(context.Background(), tc.req); !errors.Is(err, faults.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestReadFailureFailsImport(t *testing.T) {
	f := newFixture(t)
	missing := discovery.File{Path: filepath.Join(f.dir, "gone.flac"), Size: 100}

	h, err := f.importer.Start(context.Background(), importer.Request{Title: "Gone", Files: []discovery.File{missing}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	drain(t, h)
	if err := h.Wait(); !errors.Is(err, faults.ErrRead) {
		t.Fatalf("expected read error, got %v", err)
	}
}

// failingEncryptor fails the failAt-th Encrypt call.
type failingEncryptor struct {
	encryption.Encryptor
	failAt int32
	calls  atomic.Int32
}

func (e *failingEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if e.calls.Add(1) == e.failAt {
		return nil, errors.New("boom")
	}
	return e.Encryptor.Encrypt(plaintext)
}

// failingStore fails the failAt-th RecordChunk call.
type failingStore struct {
	*store.Store
	failAt  int32
	records atomic.Int32
}

func (s *failingStore) RecordChunk(ctx context.Context, rec store.ChunkRecord) (bool, error) {
	if s.records.Add(1) == s.failAt {
		return false, errors.New("disk I/O error")
	}
	return s.Store.RecordChunk(ctx, rec)
}

func (f *fixture) importerWith(st importer.Persister, enc encryption.Encryptor) *importer.Importer {
	opts := importer.Options{ChunkSize: 1000, EncryptWorkers: 2, UploadWorkers: 2, QueueDepth: 2}
	return importer.New(st, f.backend, enc, progress.NewHub(nil), opts, nil)
}

// requireFailedImport drains h and checks the import ended with one failed
// event of kind and a failed album row.
func requireFailedImport(t *testing.T, f *fixture, h *importer.Handle, marker error, kind string) {
	t.Helper()
	events := drain(t, h)
	err := h.Wait()
	if !errors.Is(err, marker) {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
	failed := 0
	for _, evt := range events {
		switch evt.Kind {
		case progress.KindFailed:
			failed++
		case progress.KindComplete:
			t.Fatal("complete published for failed import")
		}
	}
	if failed != 1 {
		t.Fatalf("expected one failed event, got %d", failed)
	}
	last := events[len(events)-1]
	if last.Kind != progress.KindFailed || last.ErrorKind != kind {
		t.Fatalf("last event %+v", last)
	}
	album, err := f.store.GetAlbum(context.Background(), h.AlbumID)
	if err != nil || album == nil {
		t.Fatalf("get album: %v", err)
	}
	if album.Status != store.StatusFailed || !strings.Contains(album.ErrorMessage, kind) {
		t.Fatalf("album %+v", album)
	}
}

func TestImportEncryptFailure(t *testing.T) {
	f := newFixture(t)
	a, _ := f.file(t, "a.flac", 2, 5000)
	imp := f.importerWith(f.store, &failingEncryptor{Encryptor: f.sealer, failAt: 2})

	h, err := imp.Start(context.Background(), importer.Request{Title: "Scrambled", Files: []discovery.File{a}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireFailedImport(t, f, h, faults.ErrCrypto, "crypto")
}

func TestImportRecordChunkFailure(t *testing.T) {
	f := newFixture(t)
	a, _ := f.file(t, "a.flac", 6, 5000)
	imp := f.importerWith(&failingStore{Store: f.store, failAt: 2}, f.sealer)

	h, err := imp.Start(context.Background(), importer.Request{Title: "Unrecorded", Files: []discovery.File{a}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireFailedImport(t, f, h, faults.ErrPersistence, "persistence")
}

func TestImportKeepsFirstErrorWhenCancelledLater(t *testing.T) {
	f := newFixture(t)
	a, _ := f.file(t, "a.flac", 8, 3000)
	imp := f.importerWith(f.store, &failingEncryptor{Encryptor: f.sealer, failAt: 1})

	aborted := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gate := func(ctx context.Context, index int) error {
		if index == 0 {
			return nil
		}
		<-ctx.Done()
		once.Do(func() { close(aborted) })
		<-release
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := imp.Start(ctx, importer.Request{Title: "Interrupted", Files: []discovery.File{a}, Gate: gate})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-aborted:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not abort after the encrypt failure")
	}
	cancel()
	close(release)

	requireFailedImport(t, f, h, faults.ErrCrypto, "crypto")
	if errors.Is(h.Wait(), importer.ErrCancelled) {
		t.Fatal("cancellation replaced the first error")
	}
}
