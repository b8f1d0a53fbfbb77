package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"spool/internal/api"
	"spool/internal/app"
	"spool/internal/discovery"
	"spool/internal/keyring"
	"spool/internal/progress"
	"spool/internal/testsupport"
)

type apiEnv struct {
	app    *app.App
	server *httptest.Server
	source string
	files  map[string][]byte
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	kr, err := keyring.Ephemeral()
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	a, err := app.Open(cfg, nil, app.WithKeyring(kr))
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	srv := api.NewServer(cfg.Paths.APIBind, api.Deps{
		Store:      a.Store,
		Importer:   a.Importer,
		Reassembly: a.Reassembly,
		Hub:        a.Hub,
		Discovery:  discovery.Options{Extensions: cfg.Discovery.Extensions},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	source := filepath.Join(t.TempDir(), "the_band_-_first_light")
	files := map[string][]byte{
		"01.flac": testsupport.WritePatternFile(t, filepath.Join(source, "01.flac"), 1, 2345),
		"02.flac": testsupport.WritePatternFile(t, filepath.Join(source, "02.flac"), 2, 1800),
	}
	return &apiEnv{app: a, server: ts, source: source, files: files}
}

func (e *apiEnv) getJSON(t *testing.T, path string, want int, out any) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: status %d, want %d (%s)", path, resp.StatusCode, want, body)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
}

func (e *apiEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvents(t *testing.T, conn *websocket.Conn) []progress.Event {
	t.Helper()
	var events []progress.Event
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var evt progress.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return events
			}
			t.Fatalf("read event after %d events: %v", len(events), err)
		}
		events = append(events, evt)
	}
}

func (e *apiEnv) importAlbum(t *testing.T) api.ImportResponse {
	t.Helper()
	body := fmt.Sprintf(`{"path":%q,"chunkSize":1000}`, e.source)
	resp, err := http.Post(e.server.URL+"/api/imports", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST imports: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST imports: status %d (%s)", resp.StatusCode, raw)
	}
	var out api.ImportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode import response: %v", err)
	}

	events := readEvents(t, e.dial(t, out.EventsURL))
	if len(events) == 0 || events[len(events)-1].Kind != progress.KindComplete {
		t.Fatalf("expected stream to end with complete, got %+v", events)
	}
	return out
}

func TestHealthAndEmptyList(t *testing.T) {
	env := newAPIEnv(t)

	var health api.HealthResponse
	env.getJSON(t, "/api/health", http.StatusOK, &health)
	if health.Status != "ok" || health.Albums["complete"] != 0 {
		t.Fatalf("unexpected health %+v", health)
	}

	var list api.AlbumListResponse
	env.getJSON(t, "/api/albums", http.StatusOK, &list)
	if len(list.Albums) != 0 {
		t.Fatalf("expected no albums, got %d", len(list.Albums))
	}
	env.getJSON(t, "/api/albums?status=bogus", http.StatusBadRequest, nil)
	env.getJSON(t, "/api/albums/42", http.StatusNotFound, nil)
	env.getJSON(t, "/api/albums/42/tracks", http.StatusNotFound, nil)
	env.getJSON(t, "/api/tracks/42/stream", http.StatusNotFound, nil)
	env.getJSON(t, "/api/nowhere", http.StatusNotFound, nil)
}

func TestImportBrowseAndStream(t *testing.T) {
	env := newAPIEnv(t)
	imported := env.importAlbum(t)
	if imported.TotalChunks != 5 || len(imported.Tracks) != 2 {
		t.Fatalf("unexpected import response %+v", imported)
	}

	var album api.AlbumResponse
	env.getJSON(t, fmt.Sprintf("/api/albums/%d", imported.AlbumID), http.StatusOK, &album)
	if album.Album.Status != "complete" || album.Album.Title != "The Band - First Light" {
		t.Fatalf("unexpected album %+v", album.Album)
	}
	for _, tr := range album.Tracks {
		if !tr.Available || tr.StreamURL == "" {
			t.Fatalf("track %d not available: %+v", tr.Number, tr)
		}
	}

	second := album.Tracks[1]
	resp, err := http.Get(env.server.URL + second.StreamURL)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	got, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "audio/flac" {
		t.Fatalf("stream status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.Equal(got, env.files["02.flac"]) {
		t.Fatalf("streamed %d bytes differ from source", len(got))
	}

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+second.StreamURL, nil)
	req.Header.Set("Range", "bytes=990-1009")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	got, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("range status %d", resp.StatusCode)
	}
	if !bytes.Equal(got, env.files["02.flac"][990:1010]) {
		t.Fatal("range bytes differ")
	}
}

func TestEventsForFinishedTrack(t *testing.T) {
	env := newAPIEnv(t)
	imported := env.importAlbum(t)

	trackID := imported.Tracks[0].ID
	conn := env.dial(t, fmt.Sprintf("/api/albums/%d/events?track=%d", imported.AlbumID, trackID))
	events := readEvents(t, conn)
	if len(events) != 2 {
		t.Fatalf("expected 2 synthesized events, got %+v", events)
	}
	if events[0].Kind != progress.KindTrackComplete || events[0].TrackID != trackID {
		t.Fatalf("first event %+v", events[0])
	}
	if events[1].Kind != progress.KindComplete {
		t.Fatalf("second event %+v", events[1])
	}
}

func TestEventsUnknownAlbum(t *testing.T) {
	env := newAPIEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/albums/99/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %v", resp)
	}
}

func TestImportValidation(t *testing.T) {
	env := newAPIEnv(t)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{`, http.StatusBadRequest},
		{"unknown field", `{"path":"/x","colour":"red"}`, http.StatusBadRequest},
		{"missing path", `{"title":"x"}`, http.StatusBadRequest},
		{"empty folder", fmt.Sprintf(`{"path":%q}`, t.TempDir()), http.StatusBadRequest},
		{"bad chunk size", fmt.Sprintf(`{"path":%q,"chunkSize":-4}`, env.source), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(env.server.URL+"/api/imports", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}
