package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"spool/internal/discovery"
	"spool/internal/faults"
	"spool/internal/importer"
	"spool/internal/logging"
	"spool/internal/progress"
	"spool/internal/reassembly"
	"spool/internal/store"
)

// ImportStarter launches imports.
type ImportStarter interface {
	Start(ctx context.Context, req importer.Request) (*importer.Handle, error)
}

// Deps are the capabilities a Server serves.
type Deps struct {
	Store      AlbumReader
	Importer   ImportStarter
	Reassembly *reassembly.Service
	Hub        *progress.Hub
	Discovery  discovery.Options
	Logger     *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	bind      string
	logger    *slog.Logger
	albums    *AlbumService
	store     AlbumReader
	importer  ImportStarter
	reader    *reassembly.Service
	hub       *progress.Hub
	discovery discovery.Options
	upgrader  websocket.Upgrader
	router    *mux.Router

	baseCtx  context.Context
	listener net.Listener
	server   *http.Server
}

// NewServer builds the router. Imports started through the server run on
// context.Background until Start supplies the server's lifetime context.
func NewServer(bind string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:      strings.TrimSpace(bind),
		logger:    logging.NewComponentLogger(logger, "api-server"),
		albums:    NewAlbumService(deps.Store),
		store:     deps.Store,
		importer:  deps.Importer,
		reader:    deps.Reassembly,
		hub:       deps.Hub,
		discovery: deps.Discovery,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		baseCtx: context.Background(),
	}

	r := mux.NewRouter()
	r.Use(s.withRequestID)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/albums", s.handleAlbums).Methods(http.MethodGet)
	r.HandleFunc("/api/albums/{id:[0-9]+}", s.handleAlbum).Methods(http.MethodGet)
	r.HandleFunc("/api/albums/{id:[0-9]+}/tracks", s.handleTracks).Methods(http.MethodGet)
	r.HandleFunc("/api/albums/{id:[0-9]+}/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks/{id:[0-9]+}/stream", s.handleStream).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/imports", s.handleImport).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	})
	s.router = r

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Streams and event sockets run for as long as the client listens.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the bind address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return faults.Wrap(faults.ErrConfiguration, "api", "listen", "paths.api_bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.baseCtx = ctx

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := logging.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.albums.Stats(r.Context())
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	resp := HealthResponse{Status: "ok", Albums: stats}
	if s.hub != nil {
		resp.Subscriptions = s.hub.Len()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	var statuses []store.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := store.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed), "validation")
			return
		}
		statuses = append(statuses, status)
	}
	albums, err := s.albums.List(r.Context(), statuses...)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, AlbumListResponse{Albums: albums})
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.albums.Describe(r.Context(), id)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	if resp == nil {
		s.writeError(w, http.StatusNotFound, "album not found", "not_found")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	tracks, found, err := s.albums.Tracks(r.Context(), id)
	if err != nil {
		s.writeFault(w, r, err)
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "album not found", "not_found")
		return
	}
	s.writeJSON(w, http.StatusOK, TrackListResponse{Tracks: tracks})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id", "validation")
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

// writeFault maps a tagged error to an HTTP status.
func (s *Server) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, faults.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, faults.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, faults.ErrTransport):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	s.writeError(w, status, err.Error(), faults.Kind(err))
}
