// Package web serves a session as a single page: the intake and orchestrator state rendered server-side, a small set
// of JSON actions to drive them, and a websocket stream of session events for live updates.
package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/bsky-video-dl/internal/address"
	"github.com/alanbriolat/bsky-video-dl/internal/intake"
	"github.com/alanbriolat/bsky-video-dl/internal/orchestrator"
	"github.com/alanbriolat/bsky-video-dl/internal/session"
)

// BlobPath is where preview handles are served; use it as the session's BlobURLPrefix.
const BlobPath = "/blob/"

//go:embed page.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "page.html"))

type Config struct {
	Listen       string
	WriteTimeout time.Duration
	PingInterval time.Duration
	// ShutdownTimeout bounds how long in-flight requests get once the server is told to stop.
	ShutdownTimeout time.Duration
}

var DefaultConfig = Config{
	Listen:          "127.0.0.1:8080",
	WriteTimeout:    10 * time.Second,
	PingInterval:    30 * time.Second,
	ShutdownTimeout: 5 * time.Second,
}

// Snapshot is everything the page shows.
type Snapshot struct {
	Intake       intake.State       `json:"intake"`
	Orchestrator orchestrator.State `json:"orchestrator"`
	Address      string             `json:"address,omitempty"`
}

// Message is one websocket frame. The first frame on a connection has Kind "snapshot"; the rest mirror session
// events.
type Message struct {
	Kind         string              `json:"kind"`
	Intake       *intake.State       `json:"intake,omitempty"`
	Orchestrator *orchestrator.State `json:"orchestrator,omitempty"`
	URL          string              `json:"url,omitempty"`
	Address      string              `json:"address,omitempty"`
}

type Server struct {
	config   Config
	session  *session.Session
	log      *zap.SugaredLogger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

func New(config Config, s *session.Session) *Server {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig.WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultConfig.PingInterval
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig.ShutdownTimeout
	}
	srv := &Server{
		config:  config,
		session: s,
		log:     zap.S().Named("web"),
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	srv.mux.HandleFunc("GET /{$}", srv.handlePage)
	srv.mux.HandleFunc("GET /api/state", srv.handleState)
	srv.mux.HandleFunc("POST /api/input", srv.handleInput)
	srv.mux.HandleFunc("POST /api/check", srv.handleCheck)
	srv.mux.HandleFunc("POST /api/enter", srv.handleEnter)
	srv.mux.HandleFunc("POST /api/save", srv.handleSave)
	srv.mux.HandleFunc("GET /ws", srv.handleEvents)
	srv.mux.HandleFunc("GET "+BlobPath+"{id}", srv.handleBlob)
	return srv
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.mux.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (srv *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:    srv.config.Listen,
		Handler: srv,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}
	served := make(chan error, 1)
	go func() {
		srv.log.Infow("listening", "address", srv.config.Listen)
		served <- server.ListenAndServe()
	}()

	var result *multierror.Error
	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := <-served; err != nil && !errors.Is(err, http.ErrServerClosed) {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (srv *Server) snapshot() (Snapshot, error) {
	var snap Snapshot
	snap.Intake = srv.session.Intake().State()
	state, err := srv.session.Orchestrator().State()
	if err != nil {
		return snap, err
	}
	snap.Orchestrator = state
	if current, err := srv.session.Address().Current(); err == nil && current != nil {
		snap.Address = current.String()
	}
	return snap, nil
}

func (srv *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	// A shared link replays into the intake, unless it's already what the intake has confirmed
	if postURL, ok := address.PostURL(r.URL); ok && srv.session.Intake().State().Confirmed != postURL {
		if err := srv.session.Intake().SetURL(r.Context(), postURL); err != nil {
			srv.fail(w, r, err)
			return
		}
	}
	snap, err := srv.snapshot()
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, snap); err != nil {
		srv.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (srv *Server) handleState(w http.ResponseWriter, r *http.Request) {
	srv.respondState(w, r, http.StatusOK)
}

func (srv *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	srv.session.Intake().Edit(r.FormValue("text"))
	srv.respondState(w, r, http.StatusOK)
}

func (srv *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if err := srv.session.Intake().Check(r.Context()); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.respondState(w, r, http.StatusOK)
}

func (srv *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	if err := srv.session.Intake().Enter(r.Context()); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.respondState(w, r, http.StatusOK)
}

func (srv *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	path, err := srv.session.Orchestrator().Save(r.Context())
	switch {
	case errors.Is(err, orchestrator.ErrNoResource), errors.Is(err, orchestrator.ErrNotReady),
		errors.Is(err, orchestrator.ErrClosed):
		srv.fail(w, r, err)
		return
	case err != nil:
		// The failure is already in the orchestrator state
		srv.log.Infow("save failed", "error", err)
	default:
		srv.log.Infow("saved", "path", path)
	}
	srv.respondState(w, r, http.StatusOK)
}

func (srv *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	blob, ok := srv.session.Store().Open(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(blob.Data))
}

func (srv *Server) respondState(w http.ResponseWriter, r *http.Request, status int) {
	snap, err := srv.snapshot()
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, status, snap)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (srv *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, intake.ErrNotReady), errors.Is(err, orchestrator.ErrNotReady),
		errors.Is(err, orchestrator.ErrNoResource):
		status = http.StatusConflict
	case errors.Is(err, intake.ErrClosed), errors.Is(err, orchestrator.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	srv.log.Debugw("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
