// Package server exposes editor sessions over HTTP and serves the embedded
// editor page.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ankek/mermaid-studio/internal/editor"
	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/mermaid"
	"github.com/ankek/mermaid-studio/internal/theme"
)

//go:embed static
var staticFiles embed.FS

const (
	maxSourceBodyBytes     = 1 << 20
	maxSmallBodyBytes      = 4 * 1024
	defaultShutdownTimeout = 10 * time.Second
	keepAliveInterval      = 25 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
	Manager         *editor.Manager
	Catalog         *theme.Catalog
	// Debounce is reported to the page; the sessions apply it.
	Debounce time.Duration
	Logger   zerolog.Logger
}

// Server is the HTTP front end of the editor.
type Server struct {
	opts    Options
	manager *editor.Manager
	catalog *theme.Catalog
	logger  zerolog.Logger
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Manager == nil {
		return nil, errors.New("session manager is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("theme catalog is required")
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	return &Server{
		opts:    opts,
		manager: opts.Manager,
		catalog: opts.Catalog,
		logger:  opts.Logger,
	}, nil
}

// Routes returns the HTTP handler with every route registered.
func (s *Server) Routes() http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static files: %v", err))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(static))
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /api/catalog", s.getCatalog)
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.closeSession)
	mux.HandleFunc("PUT /api/sessions/{id}/source", s.setSource)
	mux.HandleFunc("POST /api/sessions/{id}/render", s.render)
	mux.HandleFunc("PUT /api/sessions/{id}/appearance", s.setAppearance)
	mux.HandleFunc("PUT /api/sessions/{id}/multiplier", s.setMultiplier)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.events)
	mux.HandleFunc("GET /api/sessions/{id}/export", s.exportFile)
	return accessLog(s.logger, mux)
}

// Run serves until ctx is canceled, then shuts down gracefully. The session
// manager's reaper runs for the same lifetime.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: s.opts.ReadTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		_ = s.manager.Run(reaperCtx)
	}()

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("mermaid-studio server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("mermaid-studio server shutting down...")
		// Close sessions first so event streams end and Shutdown can finish.
		stopReaper()
		<-reaperDone

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	s.logger.Info().Msg("mermaid-studio server shutdown complete")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CatalogTheme is one theme selector entry.
type CatalogTheme struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Kind       theme.Kind `json:"kind"`
	Background string     `json:"background"`
}

// Catalog lists the selector contents of the editor page.
type Catalog struct {
	Themes       []CatalogTheme     `json:"themes"`
	Fonts        []theme.FontOption `json:"fonts"`
	Multipliers  []float64          `json:"multipliers"`
	DefaultTheme string             `json:"default_theme"`
	DefaultFont  string             `json:"default_font"`
	DebounceMS   int64              `json:"debounce_ms"`
}

func (s *Server) getCatalog(w http.ResponseWriter, r *http.Request) {
	out := Catalog{
		Fonts:        theme.Fonts(),
		Multipliers:  export.SupportedMultipliers,
		DefaultTheme: s.catalog.Get("").ID,
		DefaultFont:  theme.FontThemeDefault,
		DebounceMS:   s.opts.Debounce.Milliseconds(),
	}
	for _, d := range s.catalog.List() {
		out.Themes = append(out.Themes, CatalogTheme{
			ID:         d.ID,
			Name:       d.Name,
			Kind:       d.Kind,
			Background: theme.Background(d),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type sessionResponse struct {
	ID    string       `json:"id"`
	State editor.State `json:"state"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Restore string `json:"restore"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSONBody(w, r, maxSmallBodyBytes, &req); err != nil {
			return
		}
	}

	sess, err := s.manager.Create(r.Context(), strings.TrimSpace(req.Restore))
	if err != nil {
		writeMappedErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.ID(), State: sess.State()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sess, err := s.manager.Get(r.PathValue("id"))
	if err != nil {
		writeMappedErr(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(r.PathValue("id")); err != nil {
		writeMappedErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Source string `json:"source"`
	}
	if err := decodeJSONBody(w, r, maxSourceBodyBytes, &req); err != nil {
		return
	}
	if err := sess.SetSource(req.Source); err != nil {
		writeMappedErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, sess.State())
}

// render answers with the session state even when the source is invalid;
// the state carries the render error.
func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Render(r.Context()); err != nil && !isRenderError(err) {
		writeMappedErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) setAppearance(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Theme string `json:"theme"`
		Font  string `json:"font"`
	}
	if err := decodeJSONBody(w, r, maxSmallBodyBytes, &req); err != nil {
		return
	}
	if err := sess.SetAppearance(r.Context(), req.Theme, req.Font); err != nil && !isRenderError(err) {
		writeMappedErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) setMultiplier(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Multiplier float64 `json:"multiplier"`
	}
	if err := decodeJSONBody(w, r, maxSmallBodyBytes, &req); err != nil {
		return
	}
	if err := sess.SetMultiplier(req.Multiplier); err != nil {
		writeMappedErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) exportFile(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "BAD_FORMAT", err.Error())
		return
	}
	multiplier := 0.0
	if v := q.Get("multiplier"); v != "" {
		multiplier = export.ParseMultiplier(v)
	}

	file, err := sess.Export(r.Context(), format, multiplier)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", sess.ID()).Str("format", string(format)).Msg("Export rejected")
		writeMappedErr(w, err)
		return
	}

	w.Header().Set("Content-Type", file.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func isRenderError(err error) bool {
	var re *mermaid.RenderError
	return errors.As(err, &re)
}
