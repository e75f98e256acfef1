package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/mermaid"
	"github.com/ankek/mermaid-studio/internal/store"
	"github.com/ankek/mermaid-studio/internal/svgdoc"
	"github.com/ankek/mermaid-studio/internal/theme"
)

const draftTimeout = 5 * time.Second

var errStale = errors.New("render superseded")

// Exporter turns a rendered document into a downloadable file.
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.File, error)
}

// Drafts persists the editable state of sessions.
type Drafts interface {
	Save(ctx context.Context, d *store.Draft) error
	Get(ctx context.Context, sessionID string) (*store.Draft, error)
}

// Session is one user's editor. Renders are serialized on the session's own
// renderer; only the result of the latest issued render is kept.
type Session struct {
	id            string
	renderer      mermaid.Renderer
	catalog       *theme.Catalog
	exporter      Exporter
	drafts        Drafts
	logger        zerolog.Logger
	renderTimeout time.Duration
	debouncer     *Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	// renderMu serializes Initialize and Render; configKey is guarded by it.
	renderMu  sync.Mutex
	configKey string

	exporting atomic.Bool

	mu          sync.Mutex
	source      string
	themeID     string
	font        string
	multiplier  float64
	doc         *svgdoc.Document
	svg         string
	containerID string
	latestID    string
	renderErr   string
	preview     PreviewKind
	rendering   int
	updatedAt   time.Time
	lastUsed    time.Time
	closed      bool
	subscribers map[chan State]struct{}
}

type sessionDeps struct {
	renderer      mermaid.Renderer
	catalog       *theme.Catalog
	exporter      Exporter
	drafts        Drafts
	logger        zerolog.Logger
	debounce      time.Duration
	renderTimeout time.Duration
}

func newSession(id string, deps sessionDeps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	s := &Session{
		id:            id,
		renderer:      deps.renderer,
		catalog:       deps.catalog,
		exporter:      deps.exporter,
		drafts:        deps.drafts,
		logger:        deps.logger.With().Str("session", id).Logger(),
		renderTimeout: deps.renderTimeout,
		ctx:           ctx,
		cancel:        cancel,
		themeID:       deps.catalog.Get("").ID,
		font:          theme.FontThemeDefault,
		multiplier:    1,
		preview:       PreviewPlaceholder,
		updatedAt:     now,
		lastUsed:      now,
		subscribers:   make(map[chan State]struct{}),
	}
	s.debouncer = NewDebouncer(deps.debounce, s.renderDebounced)
	return s
}

func (s *Session) restore(d *store.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = d.Source
	s.themeID = s.catalog.Get(d.Theme).ID
	if theme.KnownFont(d.Font) {
		s.font = d.Font
	}
	s.multiplier = export.NormalizeMultiplier(d.Multiplier)
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := State{
		ID:         s.id,
		Source:     s.source,
		Theme:      s.themeID,
		Font:       s.font,
		Multiplier: s.multiplier,
		Background: theme.Background(s.catalog.Get(s.themeID)),
		Preview:    s.preview,
		Error:      s.renderErr,
		Pending:    s.debouncer.State() == DebouncePending,
		Rendering:  s.rendering > 0,
		Exporting:  s.exporting.Load(),
		UpdatedAt:  s.updatedAt,
	}
	switch s.preview {
	case PreviewGraphic:
		st.SVG = s.svg
		st.ContainerID = s.containerID
	case PreviewError:
		st.Message = ErrorPlaceholderText
	default:
		st.Message = PlaceholderText
	}
	return st
}

// SetSource replaces the diagram source and schedules a debounced render.
func (s *Session) SetSource(source string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.source = source
	s.lastUsed = time.Now()
	s.debouncer.Trigger()
	s.notifyLocked()
	s.mu.Unlock()

	s.saveDraft()
	return nil
}

// SetAppearance selects a theme and font and re-renders immediately. An
// unknown theme selects the default theme; an empty font selects the
// theme's own font.
func (s *Session) SetAppearance(ctx context.Context, themeID, font string) error {
	if font == "" {
		font = theme.FontThemeDefault
	}
	if !theme.KnownFont(font) {
		return fmt.Errorf("%w: %s", ErrUnknownFont, font)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.themeID = s.catalog.Get(themeID).ID
	s.font = font
	s.lastUsed = time.Now()
	s.mu.Unlock()

	s.saveDraft()
	return s.Render(ctx)
}

// SetMultiplier selects the default export resolution multiplier.
func (s *Session) SetMultiplier(m float64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.multiplier = export.NormalizeMultiplier(m)
	s.lastUsed = time.Now()
	s.notifyLocked()
	s.mu.Unlock()

	s.saveDraft()
	return nil
}

// Render renders the current source now, dropping a pending debounced
// render. A RenderError is recorded in the session state and returned.
func (s *Session) Render(ctx context.Context) error {
	s.debouncer.Cancel()
	return s.render(ctx)
}

func (s *Session) renderDebounced() {
	if err := s.render(s.ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Debug().Err(err).Msg("Debounced render failed")
	}
}

func (s *Session) render(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	source := strings.TrimSpace(s.source)
	cfg := theme.RenderConfig(s.catalog.Get(s.themeID), s.font)

	if source == "" {
		s.latestID = ""
		s.renderErr = ""
		s.doc, s.svg, s.containerID = nil, "", ""
		s.preview = PreviewPlaceholder
		s.updatedAt = time.Now()
		s.notifyLocked()
		s.mu.Unlock()
		return nil
	}

	id := mermaid.NextContainerID()
	s.latestID = id
	s.rendering++
	s.notifyLocked()
	s.mu.Unlock()

	start := time.Now()
	doc, svg, err := s.runRenderer(ctx, id, cfg, source)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendering--

	if errors.Is(err, errStale) || id != s.latestID {
		s.logger.Debug().
			Str("container", id).
			Str("latest", s.latestID).
			Msg("Discarding superseded render")
		s.notifyLocked()
		return nil
	}

	// Cancelled renders keep the previous preview.
	if err != nil && ctx.Err() != nil {
		s.logger.Debug().
			Err(err).
			Str("container", id).
			Msg("Render cancelled, keeping previous preview")
		s.notifyLocked()
		return ctx.Err()
	}

	s.updatedAt = time.Now()
	if err != nil {
		msg := err.Error()
		var re *mermaid.RenderError
		if errors.As(err, &re) {
			msg = re.Message
		}
		if strings.TrimSpace(msg) == "" {
			msg = UnknownRenderError
		}
		s.renderErr = RenderErrorPrefix + msg
		s.preview = PreviewError
		s.doc, s.svg, s.containerID = nil, "", ""
		s.logger.Warn().Err(err).Str("container", id).Msg("Render failed")
		s.notifyLocked()
		return err
	}

	s.doc, s.svg, s.containerID = doc, string(svg), id
	s.renderErr = ""
	s.preview = PreviewGraphic
	s.logger.Info().
		Str("container", id).
		Str("theme", s.themeID).
		Int("bytes", len(svg)).
		Dur("duration", time.Since(start)).
		Msg("Rendered diagram")
	s.notifyLocked()
	return nil
}

func (s *Session) runRenderer(ctx context.Context, id string, cfg mermaid.Config, source string) (*svgdoc.Document, []byte, error) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	if s.isStale(id) {
		return nil, nil, errStale
	}
	if key := cfg.Key(); key != s.configKey {
		s.renderer.Initialize(cfg)
		s.configKey = key
	}

	if s.renderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.renderTimeout)
		defer cancel()
	}
	res, err := s.renderer.Render(ctx, id, source)
	if err != nil {
		return nil, nil, err
	}
	doc, err := svgdoc.Parse(res.SVG)
	if err != nil {
		return nil, nil, &mermaid.RenderError{Message: fmt.Sprintf("renderer returned invalid SVG: %v", err)}
	}
	return doc, res.SVG, nil
}

func (s *Session) isStale(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != s.latestID
}

// Export exports the current document with the background of the theme
// selected now. A non-positive multiplier uses the session's selection.
func (s *Session) Export(ctx context.Context, format export.Format, multiplier float64) (*export.File, error) {
	if !s.exporting.CompareAndSwap(false, true) {
		return nil, ErrExportInProgress
	}
	defer s.exporting.Store(false)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	doc := s.doc
	themeID := s.themeID
	if multiplier <= 0 {
		multiplier = s.multiplier
	}
	s.lastUsed = time.Now()
	s.mu.Unlock()

	if doc == nil {
		return nil, ErrNoGraphic
	}

	file, err := s.exporter.Export(ctx, export.Request{
		Document:   doc,
		Background: theme.Background(s.catalog.Get(themeID)),
		Multiplier: multiplier,
		Format:     format,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("format", string(format)).Msg("Export failed")
		return nil, err
	}
	return file, nil
}

// Subscribe returns a channel receiving the current state and then every
// change. Slow readers only see the latest state. The channel is closed by
// the returned cancel function or when the session closes.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
}

func (s *Session) notifyLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	st := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- st:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

func (s *Session) saveDraft() {
	if s.drafts == nil {
		return
	}
	s.mu.Lock()
	d := &store.Draft{
		SessionID:  s.id,
		Source:     s.source,
		Theme:      s.themeID,
		Font:       s.font,
		Multiplier: s.multiplier,
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, draftTimeout)
	defer cancel()
	if err := s.drafts.Save(ctx, d); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to save draft")
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close stops pending renders and closes subscriber channels.
func (s *Session) Close() {
	s.debouncer.Stop()
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}
