package editor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ankek/mermaid-studio/internal/mermaid"
	"github.com/ankek/mermaid-studio/internal/store"
	"github.com/ankek/mermaid-studio/internal/theme"
)

// Manager defaults.
const (
	DefaultSessionTTL    = 30 * time.Minute
	DefaultRenderTimeout = 30 * time.Second
)

// Options configures a Manager.
type Options struct {
	// Renderers creates one renderer per session.
	Renderers mermaid.Factory
	Catalog   *theme.Catalog
	Exporter  Exporter
	// Drafts is optional; without it sessions cannot be restored.
	Drafts Drafts

	// Debounce is the quiescence window for source edits.
	// Default: 1.5 seconds.
	Debounce time.Duration

	// RenderTimeout bounds a single render.
	// Default: 30 seconds.
	RenderTimeout time.Duration

	// SessionTTL is how long an unused session lives.
	// Default: 30 minutes.
	SessionTTL time.Duration

	Logger zerolog.Logger
}

// Manager owns the live sessions.
type Manager struct {
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Renderers == nil {
		return nil, fmt.Errorf("renderer factory is required")
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("theme catalog is required")
	}
	if opts.Exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = DefaultRenderTimeout
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}

	return &Manager{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}, nil
}

func (m *Manager) newSession(id string) *Session {
	return newSession(id, sessionDeps{
		renderer:      m.opts.Renderers(),
		catalog:       m.opts.Catalog,
		exporter:      m.opts.Exporter,
		drafts:        m.opts.Drafts,
		logger:        m.logger,
		debounce:      m.opts.Debounce,
		renderTimeout: m.opts.RenderTimeout,
	})
}

// Create starts a session. A non-empty restoreID resumes that session: the
// live one if it still exists, otherwise a new one loaded from its draft
// and rendered.
func (m *Manager) Create(ctx context.Context, restoreID string) (*Session, error) {
	if restoreID == "" {
		s := m.newSession(uuid.New().String())
		m.mu.Lock()
		m.sessions[s.id] = s
		m.mu.Unlock()
		m.logger.Info().Str("session", s.id).Msg("Session created")
		return s, nil
	}

	if s, err := m.Get(restoreID); err == nil {
		return s, nil
	}
	if m.opts.Drafts == nil {
		return nil, ErrSessionNotFound
	}
	d, err := m.opts.Drafts.Get(ctx, restoreID)
	if errors.Is(err, store.ErrDraftNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore draft: %w", err)
	}

	s := m.newSession(d.SessionID)
	s.restore(d)

	m.mu.Lock()
	if existing, ok := m.sessions[s.id]; ok {
		m.mu.Unlock()
		s.Close()
		return existing, nil
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info().Str("session", s.id).Msg("Session restored")
	if strings.TrimSpace(d.Source) != "" {
		// The outcome is recorded in the session state.
		_ = s.Render(ctx)
	}
	return s, nil
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Close ends a session. Its draft is kept.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	m.logger.Info().Str("session", id).Msg("Session closed")
	return nil
}

// IDs returns the live session IDs in sorted order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reap closes sessions unused for longer than the TTL and returns how many.
func (m *Manager) Reap(now time.Time) int {
	cutoff := now.Add(-m.opts.SessionTTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.logger.Info().Str("session", s.id).Msg("Session expired")
	}
	return len(expired)
}

// Run reaps expired sessions until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.opts.SessionTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return nil
		case now := <-ticker.C:
			if n := m.Reap(now); n > 0 {
				m.logger.Debug().Int("expired", n).Msg("Reaped sessions")
			}
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
