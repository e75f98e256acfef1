package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/mermaid"
	"github.com/ankek/mermaid-studio/internal/store"
	"github.com/ankek/mermaid-studio/internal/theme"
)

// graphSVG is what the renderer returns for "graph TD; A-->B".
func graphSVG(id string) string {
	return fmt.Sprintf(`<svg id="%s" width="100%%" xmlns="http://www.w3.org/2000/svg" style="max-width: 62.5px;" viewBox="-8 -8 62.5 174">
<style>#%[1]s .node rect{fill:#ECECFF;stroke:#9370DB;stroke-width:1px;}</style>
<g class="node" transform="translate(23.25, 25.5)"><rect x="-23.25" y="-25.5" width="46.5" height="51"/><text y="5">A</text></g>
<path d="M23.25,51L23.25,101" stroke="#333" fill="none"/>
<g class="node" transform="translate(23.25, 132.5)"><rect x="-20.5" y="-25.5" width="41" height="51"/><text y="5">B</text></g>
</svg>`, id)
}

type fakeRenderer struct {
	mu      sync.Mutex
	configs []mermaid.Config
	ids     []string
	sources []string
	render  func(ctx context.Context, id, source string) (*mermaid.Result, error)
}

func (r *fakeRenderer) Initialize(cfg mermaid.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
}

func (r *fakeRenderer) Render(ctx context.Context, id, source string) (*mermaid.Result, error) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.sources = append(r.sources, source)
	render := r.render
	r.mu.Unlock()

	if render != nil {
		return render(ctx, id, source)
	}
	return &mermaid.Result{ContainerID: id, SVG: []byte(graphSVG(id))}, nil
}

func (r *fakeRenderer) calls() ([]string, []string, []mermaid.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...), append([]string(nil), r.sources...), append([]mermaid.Config(nil), r.configs...)
}

type fakeExporter struct {
	mu      sync.Mutex
	reqs    []export.Request
	block   chan struct{}
	started chan struct{}
}

func (e *fakeExporter) Export(ctx context.Context, req export.Request) (*export.File, error) {
	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	e.mu.Unlock()
	if e.started != nil {
		e.started <- struct{}{}
	}
	if e.block != nil {
		<-e.block
	}
	return &export.File{Name: export.FileName(req.Multiplier, req.Format)}, nil
}

func (e *fakeExporter) last() export.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reqs[len(e.reqs)-1]
}

func newTestManager(t *testing.T, r *fakeRenderer, exp Exporter, drafts Drafts) *Manager {
	t.Helper()
	if exp == nil {
		exp = &fakeExporter{}
	}
	m, err := NewManager(Options{
		Renderers: func() mermaid.Renderer { return r },
		Catalog:   theme.Builtin(),
		Exporter:  exp,
		Drafts:    drafts,
		Debounce:  20 * time.Millisecond,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(m.closeAll)
	return m
}

func latestID(s *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestID
}

func newTestSession(t *testing.T, r *fakeRenderer, exp Exporter) *Session {
	t.Helper()
	s, err := newTestManager(t, r, exp, nil).Create(context.Background(), "")
	require.NoError(t, err)
	return s
}

func TestEmptySourceShowsPlaceholder(t *testing.T) {
	r := &fakeRenderer{}
	s := newTestSession(t, r, nil)

	st := s.State()
	assert.Equal(t, PreviewPlaceholder, st.Preview)
	assert.Equal(t, PlaceholderText, st.Message)
	assert.Equal(t, theme.DefaultID, st.Theme)
	assert.Equal(t, theme.FontThemeDefault, st.Font)

	require.NoError(t, s.SetSource("  \n\t "))
	require.NoError(t, s.Render(context.Background()))

	ids, _, _ := r.calls()
	assert.Empty(t, ids)
	assert.Equal(t, PreviewPlaceholder, s.State().Preview)

	for _, f := range []export.Format{export.FormatSVG, export.FormatPNG} {
		_, err := s.Export(context.Background(), f, 1)
		assert.ErrorIs(t, err, ErrNoGraphic)
	}
}

func TestRender(t *testing.T) {
	r := &fakeRenderer{}
	s := newTestSession(t, r, nil)

	require.NoError(t, s.SetSource("graph TD; A-->B"))
	require.NoError(t, s.Render(context.Background()))

	st := s.State()
	assert.Equal(t, PreviewGraphic, st.Preview)
	assert.True(t, strings.HasPrefix(st.ContainerID, mermaid.ContainerIDPrefix))
	assert.Contains(t, st.SVG, st.ContainerID)
	assert.Empty(t, st.Error)
	assert.False(t, st.Pending, "an explicit render drops the debounced one")

	ids, sources, configs := r.calls()
	require.Len(t, ids, 1)
	assert.Equal(t, "graph TD; A-->B", sources[0])
	require.Len(t, configs, 1)
	assert.Equal(t, "default", configs[0].Theme)
	assert.Equal(t, "loose", configs[0].SecurityLevel)

	// Same configuration: no second Initialize. Every render gets a new ID.
	require.NoError(t, s.Render(context.Background()))
	ids, _, configs = r.calls()
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
	assert.Len(t, configs, 1)

	require.NoError(t, s.SetAppearance(context.Background(), "mermaidDark", theme.FontKaiti))
	ids, _, configs = r.calls()
	assert.Len(t, ids, 3)
	require.Len(t, configs, 2)
	assert.Equal(t, "dark", configs[1].Theme)
	assert.Equal(t, theme.FontKaiti, configs[1].FontFamily)
	assert.Equal(t, "#333333", s.State().Background)
}

func TestRenderError(t *testing.T) {
	fail := true
	r := &fakeRenderer{}
	r.render = func(_ context.Context, id, _ string) (*mermaid.Result, error) {
		if fail {
			return nil, &mermaid.RenderError{Message: "Parse error on line 1"}
		}
		return &mermaid.Result{ContainerID: id, SVG: []byte(graphSVG(id))}, nil
	}
	s := newTestSession(t, r, nil)

	require.NoError(t, s.SetSource("graph TD; A--"))
	err := s.Render(context.Background())
	var re *mermaid.RenderError
	require.True(t, errors.As(err, &re))

	st := s.State()
	assert.Equal(t, PreviewError, st.Preview)
	assert.Equal(t, "Mermaid render failed:\nParse error on line 1", st.Error)
	assert.Equal(t, ErrorPlaceholderText, st.Message)
	assert.Empty(t, st.SVG)

	_, err = s.Export(context.Background(), export.FormatSVG, 1)
	assert.ErrorIs(t, err, ErrNoGraphic)

	fail = false
	require.NoError(t, s.Render(context.Background()))
	st = s.State()
	assert.Equal(t, PreviewGraphic, st.Preview)
	assert.Empty(t, st.Error, "a successful render clears the error region")
}

func TestCancelledRenderKeepsPreview(t *testing.T) {
	tests := []struct {
		name     string
		previous func(s *Session, fail *bool)
		want     PreviewKind
		wantErr  string
	}{
		{
			name: "graphic",
			previous: func(s *Session, _ *bool) {
				require.NoError(t, s.Render(context.Background()))
			},
			want: PreviewGraphic,
		},
		{
			name: "render error",
			previous: func(s *Session, fail *bool) {
				*fail = true
				require.Error(t, s.Render(context.Background()))
				*fail = false
			},
			want:    PreviewError,
			wantErr: "Mermaid render failed:\nParse error on line 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fail bool
			var cancel context.CancelFunc
			r := &fakeRenderer{}
			r.render = func(ctx context.Context, id, _ string) (*mermaid.Result, error) {
				if fail {
					return nil, &mermaid.RenderError{Message: "Parse error on line 1"}
				}
				if cancel != nil {
					cancel()
					<-ctx.Done()
					return nil, fmt.Errorf("kroki request: %w", ctx.Err())
				}
				return &mermaid.Result{ContainerID: id, SVG: []byte(graphSVG(id))}, nil
			}
			s := newTestSession(t, r, nil)
			require.NoError(t, s.SetSource("graph TD; A-->B"))
			tt.previous(s, &fail)
			before := s.State()

			ctx, cancelCtx := context.WithCancel(context.Background())
			defer cancelCtx()
			cancel = cancelCtx
			err := s.Render(ctx)
			assert.ErrorIs(t, err, context.Canceled)

			st := s.State()
			assert.Equal(t, tt.want, st.Preview)
			assert.Equal(t, tt.wantErr, st.Error)
			assert.Equal(t, before.SVG, st.SVG)
			assert.Equal(t, before.ContainerID, st.ContainerID)
			assert.False(t, st.Rendering)
		})
	}
}

func TestRenderRejectsInvalidSVG(t *testing.T) {
	r := &fakeRenderer{render: func(_ context.Context, id, _ string) (*mermaid.Result, error) {
		return &mermaid.Result{ContainerID: id, SVG: []byte("<html/>")}, nil
	}}
	s := newTestSession(t, r, nil)
	require.NoError(t, s.SetSource("graph TD; A-->B"))

	err := s.Render(context.Background())
	require.Error(t, err)
	assert.Contains(t, s.State().Error, RenderErrorPrefix+"renderer returned invalid SVG")
}

func TestSetSourceDebounces(t *testing.T) {
	r := &fakeRenderer{}
	s := newTestSession(t, r, nil)

	for _, src := range []string{"graph TD; A", "graph TD; A-->", "graph TD; A-->B"} {
		require.NoError(t, s.SetSource(src))
	}
	assert.True(t, s.State().Pending)

	assert.Eventually(t, func() bool {
		return s.State().Preview == PreviewGraphic
	}, 2*time.Second, 5*time.Millisecond)

	// Let a stray timer fire if the debouncer were broken.
	time.Sleep(60 * time.Millisecond)
	_, sources, _ := r.calls()
	assert.Equal(t, []string{"graph TD; A-->B"}, sources)
}

func TestSupersededRendersAreDiscarded(t *testing.T) {
	started := make(chan string, 3)
	release := make(chan struct{})
	r := &fakeRenderer{}
	r.render = func(_ context.Context, id, _ string) (*mermaid.Result, error) {
		started <- id
		<-release
		return &mermaid.Result{ContainerID: id, SVG: []byte(graphSVG(id))}, nil
	}
	s := newTestSession(t, r, nil)
	require.NoError(t, s.SetSource("graph TD; A-->B"))

	var wg sync.WaitGroup
	renderAsync := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Render(context.Background())
		}()
	}

	renderAsync()
	first := <-started

	// Two more renders queue behind the first; only the last one runs.
	renderAsync()
	assert.Eventually(t, func() bool { return latestID(s) != first }, time.Second, time.Millisecond)
	second := latestID(s)
	renderAsync()
	assert.Eventually(t, func() bool { return latestID(s) != second }, time.Second, time.Millisecond)
	third := latestID(s)

	close(release)
	wg.Wait()

	ids, _, _ := r.calls()
	assert.Equal(t, []string{first, third}, ids)
	assert.Equal(t, third, s.State().ContainerID)
}

func TestThemeSwitchKeepsDocumentUntilRendered(t *testing.T) {
	block := make(chan struct{})
	blocking := false
	var mu sync.Mutex
	r := &fakeRenderer{}
	r.render = func(_ context.Context, id, _ string) (*mermaid.Result, error) {
		mu.Lock()
		b := blocking
		mu.Unlock()
		if b {
			<-block
		}
		return &mermaid.Result{ContainerID: id, SVG: []byte(graphSVG(id))}, nil
	}
	exp := &fakeExporter{}
	s := newTestSession(t, r, exp)

	require.NoError(t, s.SetSource("graph TD; A-->B"))
	require.NoError(t, s.Render(context.Background()))
	before := s.State()

	mu.Lock()
	blocking = true
	mu.Unlock()
	done := make(chan error, 1)
	go func() { done <- s.SetAppearance(context.Background(), "mermaidDark", "") }()
	assert.Eventually(t, func() bool { return s.State().Rendering }, time.Second, time.Millisecond)

	mid := s.State()
	assert.Equal(t, before.SVG, mid.SVG)
	assert.Equal(t, before.ContainerID, mid.ContainerID)

	// The export uses the theme selected now with the document rendered before.
	_, err := s.Export(context.Background(), export.FormatSVG, 0)
	require.NoError(t, err)
	req := exp.last()
	assert.Equal(t, "#333333", req.Background)
	assert.Equal(t, 1.0, req.Multiplier)
	assert.Equal(t, before.ContainerID, req.Document.Attr("id"))

	close(block)
	require.NoError(t, <-done)
	assert.NotEqual(t, before.ContainerID, s.State().ContainerID)
}

func TestExportGuard(t *testing.T) {
	exp := &fakeExporter{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := newTestSession(t, &fakeRenderer{}, exp)
	require.NoError(t, s.SetSource("graph TD; A-->B"))
	require.NoError(t, s.Render(context.Background()))

	done := make(chan error, 1)
	go func() {
		_, err := s.Export(context.Background(), export.FormatPNG, 2)
		done <- err
	}()
	<-exp.started

	_, err := s.Export(context.Background(), export.FormatSVG, 1)
	assert.ErrorIs(t, err, ErrExportInProgress)

	close(exp.block)
	require.NoError(t, <-done)

	exp.block = nil
	exp.started = nil
	file, err := s.Export(context.Background(), export.FormatSVG, 0)
	require.NoError(t, err)
	assert.Equal(t, "mermaid-graph-1080p.svg", file.Name)
}

func TestExportEndToEnd(t *testing.T) {
	pipeline, err := export.New(export.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer pipeline.Close()

	s := newTestSession(t, &fakeRenderer{}, pipeline)
	require.NoError(t, s.SetSource("graph TD; A-->B"))
	require.NoError(t, s.Render(context.Background()))

	tests := []struct {
		multiplier float64
		wantName   string
		wantHeight int
	}{
		{multiplier: 1, wantName: "mermaid-graph-1080p.png", wantHeight: 1080},
		{multiplier: 2, wantName: "mermaid-graph-2x1080p.png", wantHeight: 2160},
	}
	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			file, err := s.Export(context.Background(), export.FormatPNG, tt.multiplier)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, file.Name)

			cfg, err := png.DecodeConfig(bytes.NewReader(file.Data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeight, cfg.Height)
		})
	}

	file, err := s.Export(context.Background(), export.FormatSVG, 1)
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), `height="1080.00"`)
	assert.Contains(t, string(file.Data), `fill="#ffffff"`)
}

func TestSetAppearanceValidation(t *testing.T) {
	s := newTestSession(t, &fakeRenderer{}, nil)

	err := s.SetAppearance(context.Background(), "mermaidForest", "Comic Sans")
	assert.ErrorIs(t, err, ErrUnknownFont)
	assert.Equal(t, theme.DefaultID, s.State().Theme)

	require.NoError(t, s.SetAppearance(context.Background(), "solarized", ""))
	st := s.State()
	assert.Equal(t, theme.DefaultID, st.Theme)
	assert.Equal(t, theme.FontThemeDefault, st.Font)

	require.NoError(t, s.SetMultiplier(0.5))
	assert.Equal(t, 1.0, s.State().Multiplier)
	require.NoError(t, s.SetMultiplier(3))
	assert.Equal(t, 3.0, s.State().Multiplier)
}

func TestSubscribe(t *testing.T) {
	s := newTestSession(t, &fakeRenderer{}, nil)

	updates, cancel := s.Subscribe()
	defer cancel()

	first := <-updates
	assert.Equal(t, PreviewPlaceholder, first.Preview)

	require.NoError(t, s.SetSource("graph TD; A-->B"))
	require.NoError(t, s.Render(context.Background()))

	assert.Eventually(t, func() bool {
		select {
		case st := <-updates:
			return st.Preview == PreviewGraphic
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	s.Close()
	for range updates {
		// Drain what was buffered before the close.
	}
	assert.ErrorIs(t, s.SetSource("x"), ErrSessionClosed)
	assert.ErrorIs(t, s.Render(context.Background()), ErrSessionClosed)
}

func TestManager(t *testing.T) {
	m := newTestManager(t, &fakeRenderer{}, nil, nil)

	s, err := m.Create(context.Background(), "")
	require.NoError(t, err)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, []string{s.ID()}, m.IDs())

	_, err = m.Create(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, m.Close(s.ID()))
	assert.ErrorIs(t, m.Close(s.ID()), ErrSessionNotFound)
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerReap(t *testing.T) {
	m := newTestManager(t, &fakeRenderer{}, nil, nil)
	m.opts.SessionTTL = time.Minute

	old, err := m.Create(context.Background(), "")
	require.NoError(t, err)
	fresh, err := m.Create(context.Background(), "")
	require.NoError(t, err)

	old.mu.Lock()
	old.lastUsed = time.Now().Add(-2 * time.Minute)
	old.mu.Unlock()

	assert.Equal(t, 1, m.Reap(time.Now()))
	assert.Equal(t, []string{fresh.ID()}, m.IDs())
	assert.ErrorIs(t, old.SetSource("x"), ErrSessionClosed)
}

func TestManagerRun(t *testing.T) {
	m := newTestManager(t, &fakeRenderer{}, nil, nil)
	s, err := m.Create(context.Background(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, m.IDs())
	assert.ErrorIs(t, s.SetSource("x"), ErrSessionClosed)
}

func TestRestoreDraft(t *testing.T) {
	ctx := context.Background()
	drafts, err := store.OpenInMemory(ctx)
	require.NoError(t, err)
	defer drafts.Close()

	r := &fakeRenderer{}
	m := newTestManager(t, r, nil, drafts)

	s, err := m.Create(ctx, "")
	require.NoError(t, err)
	require.NoError(t, s.SetSource("graph TD; A-->B"))
	require.NoError(t, s.SetAppearance(ctx, "mermaidForest", theme.FontHeiti))
	require.NoError(t, s.SetMultiplier(2))
	id := s.ID()

	// Restoring a live session returns it.
	same, err := m.Create(ctx, id)
	require.NoError(t, err)
	assert.Same(t, s, same)

	require.NoError(t, m.Close(id))

	restored, err := m.Create(ctx, id)
	require.NoError(t, err)
	assert.NotSame(t, s, restored)

	st := restored.State()
	assert.Equal(t, id, st.ID)
	assert.Equal(t, "graph TD; A-->B", st.Source)
	assert.Equal(t, "mermaidForest", st.Theme)
	assert.Equal(t, theme.FontHeiti, st.Font)
	assert.Equal(t, 2.0, st.Multiplier)
	assert.Equal(t, PreviewGraphic, st.Preview, "restored drafts are rendered")
}

func TestDebouncer(t *testing.T) {
	fired := make(chan struct{}, 10)
	d := NewDebouncer(30*time.Millisecond, func() { fired <- struct{}{} })

	assert.Equal(t, DebounceIdle, d.State())
	assert.True(t, d.Deadline().IsZero())

	d.Trigger()
	first := d.Deadline()
	assert.Equal(t, DebouncePending, d.State())
	time.Sleep(10 * time.Millisecond)
	d.Trigger()
	assert.True(t, d.Deadline().After(first), "a new trigger moves the deadline")

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not fire")
	}
	assert.Eventually(t, func() bool { return d.State() == DebounceFired }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, fired, 0, "fires once per quiet period")

	d.Trigger()
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	assert.Equal(t, DebounceIdle, d.State())

	d.Stop()
	d.Trigger()
	assert.Equal(t, DebounceIdle, d.State())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, fired, 0)

	assert.Equal(t, "pending", DebouncePending.String())
	assert.Equal(t, DefaultDebounce, NewDebouncer(0, func() {}).delay)
}
