// Package mermaidtest provides an in-process stand-in for the Mermaid
// renderer.
package mermaidtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ankek/mermaid-studio/internal/mermaid"
)

var diagramTypes = []string{
	"graph", "flowchart", "sequenceDiagram", "classDiagram", "stateDiagram",
	"stateDiagram-v2", "erDiagram", "gantt", "pie", "journey", "gitGraph",
	"mindmap", "timeline",
}

// Renderer records its calls and returns a small fixed diagram sized
// 100 x 200 user units. Sources that do not start with a diagram keyword
// fail with a RenderError the way Mermaid reports them.
type Renderer struct {
	mu      sync.Mutex
	configs []mermaid.Config
	sources []string
}

// Initialize implements mermaid.Renderer.
func (r *Renderer) Initialize(cfg mermaid.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
}

// Render implements mermaid.Renderer.
func (r *Renderer) Render(ctx context.Context, containerID, source string) (*mermaid.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sources = append(r.sources, source)
	r.mu.Unlock()

	if !known(source) {
		first := strings.TrimSpace(source)
		if i := strings.IndexByte(first, '\n'); i >= 0 {
			first = first[:i]
		}
		return nil, &mermaid.RenderError{
			Message: "No diagram type detected matching given configuration for text: " + first,
		}
	}
	return &mermaid.Result{ContainerID: containerID, SVG: []byte(SVG(containerID))}, nil
}

// Configs returns the configurations passed to Initialize.
func (r *Renderer) Configs() []mermaid.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mermaid.Config(nil), r.configs...)
}

// Sources returns the sources passed to Render.
func (r *Renderer) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sources...)
}

// SVG is the diagram every successful render returns.
func SVG(containerID string) string {
	return fmt.Sprintf(`<svg id="%s" width="100%%" xmlns="http://www.w3.org/2000/svg" style="max-width: 100px;" viewBox="0 0 100 200">`+
		`<style>#%[1]s .node rect{fill:#ECECFF;stroke:#9370DB;}</style>`+
		`<g class="node"><rect x="10" y="10" width="80" height="60"/><text x="50" y="45" text-anchor="middle">A</text></g>`+
		`<path d="M50,70L50,130" stroke="#333333" fill="none"/>`+
		`<g class="node"><rect x="10" y="130" width="80" height="60"/><text x="50" y="165" text-anchor="middle">B</text></g>`+
		`</svg>`, containerID)
}

func known(source string) bool {
	fields := strings.FieldsFunc(strings.TrimSpace(source), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ';'
	})
	if len(fields) == 0 {
		return false
	}
	for _, t := range diagramTypes {
		if fields[0] == t {
			return true
		}
	}
	return false
}
