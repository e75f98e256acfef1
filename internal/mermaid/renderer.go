// Package mermaid talks to the external Mermaid renderer. The renderer is a
// black box: it receives diagram source plus a configuration and returns SVG
// markup, or a RenderError when the source is invalid.
package mermaid

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Config is the theme configuration applied before a render.
type Config struct {
	Theme          string
	FontFamily     string
	ThemeVariables map[string]any
	SecurityLevel  string
	HTMLLabels     bool
}

// MarshalJSON emits the shape accepted by mermaid.initialize and by mmdc
// configuration files.
func (c Config) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"startOnLoad": false,
		"theme":       c.Theme,
		"htmlLabels":  c.HTMLLabels,
		"flowchart":   map[string]any{"htmlLabels": c.HTMLLabels},
	}
	if c.FontFamily != "" {
		out["fontFamily"] = c.FontFamily
	}
	if c.SecurityLevel != "" {
		out["securityLevel"] = c.SecurityLevel
	}
	if len(c.ThemeVariables) > 0 {
		out["themeVariables"] = c.ThemeVariables
	}
	return json.Marshal(out)
}

// Key returns a stable fingerprint used to skip redundant Initialize calls.
func (c Config) Key() string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(b)
}

// Result is the output of a successful render.
type Result struct {
	ContainerID string
	SVG         []byte
}

// Renderer converts diagram source into SVG. Initialize must happen before
// the Render it is meant to affect; callers serialize Render calls.
type Renderer interface {
	Initialize(cfg Config)
	Render(ctx context.Context, containerID, source string) (*Result, error)
}

// Factory creates an independent Renderer, one per editing session.
type Factory func() Renderer

// RenderError reports diagram source the renderer rejected.
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string {
	return e.Message
}

// ContainerIDPrefix starts every render container ID.
const ContainerIDPrefix = "mermaid-graph-render-"

// IDSource issues container IDs that are never reused within a process.
type IDSource struct {
	n atomic.Uint64
}

// Next returns a fresh container ID.
func (s *IDSource) Next() string {
	return fmt.Sprintf("%s%d", ContainerIDPrefix, s.n.Add(1))
}

var processIDs IDSource

// NextContainerID returns a fresh container ID from the process-wide source.
func NextContainerID() string {
	return processIDs.Next()
}
