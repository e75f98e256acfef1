// Package editor holds the application state of editing sessions: the
// diagram source, the selected theme, font and multiplier, the latest
// rendered document and the preview shown to the user. It orchestrates
// renders through the Mermaid collaborator and exports through the export
// pipeline.
package editor

import (
	"errors"
	"time"
)

// Texts shown in the preview and error regions.
const (
	PlaceholderText      = `Type Mermaid code here and click "Render", or just edit the input and the preview updates automatically.`
	ErrorPlaceholderText = "Render error. Check the code or the server log."
	RenderErrorPrefix    = "Mermaid render failed:\n"
	UnknownRenderError   = "unknown render error"
)

// Editor errors.
var (
	ErrNoGraphic        = errors.New("there is no graphic to export, render a preview first")
	ErrExportInProgress = errors.New("an export is already running for this session")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session is closed")
	ErrUnknownFont      = errors.New("unknown font")
)

// PreviewKind says what the preview region shows.
type PreviewKind string

const (
	PreviewPlaceholder PreviewKind = "placeholder"
	PreviewGraphic     PreviewKind = "graphic"
	PreviewError       PreviewKind = "error"
)

// State is a snapshot of a session.
type State struct {
	ID          string      `json:"id"`
	Source      string      `json:"source"`
	Theme       string      `json:"theme"`
	Font        string      `json:"font"`
	Multiplier  float64     `json:"multiplier"`
	Background  string      `json:"background"`
	Preview     PreviewKind `json:"preview"`
	SVG         string      `json:"svg,omitempty"`
	ContainerID string      `json:"container_id,omitempty"`
	Message     string      `json:"message,omitempty"`
	Error       string      `json:"error,omitempty"`
	Pending     bool        `json:"pending"`
	Rendering   bool        `json:"rendering"`
	Exporting   bool        `json:"exporting"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
