// Package export turns a rendered Mermaid diagram into a downloadable file.
// Vector exports serialize a clone of the diagram; raster exports decode the
// clone into an image and draw it onto an off-screen canvas before encoding
// PNG. Both scale the diagram to a 1080 pixel baseline height.
package export

import (
	"fmt"
	"strings"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// Format selects the export path.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts "svg" or "png" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatSVG, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: svg, png)", s)
	}
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	return string(f)
}

// MIMEType returns the content type of an exported file.
func (f Format) MIMEType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/svg+xml;charset=utf-8"
}

// Request describes one export. The document is never modified.
type Request struct {
	Document   *svgdoc.Document
	Background string
	Multiplier float64
	Format     Format
}

// File is a finished export.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
	Width    float64
	Height   float64
	// Scaled is false when a vector export fell back to the document's own
	// size because its dimensions could not be resolved.
	Scaled bool
}
