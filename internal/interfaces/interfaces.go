// Package interfaces defines interfaces for dependency injection and testing
package interfaces

import (
	"context"

	"github.com/ankek/mermaid-studio/internal/export"
)

// PathValidator defines the interface for validating file paths
type PathValidator interface {
	// ValidateOutputPath validates an output path for security and accessibility
	ValidateOutputPath(path string) error

	// ValidateInputPath validates a diagram source file
	ValidateInputPath(path string) error
}

// Exporter turns a rendered document into a file
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.File, error)
}

// DiagramExporter renders Mermaid source and writes the export to disk
type DiagramExporter interface {
	// Generate renders, exports and writes the file named by cfg.OutputPath
	Generate(ctx context.Context, cfg ExportConfig) (*ExportResult, error)

	// Export renders and exports without writing anything
	Export(ctx context.Context, cfg ExportConfig) (*export.File, error)
}

// ExportConfig contains all configuration needed to export a diagram.
// Exactly one of Source and SourcePath is set.
type ExportConfig struct {
	Source     string
	SourcePath string
	// Block selects a mermaid block of a Markdown SourcePath, 1-based.
	// Zero selects the first.
	Block      int
	Theme      string
	Font       string
	Multiplier float64
	Format     string
	OutputPath string
}

// ExportResult describes a written export
type ExportResult struct {
	OutputPath string
	FileName   string
	Width      float64
	Height     float64
	Bytes      int64
	SHA256     string
	Scaled     bool
}
