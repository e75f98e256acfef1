// Package generator renders Mermaid source and exports it to SVG or PNG
// files. It is shared by the export command and the Terraform provider so
// both produce identical files.
package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/interfaces"
	"github.com/ankek/mermaid-studio/internal/markdown"
	"github.com/ankek/mermaid-studio/internal/mermaid"
	"github.com/ankek/mermaid-studio/internal/svgdoc"
	"github.com/ankek/mermaid-studio/internal/theme"
	"github.com/ankek/mermaid-studio/internal/validation"
)

var (
	_ interfaces.DiagramExporter = (*Generator)(nil)
	_ interfaces.PathValidator   = validation.Validator{}
	_ interfaces.Exporter        = (*export.Pipeline)(nil)
)

// ErrEmptySource is returned when there is no diagram source to render.
var ErrEmptySource = errors.New("diagram source is empty")

// Options configures a Generator.
type Options struct {
	Renderer mermaid.Renderer
	Catalog  *theme.Catalog
	Exporter interfaces.Exporter
	// Validator defaults to validation.Validator.
	Validator interfaces.PathValidator
	Logger    zerolog.Logger
}

// Generator handles the core logic of exporting diagrams.
type Generator struct {
	renderer  mermaid.Renderer
	catalog   *theme.Catalog
	exporter  interfaces.Exporter
	validator interfaces.PathValidator
	logger    zerolog.Logger

	// mu serializes Initialize and Render on the shared renderer.
	mu sync.Mutex
}

// New creates a Generator.
func New(opts Options) (*Generator, error) {
	if opts.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("theme catalog is required")
	}
	if opts.Exporter == nil {
		return nil, errors.New("exporter is required")
	}
	if opts.Validator == nil {
		opts.Validator = validation.Validator{}
	}
	return &Generator{
		renderer:  opts.Renderer,
		catalog:   opts.Catalog,
		exporter:  opts.Exporter,
		validator: opts.Validator,
		logger:    opts.Logger,
	}, nil
}

// Generate exports a diagram to cfg.OutputPath.
//
// It performs the following steps:
//  1. Validates input and output paths
//  2. Loads the source, from a Markdown block when the input is Markdown
//  3. Renders it with the selected theme and font
//  4. Exports it and writes the file
func (g *Generator) Generate(ctx context.Context, cfg interfaces.ExportConfig) (*interfaces.ExportResult, error) {
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if err := g.validator.ValidateOutputPath(cfg.OutputPath); err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}
	if err := validation.ValidateOutputExtension(cfg.OutputPath, string(format)); err != nil {
		return nil, fmt.Errorf("invalid output path: %w", err)
	}

	file, err := g.Export(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := writeFile(cfg.OutputPath, file.Data); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(file.Data)
	result := &interfaces.ExportResult{
		OutputPath: cfg.OutputPath,
		FileName:   file.Name,
		Width:      file.Width,
		Height:     file.Height,
		Bytes:      int64(len(file.Data)),
		SHA256:     hex.EncodeToString(sum[:]),
		Scaled:     file.Scaled,
	}
	g.logger.Info().
		Str("path", result.OutputPath).
		Str("format", string(format)).
		Int64("bytes", result.Bytes).
		Msg("Wrote export")
	return result, nil
}

// Export renders and exports a diagram without writing it.
func (g *Generator) Export(ctx context.Context, cfg interfaces.ExportConfig) (*export.File, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	source, err := g.loadSource(cfg)
	if err != nil {
		return nil, err
	}

	d, err := g.lookupTheme(cfg.Theme)
	if err != nil {
		return nil, err
	}
	font := cfg.Font
	if font == "" {
		font = theme.FontThemeDefault
	}
	if !theme.KnownFont(font) {
		return nil, fmt.Errorf("unknown font: %s", font)
	}

	doc, err := g.render(ctx, theme.RenderConfig(d, font), source)
	if err != nil {
		return nil, err
	}

	file, err := g.exporter.Export(ctx, export.Request{
		Document:   doc,
		Background: theme.Background(d),
		Multiplier: export.NormalizeMultiplier(cfg.Multiplier),
		Format:     format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export diagram: %w", err)
	}
	return file, nil
}

func (g *Generator) render(ctx context.Context, cfg mermaid.Config, source string) (*svgdoc.Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.renderer.Initialize(cfg)
	res, err := g.renderer.Render(ctx, mermaid.NextContainerID(), source)
	if err != nil {
		return nil, fmt.Errorf("failed to render diagram: %w", err)
	}
	doc, err := svgdoc.Parse(res.SVG)
	if err != nil {
		return nil, fmt.Errorf("renderer returned invalid SVG: %w", err)
	}
	return doc, nil
}

func (g *Generator) lookupTheme(id string) (theme.Descriptor, error) {
	if id == "" {
		return g.catalog.Get(""), nil
	}
	d, ok := g.catalog.Lookup(id)
	if !ok {
		return theme.Descriptor{}, fmt.Errorf("unknown theme %q (available: %s)", id, strings.Join(g.catalog.IDs(), ", "))
	}
	return d, nil
}

// loadSource returns the inline source or reads it from SourcePath
func (g *Generator) loadSource(cfg interfaces.ExportConfig) (string, error) {
	if cfg.Source != "" && cfg.SourcePath != "" {
		return "", errors.New("only one of source and source_path may be set")
	}

	source := cfg.Source
	if cfg.SourcePath != "" {
		if err := g.validator.ValidateInputPath(cfg.SourcePath); err != nil {
			return "", fmt.Errorf("invalid source path: %w", err)
		}
		data, err := readFile(cfg.SourcePath)
		if err != nil {
			return "", err
		}
		source = string(data)

		if markdown.IsMarkdownPath(cfg.SourcePath) {
			blocks := markdown.MermaidBlocks(data)
			if len(blocks) == 0 {
				return "", fmt.Errorf("no mermaid code blocks found in %s", cfg.SourcePath)
			}
			n := cfg.Block
			if n == 0 {
				n = 1
			}
			if n < 1 || n > len(blocks) {
				return "", fmt.Errorf("block %d out of range: %s has %d mermaid blocks", cfg.Block, cfg.SourcePath, len(blocks))
			}
			source = blocks[n-1].Source
			g.logger.Debug().Str("path", cfg.SourcePath).Int("block", n).Int("line", blocks[n-1].Line).Msg("Using Markdown block")
		}
	}

	if strings.TrimSpace(source) == "" {
		return "", ErrEmptySource
	}
	return source, nil
}

func parseFormat(s string) (export.Format, error) {
	if s == "" {
		return export.FormatSVG, nil
	}
	return export.ParseFormat(s)
}
