package provider

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/generator"
	"github.com/ankek/mermaid-studio/internal/interfaces"
	"github.com/ankek/mermaid-studio/internal/mermaid"
	"github.com/ankek/mermaid-studio/internal/theme"
)

// Settings are the resolved provider block values.
type Settings struct {
	Renderer  string
	KrokiURL  string
	MMDCPath  string
	ThemesDir string
	FontFile  string
}

// NewExporter builds the generator shared by every resource and data source
// of a provider instance.
func NewExporter(s Settings) (interfaces.DiagramExporter, error) {
	logger := zerolog.Nop()

	catalog, err := theme.LoadCatalog(s.ThemesDir)
	if err != nil {
		return nil, err
	}

	factory, err := mermaid.NewFactory(mermaid.Options{
		Backend:  s.Renderer,
		KrokiURL: s.KrokiURL,
		MMDCPath: s.MMDCPath,
		Timeout:  renderTimeout,
		RetryMax: renderRetryMax,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid renderer settings: %w", err)
	}

	pipeline, err := export.New(export.Options{
		FontFile: s.FontFile,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create export pipeline: %w", err)
	}

	return generator.New(generator.Options{
		Renderer: factory(),
		Catalog:  catalog,
		Exporter: pipeline,
		Logger:   logger,
	})
}
