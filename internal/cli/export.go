package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ankek/mermaid-studio/internal/config"
	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/generator"
	"github.com/ankek/mermaid-studio/internal/interfaces"
)

// stdioPath selects stdin or stdout instead of a file.
const stdioPath = "-"

var (
	exportInput      string
	exportOutput     string
	exportBlock      int
	exportFormat     string
	exportMultiplier float64
	exportTheme      string
	exportFont       string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportInput, "input", "i", "", "diagram source: .mmd file, Markdown file or - for stdin (required)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file or - for stdout (default: the editor's download name)")
	exportCmd.Flags().IntVar(&exportBlock, "block", 0, "mermaid block of a Markdown input, 1-based (default 1)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "svg or png (default: output extension, else svg)")
	exportCmd.Flags().Float64Var(&exportMultiplier, "multiplier", 1, "resolution multiplier: 1, 1.5, 2, 3 or 4 (1 = 1080 pixels tall)")
	exportCmd.Flags().StringVar(&exportTheme, "theme", "", "theme id (see `mermaid-studio themes`)")
	exportCmd.Flags().StringVar(&exportFont, "font", "", "font stack (see `mermaid-studio themes`)")
	exportCmd.Flags().String("font-file", "", "TrueType font for PNG labels")
	addRendererFlags(exportCmd)
	_ = exportCmd.MarkFlagRequired("input")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a diagram to SVG or PNG",
	Long: `Render a Mermaid diagram and export it the way the editor's download button
does: SVG scaled to the chosen resolution, or PNG rasterized on the theme
background.`,
	Example: `  mermaid-studio export -i flow.mmd -o flow.png --multiplier 2 --theme mermaidDark
  mermaid-studio export -i README.md --block 2 -o - > second.svg`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveFormat(exportFormat, exportOutput)
		if err != nil {
			return err
		}
		if !validMultiplier(exportMultiplier) {
			return fmt.Errorf("unsupported multiplier %g (supported: %s)", exportMultiplier, multiplierList())
		}

		gen, closeGen, err := newGenerator(GetConfig())
		if err != nil {
			return err
		}
		defer closeGen()

		cfg := interfaces.ExportConfig{
			Block:      exportBlock,
			Theme:      exportTheme,
			Font:       exportFont,
			Multiplier: exportMultiplier,
			Format:     string(format),
		}
		if exportInput == stdioPath {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			cfg.Source = string(data)
		} else {
			cfg.SourcePath = exportInput
		}

		if exportOutput == stdioPath {
			out := cmd.OutOrStdout()
			if format == export.FormatPNG && isTerminal(out) {
				return errors.New("refusing to write PNG data to a terminal; redirect stdout or use -o <file>")
			}
			file, err := gen.Export(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, err = out.Write(file.Data)
			return err
		}

		cfg.OutputPath = exportOutput
		if cfg.OutputPath == "" {
			cfg.OutputPath = export.FileName(exportMultiplier, format)
		}
		result, err := gen.Generate(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), exportSummary{
				Path:   result.OutputPath,
				Format: string(format),
				Width:  result.Width,
				Height: result.Height,
				Bytes:  result.Bytes,
				SHA256: result.SHA256,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%.0fx%.0f, %d bytes)\n",
			result.OutputPath, result.Width, result.Height, result.Bytes)
		return nil
	},
}

// exportSummary is printed by `export --json`.
type exportSummary struct {
	Path   string  `json:"path"`
	Format string  `json:"format"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Bytes  int64   `json:"bytes"`
	SHA256 string  `json:"sha256"`
}

// resolveFormat picks the explicit format, else the output extension, else
// SVG.
func resolveFormat(format, output string) (export.Format, error) {
	if format != "" {
		return export.ParseFormat(format)
	}
	if output != "" && output != stdioPath {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if f, err := export.ParseFormat(ext); err == nil {
			return f, nil
		}
	}
	return export.FormatSVG, nil
}

func validMultiplier(m float64) bool {
	for _, s := range export.SupportedMultipliers {
		if m == s {
			return true
		}
	}
	return false
}

func multiplierList() string {
	parts := make([]string, 0, len(export.SupportedMultipliers))
	for _, m := range export.SupportedMultipliers {
		parts = append(parts, export.FormatMultiplier(m))
	}
	return strings.Join(parts, ", ")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newGenerator builds a one-shot exporter from cfg.
func newGenerator(cfg *config.Config) (*generator.Generator, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("configuration not loaded")
	}
	catalog, err := loadCatalog(cfg.Themes.Dir)
	if err != nil {
		return nil, nil, err
	}
	factory, err := rendererFactory(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	pipeline, err := export.New(export.Options{
		FontFile:  cfg.Export.FontFile,
		MaxPixels: cfg.Export.MaxPixels,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create export pipeline: %w", err)
	}
	gen, err := generator.New(generator.Options{
		Renderer: factory(),
		Catalog:  catalog,
		Exporter: pipeline,
		Logger:   logger,
	})
	if err != nil {
		_ = pipeline.Close()
		return nil, nil, err
	}
	return gen, func() { _ = pipeline.Close() }, nil
}
