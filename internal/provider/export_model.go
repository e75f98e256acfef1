package provider

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/interfaces"
	"github.com/ankek/mermaid-studio/internal/theme"
)

// ExportModel describes the data model shared by the mermaid_export resource
// and data source.
type ExportModel struct {
	ID         types.String  `tfsdk:"id"`
	Source     types.String  `tfsdk:"source"`
	SourcePath types.String  `tfsdk:"source_path"`
	Block      types.Int64   `tfsdk:"block"`
	Theme      types.String  `tfsdk:"theme"`
	Font       types.String  `tfsdk:"font"`
	Multiplier types.Float64 `tfsdk:"multiplier"`
	Format     types.String  `tfsdk:"format"`
	OutputPath types.String  `tfsdk:"output_path"`
	FileName   types.String  `tfsdk:"file_name"`
	Width      types.Float64 `tfsdk:"width"`
	Height     types.Float64 `tfsdk:"height"`
	SHA256     types.String  `tfsdk:"sha256"`
}

// setDefaults fills the optional inputs left unset. The format follows the
// output path extension when it names one.
func (m *ExportModel) setDefaults() {
	if m.Format.IsNull() || m.Format.ValueString() == "" {
		format := export.FormatSVG
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(m.OutputPath.ValueString())), ".")
		if f, err := export.ParseFormat(ext); err == nil {
			format = f
		}
		m.Format = types.StringValue(string(format))
	}
	if m.Theme.IsNull() || m.Theme.ValueString() == "" {
		m.Theme = types.StringValue(theme.DefaultID)
	}
	if m.Font.IsNull() || m.Font.ValueString() == "" {
		m.Font = types.StringValue(theme.FontThemeDefault)
	}
	if m.Multiplier.IsNull() || m.Multiplier.IsUnknown() {
		m.Multiplier = types.Float64Value(1)
	}
}

// config converts the model into generator input.
func (m *ExportModel) config() interfaces.ExportConfig {
	return interfaces.ExportConfig{
		Source:     m.Source.ValueString(),
		SourcePath: m.SourcePath.ValueString(),
		Block:      int(m.Block.ValueInt64()),
		Theme:      m.Theme.ValueString(),
		Font:       m.Font.ValueString(),
		Multiplier: m.Multiplier.ValueFloat64(),
		Format:     m.Format.ValueString(),
		OutputPath: m.OutputPath.ValueString(),
	}
}

// setResult stores the computed attributes of a written export.
func (m *ExportModel) setResult(r *interfaces.ExportResult) {
	m.FileName = types.StringValue(r.FileName)
	m.Width = types.Float64Value(r.Width)
	m.Height = types.Float64Value(r.Height)
	m.SHA256 = types.StringValue(r.SHA256)
}

// contentID identifies an export by where it is written and how.
func (m *ExportModel) contentID() string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s_%s_%s_%s_%g",
		m.OutputPath.ValueString(), m.Format.ValueString(), m.Theme.ValueString(),
		m.Font.ValueString(), m.Multiplier.ValueFloat64())))
	return fmt.Sprintf("%x", hash[:8])
}

// fontValues lists the accepted font attribute values.
func fontValues() []string {
	fonts := theme.Fonts()
	out := make([]string, 0, len(fonts))
	for _, f := range fonts {
		out = append(out, f.Value)
	}
	return out
}

func formatValues() []string {
	return []string{string(export.FormatSVG), string(export.FormatPNG)}
}

const (
	sourceDescription     = "Inline Mermaid source. Exactly one of `source` and `source_path` must be set."
	sourcePathDescription = "Path of a `.mmd` file, or of a Markdown file whose ```mermaid blocks are exported."
	blockDescription      = "1-based index of the mermaid block of a Markdown `source_path`. Default is 1."
	themeDescription      = "Theme id, built in or from the provider's `themes_dir`. Default is 'mermaidDefault'."
	fontDescription       = "CSS font stack offered by the editor font selector, or 'theme-default' for the theme's own font."
	multiplierDescription = "Resolution multiplier: 1 exports at 1080 pixels tall, 2 at 2160 and so on. One of 1, 1.5, 2, 3, 4. Default is 1."
	formatDescription     = "Output format: 'svg' or 'png'. Default follows the `output_path` extension, else 'svg'."
	outputPathDescription = "Path where the export will be saved. Its extension must match `format`."
)
