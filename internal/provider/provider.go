// Package provider implements the mermaid Terraform provider. Its resource
// and data source export Mermaid diagrams to SVG or PNG files with the same
// render and export pipeline as the editor.
package provider

import (
	"context"
	"os"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/mermaid-studio/internal/interfaces"
	"github.com/ankek/mermaid-studio/internal/mermaid"
)

// Ensure MermaidProvider satisfies various provider interfaces.
var _ provider.Provider = &MermaidProvider{}

// Environment variables read when the provider block leaves a setting unset.
const (
	EnvRenderer  = "MERMAID_STUDIO_RENDERER_BACKEND"
	EnvKrokiURL  = "MERMAID_STUDIO_RENDERER_KROKI_URL"
	EnvMMDCPath  = "MERMAID_STUDIO_RENDERER_MMDC_PATH"
	EnvThemesDir = "MERMAID_STUDIO_THEMES_DIR"
	EnvFontFile  = "MERMAID_STUDIO_EXPORT_FONT_FILE"
)

const (
	defaultKrokiURL = "https://kroki.io"
	defaultMMDCPath = "mmdc"
	renderTimeout   = 30 * time.Second
	renderRetryMax  = 3
)

// MermaidProvider defines the provider implementation.
type MermaidProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string

	// newExporter builds the exporter handed to resources and data sources.
	newExporter func(Settings) (interfaces.DiagramExporter, error)
}

// MermaidProviderModel describes the provider data model.
type MermaidProviderModel struct {
	Renderer  types.String `tfsdk:"renderer"`
	KrokiURL  types.String `tfsdk:"kroki_url"`
	MMDCPath  types.String `tfsdk:"mmdc_path"`
	ThemesDir types.String `tfsdk:"themes_dir"`
	FontFile  types.String `tfsdk:"font_file"`
}

func (p *MermaidProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "mermaid"
	resp.Version = p.version
}

func (p *MermaidProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		Description: "The Mermaid provider renders Mermaid diagrams and exports them as SVG or PNG files.",
		Attributes: map[string]schema.Attribute{
			"renderer": schema.StringAttribute{
				Description: "Render backend: 'kroki' (HTTP) or 'mmdc' (local mermaid-cli). Default is 'kroki'. Can also be set via " + EnvRenderer + " environment variable.",
				Optional:    true,
				Validators: []validator.String{
					stringvalidator.OneOf(mermaid.BackendKroki, mermaid.BackendMMDC),
				},
			},
			"kroki_url": schema.StringAttribute{
				Description: "Base URL of the Kroki server. Default is " + defaultKrokiURL + ". Can also be set via " + EnvKrokiURL + " environment variable.",
				Optional:    true,
			},
			"mmdc_path": schema.StringAttribute{
				Description: "Path of the mermaid-cli executable used by the 'mmdc' renderer. Default is 'mmdc'. Can also be set via " + EnvMMDCPath + " environment variable.",
				Optional:    true,
			},
			"themes_dir": schema.StringAttribute{
				Description: "Directory of HCL theme files added to the built-in themes. Can also be set via " + EnvThemesDir + " environment variable.",
				Optional:    true,
			},
			"font_file": schema.StringAttribute{
				Description: "TrueType font used for PNG labels instead of the Go font, e.g. one covering CJK text. Can also be set via " + EnvFontFile + " environment variable.",
				Optional:    true,
			},
		},
	}
}

func (p *MermaidProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data MermaidProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)

	if resp.Diagnostics.HasError() {
		return
	}

	settings := data.settings()
	ctx = tflog.SetField(ctx, "renderer", settings.Renderer)
	tflog.Debug(ctx, "Configuring mermaid provider", map[string]any{
		"kroki_url":  settings.KrokiURL,
		"mmdc_path":  settings.MMDCPath,
		"themes_dir": settings.ThemesDir,
	})

	newExporter := p.newExporter
	if newExporter == nil {
		newExporter = NewExporter
	}
	exporter, err := newExporter(settings)
	if err != nil {
		resp.Diagnostics.AddError("Failed to configure mermaid provider", err.Error())
		return
	}

	// Make the exporter available to resources and data sources
	resp.DataSourceData = exporter
	resp.ResourceData = exporter
}

// settings resolves the provider block against the environment and defaults.
func (m MermaidProviderModel) settings() Settings {
	return Settings{
		Renderer:  stringSetting(m.Renderer, EnvRenderer, mermaid.BackendKroki),
		KrokiURL:  stringSetting(m.KrokiURL, EnvKrokiURL, defaultKrokiURL),
		MMDCPath:  stringSetting(m.MMDCPath, EnvMMDCPath, defaultMMDCPath),
		ThemesDir: stringSetting(m.ThemesDir, EnvThemesDir, ""),
		FontFile:  stringSetting(m.FontFile, EnvFontFile, ""),
	}
}

func stringSetting(v types.String, env, fallback string) string {
	if !v.IsNull() && !v.IsUnknown() && v.ValueString() != "" {
		return v.ValueString()
	}
	if s := os.Getenv(env); s != "" {
		return s
	}
	return fallback
}

func (p *MermaidProvider) Resources(ctx context.Context) []func() resource.Resource {
	return []func() resource.Resource{
		NewExportResource,
	}
}

func (p *MermaidProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewExportDataSource,
	}
}

func New(version string) func() provider.Provider {
	return func() provider.Provider {
		return &MermaidProvider{
			version: version,
		}
	}
}
