package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/float64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/interfaces"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &ExportDataSource{}
var _ datasource.DataSourceWithConfigure = &ExportDataSource{}

// ExportDataSource defines the data source implementation.
type ExportDataSource struct {
	exporter interfaces.DiagramExporter
}

func NewExportDataSource() datasource.DataSource {
	return &ExportDataSource{}
}

func (d *ExportDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_export"
}

func (d *ExportDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Renders a Mermaid diagram and saves it as an SVG or PNG file on every read.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed:            true,
				MarkdownDescription: "Data source identifier",
			},
			"source": schema.StringAttribute{
				MarkdownDescription: sourceDescription,
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
					stringvalidator.ConflictsWith(path.MatchRoot("source_path")),
				},
			},
			"source_path": schema.StringAttribute{
				MarkdownDescription: sourcePathDescription,
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
					stringvalidator.ConflictsWith(path.MatchRoot("source")),
				},
			},
			"block": schema.Int64Attribute{
				MarkdownDescription: blockDescription,
				Optional:            true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
					int64validator.AlsoRequires(path.MatchRoot("source_path")),
				},
			},
			"theme": schema.StringAttribute{
				MarkdownDescription: themeDescription,
				Optional:            true,
				Computed:            true,
			},
			"font": schema.StringAttribute{
				MarkdownDescription: fontDescription,
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					stringvalidator.OneOf(fontValues()...),
				},
			},
			"multiplier": schema.Float64Attribute{
				MarkdownDescription: multiplierDescription,
				Optional:            true,
				Computed:            true,
				Validators: []validator.Float64{
					float64validator.OneOf(export.SupportedMultipliers...),
				},
			},
			"format": schema.StringAttribute{
				MarkdownDescription: formatDescription,
				Optional:            true,
				Computed:            true,
				Validators: []validator.String{
					stringvalidator.OneOf(formatValues()...),
				},
			},
			"output_path": schema.StringAttribute{
				MarkdownDescription: outputPathDescription,
				Required:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
				},
			},
			"file_name": schema.StringAttribute{
				MarkdownDescription: "Download file name the editor would use for this export.",
				Computed:            true,
			},
			"width": schema.Float64Attribute{
				MarkdownDescription: "Width of the export in pixels.",
				Computed:            true,
			},
			"height": schema.Float64Attribute{
				MarkdownDescription: "Height of the export in pixels.",
				Computed:            true,
			},
			"sha256": schema.StringAttribute{
				MarkdownDescription: "Hex SHA-256 of the written file.",
				Computed:            true,
			},
		},
	}
}

func (d *ExportDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}

	exporter, ok := req.ProviderData.(interfaces.DiagramExporter)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected interfaces.DiagramExporter, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}
	d.exporter = exporter
}

func (d *ExportDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data ExportModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if data.Source.IsNull() && data.SourcePath.IsNull() {
		resp.Diagnostics.AddError("Missing input", "Either source or source_path must be provided")
		return
	}
	if d.exporter == nil {
		resp.Diagnostics.AddError("Provider not configured", "The mermaid provider must be configured before exports can be written.")
		return
	}

	data.setDefaults()
	tflog.Debug(ctx, "Writing export", map[string]any{
		"path":   data.OutputPath.ValueString(),
		"format": data.Format.ValueString(),
	})

	// Use the generator to create the export
	result, err := d.exporter.Generate(ctx, data.config())
	if err != nil {
		resp.Diagnostics.AddError("Failed to export diagram", err.Error())
		return
	}
	data.setResult(result)

	// Generate ID based on content
	data.ID = types.StringValue(data.contentID())

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
