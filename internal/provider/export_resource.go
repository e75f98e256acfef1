package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/terraform-plugin-framework-validators/float64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/interfaces"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ resource.Resource = &ExportResource{}
var _ resource.ResourceWithConfigure = &ExportResource{}
var _ resource.ResourceWithImportState = &ExportResource{}

func NewExportResource() resource.Resource {
	return &ExportResource{}
}

// ExportResource writes a diagram export and keeps it in sync with its
// configuration.
type ExportResource struct {
	exporter interfaces.DiagramExporter
}

func (r *ExportResource) Metadata(ctx context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_export"
}

func (r *ExportResource) Schema(ctx context.Context, req resource.SchemaRequest, resp *resource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Renders a Mermaid diagram and saves it as an SVG or PNG file.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				Computed:            true,
				MarkdownDescription: "Resource identifier",
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
				},
			},
			"source": schema.StringAttribute{
				MarkdownDescription: sourceDescription,
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
					stringvalidator.ExactlyOneOf(path.MatchRoot("source"), path.MatchRoot("source_path")),
				},
			},
			"source_path": schema.StringAttribute{
				MarkdownDescription: sourcePathDescription,
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.LengthAtLeast(1),
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
				MarkdownDescription: "Download file name the editor would use for this export, e.g. `mermaid-graph-2x1080p.png`.",
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

func (r *ExportResource) Configure(ctx context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	exporter, ok := req.ProviderData.(interfaces.DiagramExporter)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Resource Configure Type",
			fmt.Sprintf("Expected interfaces.DiagramExporter, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}
	r.exporter = exporter
}

func (r *ExportResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var data ExportModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if !r.generate(ctx, &data, &resp.Diagnostics) {
		return
	}
	data.ID = types.StringValue(fmt.Sprintf("%s_%s", data.OutputPath.ValueString(), data.Format.ValueString()))

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *ExportResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var data ExportModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	// A missing or modified output file is recreated on the next apply.
	sum, err := fileSHA256(data.OutputPath.ValueString())
	if errors.Is(err, fs.ErrNotExist) {
		tflog.Info(ctx, "Export file is missing, removing from state", map[string]any{"path": data.OutputPath.ValueString()})
		resp.State.RemoveResource(ctx)
		return
	}
	if err != nil {
		resp.Diagnostics.AddError("Failed to read export file", err.Error())
		return
	}
	if !data.SHA256.IsNull() && sum != data.SHA256.ValueString() {
		tflog.Info(ctx, "Export file changed outside Terraform, removing from state", map[string]any{"path": data.OutputPath.ValueString()})
		resp.State.RemoveResource(ctx)
		return
	}

	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

func (r *ExportResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var data ExportModel

	resp.Diagnostics.Append(req.Plan.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	// Re-create the export with updated configuration
	r.Create(ctx, resource.CreateRequest{Plan: req.Plan}, (*resource.CreateResponse)(resp))
}

func (r *ExportResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var data ExportModel

	resp.Diagnostics.Append(req.State.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	if err := os.Remove(data.OutputPath.ValueString()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		resp.Diagnostics.AddError("Failed to remove export file", err.Error())
	}
}

func (r *ExportResource) ImportState(ctx context.Context, req resource.ImportStateRequest, resp *resource.ImportStateResponse) {
	resource.ImportStatePassthroughID(ctx, path.Root("id"), req, resp)
}

// generate applies defaults, writes the export and fills the computed
// attributes. It reports false when it added an error.
func (r *ExportResource) generate(ctx context.Context, data *ExportModel, diags diagAppender) bool {
	if r.exporter == nil {
		diags.AddError("Provider not configured", "The mermaid provider must be configured before exports can be written.")
		return false
	}
	data.setDefaults()

	tflog.Debug(ctx, "Writing export", map[string]any{
		"path":       data.OutputPath.ValueString(),
		"format":     data.Format.ValueString(),
		"theme":      data.Theme.ValueString(),
		"multiplier": data.Multiplier.ValueFloat64(),
	})
	result, err := r.exporter.Generate(ctx, data.config())
	if err != nil {
		diags.AddError("Failed to export diagram", err.Error())
		return false
	}
	data.setResult(result)
	return true
}

// diagAppender is the part of diag.Diagnostics generate needs.
type diagAppender interface {
	AddError(summary, detail string)
}

func fileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
