package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
)

// ExportRaster renders a clone of the document to PNG in two stages: the
// serialized clone is decoded into an image, then drawn onto a canvas of
// the scaled size and encoded. Nothing is returned unless both succeed.
func (p *Pipeline) ExportRaster(ctx context.Context, req Request) (*File, error) {
	if req.Document == nil {
		return nil, ErrNoDocument
	}
	m := NormalizeMultiplier(req.Multiplier)
	bg := background(req)

	original, err := ResolveDimensions(req.Document, p.measurer)
	if err != nil {
		return nil, err
	}

	clone := req.Document.Clone()
	clone.EnsureNamespace()
	clone.SetAttr("width", formatNumber(original.Width))
	clone.SetAttr("height", formatNumber(original.Height))
	CompositeBackground(clone, bg)

	data, err := clone.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize SVG: %w", err)
	}
	uri := EncodeDataURI(data)

	img, err := p.decoder.Decode(ctx, uri)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ImageDecodeError{Err: err}
	}
	defer img.Release()

	nw, nh := img.NaturalSize()
	if !positive(nw) || !positive(nh) {
		return nil, &DimensionUnresolvedError{Reason: fmt.Sprintf("decoded image has natural size %gx%g", nw, nh)}
	}
	width, height, err := OutputSize(Size{Width: nw, Height: nh}, m, p.maxPixels)
	if errors.Is(err, errEmptyCanvas) {
		return nil, &DimensionUnresolvedError{Reason: err.Error()}
	}
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := p.encoder.Encode(&buf, img, width, height, bg); err != nil {
		return nil, &EncodeError{Err: err}
	}

	file := &File{
		Name:     FileName(m, FormatPNG),
		MIMEType: FormatPNG.MIMEType(),
		Data:     buf.Bytes(),
		Width:    float64(width),
		Height:   float64(height),
		Scaled:   true,
	}
	p.logger.Info().
		Str("file", file.Name).
		Int("width", width).
		Int("height", height).
		Float64("multiplier", m).
		Float64("scale", math.Round(Scale(Size{Width: nw, Height: nh}, m)*1000)/1000).
		Int("bytes", buf.Len()).
		Msg("Exported PNG")
	return file, nil
}
