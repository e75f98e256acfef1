package export

import (
	"errors"
	"fmt"
)

// ExportVector serializes a clone of the document with the background
// composited and width and height set to the scaled size. When the size
// cannot be resolved the clone is exported at its own size and the file is
// marked unscaled.
func (p *Pipeline) ExportVector(req Request) (*File, error) {
	if req.Document == nil {
		return nil, ErrNoDocument
	}
	m := NormalizeMultiplier(req.Multiplier)

	size, dimErr := ResolveDimensions(req.Document, p.measurer)

	clone := req.Document.Clone()
	clone.EnsureNamespace()
	CompositeBackground(clone, background(req))

	file := &File{
		Name:     FileName(m, FormatSVG),
		MIMEType: FormatSVG.MIMEType(),
	}
	if dimErr != nil {
		var de *DimensionUnresolvedError
		if !errors.As(dimErr, &de) {
			return nil, dimErr
		}
		p.logger.Warn().Err(dimErr).Msg("Exporting SVG without scaling")
		file.Width, _ = clone.Length("width")
		file.Height, _ = clone.Length("height")
	} else {
		w, h := ScaledSize(size, m)
		clone.SetAttr("width", fmt.Sprintf("%.2f", w))
		clone.SetAttr("height", fmt.Sprintf("%.2f", h))
		file.Width, file.Height, file.Scaled = w, h, true
	}

	data, err := clone.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize SVG: %w", err)
	}
	file.Data = data

	p.logger.Info().
		Str("file", file.Name).
		Float64("width", file.Width).
		Float64("height", file.Height).
		Bool("scaled", file.Scaled).
		Int("bytes", len(data)).
		Msg("Exported SVG")
	return file, nil
}
