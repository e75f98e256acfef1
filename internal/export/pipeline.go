package export

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultMaxPixels caps the raster canvas at 16384 x 16384 pixels.
const DefaultMaxPixels = 16384 * 16384

// DefaultBackground is used when a request names no background.
const DefaultBackground = "#ffffff"

// Options configures a Pipeline. Nil collaborators get the defaults: the
// oksvg decoder, the gg canvas encoder with Go fonts and the shape measurer.
type Options struct {
	Decoder  Decoder
	Encoder  Encoder
	Measurer Measurer
	// FontFile optionally replaces the regular label font.
	FontFile  string
	MaxPixels int
	Logger    zerolog.Logger
}

// Pipeline exports diagrams. It is safe for concurrent use; every export
// works on its own clone of the request document.
type Pipeline struct {
	decoder   Decoder
	encoder   Encoder
	measurer  Measurer
	maxPixels int
	fonts     *FontSet
	logger    zerolog.Logger
}

// New creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	p := &Pipeline{
		decoder:   opts.Decoder,
		encoder:   opts.Encoder,
		measurer:  opts.Measurer,
		maxPixels: opts.MaxPixels,
		logger:    opts.Logger,
	}
	if p.decoder == nil {
		p.decoder = NewSVGDecoder(opts.Logger)
	}
	if p.encoder == nil {
		fonts, err := NewFontSet(opts.FontFile)
		if err != nil {
			return nil, err
		}
		p.fonts = fonts
		p.encoder = NewCanvasEncoder(fonts, opts.Logger)
	}
	if p.measurer == nil {
		p.measurer = ShapeMeasurer{}
	}
	if p.maxPixels <= 0 {
		p.maxPixels = DefaultMaxPixels
	}
	return p, nil
}

// Close releases the fonts the pipeline loaded.
func (p *Pipeline) Close() error {
	if p.fonts == nil {
		return nil
	}
	return p.fonts.Close()
}

// Export runs the vector or raster path for req.Format.
func (p *Pipeline) Export(ctx context.Context, req Request) (*File, error) {
	// Check context before starting
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch req.Format {
	case FormatSVG:
		return p.ExportVector(req)
	case FormatPNG:
		return p.ExportRaster(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: svg, png)", req.Format)
	}
}

func background(req Request) string {
	if req.Background == "" {
		return DefaultBackground
	}
	return req.Background
}
