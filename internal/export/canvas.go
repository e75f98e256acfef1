package export

import (
	"fmt"
	"image"
	"io"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// Encoder draws a decoded image stretched onto a width x height canvas
// cleared to background and writes the canvas as PNG.
type Encoder interface {
	Encode(w io.Writer, img Image, width, height int, background string) error
}

// RasterSource is an Image that already holds pixels.
type RasterSource interface {
	Image
	Raster() image.Image
}

// FontSet holds the faces labels are drawn with.
type FontSet struct {
	regular *text.FontSource
	bold    *text.FontSource
	italic  *text.FontSource
	mono    *text.FontSource
}

// NewFontSet loads the Go fonts. A non-empty regularPath replaces the
// regular face, e.g. with a font covering CJK text.
func NewFontSet(regularPath string) (*FontSet, error) {
	var (
		fs  FontSet
		err error
	)
	if regularPath != "" {
		fs.regular, err = text.NewFontSourceFromFile(regularPath)
	} else {
		fs.regular, err = text.NewFontSource(goregular.TTF)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load regular font: %w", err)
	}
	if fs.bold, err = text.NewFontSource(gobold.TTF); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to load bold font: %w", err)
	}
	if fs.italic, err = text.NewFontSource(goitalic.TTF); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to load italic font: %w", err)
	}
	if fs.mono, err = text.NewFontSource(gomono.TTF); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to load mono font: %w", err)
	}
	return &fs, nil
}

// Face returns a face for the label at size pixels.
func (f *FontSet) Face(l Label, size float64) text.Face {
	src := f.regular
	switch {
	case l.Mono:
		src = f.mono
	case l.Bold:
		src = f.bold
	case l.Italic:
		src = f.italic
	}
	return src.Face(size)
}

// Close releases the font sources.
func (f *FontSet) Close() error {
	var first error
	for _, src := range []*text.FontSource{f.regular, f.bold, f.italic, f.mono} {
		if src == nil {
			continue
		}
		if err := src.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CanvasEncoder draws on a gg canvas.
type CanvasEncoder struct {
	fonts  *FontSet
	logger zerolog.Logger
	// mu serializes label drawing; faces share glyph caches.
	mu sync.Mutex
}

// NewCanvasEncoder creates an encoder. A nil font set skips labels.
func NewCanvasEncoder(fonts *FontSet, logger zerolog.Logger) *CanvasEncoder {
	return &CanvasEncoder{fonts: fonts, logger: logger}
}

// Encode implements Encoder.
func (e *CanvasEncoder) Encode(w io.Writer, img Image, width, height int, background string) (err error) {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", width, height)
	}
	bg, err := parsePaint(background)
	if err != nil {
		return fmt.Errorf("invalid background: %w", err)
	}
	if bg.current || bg.url != "" {
		return fmt.Errorf("invalid background %q: not a color", background)
	}

	dc := gg.NewContext(width, height)
	defer func() {
		if cerr := dc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to release canvas: %w", cerr)
		}
	}()
	dc.ClearWithColor(gg.FromColor(bg.color))

	switch src := img.(type) {
	case *SVGImage:
		pixels, err := src.Rasterize(width, height)
		if err != nil {
			return err
		}
		dc.DrawImage(gg.ImageBufFromImage(pixels), 0, 0)
		e.drawLabels(dc, src, width, height)
	case RasterSource:
		dc.DrawImageEx(gg.ImageBufFromImage(src.Raster()), gg.DrawImageOptions{
			DstWidth:  float64(width),
			DstHeight: float64(height),
		})
	default:
		return fmt.Errorf("unsupported image type %T", img)
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

func (e *CanvasEncoder) drawLabels(dc *gg.Context, img *SVGImage, width, height int) {
	labels := img.Labels()
	if e.fonts == nil || len(labels) == 0 {
		return
	}
	vb := img.ViewBox()
	if !vb.Valid() {
		return
	}
	sx := float64(width) / vb.Width
	sy := float64(height) / vb.Height
	scale := math.Sqrt(sx * sy)

	e.mu.Lock()
	defer e.mu.Unlock()

	drawn := 0
	for _, l := range labels {
		size := l.Size * scale
		if size < 1 || l.Color.A == 0 {
			continue
		}
		face := e.fonts.Face(l, size)
		dc.SetFont(face)
		dc.SetColor(l.Color)

		w, _ := dc.MeasureString(l.Text)
		x := 0.0
		switch l.Anchor {
		case "middle":
			x = -w / 2
		case "end":
			x = -w
		}
		y := baselineShift(l.Baseline, face.Metrics())

		dc.Push()
		dc.Translate((l.X-vb.X)*sx, (l.Y-vb.Y)*sy)
		if l.Angle != 0 {
			dc.Rotate(l.Angle)
		}
		dc.DrawString(l.Text, x, y)
		dc.Pop()
		drawn++
	}
	e.logger.Debug().Int("labels", drawn).Msg("Drew labels")
}

// baselineShift moves a dominant-baseline anchor onto the alphabetic
// baseline DrawString expects.
func baselineShift(baseline string, m text.Metrics) float64 {
	switch baseline {
	case "central":
		return (m.Ascent - m.Descent) / 2
	case "middle":
		if m.XHeight > 0 {
			return m.XHeight / 2
		}
		return (m.Ascent - m.Descent) / 2
	case "hanging", "text-before-edge", "text-top":
		return m.Ascent
	case "text-after-edge", "text-bottom", "ideographic":
		return -m.Descent
	}
	return 0
}
