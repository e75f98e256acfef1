package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// Image is a decoded diagram ready to be drawn.
type Image interface {
	// NaturalSize is the intrinsic size of the image in pixels. Zero means
	// unknown.
	NaturalSize() (float64, float64)
	// Release frees the decoded data. The image is unusable afterwards.
	Release()
}

// Decoder loads a data URI into an Image. Decode is the only blocking step
// of a raster export and must return promptly once ctx is done.
type Decoder interface {
	Decode(ctx context.Context, dataURI string) (Image, error)
}

// SVGImage is a decoded SVG: vector shapes for the rasterizer plus the text
// labels it cannot draw.
type SVGImage struct {
	icon    *oksvg.SvgIcon
	labels  []Label
	viewBox svgdoc.Box
	natural Size
}

// NaturalSize implements Image.
func (i *SVGImage) NaturalSize() (float64, float64) {
	return i.natural.Width, i.natural.Height
}

// Release implements Image.
func (i *SVGImage) Release() {
	i.icon = nil
	i.labels = nil
}

// Labels returns the text runs of the image in user units.
func (i *SVGImage) Labels() []Label {
	return i.labels
}

// ViewBox returns the user-unit rectangle mapped onto the drawing area.
func (i *SVGImage) ViewBox() svgdoc.Box {
	return i.viewBox
}

// Rasterize draws the shapes of the image stretched over width x height
// pixels.
func (i *SVGImage) Rasterize(width, height int) (*image.RGBA, error) {
	if i.icon == nil {
		return nil, errors.New("image has been released")
	}
	vb := i.viewBox
	if !vb.Valid() {
		vb = svgdoc.Box{Width: float64(width), Height: float64(height)}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	i.icon.Transform = rasterx.Identity.
		Scale(float64(width)/vb.Width, float64(height)/vb.Height).
		Translate(-vb.X, -vb.Y)
	i.icon.Draw(dasher, 1)
	return dst, nil
}

// SVGDecoder decodes SVG data URIs with oksvg.
type SVGDecoder struct {
	logger zerolog.Logger
}

// NewSVGDecoder creates a decoder.
func NewSVGDecoder(logger zerolog.Logger) *SVGDecoder {
	return &SVGDecoder{logger: logger}
}

type decoded struct {
	img *SVGImage
	err error
}

// Decode implements Decoder. Parsing runs on its own goroutine; when ctx is
// done first the result is released as soon as it arrives.
func (d *SVGDecoder) Decode(ctx context.Context, dataURI string) (Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan decoded, 1)
	go func() {
		img, err := decodeSVG(dataURI)
		done <- decoded{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.img != nil {
				r.img.Release()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		d.logger.Debug().
			Int("paths", len(r.img.icon.SVGPaths)).
			Int("labels", len(r.img.labels)).
			Float64("width", r.img.natural.Width).
			Float64("height", r.img.natural.Height).
			Msg("Decoded SVG")
		return r.img, nil
	}
}

func decodeSVG(dataURI string) (*SVGImage, error) {
	mediaType, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	if mediaType != svgMediaType {
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}

	doc, err := svgdoc.Parse(data)
	if err != nil {
		return nil, err
	}
	if err := CheckExternalRefs(doc.Root()); err != nil {
		return nil, err
	}

	natural := naturalSize(doc)
	vb, ok := doc.ViewBox()
	if !ok || !vb.Valid() {
		vb = svgdoc.Box{Width: natural.Width, Height: natural.Height}
	}
	labels := prepare(doc.Root(), Size{Width: vb.Width, Height: vb.Height})

	prepared, err := doc.Bytes()
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(prepared), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to read SVG shapes: %w", err)
	}

	return &SVGImage{icon: icon, labels: labels, viewBox: vb, natural: natural}, nil
}

// naturalSize follows the browser rules for an SVG image: explicit width and
// height win, a single one is completed from the viewBox aspect ratio, and
// the viewBox size is used when neither is set.
func naturalSize(doc *svgdoc.Document) Size {
	w, wok := doc.Length("width")
	h, hok := doc.Length("height")
	wok = wok && positive(w)
	hok = hok && positive(h)
	vb, vok := doc.ViewBox()
	vok = vok && vb.Valid()

	switch {
	case wok && hok:
		return Size{Width: w, Height: h}
	case wok && vok:
		return Size{Width: w, Height: w * vb.Height / vb.Width}
	case hok && vok:
		return Size{Width: h * vb.Width / vb.Height, Height: h}
	case vok:
		return Size{Width: vb.Width, Height: vb.Height}
	}
	return Size{}
}
