package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// ShapeMeasurer measures the union of every drawable shape and text label
// after transforms, like a browser's bounding box of the root element.
type ShapeMeasurer struct{}

// Measure implements Measurer.
func (ShapeMeasurer) Measure(doc *svgdoc.Document) (Size, error) {
	clone := doc.Clone()
	labels := prepare(clone.Root(), Size{})

	data, err := clone.Bytes()
	if err != nil {
		return Size{}, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.IgnoreErrorMode)
	if err != nil {
		return Size{}, fmt.Errorf("failed to read shapes: %w", err)
	}
	icon.Transform = rasterx.Identity

	var b boundsScanner
	icon.Draw(rasterx.NewDasher(1, 1, &b), 1)
	for _, l := range labels {
		b.addLabel(l)
	}

	if !b.seen {
		return Size{}, errors.New("document has no drawable content")
	}
	return Size{Width: b.maxX - b.minX, Height: b.maxY - b.minY}, nil
}

// boundsScanner is a rasterx.Scanner that records the extent of every point
// it is given instead of painting.
type boundsScanner struct {
	minX, minY, maxX, maxY float64
	seen                   bool
}

func (b *boundsScanner) add(x, y float64) {
	if math.IsNaN(x) || math.IsNaN(y) {
		return
	}
	if !b.seen {
		b.minX, b.maxX, b.minY, b.maxY = x, x, y, y
		b.seen = true
		return
	}
	b.minX = math.Min(b.minX, x)
	b.maxX = math.Max(b.maxX, x)
	b.minY = math.Min(b.minY, y)
	b.maxY = math.Max(b.maxY, y)
}

// addLabel adds an estimate of a label's box with glyphs 0.6em wide.
func (b *boundsScanner) addLabel(l Label) {
	w := 0.6 * l.Size * float64(len([]rune(l.Text)))
	x := l.X
	switch l.Anchor {
	case "middle":
		x -= w / 2
	case "end":
		x -= w
	}
	b.add(x, l.Y-l.Size)
	b.add(x+w, l.Y+l.Size/4)
}

func (b *boundsScanner) Start(a fixed.Point26_6) { b.add(unfix(a)) }
func (b *boundsScanner) Line(p fixed.Point26_6) { b.add(unfix(p)) }
func (b *boundsScanner) Draw() {}
func (b *boundsScanner) SetBounds(int, int) {}
func (b *boundsScanner) SetColor(any) {}
func (b *boundsScanner) SetWinding(bool) {}
func (b *boundsScanner) Clear() {}
func (b *boundsScanner) SetClip(image.Rectangle) {}

func (b *boundsScanner) GetPathExtent() fixed.Rectangle26_6 {
	return fixed.Rectangle26_6{}
}

func unfix(p fixed.Point26_6) (float64, float64) {
	return float64(p.X) / 64, float64(p.Y) / 64
}
