package export

import (
	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// Measurer reports the extent of a document's content when neither its
// viewBox nor its width and height give a usable size.
type Measurer interface {
	Measure(doc *svgdoc.Document) (Size, error)
}

// ResolveDimensions finds the original size of a document. A viewBox, when
// present, is the only candidate; otherwise the width and height attributes
// are. An unusable candidate falls back to the measurer.
func ResolveDimensions(doc *svgdoc.Document, m Measurer) (Size, error) {
	var candidate Size
	if doc.HasAttr("viewBox") {
		if vb, ok := doc.ViewBox(); ok {
			candidate = Size{Width: vb.Width, Height: vb.Height}
		}
	} else {
		w, _ := doc.Length("width")
		h, _ := doc.Length("height")
		candidate = Size{Width: w, Height: h}
	}
	if candidate.Valid() {
		return candidate, nil
	}

	if m == nil {
		return Size{}, &DimensionUnresolvedError{Reason: "no usable viewBox or width/height"}
	}
	measured, err := m.Measure(doc)
	if err != nil {
		return Size{}, &DimensionUnresolvedError{Reason: err.Error()}
	}
	if !measured.Valid() {
		return Size{}, &DimensionUnresolvedError{Reason: "content has no extent"}
	}
	return measured, nil
}
