package export

import (
	"github.com/beevik/etree"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// CompositeBackground inserts a rect filled with color as the first child of
// the document so the background survives outside the editor. The rect
// covers the viewBox, or the whole viewport when there is none.
func CompositeBackground(doc *svgdoc.Document, color string) *etree.Element {
	rect := etree.NewElement("rect")
	if vb, ok := doc.ViewBox(); ok && vb.Valid() {
		rect.CreateAttr("x", formatNumber(vb.X))
		rect.CreateAttr("y", formatNumber(vb.Y))
		rect.CreateAttr("width", formatNumber(vb.Width))
		rect.CreateAttr("height", formatNumber(vb.Height))
	} else {
		rect.CreateAttr("x", "0")
		rect.CreateAttr("y", "0")
		rect.CreateAttr("width", "100%")
		rect.CreateAttr("height", "100%")
	}
	rect.CreateAttr("fill", color)
	doc.InsertFirst(rect)
	return rect
}
