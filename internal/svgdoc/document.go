// Package svgdoc holds a parsed SVG document. Documents are treated as
// immutable once produced by a render; callers that need to change one work
// on a Clone.
package svgdoc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Namespace is the SVG XML namespace.
const Namespace = "http://www.w3.org/2000/svg"

// XLinkNamespace is the legacy xlink namespace used by href attributes.
const XLinkNamespace = "http://www.w3.org/1999/xlink"

// ErrNotSVG is returned when the markup has no <svg> root element.
var ErrNotSVG = errors.New("document root is not an <svg> element")

// Box is a rectangle in user units.
type Box struct {
	X, Y, Width, Height float64
}

// Valid reports whether the box has positive finite extent.
func (b Box) Valid() bool {
	return PositiveFinite(b.Width) && PositiveFinite(b.Height)
}

// Document is a parsed SVG tree.
type Document struct {
	doc *etree.Document
}

// Parse reads SVG markup.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	root := doc.Root()
	if root == nil || !strings.EqualFold(root.Tag, "svg") {
		return nil, ErrNotSVG
	}

	return &Document{doc: doc}, nil
}

// Clone returns a deep copy that can be modified freely.
func (d *Document) Clone() *Document {
	return &Document{doc: d.doc.Copy()}
}

// Root returns the <svg> element.
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// Attr returns the value of a root attribute, or "" when it is absent.
func (d *Document) Attr(name string) string {
	return d.Root().SelectAttrValue(name, "")
}

// HasAttr reports whether the root carries the attribute.
func (d *Document) HasAttr(name string) bool {
	return d.Root().SelectAttr(name) != nil
}

// SetAttr sets a root attribute, replacing any existing value.
func (d *Document) SetAttr(name, value string) {
	d.Root().CreateAttr(name, value)
}

// RemoveAttr drops a root attribute.
func (d *Document) RemoveAttr(name string) {
	d.Root().RemoveAttr(name)
}

// EnsureNamespace adds the SVG namespace declaration when the root lacks one.
// Standalone SVG files are not rendered by viewers without it.
func (d *Document) EnsureNamespace() {
	if d.Attr("xmlns") == "" {
		d.SetAttr("xmlns", Namespace)
	}
	if d.usesXLink() && d.Attr("xmlns:xlink") == "" {
		d.SetAttr("xmlns:xlink", XLinkNamespace)
	}
}

func (d *Document) usesXLink() bool {
	found := false
	Walk(d.Root(), func(el *etree.Element) bool {
		for _, a := range el.Attr {
			if a.Space == "xlink" {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// ViewBox parses the viewBox attribute. The second result is false when the
// attribute is missing or does not hold four numbers.
func (d *Document) ViewBox() (Box, bool) {
	raw := d.Attr("viewBox")
	if raw == "" {
		return Box{}, false
	}

	fields := SplitList(raw)
	if len(fields) != 4 {
		return Box{}, false
	}

	var vals [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Box{}, false
		}
		vals[i] = v
	}

	return Box{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, true
}

// Length parses a root length attribute such as width or height. Plain
// numbers and px values are accepted; percentages and other units are not.
func (d *Document) Length(name string) (float64, bool) {
	return ParseLength(d.Attr(name))
}

// InsertFirst makes el the first child element of the root.
func (d *Document) InsertFirst(el *etree.Element) {
	root := d.Root()
	for i, tok := range root.Child {
		if _, ok := tok.(*etree.Element); ok {
			root.InsertChildAt(i, el)
			return
		}
	}
	root.AddChild(el)
}

// FirstElement returns the first child element of the root, or nil.
func (d *Document) FirstElement() *etree.Element {
	children := d.Root().ChildElements()
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// Bytes serializes the document.
func (d *Document) Bytes() ([]byte, error) {
	b, err := d.doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize SVG: %w", err)
	}
	return b, nil
}

// Walk visits el and its descendants depth first. Returning false from fn
// stops the walk.
func Walk(el *etree.Element, fn func(*etree.Element) bool) bool {
	if !fn(el) {
		return false
	}
	for _, child := range el.ChildElements() {
		if !Walk(child, fn) {
			return false
		}
	}
	return true
}

// SplitList splits an SVG number list on whitespace and commas.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// ParseLength parses a user-unit length, allowing a px suffix.
func ParseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "px")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// PositiveFinite reports whether v is a usable extent.
func PositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
