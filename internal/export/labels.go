package export

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/srwiley/rasterx"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// DefaultFontSize is the font size of text without one, in user units.
const DefaultFontSize = 16.0

// Label is a run of text positioned in document user units. X and Y locate
// the anchor point; Baseline says how Y relates to the glyphs.
type Label struct {
	Text     string
	X, Y     float64
	Size     float64
	Angle    float64
	Anchor   string
	Baseline string
	Color    color.NRGBA
	Bold     bool
	Italic   bool
	Mono     bool
}

var nonRendered = map[string]bool{
	"defs":           true,
	"marker":         true,
	"clipPath":       true,
	"mask":           true,
	"pattern":        true,
	"symbol":         true,
	"style":          true,
	"title":          true,
	"desc":           true,
	"metadata":       true,
	"script":         true,
	"linearGradient": true,
	"radialGradient": true,
}

type textStyle struct {
	m           rasterx.Matrix2D
	fill        color.NRGBA
	hasFill     bool
	fillOpacity float64
	opacity     float64
	size        float64
	family      string
	weight      string
	style       string
	anchor      string
	baseline    string
}

func defaultTextStyle() textStyle {
	return textStyle{
		m:           rasterx.Identity,
		fill:        color.NRGBA{A: 255},
		hasFill:     true,
		fillOpacity: 1,
		opacity:     1,
		size:        DefaultFontSize,
		anchor:      "start",
	}
}

func (s textStyle) inherit(el *etree.Element) textStyle {
	if v := el.SelectAttrValue("transform", ""); v != "" {
		if t, err := ParseTransform(v); err == nil {
			s.m = s.m.Mult(t)
		}
	}
	if v := el.SelectAttrValue("fill", ""); v != "" {
		if p, err := parsePaint(v); err == nil {
			switch {
			case p.none:
				s.hasFill = false
			case p.url != "" || p.current:
				s.hasFill, s.fill = true, color.NRGBA{A: 255}
			default:
				s.hasFill, s.fill = true, p.color
			}
		}
	}
	if v, ok := parseOpacity(el.SelectAttrValue("fill-opacity", "")); ok {
		s.fillOpacity = v
	}
	if v, ok := parseOpacity(el.SelectAttrValue("opacity", "")); ok {
		s.opacity *= v
	}
	if v := el.SelectAttrValue("font-size", ""); v != "" {
		s.size = fontSize(v, s.size)
	}
	if v := el.SelectAttrValue("font-family", ""); v != "" {
		s.family = v
	}
	if v := el.SelectAttrValue("font-weight", ""); v != "" {
		s.weight = v
	}
	if v := el.SelectAttrValue("font-style", ""); v != "" {
		s.style = v
	}
	if v := el.SelectAttrValue("text-anchor", ""); v != "" {
		s.anchor = v
	}
	if v := el.SelectAttrValue("dominant-baseline", ""); v != "" {
		s.baseline = v
	} else if v := el.SelectAttrValue("alignment-baseline", ""); v != "" {
		s.baseline = v
	}
	return s
}

func (s textStyle) label(text string, x, y float64) Label {
	px, py := s.m.Transform(x, y)
	c := s.fill
	c.A = uint8(math.Round(float64(c.A) * s.fillOpacity * s.opacity))

	family := strings.ToLower(s.family)
	mono := strings.Contains(family, "mono") || strings.Contains(family, "courier") ||
		strings.Contains(family, "code")
	return Label{
		Text:     text,
		X:        px,
		Y:        py,
		Size:     s.size * matrixScale(s.m),
		Angle:    matrixAngle(s.m),
		Anchor:   s.anchor,
		Baseline: s.baseline,
		Color:    c,
		Bold:     isBold(s.weight),
		Italic:   s.style == "italic" || s.style == "oblique",
		Mono:     mono,
	}
}

func isBold(weight string) bool {
	switch w := strings.TrimSpace(weight); w {
	case "bold", "bolder":
		return true
	default:
		n, err := strconv.Atoi(w)
		return err == nil && n >= 600
	}
}

// ExtractLabels collects the visible text of a document: <text> elements
// with their <tspan> lines, and the text content of <foreignObject> labels.
func ExtractLabels(root *etree.Element) []Label {
	var out []Label
	collectLabels(root, defaultTextStyle(), &out)
	return out
}

func collectLabels(el *etree.Element, parent textStyle, out *[]Label) {
	if nonRendered[el.Tag] {
		return
	}
	st := parent.inherit(el)
	switch el.Tag {
	case "text":
		*out = append(*out, textLabels(el, st)...)
		return
	case "foreignObject":
		if l, ok := foreignLabel(el, st); ok {
			*out = append(*out, l)
		}
		return
	}
	for _, c := range el.ChildElements() {
		collectLabels(c, st, out)
	}
}

// line is a label under construction.
type line struct {
	style textStyle
	x, y  float64
	text  strings.Builder
}

type textLayout struct {
	x, y  float64
	lines []*line
}

func textLabels(el *etree.Element, st textStyle) []Label {
	var t textLayout
	t.position(el, st)
	t.runs(el, st, true)

	var out []Label
	for _, l := range t.lines {
		text := strings.Join(strings.Fields(l.text.String()), " ")
		if text == "" || !l.style.hasFill {
			continue
		}
		out = append(out, l.style.label(text, l.x, l.y))
	}
	return out
}

// position applies x, y, dx and dy and reports whether any was present.
func (t *textLayout) position(el *etree.Element, st textStyle) bool {
	moved := false
	if v, ok := coordinate(el, "x", st.size); ok {
		t.x, moved = v, true
	}
	if v, ok := coordinate(el, "y", st.size); ok {
		t.y, moved = v, true
	}
	if v, ok := coordinate(el, "dx", st.size); ok {
		t.x, moved = t.x+v, true
	}
	if v, ok := coordinate(el, "dy", st.size); ok {
		t.y, moved = t.y+v, true
	}
	return moved
}

func (t *textLayout) runs(el *etree.Element, st textStyle, newLine bool) {
	for _, tok := range el.Child {
		switch tok := tok.(type) {
		case *etree.CharData:
			if newLine || len(t.lines) == 0 {
				t.lines = append(t.lines, &line{style: st, x: t.x, y: t.y})
				newLine = false
			}
			t.lines[len(t.lines)-1].text.WriteString(tok.Data)
		case *etree.Element:
			if tok.Tag != "tspan" && tok.Tag != "a" && tok.Tag != "textPath" {
				continue
			}
			child := st.inherit(tok)
			if t.position(tok, child) || len(t.lines) == 0 {
				t.lines = append(t.lines, &line{style: child, x: t.x, y: t.y})
			}
			t.runs(tok, child, false)
			newLine = false
		}
	}
}

func foreignLabel(el *etree.Element, st textStyle) (Label, bool) {
	var b strings.Builder
	walkElements(el, func(e *etree.Element) bool {
		for _, tok := range e.Child {
			if cd, ok := tok.(*etree.CharData); ok {
				b.WriteString(cd.Data)
				b.WriteByte(' ')
			}
		}
		return true
	})
	text := strings.Join(strings.Fields(b.String()), " ")
	if text == "" || !st.hasFill {
		return Label{}, false
	}

	x, _ := svgdoc.ParseLength(el.SelectAttrValue("x", "0"))
	y, _ := svgdoc.ParseLength(el.SelectAttrValue("y", "0"))
	w, _ := svgdoc.ParseLength(el.SelectAttrValue("width", "0"))
	h, _ := svgdoc.ParseLength(el.SelectAttrValue("height", "0"))
	st.anchor = "middle"
	st.baseline = "central"
	return st.label(text, x+w/2, y+h/2), true
}

// coordinate reads the first value of a text position list. em values are
// relative to size.
func coordinate(el *etree.Element, key string, size float64) (float64, bool) {
	fields := svgdoc.SplitList(el.SelectAttrValue(key, ""))
	if len(fields) == 0 {
		return 0, false
	}
	v := fields[0]
	if em, ok := strings.CutSuffix(v, "em"); ok {
		n, err := parseNumber(em)
		return n * size, err == nil
	}
	n, err := parseNumber(v)
	return n, err == nil
}

var fontKeywords = map[string]float64{
	"xx-small": 9,
	"x-small":  10,
	"small":    13,
	"medium":   16,
	"large":    18,
	"x-large":  24,
	"xx-large": 32,
}

// fontSize resolves a CSS font-size against the inherited size.
func fontSize(v string, parent float64) float64 {
	v = strings.ToLower(strings.TrimSpace(v))
	if k, ok := fontKeywords[v]; ok {
		return k
	}
	var (
		n   float64
		err error
	)
	switch {
	case v == "smaller":
		return parent / 1.2
	case v == "larger":
		return parent * 1.2
	case strings.HasSuffix(v, "em"):
		n, err = parseNumber(strings.TrimSuffix(v, "em"))
		n *= parent
	case strings.HasSuffix(v, "%"):
		n, err = parseNumber(strings.TrimSuffix(v, "%"))
		n = n / 100 * parent
	case strings.HasSuffix(v, "pt"):
		n, err = parseNumber(strings.TrimSuffix(v, "pt"))
		n = n * 4 / 3
	default:
		n, err = parseNumber(v)
	}
	if err != nil || n <= 0 {
		return parent
	}
	return n
}
