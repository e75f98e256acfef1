package export

import (
	"image/color"
	"math"
	"strings"

	"github.com/beevik/etree"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
	"github.com/ankek/mermaid-studio/internal/theme"
)

// unsupported elements are removed before drawing. Their children would
// otherwise be drawn as plain shapes.
var unsupported = map[string]bool{
	"text":          true,
	"foreignObject": true,
	"marker":        true,
	"clipPath":      true,
	"mask":          true,
	"pattern":       true,
	"symbol":        true,
	"title":         true,
	"desc":          true,
	"metadata":      true,
	"script":        true,
	"image":         true,
}

var geometryX = []string{"x", "cx", "rx", "x1", "x2", "width"}
var geometryY = []string{"y", "cy", "ry", "y1", "y2", "height"}

// prepare rewrites a document in place into the subset of SVG that oksvg
// draws and returns the text labels oksvg cannot draw. viewport resolves
// percentage lengths; a zero viewport drops them.
func prepare(root *etree.Element, viewport Size) []Label {
	InlineStyles(root)
	dropHidden(root)

	gradients := make(map[string]bool)
	walkElements(root, func(el *etree.Element) bool {
		if el.Tag == "linearGradient" || el.Tag == "radialGradient" {
			if id := el.SelectAttrValue("id", ""); id != "" {
				gradients[id] = true
			}
		}
		return true
	})
	normalize(root, color.NRGBA{A: 255}, gradients, viewport)

	expandMarkers(root)
	labels := ExtractLabels(root)
	prune(root)
	return labels
}

func dropHidden(root *etree.Element) {
	var hidden []*etree.Element
	walkElements(root, func(el *etree.Element) bool {
		if el == root {
			return true
		}
		d := strings.TrimSpace(el.SelectAttrValue("display", ""))
		v := strings.TrimSpace(el.SelectAttrValue("visibility", ""))
		if d == "none" || v == "hidden" || v == "collapse" {
			hidden = append(hidden, el)
			return false
		}
		return true
	})
	removeAll(hidden)
}

func prune(root *etree.Element) {
	var drop []*etree.Element
	walkElements(root, func(el *etree.Element) bool {
		if unsupported[el.Tag] {
			drop = append(drop, el)
			return false
		}
		return true
	})
	removeAll(drop)
}

func removeAll(els []*etree.Element) {
	for _, el := range els {
		if p := el.Parent(); p != nil {
			p.RemoveChild(el)
		}
	}
}

// normalize rewrites presentation attributes into forms oksvg parses and
// drops the ones it would reject. current is the inherited color property.
func normalize(el *etree.Element, current color.NRGBA, gradients map[string]bool, viewport Size) {
	if a := el.SelectAttr("color"); a != nil {
		if p, err := parsePaint(a.Value); err == nil && !p.none && !p.current && p.url == "" {
			current = p.color
		}
		el.RemoveAttr("color")
	}

	normalizePaint(el, "fill", current, gradients)
	normalizePaint(el, "stroke", current, gradients)

	for _, k := range []string{"opacity", "fill-opacity", "stroke-opacity"} {
		if a := el.SelectAttr(k); a != nil {
			if v, ok := parseOpacity(a.Value); ok {
				el.CreateAttr(k, formatNumber(v))
			} else {
				el.RemoveAttr(k)
			}
		}
	}
	for _, k := range []string{"stroke-width", "stroke-miterlimit", "stroke-dashoffset"} {
		if a := el.SelectAttr(k); a != nil {
			v, err := parseNumber(a.Value)
			if err != nil || (k != "stroke-dashoffset" && v < 0) {
				el.RemoveAttr(k)
			} else {
				el.CreateAttr(k, formatNumber(v))
			}
		}
	}
	if a := el.SelectAttr("stroke-dasharray"); a != nil {
		if v, ok := normalizeDashes(a.Value); ok {
			el.CreateAttr("stroke-dasharray", v)
		} else {
			el.RemoveAttr("stroke-dasharray")
		}
	}
	if a := el.SelectAttr("transform"); a != nil {
		if m, err := ParseTransform(a.Value); err == nil {
			el.CreateAttr("transform", FormatMatrix(m))
		} else {
			el.RemoveAttr("transform")
		}
	}

	resolvePercentages(el, geometryX, viewport.Width)
	resolvePercentages(el, geometryY, viewport.Height)
	if a := el.SelectAttr("r"); a != nil && strings.HasSuffix(a.Value, "%") {
		diag := math.Sqrt((viewport.Width*viewport.Width + viewport.Height*viewport.Height) / 2)
		resolvePercentages(el, []string{"r"}, diag)
	}

	for _, c := range el.ChildElements() {
		normalize(c, current, gradients, viewport)
	}
}

func normalizePaint(el *etree.Element, key string, current color.NRGBA, gradients map[string]bool) {
	a := el.SelectAttr(key)
	if a == nil {
		return
	}
	p, err := parsePaint(a.Value)
	switch {
	case err != nil:
		el.RemoveAttr(key)
	case p.none:
		el.CreateAttr(key, "none")
	case p.current:
		setPaint(el, key, current)
	case p.url != "":
		if id, ok := strings.CutPrefix(p.url, "#"); ok && gradients[id] {
			el.CreateAttr(key, "url(#"+id+")")
		} else {
			el.CreateAttr(key, "none")
		}
	default:
		setPaint(el, key, p.color)
	}
}

// setPaint writes c as opaque hex and folds its alpha into the matching
// opacity attribute.
func setPaint(el *etree.Element, key string, c color.NRGBA) {
	el.CreateAttr(key, theme.ToHex(c))
	if c.A == 255 {
		return
	}
	op := key + "-opacity"
	base := 1.0
	if v, ok := parseOpacity(el.SelectAttrValue(op, "")); ok {
		base = v
	}
	el.CreateAttr(op, formatNumber(base*float64(c.A)/255))
}

func parseOpacity(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	scale := 1.0
	if p, ok := strings.CutSuffix(s, "%"); ok {
		s, scale = p, 0.01
	}
	v, err := parseNumber(s)
	if err != nil {
		return 0, false
	}
	return math.Max(0, math.Min(1, v*scale)), true
}

func normalizeDashes(s string) (string, bool) {
	if strings.TrimSpace(s) == "none" {
		return "none", true
	}
	fields := svgdoc.SplitList(s)
	if len(fields) == 0 {
		return "", false
	}
	out := make([]string, len(fields))
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseNumber(f)
		if err != nil || v < 0 {
			return "", false
		}
		vals[i] = v
		out[i] = formatNumber(v)
	}
	// An odd list repeats; with no positive gap the stroke is solid.
	if len(vals)%2 == 1 {
		vals = append(vals, vals...)
	}
	solid := true
	for i := 1; i < len(vals); i += 2 {
		if vals[i] > 0 {
			solid = false
		}
	}
	if solid {
		return "none", true
	}
	return strings.Join(out, ","), true
}

func resolvePercentages(el *etree.Element, keys []string, extent float64) {
	for _, k := range keys {
		a := el.SelectAttr(k)
		if a == nil {
			continue
		}
		p, ok := strings.CutSuffix(strings.TrimSpace(a.Value), "%")
		if !ok {
			continue
		}
		v, err := parseNumber(p)
		if err != nil || !positive(extent) {
			el.RemoveAttr(k)
			continue
		}
		el.CreateAttr(k, formatNumber(v/100*extent))
	}
}
