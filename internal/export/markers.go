package export

import (
	"math"
	"strings"

	"github.com/beevik/etree"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// expandMarkers replaces marker-start and marker-end references with
// transformed copies of the marker contents placed after the marked shape.
// Arrowheads on Mermaid edges are markers.
func expandMarkers(root *etree.Element) {
	markers := make(map[string]*etree.Element)
	var marked []*etree.Element
	walkElements(root, func(el *etree.Element) bool {
		if el.Tag == "marker" {
			if id := el.SelectAttrValue("id", ""); id != "" {
				markers[id] = el
			}
			return false
		}
		if el.SelectAttr("marker-start") != nil || el.SelectAttr("marker-end") != nil {
			marked = append(marked, el)
		}
		return true
	})

	for _, el := range marked {
		start := markerRef(el.SelectAttrValue("marker-start", ""), markers)
		end := markerRef(el.SelectAttrValue("marker-end", ""), markers)
		el.RemoveAttr("marker-start")
		el.RemoveAttr("marker-end")
		if start == nil && end == nil {
			continue
		}

		ends, ok := shapeEnds(el)
		if !ok {
			continue
		}
		width := 1.0
		if v, err := parseNumber(el.SelectAttrValue("stroke-width", "")); err == nil {
			width = v
		}

		parent := el.Parent()
		at := el.Index() + 1
		if end != nil {
			parent.InsertChildAt(at, instantiateMarker(end, ends.endX, ends.endY, ends.endAngle, width, false))
		}
		if start != nil {
			parent.InsertChildAt(at, instantiateMarker(start, ends.startX, ends.startY, ends.startAngle, width, true))
		}
	}
}

func markerRef(v string, markers map[string]*etree.Element) *etree.Element {
	ref := urlTarget(v)
	id, ok := strings.CutPrefix(ref, "#")
	if !ok {
		return nil
	}
	return markers[id]
}

// instantiateMarker builds a group holding a copy of the marker's children,
// positioned at (x, y) and turned to angle per the marker's orient.
func instantiateMarker(marker *etree.Element, x, y, angle, strokeWidth float64, atStart bool) *etree.Element {
	switch orient := strings.TrimSpace(marker.SelectAttrValue("orient", "")); orient {
	case "auto":
	case "auto-start-reverse":
		if atStart {
			angle += math.Pi
		}
	default:
		deg, err := parseNumber(strings.TrimSuffix(orient, "deg"))
		if err != nil {
			deg = 0
		}
		angle = radians(deg)
	}

	m := rasterx.Identity.Translate(x, y).Rotate(angle)
	if marker.SelectAttrValue("markerUnits", "strokeWidth") != "userSpaceOnUse" {
		m = m.Scale(strokeWidth, strokeWidth)
	}
	if vb, ok := markerViewBox(marker); ok {
		mw := markerLength(marker, "markerWidth")
		mh := markerLength(marker, "markerHeight")
		s := math.Min(mw/vb.Width, mh/vb.Height)
		m = m.Scale(s, s)
	}
	refX, _ := parseNumber(marker.SelectAttrValue("refX", "0"))
	refY, _ := parseNumber(marker.SelectAttrValue("refY", "0"))
	m = m.Translate(-refX, -refY)

	g := etree.NewElement("g")
	for _, a := range marker.Attr {
		if styleProperties[a.Key] && a.Key != "transform" && a.Space == "" {
			g.CreateAttr(a.Key, a.Value)
		}
	}
	g.CreateAttr("transform", FormatMatrix(m))
	for _, c := range marker.ChildElements() {
		cp := c.Copy()
		walkElements(cp, func(el *etree.Element) bool {
			el.RemoveAttr("id")
			return true
		})
		g.AddChild(cp)
	}
	return g
}

func markerViewBox(marker *etree.Element) (svgdoc.Box, bool) {
	fields := svgdoc.SplitList(marker.SelectAttrValue("viewBox", ""))
	if len(fields) != 4 {
		return svgdoc.Box{}, false
	}
	var v [4]float64
	for i, f := range fields {
		n, err := parseNumber(f)
		if err != nil {
			return svgdoc.Box{}, false
		}
		v[i] = n
	}
	b := svgdoc.Box{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
	return b, b.Valid()
}

func markerLength(marker *etree.Element, key string) float64 {
	if v, err := parseNumber(marker.SelectAttrValue(key, "")); err == nil && v > 0 {
		return v
	}
	return 3
}

// endpoints holds where a shape starts and ends and the direction it travels
// at each end.
type endpoints struct {
	startX, startY, startAngle float64
	endX, endY, endAngle       float64
}

func shapeEnds(el *etree.Element) (endpoints, bool) {
	var d string
	switch el.Tag {
	case "path":
		d = el.SelectAttrValue("d", "")
	case "line":
		d = "M" + el.SelectAttrValue("x1", "0") + "," + el.SelectAttrValue("y1", "0") +
			"L" + el.SelectAttrValue("x2", "0") + "," + el.SelectAttrValue("y2", "0")
	case "polyline", "polygon":
		pts := svgdoc.SplitList(el.SelectAttrValue("points", ""))
		if len(pts) < 4 {
			return endpoints{}, false
		}
		d = "M" + strings.Join(pts[:2], ",") + "L" + strings.Join(pts[2:], ",")
	default:
		return endpoints{}, false
	}

	var pc oksvg.PathCursor
	if err := pc.CompilePath(d); err != nil {
		return endpoints{}, false
	}
	var t endTracker
	pc.Path.AddTo(&t)
	return t.ends, t.started
}

// endTracker is a rasterx.Adder recording the first and last points of a
// path and its direction at both.
type endTracker struct {
	ends      endpoints
	started   bool
	haveStart bool
	lastX     float64
	lastY     float64
}

func (t *endTracker) Start(a fixed.Point26_6) {
	x, y := unfix(a)
	if !t.started {
		t.ends.startX, t.ends.startY = x, y
		t.started = true
	}
	t.lastX, t.lastY = x, y
	t.ends.endX, t.ends.endY = x, y
}

func (t *endTracker) Line(b fixed.Point26_6) { t.segment(b, b, b) }
func (t *endTracker) QuadBezier(b, c fixed.Point26_6) { t.segment(b, b, c) }
func (t *endTracker) CubeBezier(b, c, d fixed.Point26_6) { t.segment(b, c, d) }
func (t *endTracker) Stop(bool) {}

// segment records a curve that leaves the current point toward first and
// arrives at end coming from last.
func (t *endTracker) segment(first, last, end fixed.Point26_6) {
	px, py := t.lastX, t.lastY
	fx, fy := unfix(first)
	lx, ly := unfix(last)
	ex, ey := unfix(end)

	if !t.haveStart {
		if fx == px && fy == py {
			fx, fy = ex, ey
		}
		if fx != px || fy != py {
			t.ends.startAngle = math.Atan2(fy-py, fx-px)
			t.haveStart = true
		}
	}
	if lx == ex && ly == ey {
		lx, ly = px, py
	}
	if lx != ex || ly != ey {
		t.ends.endAngle = math.Atan2(ey-ly, ex-lx)
	}

	t.lastX, t.lastY = ex, ey
	t.ends.endX, t.ends.endY = ex, ey
}
