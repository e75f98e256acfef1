package export

import (
	"errors"
	"math"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckExternalRefs(t *testing.T) {
	tests := []struct {
		name string
		svg  string
		want string
	}{
		{name: "self contained", svg: `<svg><defs><marker id="m"/></defs><path marker-end="url(#m)"/></svg>`},
		{name: "data uri image", svg: `<svg xmlns:xlink="http://www.w3.org/1999/xlink"><image xlink:href="data:image/png;base64,AAAA"/></svg>`},
		{name: "local use", svg: `<svg><use href="#a"/></svg>`},
		{name: "linked image", svg: `<svg><image href="https://example.com/logo.png"/></svg>`, want: "https://example.com/logo.png"},
		{name: "xlink image", svg: `<svg xmlns:xlink="http://www.w3.org/1999/xlink"><image xlink:href="logo.png"/></svg>`, want: "logo.png"},
		{name: "fill url", svg: `<svg><rect fill="url(other.svg#g)"/></svg>`, want: "other.svg#g"},
		{name: "stylesheet import", svg: `<svg><style>@import "https://fonts.example.com/a.css";</style></svg>`, want: "https://fonts.example.com/a.css"},
		{name: "stylesheet url", svg: `<svg><style>.n{background:url('https://example.com/bg.png')}</style></svg>`, want: "https://example.com/bg.png"},
		{name: "stylesheet local url", svg: `<svg><style>.n{fill:url(#grad)}</style></svg>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.svg)
			err := CheckExternalRefs(doc.Root())
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			var ext *ExternalResourceError
			require.True(t, errors.As(err, &ext), "got %v", err)
			assert.Equal(t, tt.want, ext.Resource)
		})
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><text>你好 &amp; more</text></svg>`)
	uri := EncodeDataURI(svg)
	assert.True(t, isDataURI(uri))

	mediaType, data, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", mediaType)
	assert.Equal(t, svg, data)

	_, _, err = DecodeDataURI("https://example.com/a.svg")
	assert.Error(t, err)
}

func TestExtractLabels(t *testing.T) {
	doc := mustParse(t, `<svg xmlns="http://www.w3.org/2000/svg" font-size="16">
<defs><text>hidden</text></defs>
<g transform="translate(100,50)" fill="#333">
  <text text-anchor="middle" dominant-baseline="central" font-weight="bold">
    <tspan x="0" dy="-0.5em">Start</tspan>
    <tspan x="0" dy="1em">process</tspan>
  </text>
</g>
<text x="10" y="20" fill="none">invisible</text>
<text x="10" y="30" font-family="Courier New" font-size="2em" fill-opacity="0.5">a <tspan font-style="italic">b</tspan></text>
<g transform="rotate(90)"><text x="1" y="0">turned</text></g>
<foreignObject x="10" y="10" width="80" height="20"><div xmlns="http://www.w3.org/1999/xhtml"><span>Edge label</span></div></foreignObject>
</svg>`)

	labels := ExtractLabels(doc.Root())
	require.Len(t, labels, 5)

	first, second := labels[0], labels[1]
	assert.Equal(t, "Start", first.Text)
	assert.Equal(t, "process", second.Text)
	assert.InDelta(t, 100, first.X, 1e-9)
	assert.InDelta(t, 42, first.Y, 1e-9)
	assert.InDelta(t, 58, second.Y, 1e-9)
	assert.Equal(t, "middle", first.Anchor)
	assert.Equal(t, "central", first.Baseline)
	assert.True(t, first.Bold)
	assert.Equal(t, uint8(0x33), first.Color.R)
	assert.InDelta(t, 16, first.Size, 1e-9)

	mixed := labels[2]
	assert.Equal(t, "a b", mixed.Text)
	assert.True(t, mixed.Mono)
	assert.InDelta(t, 32, mixed.Size, 1e-9)
	assert.Equal(t, uint8(128), mixed.Color.A)

	turned := labels[3]
	assert.InDelta(t, 0, turned.X, 1e-9)
	assert.InDelta(t, 1, turned.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, turned.Angle, 1e-9)

	edge := labels[4]
	assert.Equal(t, "Edge label", edge.Text)
	assert.InDelta(t, 50, edge.X, 1e-9)
	assert.InDelta(t, 20, edge.Y, 1e-9)
	assert.Equal(t, "middle", edge.Anchor)
}

func TestFontSize(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "12px", want: 12},
		{in: "12", want: 12},
		{in: "1.5em", want: 15},
		{in: "50%", want: 5},
		{in: "12pt", want: 16},
		{in: "large", want: 18},
		{in: "larger", want: 12},
		{in: "-3px", want: 10},
		{in: "big", want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, fontSize(tt.in, 10), 1e-9)
		})
	}
}

func TestExpandMarkers(t *testing.T) {
	doc := mustParse(t, `<svg xmlns="http://www.w3.org/2000/svg">
<defs>
  <marker id="arrow" viewBox="0 0 10 10" refX="5" refY="5" markerWidth="8" markerHeight="8" orient="auto" markerUnits="userSpaceOnUse">
    <path id="head" d="M 0 0 L 10 5 L 0 10 z" fill="#333"/>
  </marker>
  <marker id="dot" refX="0" refY="0" orient="auto-start-reverse"><circle r="1"/></marker>
</defs>
<g id="edges">
  <path id="edge" d="M10,10 L10,110" stroke-width="2" marker-start="url(#dot)" marker-end="url(#arrow)"/>
  <path id="plain" d="M0,0 L1,1" marker-end="url(#missing)"/>
</g>
</svg>`)
	root := doc.Root()
	expandMarkers(root)

	edges := root.FindElement("//g[@id='edges']")
	require.NotNil(t, edges)
	children := edges.ChildElements()
	require.Len(t, children, 4)

	edge := children[0]
	assert.Nil(t, edge.SelectAttr("marker-end"))
	assert.Nil(t, edge.SelectAttr("marker-start"))
	assert.Nil(t, children[3].SelectAttr("marker-end"))

	start, end := children[1], children[2]
	assertMarker(t, start, 0, 0, 10, 10, 0, -1)
	assertMarker(t, end, 5, 5, 10, 110, 0, 1)

	head := end.FindElement("path")
	require.NotNil(t, head)
	assert.Nil(t, head.SelectAttr("id"))

	// The arrow tip (10,5) in marker units lands 4 units past the end point.
	m, err := ParseTransform(end.SelectAttrValue("transform", ""))
	require.NoError(t, err)
	x, y := m.Transform(10, 5)
	assert.InDelta(t, 10, x, 1e-9)
	assert.InDelta(t, 110+4, y, 1e-9)

	// Stroke-width scaling applies to the dot marker.
	sm, err := ParseTransform(start.SelectAttrValue("transform", ""))
	require.NoError(t, err)
	assert.InDelta(t, 2, matrixScale(sm), 1e-9)
}

// assertMarker checks that a marker group's transform maps the reference
// point to (x, y) and its x axis to direction (dx, dy).
func assertMarker(t *testing.T, g *etree.Element, refX, refY, x, y, dx, dy float64) {
	t.Helper()
	require.Equal(t, "g", g.Tag)
	m, err := ParseTransform(g.SelectAttrValue("transform", ""))
	require.NoError(t, err)

	ox, oy := m.Transform(refX, refY)
	assert.InDelta(t, x, ox, 1e-9)
	assert.InDelta(t, y, oy, 1e-9)

	ax, ay := m.TransformVector(1, 0)
	n := math.Hypot(ax, ay)
	assert.InDelta(t, dx, ax/n, 1e-9)
	assert.InDelta(t, dy, ay/n, 1e-9)
}
