package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankek/mermaid-studio/internal/svgdoc"
)

// flowchartSVG is shaped like Mermaid output for "graph TD; A[Start] --> B[End]".
const flowchartSVG = `<svg id="mermaid-1" width="100%" xmlns="http://www.w3.org/2000/svg" class="flowchart" style="max-width: 62.5px;" viewBox="-8 -8 62.5 174" role="graphics-document document" aria-roledescription="flowchart-v2">
<style>#mermaid-1{font-family:"trebuchet ms",verdana,arial,sans-serif;font-size:16px;fill:#333;}#mermaid-1 .node rect{fill:#ECECFF;stroke:#9370DB;stroke-width:1px;}#mermaid-1 .flowchart-link{stroke:#333333;fill:none;}#mermaid-1 .marker{fill:#333333;stroke:#333333;}#mermaid-1 .node .label{text-align:center;}#mermaid-1 :root{--mermaid-font-family:"trebuchet ms",verdana,arial,sans-serif;}</style>
<g>
  <marker id="mermaid-1_flowchart-pointEnd" class="marker flowchart" viewBox="0 0 10 10" refX="6" refY="5" markerUnits="userSpaceOnUse" markerWidth="12" markerHeight="12" orient="auto"><path d="M 0 0 L 10 5 L 0 10 z" class="arrowMarkerPath" style="stroke-width: 1; stroke-dasharray: 1, 0;"/></marker>
  <g class="root">
    <g class="edgePaths"><path d="M23.25,51L23.25,55.167C23.25,59.333,23.25,67.667,23.25,76C23.25,84.333,23.25,92.667,23.25,96.833L23.25,101" id="L-A-B-0" class="edge-thickness-normal edge-pattern-solid flowchart-link LS-A LE-B" style="fill:none;" marker-end="url(#mermaid-1_flowchart-pointEnd)"/></g>
    <g class="nodes">
      <g class="node default default flowchart-label" id="flowchart-A-0" transform="translate(23.25, 25.5)">
        <rect class="basic label-container" style="" rx="0" ry="0" x="-23.25" y="-25.5" width="46.5" height="51"/>
        <g class="label" style="" transform="translate(-15.75, -18)"><text y="-10.1"><tspan xml:space="preserve" dy="1em" x="0" class="row">Start</tspan></text></g>
      </g>
      <g class="node default default flowchart-label" id="flowchart-B-1" transform="translate(23.25, 132.5)">
        <rect class="basic label-container" style="" rx="0" ry="0" x="-20.5" y="-25.5" width="41" height="51"/>
        <g class="label" style="" transform="translate(-13, -18)"><text y="-10.1"><tspan xml:space="preserve" dy="1em" x="0" class="row">End</tspan></text></g>
      </g>
    </g>
  </g>
</g>
</svg>`

// blockSVG is a red block centered in a 1:2 viewBox.
const blockSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 40"><rect x="5" y="10" width="10" height="20" fill="#ff0000"/></svg>`

type fakeImage struct {
	w, h     float64
	released bool
}

func (i *fakeImage) NaturalSize() (float64, float64) { return i.w, i.h }
func (i *fakeImage) Release() { i.released = true }

type fakeDecoder struct {
	img *fakeImage
	err error
	uri string
}

func (d *fakeDecoder) Decode(_ context.Context, uri string) (Image, error) {
	d.uri = uri
	if d.err != nil {
		return nil, d.err
	}
	return d.img, nil
}

type blockingDecoder struct{}

func (blockingDecoder) Decode(ctx context.Context, _ string) (Image, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeEncoder struct {
	err           error
	width, height int
	background    string
}

func (e *fakeEncoder) Encode(w io.Writer, _ Image, width, height int, background string) error {
	e.width, e.height, e.background = width, height, background
	if e.err != nil {
		return e.err
	}
	_, err := w.Write([]byte("png"))
	return err
}

func newTestPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	opts.Logger = zerolog.Nop()
	p, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestExportVector(t *testing.T) {
	p := newTestPipeline(t, Options{Encoder: &fakeEncoder{}})

	tests := []struct {
		name       string
		multiplier float64
		wantName   string
		wantWidth  string
		wantHeight string
	}{
		{name: "baseline", multiplier: 1, wantName: "mermaid-graph-1080p.svg", wantWidth: "387.93", wantHeight: "1080.00"},
		{name: "double", multiplier: 2, wantName: "mermaid-graph-2x1080p.svg", wantWidth: "775.86", wantHeight: "2160.00"},
		{name: "invalid multiplier", multiplier: 0, wantName: "mermaid-graph-1080p.svg", wantWidth: "387.93", wantHeight: "1080.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, flowchartSVG)
			file, err := p.Export(context.Background(), Request{
				Document:   doc,
				Background: "#0D0221",
				Multiplier: tt.multiplier,
				Format:     FormatSVG,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, file.Name)
			assert.Equal(t, "image/svg+xml;charset=utf-8", file.MIMEType)
			assert.True(t, file.Scaled)

			out, err := svgdoc.Parse(file.Data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, out.Attr("width"))
			assert.Equal(t, tt.wantHeight, out.Attr("height"))
			assert.Equal(t, "http://www.w3.org/2000/svg", out.Attr("xmlns"))

			bg := out.FirstElement()
			require.NotNil(t, bg)
			assert.Equal(t, "rect", bg.Tag)
			assert.Equal(t, "#0D0221", bg.SelectAttrValue("fill", ""))
			assert.Equal(t, "-8", bg.SelectAttrValue("x", ""))
			assert.Equal(t, "174", bg.SelectAttrValue("height", ""))

			backgrounds := 0
			svgdoc.Walk(out.Root(), func(el *etree.Element) bool {
				if el.SelectAttrValue("fill", "") == "#0D0221" {
					backgrounds++
				}
				return true
			})
			assert.Equal(t, 1, backgrounds)

			// The live document is untouched.
			assert.Equal(t, "100%", doc.Attr("width"))
			assert.False(t, doc.HasAttr("height"))
			assert.Equal(t, "style", doc.FirstElement().Tag)
		})
	}
}

func TestExportVectorUnscaled(t *testing.T) {
	p := newTestPipeline(t, Options{Encoder: &fakeEncoder{}})

	doc := mustParse(t, `<svg xmlns="http://www.w3.org/2000/svg" width="auto"><g/></svg>`)
	file, err := p.Export(context.Background(), Request{Document: doc, Multiplier: 3, Format: FormatSVG})
	require.NoError(t, err)

	assert.False(t, file.Scaled)
	assert.Equal(t, "mermaid-graph-3x1080p.svg", file.Name)

	out, err := svgdoc.Parse(file.Data)
	require.NoError(t, err)
	assert.Equal(t, "auto", out.Attr("width"))
	bg := out.FirstElement()
	assert.Equal(t, "100%", bg.SelectAttrValue("width", ""))
	assert.Equal(t, DefaultBackground, bg.SelectAttrValue("fill", ""))
}

func TestExportRasterFlowchart(t *testing.T) {
	p := newTestPipeline(t, Options{})

	tests := []struct {
		multiplier float64
		wantName   string
		wantSize   image.Point
	}{
		{multiplier: 1, wantName: "mermaid-graph-1080p.png", wantSize: image.Pt(388, 1080)},
		{multiplier: 2, wantName: "mermaid-graph-2x1080p.png", wantSize: image.Pt(776, 2160)},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			file, err := p.Export(context.Background(), Request{
				Document:   mustParse(t, flowchartSVG),
				Background: "#ffffff",
				Multiplier: tt.multiplier,
				Format:     FormatPNG,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, file.Name)
			assert.Equal(t, "image/png", file.MIMEType)

			img, err := png.Decode(bytes.NewReader(file.Data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, img.Bounds().Size())
			assert.Equal(t, float64(tt.wantSize.Y), file.Height)
		})
	}
}

func TestExportRasterFlowchartStyles(t *testing.T) {
	p := newTestPipeline(t, Options{})

	file, err := p.Export(context.Background(), Request{
		Document:   mustParse(t, flowchartSVG),
		Background: "#ffffff",
		Multiplier: 1,
		Format:     FormatPNG,
	})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(file.Data))
	require.NoError(t, err)

	// 1080 / 174 pixels per user unit, viewBox origin at (-8, -8).
	const scale = 1080.0 / 174
	at := func(x, y float64) (int, int) {
		return int((x + 8) * scale), int((y + 8) * scale)
	}

	tests := []struct {
		name string
		x, y float64
		want color.NRGBA
	}{
		{name: "node A fill", x: 5, y: 45, want: color.NRGBA{0xEC, 0xEC, 0xFF, 0xff}},
		{name: "node B fill", x: 5, y: 150, want: color.NRGBA{0xEC, 0xEC, 0xFF, 0xff}},
		{name: "arrowhead", x: 25.25, y: 97, want: color.NRGBA{0x33, 0x33, 0x33, 0xff}},
		{name: "background beside the edge", x: 5, y: 80, want: color.NRGBA{0xff, 0xff, 0xff, 0xff}},
		{name: "background beside the arrowhead", x: 35, y: 97, want: color.NRGBA{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := at(tt.x, tt.y)
			assertPixel(t, img, x, y, tt.want)
		})
	}
}

func TestExportRasterPixels(t *testing.T) {
	p := newTestPipeline(t, Options{})

	file, err := p.Export(context.Background(), Request{
		Document:   mustParse(t, blockSVG),
		Background: "#112233",
		Multiplier: 1,
		Format:     FormatPNG,
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(file.Data))
	require.NoError(t, err)
	require.Equal(t, image.Pt(540, 1080), img.Bounds().Size())

	assertPixel(t, img, 10, 10, color.NRGBA{0x11, 0x22, 0x33, 0xff})
	assertPixel(t, img, 530, 1070, color.NRGBA{0x11, 0x22, 0x33, 0xff})
	assertPixel(t, img, 270, 540, color.NRGBA{0xff, 0x00, 0x00, 0xff})
}

func TestExportRasterCSSBackground(t *testing.T) {
	p := newTestPipeline(t, Options{})

	tests := []struct {
		name       string
		background string
		want       color.NRGBA
	}{
		{name: "named", background: "white", want: color.NRGBA{0xff, 0xff, 0xff, 0xff}},
		{name: "rgb", background: "rgb(17, 34, 51)", want: color.NRGBA{0x11, 0x22, 0x33, 0xff}},
		{name: "hsl", background: "hsl(0, 0%, 20%)", want: color.NRGBA{0x33, 0x33, 0x33, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := p.Export(context.Background(), Request{
				Document:   mustParse(t, blockSVG),
				Background: tt.background,
				Multiplier: 1,
				Format:     FormatPNG,
			})
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(file.Data))
			require.NoError(t, err)
			assertPixel(t, img, 10, 10, tt.want)
			assertPixel(t, img, 270, 540, color.NRGBA{0xff, 0x00, 0x00, 0xff})
		})
	}

	t.Run("not a color", func(t *testing.T) {
		_, err := p.Export(context.Background(), Request{
			Document:   mustParse(t, blockSVG),
			Background: "url(#g)",
			Multiplier: 1,
			Format:     FormatPNG,
		})
		var encErr *EncodeError
		assert.ErrorAs(t, err, &encErr)
	})
}

func assertPixel(t *testing.T, img image.Image, x, y int, want color.NRGBA) {
	t.Helper()
	got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	for i, pair := range [][2]uint8{{want.R, got.R}, {want.G, got.G}, {want.B, got.B}, {want.A, got.A}} {
		assert.InDelta(t, pair[0], pair[1], 2, "pixel (%d,%d) channel %d: got %v", x, y, i, got)
	}
}

func TestExportRasterUsesNaturalSize(t *testing.T) {
	img := &fakeImage{w: 200, h: 100}
	dec := &fakeDecoder{img: img}
	enc := &fakeEncoder{}
	p := newTestPipeline(t, Options{Decoder: dec, Encoder: enc})

	file, err := p.Export(context.Background(), Request{
		Document:   mustParse(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50"/>`),
		Background: "#333333",
		Multiplier: 1.5,
		Format:     FormatPNG,
	})
	require.NoError(t, err)

	assert.Equal(t, 3240, enc.width)
	assert.Equal(t, 1620, enc.height)
	assert.Equal(t, "#333333", enc.background)
	assert.Equal(t, "mermaid-graph-1.5x1080p.png", file.Name)
	assert.Equal(t, []byte("png"), file.Data)
	assert.True(t, img.released)

	mediaType, data, err := DecodeDataURI(dec.uri)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", mediaType)
	sent, err := svgdoc.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "100", sent.Attr("width"))
	assert.Equal(t, "50", sent.Attr("height"))
	assert.Equal(t, "#333333", sent.FirstElement().SelectAttrValue("fill", ""))
}

func TestExportRasterZeroNaturalSize(t *testing.T) {
	img := &fakeImage{}
	enc := &fakeEncoder{}
	p := newTestPipeline(t, Options{Decoder: &fakeDecoder{img: img}, Encoder: enc})

	file, err := p.Export(context.Background(), Request{
		Document:   mustParse(t, `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20"/>`),
		Multiplier: 1,
		Format:     FormatPNG,
	})
	var de *DimensionUnresolvedError
	require.ErrorAs(t, err, &de)
	assert.Nil(t, file)
	assert.Zero(t, enc.width)
	assert.True(t, img.released)
}

func TestExportRasterErrors(t *testing.T) {
	square := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"/>`

	tests := []struct {
		name    string
		opts    Options
		svg     string
		check   func(t *testing.T, err error)
		timeout time.Duration
	}{
		{
			name: "decode failure",
			opts: Options{Decoder: &fakeDecoder{err: errors.New("broken image")}, Encoder: &fakeEncoder{}},
			svg:  square,
			check: func(t *testing.T, err error) {
				var de *ImageDecodeError
				require.True(t, errors.As(err, &de))
				assert.Contains(t, err.Error(), "broken image")
				assert.Contains(t, err.Error(), Remediation)
			},
		},
		{
			name: "external image",
			opts: Options{},
			svg:  `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><image href="https://example.com/a.png" width="10" height="10"/></svg>`,
			check: func(t *testing.T, err error) {
				var de *ImageDecodeError
				require.True(t, errors.As(err, &de))
				var ext *ExternalResourceError
				require.True(t, errors.As(err, &ext))
				assert.Equal(t, "https://example.com/a.png", ext.Resource)
				assert.Contains(t, err.Error(), Remediation)
			},
		},
		{
			name: "encode failure",
			opts: Options{Decoder: &fakeDecoder{img: &fakeImage{w: 10, h: 10}}, Encoder: &fakeEncoder{err: errors.New("disk full")}},
			svg:  square,
			check: func(t *testing.T, err error) {
				var ee *EncodeError
				require.True(t, errors.As(err, &ee))
				assert.Contains(t, err.Error(), "failed to export PNG: disk full")
				assert.Contains(t, err.Error(), Remediation)
			},
		},
		{
			name: "canvas too large",
			opts: Options{Decoder: &fakeDecoder{img: &fakeImage{w: 10, h: 10}}, Encoder: &fakeEncoder{}, MaxPixels: 1000 * 1000},
			svg:  square,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrCanvasTooLarge)
				var ee *EncodeError
				assert.True(t, errors.As(err, &ee))
			},
		},
		{
			name: "natural width beyond int range",
			opts: Options{Decoder: &fakeDecoder{img: &fakeImage{w: 1e300, h: 1}}, Encoder: &fakeEncoder{}},
			svg:  square,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrCanvasTooLarge)
				var ee *EncodeError
				assert.True(t, errors.As(err, &ee))
			},
		},
		{
			name: "unresolved size",
			opts: Options{Decoder: &fakeDecoder{img: &fakeImage{}}, Encoder: &fakeEncoder{}},
			svg:  `<svg xmlns="http://www.w3.org/2000/svg"><g/></svg>`,
			check: func(t *testing.T, err error) {
				var de *DimensionUnresolvedError
				assert.True(t, errors.As(err, &de))
			},
		},
		{
			name:    "decode times out",
			opts:    Options{Decoder: blockingDecoder{}, Encoder: &fakeEncoder{}},
			svg:     square,
			timeout: 20 * time.Millisecond,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				var de *ImageDecodeError
				assert.False(t, errors.As(err, &de))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.opts)
			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			file, err := p.Export(ctx, Request{Document: mustParse(t, tt.svg), Multiplier: 1, Format: FormatPNG})
			require.Error(t, err)
			assert.Nil(t, file)
			tt.check(t, err)
		})
	}
}

func TestExportRejectsBadRequests(t *testing.T) {
	p := newTestPipeline(t, Options{Encoder: &fakeEncoder{}})

	_, err := p.Export(context.Background(), Request{Format: FormatSVG})
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = p.Export(context.Background(), Request{Document: mustParse(t, blockSVG), Format: "gif"})
	assert.EqualError(t, err, "unsupported format: gif (supported: svg, png)")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Export(ctx, Request{Document: mustParse(t, blockSVG), Format: FormatPNG})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSVGDecoderReleasesOnCancel(t *testing.T) {
	dec := NewSVGDecoder(zerolog.Nop())
	uri := EncodeDataURI([]byte(blockSVG))

	img, err := dec.Decode(context.Background(), uri)
	require.NoError(t, err)
	w, h := img.NaturalSize()
	assert.Equal(t, 20.0, w)
	assert.Equal(t, 40.0, h)

	svgImg, ok := img.(*SVGImage)
	require.True(t, ok)
	img.Release()
	_, err = svgImg.Rasterize(10, 10)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = dec.Decode(ctx, uri)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = dec.Decode(context.Background(), "data:text/plain;base64,aGk=")
	assert.Error(t, err)
}
