package export

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputSize(t *testing.T) {
	tests := []struct {
		name       string
		size       Size
		multiplier float64
		wantW      int
		wantH      int
	}{
		{name: "tall diagram at 1x", size: Size{Width: 100, Height: 200}, multiplier: 1, wantW: 540, wantH: 1080},
		{name: "wide diagram at 1x", size: Size{Width: 400, Height: 100}, multiplier: 1, wantW: 4320, wantH: 1080},
		{name: "1.5x", size: Size{Width: 100, Height: 200}, multiplier: 1.5, wantW: 810, wantH: 1620},
		{name: "2x", size: Size{Width: 62.5, Height: 174}, multiplier: 2, wantW: 776, wantH: 2160},
		{name: "4x", size: Size{Width: 10, Height: 10}, multiplier: 4, wantW: 4320, wantH: 4320},
		{name: "rounds half up", size: Size{Width: 1, Height: 2160}, multiplier: 1, wantW: 1, wantH: 1080},
		{name: "below one clamps", size: Size{Width: 100, Height: 200}, multiplier: 0.5, wantW: 540, wantH: 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := OutputSize(tt.size, tt.multiplier, DefaultMaxPixels)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestOutputSizeLimits(t *testing.T) {
	tests := []struct {
		name      string
		size      Size
		maxPixels int
		wantErr   error
	}{
		{name: "within limit", size: Size{Width: 10, Height: 10}, maxPixels: 1080 * 1080},
		{name: "over limit", size: Size{Width: 11, Height: 10}, maxPixels: 1080 * 1080, wantErr: ErrCanvasTooLarge},
		{name: "width beyond int range", size: Size{Width: 1e300, Height: 1}, maxPixels: DefaultMaxPixels, wantErr: ErrCanvasTooLarge},
		{name: "infinite width", size: Size{Width: math.MaxFloat64, Height: 1e-300}, maxPixels: DefaultMaxPixels, wantErr: ErrCanvasTooLarge},
		{name: "width rounds to zero", size: Size{Width: 1e-9, Height: 1}, maxPixels: DefaultMaxPixels, wantErr: errEmptyCanvas},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := OutputSize(tt.size, 1, tt.maxPixels)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, w)
				assert.Zero(t, h)
				return
			}
			require.NoError(t, err)
			assert.LessOrEqual(t, w*h, tt.maxPixels)
		})
	}
}

func TestScaledSizeKeepsAspectRatio(t *testing.T) {
	s := Size{Width: 62.5, Height: 174}
	for _, m := range SupportedMultipliers {
		w, h := ScaledSize(s, m)
		assert.InDelta(t, 1080*m, h, 1e-9)
		assert.InDelta(t, s.Width/s.Height, w/h, 1e-9)
	}
}

func TestParseMultiplier(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "1", want: 1},
		{in: "1.5", want: 1.5},
		{in: " 2 ", want: 2},
		{in: "4", want: 4},
		{in: "0.5", want: 1},
		{in: "-3", want: 1},
		{in: "abc", want: 1},
		{in: "", want: 1},
		{in: "NaN", want: 1},
		{in: "Inf", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMultiplier(tt.in))
		})
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		multiplier float64
		format     Format
		want       string
	}{
		{multiplier: 1, format: FormatPNG, want: "mermaid-graph-1080p.png"},
		{multiplier: 1, format: FormatSVG, want: "mermaid-graph-1080p.svg"},
		{multiplier: 1.5, format: FormatPNG, want: "mermaid-graph-1.5x1080p.png"},
		{multiplier: 2, format: FormatPNG, want: "mermaid-graph-2x1080p.png"},
		{multiplier: 3, format: FormatSVG, want: "mermaid-graph-3x1080p.svg"},
		{multiplier: 0, format: FormatSVG, want: "mermaid-graph-1080p.svg"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.multiplier, tt.format))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("PNG")
	assert.NoError(t, err)
	assert.Equal(t, FormatPNG, f)
	assert.Equal(t, "image/png", f.MIMEType())
	assert.Equal(t, "image/svg+xml;charset=utf-8", FormatSVG.MIMEType())

	_, err = ParseFormat("jpeg")
	assert.Error(t, err)
}
