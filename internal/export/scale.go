package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BaselineHeight is the output height, in pixels, of a 1x export.
const BaselineHeight = 1080.0

// SupportedMultipliers lists the resolution multipliers offered to users.
var SupportedMultipliers = []float64{1, 1.5, 2, 3, 4}

// ParseMultiplier parses a multiplier value. Anything unparsable, non-finite
// or below 1 yields 1.
func ParseMultiplier(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 1
	}
	return NormalizeMultiplier(v)
}

// NormalizeMultiplier clamps m to a usable multiplier.
func NormalizeMultiplier(m float64) float64 {
	if math.IsNaN(m) || math.IsInf(m, 0) || m < 1 {
		return 1
	}
	return m
}

// FormatMultiplier renders m the shortest way: 1.5, 2, 3.
func FormatMultiplier(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// Size is a width and height in user units.
type Size struct {
	Width  float64
	Height float64
}

// Valid reports whether both sides are positive and finite.
func (s Size) Valid() bool {
	return positive(s.Width) && positive(s.Height)
}

// Scale returns the factor that maps s onto the baseline height at multiplier m.
func Scale(s Size, m float64) float64 {
	return BaselineHeight / s.Height * NormalizeMultiplier(m)
}

// ScaledSize returns the exact scaled size of s.
func ScaledSize(s Size, m float64) (float64, float64) {
	f := Scale(s, m)
	return s.Width * f, s.Height * f
}

// OutputSize returns the pixel size of a raster export, rounded half away
// from zero. The size is checked against maxPixels before it is converted
// to int; a side that rounds to zero yields errEmptyCanvas.
func OutputSize(s Size, m float64, maxPixels int) (int, int, error) {
	w, h := ScaledSize(s, m)
	w, h = math.Round(w), math.Round(h)
	switch {
	case math.IsNaN(w) || math.IsNaN(h) || w < 1 || h < 1:
		return 0, 0, fmt.Errorf("%w: scaled size %gx%g", errEmptyCanvas, w, h)
	case math.IsInf(w, 0) || math.IsInf(h, 0) || w*h > float64(maxPixels):
		return 0, 0, fmt.Errorf("%w: %gx%g", ErrCanvasTooLarge, w, h)
	}
	return int(w), int(h), nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
