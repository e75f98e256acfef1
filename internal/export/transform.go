package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/srwiley/rasterx"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// ParseTransform parses an SVG transform list such as
// "translate(10, 20) rotate(45)". Unknown functions and wrong argument
// counts are errors.
func ParseTransform(s string) (rasterx.Matrix2D, error) {
	m := rasterx.Identity
	l := css.NewLexer(parse.NewInputString(s))

	var (
		fn   string
		args []float64
	)
	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			if l.Err() != io.EOF {
				return m, fmt.Errorf("invalid transform %q: %w", s, l.Err())
			}
			if fn != "" {
				return m, fmt.Errorf("invalid transform %q: unterminated %s", s, fn)
			}
			return m, nil
		case css.WhitespaceToken, css.CommaToken:
		case css.FunctionToken:
			if fn != "" {
				return m, fmt.Errorf("invalid transform %q: nested function", s)
			}
			fn = strings.ToLower(strings.TrimSuffix(string(data), "("))
			args = args[:0]
		case css.NumberToken, css.DimensionToken:
			if fn == "" {
				return m, fmt.Errorf("invalid transform %q: number outside function", s)
			}
			v, err := parseNumber(string(data))
			if err != nil {
				return m, fmt.Errorf("invalid transform %q: %w", s, err)
			}
			args = append(args, v)
		case css.RightParenthesisToken:
			if fn == "" {
				return m, fmt.Errorf("invalid transform %q: unbalanced parenthesis", s)
			}
			var err error
			if m, err = applyTransform(m, fn, args); err != nil {
				return m, fmt.Errorf("invalid transform %q: %w", s, err)
			}
			fn = ""
		default:
			return m, fmt.Errorf("invalid transform %q: unexpected %q", s, data)
		}
	}
}

func applyTransform(m rasterx.Matrix2D, fn string, a []float64) (rasterx.Matrix2D, error) {
	switch {
	case fn == "matrix" && len(a) == 6:
		return m.Mult(rasterx.Matrix2D{A: a[0], B: a[1], C: a[2], D: a[3], E: a[4], F: a[5]}), nil
	case fn == "translate" && len(a) == 1:
		return m.Translate(a[0], 0), nil
	case fn == "translate" && len(a) == 2:
		return m.Translate(a[0], a[1]), nil
	case fn == "scale" && len(a) == 1:
		return m.Scale(a[0], a[0]), nil
	case fn == "scale" && len(a) == 2:
		return m.Scale(a[0], a[1]), nil
	case fn == "rotate" && len(a) == 1:
		return m.Rotate(radians(a[0])), nil
	case fn == "rotate" && len(a) == 3:
		return m.Translate(a[1], a[2]).Rotate(radians(a[0])).Translate(-a[1], -a[2]), nil
	case fn == "skewx" && len(a) == 1:
		return m.SkewX(radians(a[0])), nil
	case fn == "skewy" && len(a) == 1:
		return m.SkewY(radians(a[0])), nil
	}
	return m, fmt.Errorf("%s with %d arguments", fn, len(a))
}

// FormatMatrix writes m in the matrix() form every SVG consumer accepts.
func FormatMatrix(m rasterx.Matrix2D) string {
	vals := []float64{m.A, m.B, m.C, m.D, m.E, m.F}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatNumber(v)
	}
	return "matrix(" + strings.Join(parts, ",") + ")"
}

// matrixScale is the geometric mean of the axis scale factors.
func matrixScale(m rasterx.Matrix2D) float64 {
	return math.Sqrt(math.Abs(m.A*m.D - m.B*m.C))
}

func matrixAngle(m rasterx.Matrix2D) float64 {
	return math.Atan2(m.B, m.A)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// parseNumber accepts a plain number or one with a px unit.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
