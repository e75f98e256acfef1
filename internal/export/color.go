package export

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"github.com/ankek/mermaid-studio/internal/theme"
)

// paint is a parsed fill or stroke value.
type paint struct {
	none    bool
	current bool
	url     string
	color   color.NRGBA
}

// parsePaint understands the color syntaxes Mermaid themes emit: hex with
// or without alpha, rgb()/rgba(), hsl()/hsla(), named colors, none,
// transparent, currentColor and url(#id).
func parsePaint(s string) (paint, error) {
	v := strings.TrimSpace(s)
	lower := strings.ToLower(v)

	switch {
	case lower == "none" || lower == "transparent":
		return paint{none: true}, nil
	case lower == "currentcolor":
		return paint{current: true}, nil
	case strings.HasPrefix(lower, "url("):
		ref := strings.TrimSpace(strings.TrimSuffix(v[4:], ")"))
		ref = strings.Trim(ref, `"'`)
		return paint{url: ref}, nil
	case strings.HasPrefix(v, "#"):
		c, err := theme.ParseHex(v)
		if err != nil {
			return paint{}, err
		}
		return paint{color: c}, nil
	case strings.HasPrefix(lower, "rgb"):
		args, err := colorArgs(lower, "rgba", "rgb")
		if err != nil {
			return paint{}, err
		}
		return rgbPaint(args)
	case strings.HasPrefix(lower, "hsl"):
		args, err := colorArgs(lower, "hsla", "hsl")
		if err != nil {
			return paint{}, err
		}
		return hslPaint(args)
	}

	if c, ok := colornames.Map[lower]; ok {
		return paint{color: color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}}, nil
	}
	return paint{}, fmt.Errorf("unsupported color %q", s)
}

func colorArgs(v string, prefixes ...string) ([]string, error) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(v, p+"("); ok {
			inner, ok := strings.CutSuffix(strings.TrimSpace(rest), ")")
			if !ok {
				return nil, fmt.Errorf("unterminated color function %q", v)
			}
			inner = strings.NewReplacer(",", " ", "/", " ").Replace(inner)
			return strings.Fields(inner), nil
		}
	}
	return nil, fmt.Errorf("unsupported color %q", v)
}

func rgbPaint(args []string) (paint, error) {
	if len(args) != 3 && len(args) != 4 {
		return paint{}, fmt.Errorf("rgb color needs 3 or 4 components, got %d", len(args))
	}
	var ch [3]uint8
	for i := range ch {
		v, err := channel(args[i], 255)
		if err != nil {
			return paint{}, err
		}
		ch[i] = uint8(math.Round(v))
	}
	a := 1.0
	if len(args) == 4 {
		var err error
		if a, err = channel(args[3], 1); err != nil {
			return paint{}, err
		}
	}
	return paint{color: color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: uint8(math.Round(a * 255))}}, nil
}

func hslPaint(args []string) (paint, error) {
	if len(args) != 3 && len(args) != 4 {
		return paint{}, fmt.Errorf("hsl color needs 3 or 4 components, got %d", len(args))
	}
	h, err := parseNumber(strings.TrimSuffix(args[0], "deg"))
	if err != nil {
		return paint{}, fmt.Errorf("invalid hue %q", args[0])
	}
	s, err := channel(args[1], 1)
	if err != nil {
		return paint{}, err
	}
	l, err := channel(args[2], 1)
	if err != nil {
		return paint{}, err
	}
	a := 1.0
	if len(args) == 4 {
		if a, err = channel(args[3], 1); err != nil {
			return paint{}, err
		}
	}

	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	r, g, b := colorful.Hsl(h, s, l).Clamped().RGB255()
	return paint{color: color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(a * 255))}}, nil
}

// channel parses a number or percentage and clamps it to [0, max].
func channel(s string, max float64) (float64, error) {
	var (
		v   float64
		err error
	)
	if p, ok := strings.CutSuffix(s, "%"); ok {
		v, err = strconv.ParseFloat(p, 64)
		v = v / 100 * max
	} else {
		v, err = strconv.ParseFloat(s, 64)
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid color component %q", s)
	}
	return math.Max(0, math.Min(max, v)), nil
}
