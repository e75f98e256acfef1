package theme

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ValidColor reports whether s is a hex color in short or long form, with or
// without alpha.
func ValidColor(s string) bool {
	_, err := ParseHex(s)
	return err == nil
}

// ParseHex parses a hex color. Short forms are expanded; a missing alpha
// channel is opaque.
func ParseHex(s string) (color.NRGBA, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: missing #", s)
	}

	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
	default:
		return color.NRGBA{}, fmt.Errorf("invalid color %q: want 3, 4, 6 or 8 hex digits", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	return color.NRGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// ToHex formats an opaque color as #RRGGBB.
func ToHex(c color.NRGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
