// Package theme holds the theme and font catalog offered by the editor.
package theme

import (
	"fmt"
	"maps"

	"github.com/ankek/mermaid-studio/internal/mermaid"
)

// Kind is the Mermaid base theme a descriptor builds on.
type Kind string

const (
	KindDefault Kind = "default"
	KindNeutral Kind = "neutral"
	KindDark    Kind = "dark"
	KindForest  Kind = "forest"
	KindBase    Kind = "base"
)

// Valid reports whether k is a Mermaid base theme.
func (k Kind) Valid() bool {
	switch k {
	case KindDefault, KindNeutral, KindDark, KindForest, KindBase:
		return true
	}
	return false
}

// DefaultID is used when a requested theme is missing or unset.
const DefaultID = "mermaidDefault"

const (
	darkFallbackBackground    = "#333333"
	defaultFallbackBackground = "#ffffff"
)

// Descriptor is a named theme. Variables must not be modified after the
// descriptor is added to a catalog.
type Descriptor struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      Kind           `json:"kind"`
	Variables map[string]any `json:"variables"`
}

// String returns a string variable, or "" when absent or not a string.
func (d Descriptor) String(name string) string {
	s, _ := d.Variables[name].(string)
	return s
}

// Catalog is an immutable, ordered set of themes.
type Catalog struct {
	order  []string
	themes map[string]Descriptor
}

// NewCatalog builds a catalog keeping the given order. IDs must be unique
// and kinds valid.
func NewCatalog(ds ...Descriptor) (*Catalog, error) {
	c := &Catalog{themes: make(map[string]Descriptor, len(ds))}
	for _, d := range ds {
		if err := c.add(d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("theme id must not be empty")
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("theme %s: unknown base theme %q", d.ID, d.Kind)
	}
	if _, dup := c.themes[d.ID]; dup {
		return fmt.Errorf("duplicate theme id: %s", d.ID)
	}
	c.order = append(c.order, d.ID)
	c.themes[d.ID] = d
	return nil
}

// With returns a new catalog holding c's themes followed by ds.
func (c *Catalog) With(ds ...Descriptor) (*Catalog, error) {
	out := &Catalog{
		order:  append([]string(nil), c.order...),
		themes: maps.Clone(c.themes),
	}
	for _, d := range ds {
		if err := out.add(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Lookup returns the theme with the given id.
func (c *Catalog) Lookup(id string) (Descriptor, bool) {
	d, ok := c.themes[id]
	return d, ok
}

// Get returns the theme with the given id, or the default theme when the
// id is empty or unknown.
func (c *Catalog) Get(id string) Descriptor {
	if d, ok := c.themes[id]; ok {
		return d
	}
	return c.themes[DefaultID]
}

// List returns all themes in display order.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.themes[id])
	}
	return out
}

// IDs returns all theme ids in display order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

// Background returns the canvas color exported images are composited on.
func Background(d Descriptor) string {
	if bg := d.String("background"); bg != "" {
		return bg
	}
	if d.Kind == KindDark {
		return darkFallbackBackground
	}
	return defaultFallbackBackground
}

// RenderConfig builds the renderer configuration for a theme and a font
// selector value.
func RenderConfig(d Descriptor, fontValue string) mermaid.Config {
	font := ResolveFont(d, fontValue)

	vars := make(map[string]any, len(d.Variables)+1)
	maps.Copy(vars, d.Variables)
	vars["fontFamily"] = font

	return mermaid.Config{
		Theme:          string(d.Kind),
		FontFamily:     font,
		ThemeVariables: vars,
		SecurityLevel:  "loose",
		HTMLLabels:     false,
	}
}
