package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "theme", LabelNames: []string{"id"}},
	},
}

var themeSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name", Required: true},
		{Name: "base"},
		{Name: "gantt_defaults"},
		{Name: "variables"},
	},
}

// LoadDir reads every .hcl file in dir, in name order.
func LoadDir(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".hcl") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	parser := hclparse.NewParser()
	var out []Descriptor
	for _, name := range names {
		ds, err := parseFile(parser, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	return out, nil
}

// LoadCatalog returns the built-in catalog followed by the themes of dir.
// An empty dir returns the built-in catalog.
func LoadCatalog(dir string) (*Catalog, error) {
	catalog := Builtin()
	if dir == "" {
		return catalog, nil
	}
	extra, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	catalog, err = catalog.With(extra...)
	if err != nil {
		return nil, fmt.Errorf("failed to add themes from %s: %w", dir, err)
	}
	return catalog, nil
}

// LoadFile reads the theme blocks of one HCL file:
//
//	theme "oceanDeep" {
//	  name           = "Ocean Deep"
//	  base           = "base"
//	  gantt_defaults = true
//	  variables = {
//	    background = "#001f3f"
//	  }
//	}
func LoadFile(path string) ([]Descriptor, error) {
	return parseFile(hclparse.NewParser(), path)
}

func parseFile(parser *hclparse.Parser, path string) ([]Descriptor, error) {
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
	}

	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
	}

	var out []Descriptor
	for _, block := range content.Blocks {
		d, err := decodeTheme(block)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func decodeTheme(block *hcl.Block) (Descriptor, error) {
	id := block.Labels[0]
	content, diags := block.Body.Content(themeSchema)
	if diags.HasErrors() {
		return Descriptor{}, fmt.Errorf("theme %s: %s", id, diags.Error())
	}

	d := Descriptor{ID: id, Kind: KindBase}
	gantt := true
	var custom map[string]any

	for name, attr := range content.Attributes {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return Descriptor{}, fmt.Errorf("theme %s: %s", id, diags.Error())
		}

		switch name {
		case "name":
			if val.Type() != cty.String || val.IsNull() {
				return Descriptor{}, fmt.Errorf("theme %s: name must be a string", id)
			}
			d.Name = val.AsString()
		case "base":
			if val.Type() != cty.String || val.IsNull() {
				return Descriptor{}, fmt.Errorf("theme %s: base must be a string", id)
			}
			d.Kind = Kind(val.AsString())
		case "gantt_defaults":
			if val.Type() != cty.Bool || val.IsNull() {
				return Descriptor{}, fmt.Errorf("theme %s: gantt_defaults must be a bool", id)
			}
			gantt = val.True()
		case "variables":
			m, ok := ctyToInterface(val).(map[string]any)
			if !ok {
				return Descriptor{}, fmt.Errorf("theme %s: variables must be an object", id)
			}
			custom = m
		}
	}

	if !d.Kind.Valid() {
		return Descriptor{}, fmt.Errorf("theme %s: unknown base theme %q", id, d.Kind)
	}
	if err := validateVariables(custom); err != nil {
		return Descriptor{}, fmt.Errorf("theme %s: %w", id, err)
	}

	if gantt {
		d.Variables = withGantt(nil, custom)
	} else {
		d.Variables = merge(custom)
	}
	return d, nil
}

func validateVariables(vs map[string]any) error {
	for k, v := range vs {
		switch v := v.(type) {
		case string:
			if (strings.HasPrefix(v, "#") || k == "background") && !ValidColor(v) {
				return fmt.Errorf("variable %s: invalid color %q", k, v)
			}
		case float64, bool:
		default:
			return fmt.Errorf("variable %s: only strings, numbers and bools are allowed", k)
		}
	}
	return nil
}

// ctyToInterface converts a cty.Value to a native Go value.
func ctyToInterface(val cty.Value) any {
	if val.IsNull() || !val.IsKnown() {
		return nil
	}

	switch val.Type() {
	case cty.String:
		return val.AsString()
	case cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f
	case cty.Bool:
		return val.True()
	}

	if val.Type().IsListType() || val.Type().IsTupleType() {
		var list []any
		it := val.ElementIterator()
		for it.Next() {
			_, v := it.Element()
			list = append(list, ctyToInterface(v))
		}
		return list
	}

	if val.Type().IsMapType() || val.Type().IsObjectType() {
		m := make(map[string]any)
		it := val.ElementIterator()
		for it.Next() {
			k, v := it.Element()
			m[k.AsString()] = ctyToInterface(v)
		}
		return m
	}

	return nil
}
