package export

import (
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// styleProperties are the CSS properties copied onto elements as
// presentation attributes. Everything else in a stylesheet is dropped.
var styleProperties = map[string]bool{
	"fill":               true,
	"fill-opacity":       true,
	"fill-rule":          true,
	"stroke":             true,
	"stroke-width":       true,
	"stroke-opacity":     true,
	"stroke-dasharray":   true,
	"stroke-dashoffset":  true,
	"stroke-linecap":     true,
	"stroke-linejoin":    true,
	"stroke-miterlimit":  true,
	"opacity":            true,
	"color":              true,
	"display":            true,
	"visibility":         true,
	"font-family":        true,
	"font-size":          true,
	"font-weight":        true,
	"font-style":         true,
	"text-anchor":        true,
	"dominant-baseline":  true,
	"alignment-baseline": true,
	"marker-start":       true,
	"marker-end":         true,
	"transform":          true,
}

type declaration struct {
	property  string
	value     string
	important bool
}

type specificity [3]int

func (s specificity) less(o specificity) bool {
	for i := range s {
		if s[i] != o[i] {
			return s[i] < o[i]
		}
	}
	return false
}

type attrMatch struct {
	name     string
	value    string
	hasValue bool
}

// compound is a run of simple selectors without combinators, e.g. rect.node#a.
type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

func (c compound) matches(el *etree.Element) bool {
	if c.tag != "" && c.tag != "*" && c.tag != el.Tag {
		return false
	}
	if c.id != "" && el.SelectAttrValue("id", "") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(el.SelectAttrValue("class", ""))
		for _, want := range c.classes {
			if !contains(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		v := el.SelectAttr(a.name)
		if v == nil || (a.hasValue && v.Value != a.value) {
			return false
		}
	}
	return true
}

// selector is a chain of compounds joined by descendant (' ') or child ('>')
// combinators.
type selector struct {
	parts       []compound
	combinators []byte
	spec        specificity
}

func (s selector) matches(el *etree.Element) bool {
	return s.matchAt(len(s.parts)-1, el)
}

func (s selector) matchAt(i int, el *etree.Element) bool {
	if !s.parts[i].matches(el) {
		return false
	}
	if i == 0 {
		return true
	}
	if s.combinators[i-1] == '>' {
		p := el.Parent()
		return isElement(p) && s.matchAt(i-1, p)
	}
	for p := el.Parent(); isElement(p); p = p.Parent() {
		if s.matchAt(i-1, p) {
			return true
		}
	}
	return false
}

type rule struct {
	selectors []selector
	decls     []declaration
}

// stylesheet holds the rules of every <style> element of a document.
type stylesheet struct {
	rules []rule
}

// parseStylesheet reads the supported subset of CSS: rulesets with type,
// class, id, universal and attribute selectors combined with descendant
// and child combinators. At-rules and selectors with pseudo-classes or
// sibling combinators are skipped.
func parseStylesheet(text string) stylesheet {
	var sheet stylesheet
	p := css.NewParser(parse.NewInputString(text), false)

	var (
		cur       *rule
		depth     int
		lastError = -1
	)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if !p.HasParseError() || p.Offset() == lastError {
				return sheet
			}
			lastError = p.Offset()
		case css.BeginAtRuleGrammar:
			depth++
		case css.EndAtRuleGrammar:
			depth--
		case css.BeginRulesetGrammar:
			if depth == 0 {
				cur = &rule{selectors: parseSelectors(p.Values())}
			}
		case css.DeclarationGrammar:
			if cur != nil {
				if d, ok := newDeclaration(string(data), p.Values()); ok {
					cur.decls = append(cur.decls, d)
				}
			}
		case css.EndRulesetGrammar:
			if cur != nil && len(cur.selectors) > 0 && len(cur.decls) > 0 {
				sheet.rules = append(sheet.rules, *cur)
			}
			cur = nil
		}
	}
}

// parseInlineStyle reads the declarations of a style attribute.
func parseInlineStyle(text string) []declaration {
	var out []declaration
	p := css.NewParser(parse.NewInputString(text), true)
	lastError := -1
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if !p.HasParseError() || p.Offset() == lastError {
				return out
			}
			lastError = p.Offset()
		case css.DeclarationGrammar:
			if d, ok := newDeclaration(string(data), p.Values()); ok {
				out = append(out, d)
			}
		}
	}
}

func newDeclaration(property string, values []css.Token) (declaration, bool) {
	if !styleProperties[property] {
		return declaration{}, false
	}
	var b strings.Builder
	for _, t := range values {
		b.Write(t.Data)
	}
	value := strings.TrimSpace(b.String())
	d := declaration{property: property}
	if v, ok := cutSuffixFold(value, "!important"); ok {
		d.important = true
		value = strings.TrimSpace(v)
	}
	if value == "" || strings.Contains(value, "var(") {
		return declaration{}, false
	}
	d.value = value
	return d, true
}

func parseSelectors(tokens []css.Token) []selector {
	var (
		out         []selector
		cur         selector
		part        compound
		havePart    bool
		pending     byte
		unsupported bool
	)
	flushPart := func() {
		if !havePart {
			return
		}
		if len(cur.parts) > 0 {
			c := pending
			if c == 0 {
				c = ' '
			}
			cur.combinators = append(cur.combinators, c)
		}
		cur.parts = append(cur.parts, part)
		part, havePart, pending = compound{}, false, 0
	}
	flushSelector := func() {
		flushPart()
		if !unsupported && len(cur.parts) > 0 {
			out = append(out, cur)
		}
		cur, unsupported, pending = selector{}, false, 0
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch t.TokenType {
		case css.CommaToken:
			flushSelector()
		case css.WhitespaceToken:
			if havePart {
				flushPart()
				pending = ' '
			}
		case css.IdentToken:
			part.tag = string(t.Data)
			cur.spec[2]++
			havePart = true
		case css.HashToken:
			part.id = string(t.Data[1:])
			cur.spec[0]++
			havePart = true
		case css.DelimToken:
			switch t.Data[0] {
			case '.':
				if i+1 < len(tokens) && tokens[i+1].TokenType == css.IdentToken {
					i++
					part.classes = append(part.classes, string(tokens[i].Data))
					cur.spec[1]++
					havePart = true
				} else {
					unsupported = true
				}
			case '*':
				part.tag = "*"
				havePart = true
			case '>':
				flushPart()
				pending = '>'
			default:
				unsupported = true
			}
		case css.LeftBracketToken:
			j := i + 1
			var m attrMatch
			for ; j < len(tokens) && tokens[j].TokenType != css.RightBracketToken; j++ {
				switch tok := tokens[j]; tok.TokenType {
				case css.IdentToken:
					if m.name == "" {
						m.name = string(tok.Data)
					} else {
						m.value = string(tok.Data)
					}
				case css.StringToken:
					m.value = strings.Trim(string(tok.Data), `"'`)
				case css.DelimToken:
					if tok.Data[0] == '=' {
						m.hasValue = true
					} else {
						unsupported = true
					}
				case css.WhitespaceToken:
				default:
					unsupported = true
				}
			}
			i = j
			if m.name == "" {
				unsupported = true
			}
			part.attrs = append(part.attrs, m)
			cur.spec[1]++
			havePart = true
		default:
			unsupported = true
		}
	}
	flushSelector()
	return out
}

type match struct {
	decl  declaration
	spec  specificity
	order int
}

// InlineStyles applies the document's <style> rules and style attributes
// as presentation attributes, then removes the stylesheets and the style
// and class attributes. Declarations follow the cascade: important before
// normal, then specificity, then source order, with style attributes above
// stylesheet rules of the same importance. Selectors are matched against
// the untouched tree; nothing is rewritten until every element is matched.
func InlineStyles(root *etree.Element) {
	var sheets []*etree.Element
	var text strings.Builder
	walkElements(root, func(el *etree.Element) bool {
		if el.Tag == "style" {
			sheets = append(sheets, el)
			text.WriteString(el.Text())
			text.WriteByte('\n')
			return false
		}
		return true
	})
	sheet := parseStylesheet(text.String())

	type styled struct {
		el    *etree.Element
		decls []declaration
	}
	var pending []styled
	walkElements(root, func(el *etree.Element) bool {
		if el.Tag == "style" {
			return false
		}
		pending = append(pending, styled{el: el, decls: cascade(el, sheet)})
		return true
	})

	for _, p := range pending {
		p.el.RemoveAttr("style")
		p.el.RemoveAttr("class")
		for _, d := range p.decls {
			p.el.CreateAttr(d.property, d.value)
		}
	}
	for _, s := range sheets {
		if p := s.Parent(); p != nil {
			p.RemoveChild(s)
		}
	}
}

// cascade returns the declarations applying to el, lowest priority first.
func cascade(el *etree.Element, sheet stylesheet) []declaration {
	var matches []match
	order := 0
	for _, r := range sheet.rules {
		for _, s := range r.selectors {
			if !s.matches(el) {
				continue
			}
			for _, d := range r.decls {
				matches = append(matches, match{decl: d, spec: s.spec, order: order})
				order++
			}
		}
	}

	inline := specificity{1 << 20}
	if a := el.SelectAttr("style"); a != nil {
		for _, d := range parseInlineStyle(a.Value) {
			matches = append(matches, match{decl: d, spec: inline, order: order})
			order++
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.decl.important != b.decl.important {
			return !a.decl.important
		}
		if a.spec != b.spec {
			return a.spec.less(b.spec)
		}
		return a.order < b.order
	})
	decls := make([]declaration, len(matches))
	for i, m := range matches {
		decls[i] = m.decl
	}
	return decls
}

func walkElements(el *etree.Element, fn func(*etree.Element) bool) {
	if !fn(el) {
		return
	}
	for _, c := range el.ChildElements() {
		walkElements(c, fn)
	}
}

func isElement(el *etree.Element) bool {
	return el != nil && el.Tag != ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func cutSuffixFold(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}
