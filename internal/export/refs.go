package export

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// CheckExternalRefs returns an *ExternalResourceError for the first href,
// url() or @import that points anywhere but into the document itself or a
// data URI. Such references cannot be loaded while rasterizing.
func CheckExternalRefs(root *etree.Element) error {
	var bad string
	walkElements(root, func(el *etree.Element) bool {
		if bad != "" {
			return false
		}
		for _, a := range el.Attr {
			if a.Key == "href" && !localRef(a.Value) {
				bad = a.Value
				return false
			}
			if r, ok := externalCSSRef(a.Value); ok {
				bad = r
				return false
			}
		}
		if el.Tag == "style" {
			if r, ok := externalCSSRef(el.Text()); ok {
				bad = r
				return false
			}
		}
		return true
	})
	if bad != "" {
		return &ExternalResourceError{Resource: bad}
	}
	return nil
}

// externalCSSRef scans CSS text for url() and @import targets.
func externalCSSRef(text string) (string, bool) {
	if !strings.Contains(text, "url(") && !strings.Contains(text, "@import") {
		return "", false
	}
	l := css.NewLexer(parse.NewInputString(text))
	importing := false
	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			return "", false
		case css.URLToken, css.BadURLToken:
			if ref := urlTarget(string(data)); !localRef(ref) {
				return ref, true
			}
			importing = false
		case css.AtKeywordToken:
			importing = strings.EqualFold(string(data), "@import")
		case css.StringToken:
			if importing {
				ref := strings.Trim(string(data), `"'`)
				if !localRef(ref) {
					return ref, true
				}
			}
			importing = false
		case css.WhitespaceToken, css.CommentToken:
		default:
			importing = false
		}
	}
}

func urlTarget(token string) string {
	v := strings.TrimSpace(token)
	if len(v) >= 4 && strings.EqualFold(v[:4], "url(") {
		v = v[4:]
	}
	v = strings.TrimSpace(strings.TrimSuffix(v, ")"))
	return strings.Trim(v, `"'`)
}

func localRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref == "" || strings.HasPrefix(ref, "#") || isDataURI(ref)
}
