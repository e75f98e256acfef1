// Package markdown finds Mermaid diagrams embedded in Markdown documents as
// ```mermaid fenced code blocks.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Block is one mermaid code block.
type Block struct {
	// Line is the 1-based line of the block's first source line.
	Line   int
	Source string
}

// IsMarkdownPath reports whether path names a Markdown file.
func IsMarkdownPath(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".md") || strings.HasSuffix(p, ".markdown")
}

// MermaidBlocks returns the mermaid blocks of source in document order.
func MermaidBlocks(source []byte) []Block {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var blocks []Block
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindFencedCodeBlock {
			return ast.WalkContinue, nil
		}
		fenced := n.(*ast.FencedCodeBlock)
		if !strings.EqualFold(string(fenced.Language(source)), "mermaid") {
			return ast.WalkSkipChildren, nil
		}

		var b strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		line := 1
		if lines.Len() > 0 {
			line = bytes.Count(source[:lines.At(0).Start], []byte("\n")) + 1
		}
		blocks = append(blocks, Block{Line: line, Source: b.String()})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
