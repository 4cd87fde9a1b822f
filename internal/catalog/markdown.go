// ABOUTME: Extracts catalog metadata from markdown articles using goldmark
// ABOUTME: Title is the first heading; pages are split by <!--nextpage--> markers

package catalog

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PageBreak splits an article into pages.
const PageBreak = "<!--nextpage-->"

// Document is what the catalog needs from an article source.
type Document struct {
	Title      string
	TotalPages int
}

var md = goldmark.New()

// ParseMarkdown reads the title and page count of a markdown article.
// Page breaks inside code spans and fenced blocks do not count.
func ParseMarkdown(src []byte) Document {
	root := md.Parser().Parse(text.NewReader(src))

	doc := Document{TotalPages: 1}
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if doc.Title == "" {
				doc.Title = strings.TrimSpace(inlineText(node, src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			var buf bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			if node.HasClosure() {
				buf.Write(node.ClosureLine.Value(src))
			}
			doc.TotalPages += strings.Count(buf.String(), PageBreak)
		case *ast.RawHTML:
			var buf bytes.Buffer
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				buf.Write(seg.Value(src))
			}
			doc.TotalPages += strings.Count(buf.String(), PageBreak)
		}
		return ast.WalkContinue, nil
	})
	return doc
}

// inlineText concatenates the text under n.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}
