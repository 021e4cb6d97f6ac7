// Package markup reduces markdown task content to a display-safe inline
// form: plain text plus inline code, everything else stripped down to its
// text.
package markup

import (
	"html"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// The parser configuration never changes and goldmark parsers are safe to
// share; per-call state lives in the reader passed to Parse.
var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func getParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New()
	})
	return parserInstance
}

// RenderInline formats raw task content for display. Text and inline code
// survive (code wrapped in <code> tags); emphasis, links, headings and block
// structure contribute only their text. The output is HTML-escaped.
func RenderInline(input string) string {
	if input == "" {
		return ""
	}
	source := []byte(input)
	document := getParser().Parser().Parse(text.NewReader(source))

	var out strings.Builder
	_ = ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			out.WriteString(html.EscapeString(string(node.Segment.Value(source))))
			if node.SoftLineBreak() || node.HardLineBreak() {
				out.WriteByte(' ')
			}
		case *ast.CodeSpan:
			out.WriteString("<code>")
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if t, ok := child.(*ast.Text); ok {
					out.WriteString(html.EscapeString(string(t.Segment.Value(source))))
				}
			}
			out.WriteString("</code>")
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out.String()
}
