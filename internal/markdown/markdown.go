// Package markdown renders Markdown input to a standalone HTML document
// whose images and links the inliner can then resolve.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// ErrHTMLConversion indicates HTML conversion failed.
var ErrHTMLConversion = errors.New("HTML conversion failed")

// DefaultStyle is the chroma style used for fenced code blocks.
const DefaultStyle = "github"

// documentTemplate wraps Goldmark's fragment output in a complete HTML5 document.
const documentTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
%s</style>
</head>
<body>
%s</body>
</html>
`

// Converter renders Markdown with GFM extensions and class-based syntax
// highlighting. Safe for concurrent use.
type Converter struct {
	md  goldmark.Markdown
	css string
}

// New creates a Converter. An unknown style falls back to chroma's default.
func New(style string) (*Converter, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithXHTML(),
		),
	)

	var css bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&css, styles.Get(style)); err != nil {
		return nil, fmt.Errorf("writing highlight styles: %w", err)
	}

	return &Converter{md: md, css: css.String()}, nil
}

// ToHTML converts Markdown content to a standalone HTML5 document. The title
// is the first level-one heading, or fallback when there is none.
// Goldmark has no context support, so cancellation is observed around the
// conversion rather than inside it.
func (c *Converter) ToHTML(ctx context.Context, content, fallback string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}

	done := make(chan result, 1)

	go func() {
		source := []byte(content)
		doc := c.md.Parser().Parse(text.NewReader(source))

		var buf bytes.Buffer
		if err := c.md.Renderer().Render(&buf, source, doc); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrHTMLConversion, err)}
			return
		}

		title := firstHeading(doc, source)
		if title == "" {
			title = fallback
		}
		done <- result{html: fmt.Sprintf(documentTemplate, html.EscapeString(title), c.css, buf.String())}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.html, r.err
	}
}

// firstHeading returns the plain text of the first level-one heading.
func firstHeading(doc ast.Node, source []byte) string {
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = strings.TrimSpace(plainText(h, source))
		return ast.WalkStop, nil
	})
	return title
}

func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			continue
		}
		b.WriteString(plainText(c, source))
	}
	return b.String()
}
