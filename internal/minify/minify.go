// Package minify wraps tdewolff/minify for the content types the inliner
// produces. Minification is an opaque transform: its failures surface as
// transform errors.
package minify

import (
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// Media types registered with the minifier.
const (
	MediaCSS  = "text/css"
	MediaJS   = "application/javascript"
	MediaHTML = "text/html"
)

// Minifier minifies CSS, JavaScript and HTML. Safe for concurrent use.
type Minifier struct {
	m *minify.M
}

// New creates a Minifier with the CSS, JavaScript and HTML minifiers registered.
func New() *Minifier {
	m := minify.New()
	m.AddFunc(MediaCSS, css.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.Add(MediaHTML, &html.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &Minifier{m: m}
}

// CSS minifies a stylesheet.
func (m *Minifier) CSS(s string) (string, error) {
	return m.m.String(MediaCSS, s)
}

// JS minifies a script.
func (m *Minifier) JS(s string) (string, error) {
	return m.m.String(MediaJS, s)
}

// HTML minifies a document, including inline styles and scripts.
func (m *Minifier) HTML(s string) (string, error) {
	return m.m.String(MediaHTML, s)
}
