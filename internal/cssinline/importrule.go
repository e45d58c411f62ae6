package cssinline

import (
	"strings"

	"github.com/tdewolff/parse/v2/css"
)

// ImportRule is a parsed @import statement.
type ImportRule struct {
	URL      string
	Layered  bool   // a layer clause is present
	Layer    string // layer name; empty for an anonymous layer
	Supports string // condition inside supports(...)
	Media    string // media query list
}

// ParseImportRule parses a single @import statement such as
// `@import url("a.css") layer(base) supports(display: grid) screen;`.
func ParseImportRule(rule string) (ImportRule, bool) {
	toks := tokenize(rule)
	i := skipSpace(toks, 0)
	if i >= len(toks) || !isImportKeyword(toks[i]) {
		return ImportRule{}, false
	}
	stmt, ok := parseImport(toks, i)
	return stmt.rule, ok
}

// importStmt is an @import statement located in a token list.
type importStmt struct {
	rule       ImportRule
	start, end int // byte span, ending after the semicolon
	urlTok     int // index of the url or string token
	next       int // index of the first token after the statement
}

// parseImport parses the statement starting at the @import keyword toks[at].
func parseImport(toks []token, at int) (importStmt, bool) {
	stmt := importStmt{start: toks[at].start}

	i := skipSpace(toks, at+1)
	if i >= len(toks) {
		return stmt, false
	}
	switch toks[i].tt {
	case css.URLToken:
		stmt.rule.URL = urlValue(toks[i].text)
	case css.StringToken:
		stmt.rule.URL = unquote(toks[i].text)
	default:
		return stmt, false
	}
	stmt.urlTok = i
	i = skipSpace(toks, i+1)

	if i < len(toks) {
		switch t := toks[i]; {
		case t.tt == css.IdentToken && strings.EqualFold(t.text, "layer"):
			stmt.rule.Layered = true
			i = skipSpace(toks, i+1)
		case t.tt == css.FunctionToken && strings.EqualFold(t.text, "layer("):
			inner, next := balanced(toks, i)
			stmt.rule.Layered = true
			stmt.rule.Layer = strings.TrimSpace(inner)
			i = skipSpace(toks, next)
		}
	}

	if i < len(toks) && toks[i].tt == css.FunctionToken && strings.EqualFold(toks[i].text, "supports(") {
		inner, next := balanced(toks, i)
		stmt.rule.Supports = strings.TrimSpace(inner)
		i = skipSpace(toks, next)
	}

	var media strings.Builder
	depth := 0
loop:
	for ; i < len(toks); i++ {
		t := toks[i]
		switch t.tt {
		case css.SemicolonToken, css.LeftBraceToken, css.RightBraceToken:
			if depth == 0 {
				break loop
			}
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		case css.CommentToken:
			continue
		case css.WhitespaceToken:
			media.WriteByte(' ')
			continue
		}
		media.WriteString(t.text)
	}
	stmt.rule.Media = strings.Join(strings.Fields(media.String()), " ")
	stmt.rule.Media = strings.NewReplacer("( ", "(", " )", ")").Replace(stmt.rule.Media)

	switch {
	case i >= len(toks):
		stmt.end = toks[len(toks)-1].end
		stmt.next = len(toks)
	case toks[i].tt == css.SemicolonToken:
		stmt.end = toks[i].end
		stmt.next = i + 1
	default:
		stmt.end = toks[i].start
		stmt.next = i
	}
	return stmt, true
}

// wrap nests spliced CSS in blocks equivalent to the rule's qualifiers.
func wrap(rule ImportRule, content string) string {
	out := content
	if rule.Media != "" && !strings.EqualFold(rule.Media, "all") {
		out = "@media " + rule.Media + " {\n" + out + "\n}"
	}
	if rule.Supports != "" {
		out = "@supports (" + rule.Supports + ") {\n" + out + "\n}"
	}
	if rule.Layered {
		if rule.Layer != "" {
			out = "@layer " + rule.Layer + " {\n" + out + "\n}"
		} else {
			out = "@layer {\n" + out + "\n}"
		}
	}
	return out
}
