package cssinline

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"github.com/alnah/go-inliner/internal/policy"
)

// token is a lexer token with its byte span in the stylesheet.
type token struct {
	tt         css.TokenType
	text       string
	start, end int
}

// tokenize splits text into tokens covering it byte for byte. Lexing stops
// early if the lexer ever disagrees with the source, leaving the rest
// unprocessed.
func tokenize(text string) []token {
	l := css.NewLexer(parse.NewInputString(text))
	var toks []token
	pos := 0
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			break
		}
		end := pos + len(data)
		if end > len(text) || text[pos:end] != string(data) {
			break
		}
		toks = append(toks, token{tt: tt, text: text[pos:end], start: pos, end: end})
		pos = end
	}
	return toks
}

func isSpace(t token) bool {
	return t.tt == css.WhitespaceToken || t.tt == css.CommentToken
}

// skipSpace returns the index of the first non-whitespace, non-comment token.
func skipSpace(toks []token, i int) int {
	for i < len(toks) && isSpace(toks[i]) {
		i++
	}
	return i
}

func isImportKeyword(t token) bool {
	return t.tt == css.AtKeywordToken && strings.EqualFold(t.text, "@import")
}

// urlValue extracts the reference from a url(...) token.
func urlValue(text string) string {
	if len(text) < 4 || !strings.EqualFold(text[:4], "url(") {
		return ""
	}
	s := strings.TrimSuffix(text[4:], ")")
	return unquote(strings.TrimSpace(s))
}

// unquote strips matching single or double quotes and resolves escapes.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = s[1 : len(s)-1]
	}
	if !strings.Contains(s, `\`) {
		return s
	}
	return unescape(s)
}

// unescape resolves CSS escapes: a hex code point with an optional trailing
// blank, an escaped newline (removed), or any other escaped character.
func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		if s[i] == '\n' {
			continue
		}
		j := i
		for j < len(s) && j-i < 6 && isHex(s[j]) {
			j++
		}
		if j == i {
			b.WriteByte(s[i])
			continue
		}
		n, _ := strconv.ParseUint(s[i:j], 16, 32)
		r := rune(n)
		if r == 0 || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
			r = utf8.RuneError
		}
		b.WriteRune(r)
		if j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n') {
			j++
		}
		i = j - 1
	}
	return b.String()
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// quoteURL renders a reference as url("...").
func quoteURL(s string) string {
	s = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `).Replace(s)
	return `url("` + s + `")`
}

// balanced returns the text between a function token at toks[i] and its
// matching closing parenthesis, and the index after that parenthesis.
func balanced(toks []token, i int) (string, int) {
	var b strings.Builder
	depth := 1
	j := i + 1
	for ; j < len(toks); j++ {
		switch toks[j].tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		}
		if depth == 0 {
			return b.String(), j + 1
		}
		b.WriteString(toks[j].text)
	}
	return b.String(), j
}

// markerSpan records policy markers found in comments on the same line.
type markerSpan struct {
	inline, ignore bool
	start, end     int // span of the inline marker comment, with leading blanks
}

// findMarkers scans the tokens after a reference up to the end of its line.
func findMarkers(toks []token, from int, m policy.Markers) markerSpan {
	var ms markerSpan
	for j := from; j < len(toks); j++ {
		t := toks[j]
		if t.tt != css.CommentToken {
			if strings.ContainsAny(t.text, "\n\r\f") {
				break
			}
			continue
		}
		if strings.ContainsAny(t.text, "\n\r\f") {
			break
		}
		body := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t.text, "/*"), "*/")))
		switch body {
		case m.Ignore:
			ms.ignore = true
		case m.Inline:
			ms.inline = true
			ms.start, ms.end = t.start, t.end
			if j > from && toks[j-1].tt == css.WhitespaceToken {
				ms.start = toks[j-1].start
			}
		}
	}
	return ms
}
