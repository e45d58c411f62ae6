package htmlinline

import (
	"strings"

	"golang.org/x/net/html"
)

// voidElements never have content or an end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// attr is an attribute with its byte spans in the document.
type attr struct {
	key        string // lowercased name
	val        string // entity-unescaped value
	start, end int    // whole attribute, name through closing quote
	valStart   int    // raw value without quotes; -1 when there is no value
	valEnd     int
	quote      byte // '"', '\'' or 0 for an unquoted value
}

// raw returns the attribute as written.
func (a attr) raw(doc string) string { return doc[a.start:a.end] }

// element is an element with its byte spans in the document.
type element struct {
	name   string
	start  int // '<' of the start tag
	tagEnd int // after the start tag's '>'
	end    int // after the end tag; tagEnd when there is none
	attrs  []attr
}

func (e *element) attr(key string) (attr, bool) {
	for _, a := range e.attrs {
		if a.key == key {
			return a, true
		}
	}
	return attr{}, false
}

func (e *element) has(key string) bool {
	_, ok := e.attr(key)
	return ok
}

// parse lists the elements of doc in source order. Only elements closed by
// an explicit end tag get a span beyond their start tag.
func parse(doc string) []*element {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		els   []*element
		stack []*element
		pos   int
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		start := pos
		pos += len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			el := &element{
				name:   string(name),
				start:  start,
				tagEnd: pos,
				end:    pos,
				attrs:  scanAttrs(doc[start:pos], start),
			}
			els = append(els, el)
			if tt == html.StartTagToken && !voidElements[el.name] {
				stack = append(stack, el)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == string(name) {
					stack[i].end = pos
					stack = stack[:i]
					break
				}
			}
		}
	}
	return els
}

// scanAttrs reads the attributes of a raw start tag. Offsets are shifted by
// offset so they index the whole document.
func scanAttrs(tag string, offset int) []attr {
	i := 1
	for i < len(tag) && !isTagSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}

	var attrs []attr
	for {
		for i < len(tag) && (isTagSpace(tag[i]) || tag[i] == '/') {
			i++
		}
		if i >= len(tag) || tag[i] == '>' {
			return attrs
		}

		nameStart := i
		i++ // a leading '=' belongs to the name
		for i < len(tag) && !isTagSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' && tag[i] != '=' {
			i++
		}
		a := attr{
			key:      strings.ToLower(tag[nameStart:i]),
			start:    offset + nameStart,
			valStart: -1,
			valEnd:   -1,
		}

		j := skipTagSpace(tag, i)
		if j < len(tag) && tag[j] == '=' {
			j = skipTagSpace(tag, j+1)
			var vs, ve int
			switch {
			case j < len(tag) && (tag[j] == '"' || tag[j] == '\''):
				a.quote = tag[j]
				vs = j + 1
				ve = vs
				for ve < len(tag) && tag[ve] != a.quote {
					ve++
				}
				i = min(ve+1, len(tag))
			default:
				vs = j
				ve = vs
				for ve < len(tag) && !isTagSpace(tag[ve]) && tag[ve] != '>' {
					ve++
				}
				i = ve
			}
			a.valStart, a.valEnd = offset+vs, offset+ve
			a.val = html.UnescapeString(tag[vs:ve])
		}
		a.end = offset + i
		attrs = append(attrs, a)
	}
}

func isTagSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipTagSpace(s string, i int) int {
	for i < len(s) && isTagSpace(s[i]) {
		i++
	}
	return i
}
