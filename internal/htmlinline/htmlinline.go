// Package htmlinline inlines the external resources of an HTML document.
//
// Scripts and stylesheets are embedded as element content, images become
// data URIs and SVG <use> references are replaced by the referenced element.
// The document is never re-serialized: only the bytes of edited elements and
// attributes change.
package htmlinline

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-inliner/internal/cssinline"
	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/fetch"
	"github.com/alnah/go-inliner/internal/policy"
	"github.com/alnah/go-inliner/internal/resolve"
	"github.com/alnah/go-inliner/internal/source"
)

type family int

const (
	scriptFamily family = iota
	linkFamily
	imageFamily
	useFamily
)

var familyNames = [...]string{
	scriptFamily: "script",
	linkFamily:   "link",
	imageFamily:  "img",
	useFamily:    "use",
}

func (f family) String() string { return familyNames[f] }

// ref is one reference found in the document.
type ref struct {
	family family
	el     *element
	src    string // unescaped reference
	loc    source.Location
	inline bool // passed the policy; false for refs kept only for rebase

	// span of the raw reference inside an attribute value, img and srcset only
	start, end int
	quote      byte
}

type groupKey struct {
	family family
	key    string
}

type state int

const (
	excluded state = iota // left as written, rebase applies
	resolved
	failed // left as written
)

// group is a set of references to the same resource, resolved once.
type group struct {
	family family
	loc    source.Location
	src    string
	limit  policy.Limit

	state state
	text  string          // inlined content
	svg   *etree.Document // parsed sprite, use only
}

// Resolve inlines the references of doc. On failure it returns the document
// with every substitution that did complete, and the error.
func Resolve(ctx context.Context, run *resolve.Run, doc string) (string, error) {
	els := parse(doc)
	refs, groups, order := discover(run, doc, els)

	var g errgroup.Group
	if n := run.Config.Concurrency; n > 0 {
		g.SetLimit(n)
	}
	for _, k := range order {
		gr := groups[k]
		g.Go(func() error {
			err := resolve.Protect(func() error { return resolveGroup(ctx, run, gr) })
			if err != nil {
				gr.state = failed
			}
			return run.Recover(err, gr.src)
		})
	}
	err := g.Wait()

	edits, editErr := buildEdits(run, doc, els, refs, groups)
	if err == nil {
		err = editErr
	}
	return resolve.Apply(doc, edits), err
}

// discover collects the references of the target elements and groups them
// by resource.
func discover(run *resolve.Run, doc string, els []*element) ([]*ref, map[groupKey]*group, []groupKey) {
	var (
		refs   []*ref
		groups = map[groupKey]*group{}
		order  []groupKey
	)
	m := run.Config.Markers
	base := run.Base()

	add := func(r *ref, limit policy.Limit) {
		r.inline = policy.ShouldInline(limit, r.el.has(m.Inline), r.el.has(m.Ignore))
		if !r.inline && !(r.family == imageFamily && run.RebasePrefix() != "") {
			return
		}
		if !source.Classify(r.src, base).Fetchable() {
			return
		}
		loc, err := base.Locate(r.src)
		if err != nil {
			run.Logger.Debug("skipping reference", "source", r.src, "error", err)
			return
		}
		r.loc = loc
		refs = append(refs, r)
		if !r.inline {
			return
		}
		k := groupKey{family: r.family, key: loc.Key()}
		if _, ok := groups[k]; !ok {
			groups[k] = &group{family: r.family, loc: loc, src: r.src, limit: limit}
			order = append(order, k)
		}
	}

	for _, el := range els {
		switch el.name {
		case "script":
			if a, ok := el.attr("src"); ok {
				add(&ref{family: scriptFamily, el: el, src: a.val}, run.Config.Scripts)
			}
		case "link":
			a, ok := el.attr("href")
			if ok && isStylesheet(el) {
				add(&ref{family: linkFamily, el: el, src: a.val}, run.Config.Links)
			}
		case "img":
			if a, ok := el.attr("src"); ok && a.valStart >= 0 {
				add(&ref{family: imageFamily, el: el, src: a.val, start: a.valStart, end: a.valEnd, quote: a.quote}, imageLimit(run, a.val))
			}
			if a, ok := el.attr("srcset"); ok && a.valStart >= 0 {
				raw := doc[a.valStart:a.valEnd]
				for _, c := range parseSrcset(raw) {
					src := html.UnescapeString(raw[c.start:c.end])
					add(&ref{family: imageFamily, el: el, src: src, start: a.valStart + c.start, end: a.valStart + c.end, quote: a.quote}, imageLimit(run, src))
				}
			}
		case "use":
			a, ok := el.attr("href")
			if !ok {
				a, ok = el.attr("xlink:href")
			}
			if ok {
				add(&ref{family: useFamily, el: el, src: a.val}, run.Config.SVGs)
			}
		}
	}
	return refs, groups, order
}

// isStylesheet reports whether a link loads a stylesheet: rel contains
// "stylesheet", or there is no link type at all.
func isStylesheet(el *element) bool {
	rel, ok := el.attr("rel")
	if !ok || strings.TrimSpace(rel.val) == "" {
		return true
	}
	for _, tok := range strings.Fields(strings.ToLower(rel.val)) {
		if tok == "stylesheet" {
			return true
		}
	}
	return false
}

func imageLimit(run *resolve.Run, src string) policy.Limit {
	p, _ := source.SplitSuffix(strings.TrimSpace(src))
	if strings.EqualFold(path.Ext(p), ".svg") {
		return run.Config.SVGs
	}
	return run.Config.Images
}

// resolveGroup fetches and prepares the content shared by a group.
func resolveGroup(ctx context.Context, run *resolve.Run, gr *group) error {
	mode := fetch.Text
	if gr.family == imageFamily {
		mode = fetch.DataURI
	}
	c, err := run.Session.Fetch(ctx, gr.loc, mode)
	if err != nil {
		return err
	}

	var text string
	switch gr.family {
	case imageFamily:
		text = c.Data
	case scriptFamily:
		if text, err = scriptText(ctx, run, gr, c.Data); err != nil {
			return err
		}
	case linkFamily:
		if !gr.limit.Fits(len(c.Data)) {
			run.Logger.Debug("resource over size threshold", "source", gr.src, "bytes", len(c.Data), "kind", gr.family)
			return nil
		}
		if text, err = styleText(ctx, run, gr, c.Data); err != nil {
			return err
		}
		gr.text, gr.state = text, resolved
		return nil
	case useFamily:
		doc, err := parseSVG(c.Data)
		if err != nil {
			return &failure.FetchError{Source: gr.src, Err: err}
		}
		gr.svg, gr.state = doc, resolved
		return nil
	}

	if !gr.limit.Fits(len(text)) {
		run.Logger.Debug("resource over size threshold", "source", gr.src, "bytes", len(text), "kind", gr.family)
		return nil
	}
	gr.text, gr.state = text, resolved
	return nil
}

func scriptText(ctx context.Context, run *resolve.Run, gr *group, js string) (string, error) {
	if t := run.Config.ScriptTransform; t != nil {
		out, err := t(ctx, js)
		if err != nil {
			return "", &failure.TransformError{Hook: "script", Source: gr.src, Err: err}
		}
		js = out
	}
	if run.Config.MinifyScripts {
		out, err := run.Minifier.JS(js)
		if err != nil {
			return "", &failure.TransformError{Hook: "minify", Source: gr.src, Err: err}
		}
		js = out
	}
	return js, nil
}

func styleText(ctx context.Context, run *resolve.Run, gr *group, css string) (string, error) {
	out, err := cssinline.Resolve(ctx, run, cssinline.Job{
		Text:   css,
		Base:   gr.loc.Dir(),
		Rebase: linkRebase(run, gr),
		Chain:  []string{gr.loc.Key()},
	})
	if err != nil {
		return "", err
	}
	if t := run.Config.LinkTransform; t != nil {
		if out, err = t(ctx, out); err != nil {
			return "", &failure.TransformError{Hook: "link", Source: gr.src, Err: err}
		}
	}
	if run.Config.MinifyStyles {
		if out, err = run.Minifier.CSS(out); err != nil {
			return "", &failure.TransformError{Hook: "minify", Source: gr.src, Err: err}
		}
	}
	return out, nil
}

// linkRebase keeps the stylesheet's relative references valid from the
// document: they are prefixed with the link's directory, itself under the
// rebase prefix when one is configured.
func linkRebase(run *resolve.Run, gr *group) cssinline.Rebase {
	if gr.loc.Kind == source.Remote {
		return cssinline.Rebase{Absolute: true}
	}
	p, _ := source.SplitSuffix(strings.TrimSpace(gr.src))
	prefix := path.Join(run.RebasePrefix(), path.Dir(strings.TrimLeft(p, "/")))
	if prefix == "." {
		prefix = ""
	}
	return cssinline.Rebase{Prefix: prefix}
}

// buildEdits turns group outcomes into document edits and strips markers.
func buildEdits(run *resolve.Run, doc string, els []*element, refs []*ref, groups map[groupKey]*group) ([]resolve.Edit, error) {
	var edits []resolve.Edit
	var errs []error
	m := run.Config.Markers

	for _, r := range refs {
		gr := groups[groupKey{family: r.family, key: r.loc.Key()}]
		st := excluded
		if gr != nil {
			st = gr.state
		}

		switch r.family {
		case imageFamily:
			switch {
			case !r.inline || st == excluded:
				if p, ok := rebase(run.RebasePrefix(), r); ok {
					edits = append(edits, valueEdit(r, p))
				}
			case st == resolved:
				edits = append(edits, valueEdit(r, gr.text))
			}
		case scriptFamily:
			if st == resolved {
				edits = append(edits, resolve.Edit{Start: r.el.start, End: r.el.end, Text: scriptElement(doc, r.el, m, gr.text)})
			}
		case linkFamily:
			if st == resolved {
				edits = append(edits, resolve.Edit{Start: r.el.start, End: r.el.end, Text: styleElement(doc, r.el, m, gr.text)})
			}
		case useFamily:
			if st != resolved {
				continue
			}
			svg, ok, err := extractSVG(gr.svg, r.loc.Fragment, useExtras(r.el, m))
			if err != nil {
				errs = append(errs, run.Recover(&failure.FetchError{Source: r.src, Err: err}, r.src))
				continue
			}
			if !ok {
				run.Logger.Debug("svg fragment not found", "source", r.src)
				edits = append(edits, resolve.Edit{Start: r.el.start, End: r.el.end, Text: useShell(doc, r.el, m)})
				continue
			}
			if !gr.limit.Fits(len(svg)) {
				run.Logger.Debug("resource over size threshold", "source", r.src, "bytes", len(svg), "kind", r.family)
				continue
			}
			edits = append(edits, resolve.Edit{Start: r.el.start, End: r.el.end, Text: svg})
		}
	}

	for _, el := range els {
		for _, a := range el.attrs {
			if m.Is(a.key) {
				edits = append(edits, resolve.Edit{Start: leadingSpace(doc, a.start), End: a.end})
			}
		}
	}
	return edits, errors.Join(errs...)
}

// rebase rewrites a local relative reference under prefix.
func rebase(prefix string, r *ref) (string, bool) {
	src := strings.TrimSpace(r.src)
	if prefix == "" || r.loc.Kind != source.Local || source.IsRootRelative(src) {
		return "", false
	}
	p, suffix := source.SplitSuffix(src)
	return path.Join(prefix, p) + suffix, true
}

// valueEdit replaces the reference span of an attribute value, quoting an
// unquoted value that would otherwise break.
func valueEdit(r *ref, text string) resolve.Edit {
	text = escapeAttr(text)
	if r.quote == 0 && strings.ContainsAny(text, " \t\n\r\f>") {
		text = `"` + text + `"`
	}
	return resolve.Edit{Start: r.start, End: r.end, Text: text}
}

func scriptElement(doc string, el *element, m policy.Markers, js string) string {
	var b strings.Builder
	b.WriteString("<script")
	for _, a := range el.attrs {
		switch {
		case a.key == "src", a.key == "language", m.Is(a.key):
		case a.key == "type" && !strings.EqualFold(strings.TrimSpace(a.val), "module"):
		default:
			b.WriteString(" " + a.raw(doc))
		}
	}
	b.WriteString(">\n")
	b.WriteString(escapeClosing(js, "script"))
	b.WriteString("\n</script>")
	return b.String()
}

func styleElement(doc string, el *element, m policy.Markers, css string) string {
	var b strings.Builder
	b.WriteString("<style")
	for _, a := range el.attrs {
		switch {
		case a.key == "href", a.key == "rel", m.Is(a.key):
		default:
			b.WriteString(" " + a.raw(doc))
		}
	}
	b.WriteString(">\n")
	b.WriteString(escapeClosing(css, "style"))
	b.WriteString("\n</style>")
	return b.String()
}

// useShell empties a <use> whose fragment is missing: the reference and its
// content are dropped, the other attributes kept.
func useShell(doc string, el *element, m policy.Markers) string {
	var b strings.Builder
	b.WriteString("<use")
	for _, a := range useExtras(el, m) {
		b.WriteString(" " + a.raw(doc))
	}
	switch {
	case strings.HasSuffix(doc[el.start:el.tagEnd], "/>"):
		b.WriteString("/>")
	case el.end > el.tagEnd:
		b.WriteString("></use>")
	default:
		b.WriteString(">")
	}
	return b.String()
}

// useExtras lists the <use> attributes copied onto the inlined element.
func useExtras(el *element, m policy.Markers) []attr {
	var out []attr
	for _, a := range el.attrs {
		if a.key == "href" || a.key == "xlink:href" || m.Is(a.key) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// escapeClosing keeps embedded text from closing its raw text element.
func escapeClosing(s, tag string) string {
	var b strings.Builder
	n := len(tag) + 2
	last := 0
	for i := 0; i+n <= len(s); i++ {
		if s[i] == '<' && s[i+1] == '/' && strings.EqualFold(s[i+2:i+n], tag) {
			b.WriteString(s[last : i+1])
			b.WriteString(`\/`)
			last = i + 2
		}
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// leadingSpace extends an attribute start over the blanks before it.
func leadingSpace(doc string, start int) int {
	for start > 0 && isTagSpace(doc[start-1]) {
		start--
	}
	return start
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `'`, "&#39;")

func escapeAttr(s string) string { return attrEscaper.Replace(s) }
