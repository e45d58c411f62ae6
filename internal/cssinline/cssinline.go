// Package cssinline inlines the references of a stylesheet.
//
// url() targets become data URIs and @import rules are replaced by the
// imported stylesheet, resolved recursively and wrapped in blocks that keep
// its layer, supports and media qualifiers. References that stay external
// can be rebased so they remain valid once the stylesheet is moved.
package cssinline

import (
	"context"
	"path"
	"slices"
	"strings"

	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/fetch"
	"github.com/alnah/go-inliner/internal/policy"
	"github.com/alnah/go-inliner/internal/resolve"
	"github.com/alnah/go-inliner/internal/source"
)

// Rebase describes how references left external are rewritten.
type Rebase struct {
	Prefix   string // joined in front of relative local references
	Absolute bool   // rewrite relative references to absolute URLs
}

// Job is one stylesheet to resolve.
type Job struct {
	Text   string
	Base   source.Base
	Rebase Rebase
	Chain  []string // keys of the stylesheets importing this one
}

type itemKind int

const (
	urlItem itemKind = iota
	importItem
)

// item is a reference discovered in the stylesheet.
type item struct {
	kind       itemKind
	src        string
	start, end int // span replaced when inlined
	refStart   int // span of the url or string token
	refEnd     int
	rule       ImportRule
	markers    markerSpan
}

// Resolve inlines the references of job.Text. On failure it returns the
// stylesheet with every substitution that did complete, and the error.
func Resolve(ctx context.Context, run *resolve.Run, job Job) (string, error) {
	items := discover(job.Text, run.Config.Markers)
	if len(items) == 0 {
		return job.Text, nil
	}

	results := make([][]resolve.Edit, len(items))
	var g errgroup.Group
	if n := run.Config.Concurrency; n > 0 {
		g.SetLimit(n)
	}
	for i, it := range items {
		g.Go(func() error {
			return resolve.Protect(func() error {
				var err error
				if it.kind == importItem {
					results[i], err = resolveImport(ctx, run, job, it)
				} else {
					results[i], err = resolveURL(ctx, run, job, it)
				}
				return err
			})
		})
	}
	err := g.Wait()

	var edits []resolve.Edit
	for _, e := range results {
		edits = append(edits, e...)
	}
	return resolve.Apply(job.Text, edits), err
}

// discover lists url() references and @import rules in source order.
func discover(text string, m policy.Markers) []item {
	toks := tokenize(text)
	var items []item
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.tt == css.URLToken:
			items = append(items, item{
				kind:     urlItem,
				src:      urlValue(t.text),
				start:    t.start,
				end:      t.end,
				refStart: t.start,
				refEnd:   t.end,
				markers:  findMarkers(toks, i+1, m),
			})
		case isImportKeyword(t):
			stmt, ok := parseImport(toks, i)
			if !ok {
				continue
			}
			items = append(items, item{
				kind:     importItem,
				src:      stmt.rule.URL,
				start:    stmt.start,
				end:      stmt.end,
				refStart: toks[stmt.urlTok].start,
				refEnd:   toks[stmt.urlTok].end,
				rule:     stmt.rule,
				markers:  findMarkers(toks, stmt.next, m),
			})
			i = stmt.next - 1
		}
	}
	return items
}

func resolveURL(ctx context.Context, run *resolve.Run, job Job, it item) ([]resolve.Edit, error) {
	loc, ok, err := locate(run, job, it)
	if !ok {
		return nil, err
	}

	limit := run.Config.Images
	if policy.ShouldInline(limit, it.markers.inline, it.markers.ignore) {
		c, err := run.Session.Fetch(ctx, loc, fetch.DataURI)
		if err != nil {
			return nil, run.Recover(err, it.src)
		}
		if limit.Fits(len(c.Data)) {
			return inlined(it, quoteURL(c.Data)), nil
		}
		run.Logger.Debug("resource over size threshold", "source", it.src, "bytes", len(c.Data), "kind", "css-url")
	}
	return rebased(job, it, loc), nil
}

func resolveImport(ctx context.Context, run *resolve.Run, job Job, it item) ([]resolve.Edit, error) {
	loc, ok, err := locate(run, job, it)
	if !ok {
		return nil, err
	}

	limit := run.Config.Imports
	if policy.ShouldInline(limit, it.markers.inline, it.markers.ignore) {
		key := loc.Key()
		if slices.Contains(job.Chain, key) {
			chain := append(slices.Clone(job.Chain), key)
			return nil, run.Recover(&failure.ImportCycleError{Chain: chain}, it.src)
		}

		c, err := run.Session.Fetch(ctx, loc, fetch.Text)
		if err != nil {
			return nil, run.Recover(err, it.src)
		}
		if limit.Fits(len(c.Data)) {
			nested, err := Resolve(ctx, run, Job{
				Text:   c.Data,
				Base:   loc.Dir(),
				Rebase: job.Rebase.nested(it.src, loc),
				Chain:  append(slices.Clone(job.Chain), key),
			})
			if err != nil {
				return nil, err
			}
			return inlined(it, wrap(it.rule, nested)), nil
		}
		run.Logger.Debug("resource over size threshold", "source", it.src, "bytes", len(c.Data), "kind", "css-import")
	}
	return rebased(job, it, loc), nil
}

// locate resolves a fetchable reference. ok is false when there is nothing
// to do, either because the reference is never fetched or because locating
// it failed and the failure policy allows continuing.
func locate(run *resolve.Run, job Job, it item) (source.Location, bool, error) {
	if !source.Classify(it.src, job.Base).Fetchable() {
		return source.Location{}, false, nil
	}
	loc, err := job.Base.Locate(it.src)
	if err != nil {
		return source.Location{}, false, run.Recover(&failure.FetchError{Source: it.src, Err: err}, it.src)
	}
	return loc, true, nil
}

// inlined replaces the item and drops its inline marker comment.
func inlined(it item, text string) []resolve.Edit {
	edits := []resolve.Edit{{Start: it.start, End: it.end, Text: text}}
	if it.markers.inline {
		edits = append(edits, resolve.Edit{Start: it.markers.start, End: it.markers.end})
	}
	return edits
}

// rebased rewrites the reference token of an item left external.
func rebased(job Job, it item, loc source.Location) []resolve.Edit {
	ref, ok := job.Rebase.apply(it.src, loc)
	if !ok {
		return nil
	}
	return []resolve.Edit{{Start: it.refStart, End: it.refEnd, Text: quoteURL(ref)}}
}

// apply returns the rewritten reference, or false when it stays as written.
// Root-relative references are left alone.
func (r Rebase) apply(src string, loc source.Location) (string, bool) {
	src = strings.TrimSpace(src)
	switch {
	case r.Absolute && loc.Kind == source.Remote && !source.IsRemoteURL(src):
		return loc.Absolute(), true
	case r.Prefix != "" && loc.Kind == source.Local && !source.IsRootRelative(src):
		p, suffix := source.SplitSuffix(src)
		return path.Join(r.Prefix, p) + suffix, true
	}
	return "", false
}

// nested returns the rebase for a stylesheet imported through src.
func (r Rebase) nested(src string, loc source.Location) Rebase {
	if loc.Kind == source.Remote {
		return Rebase{Absolute: true}
	}
	p, _ := source.SplitSuffix(strings.TrimSpace(src))
	dir := path.Dir(strings.TrimLeft(p, "/"))
	prefix := path.Join(r.Prefix, dir)
	if prefix == "." {
		prefix = ""
	}
	return Rebase{Prefix: prefix}
}
