// Package inliner rewrites HTML and CSS documents so that their external
// resources are embedded in place.
//
// # Quick Start
//
// Inline every script, stylesheet and small image of a page:
//
//	out, err := inliner.HTML(ctx, page,
//	    inliner.WithRelativeTo("site/"),
//	    inliner.WithImages(inliner.UpToKB(16)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Reuse an Inliner to run several documents with the same options:
//
//	in, err := inliner.NewInliner(inliner.WithStrict(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := in.CSS(ctx, stylesheet)
//
// # What Gets Inlined
//
// In HTML documents:
//
//   - <script src> becomes an inline script
//   - <link rel="stylesheet" href> becomes a <style> element, with its own
//     url() and @import references resolved
//   - <img src> and every <img srcset> candidate become data URIs
//   - <use href="sprite.svg#id"> is replaced by the referenced SVG element
//
// In stylesheets, url() targets become data URIs and @import rules are
// replaced by the imported stylesheet, wrapped in @layer, @supports and
// @media blocks matching the import's qualifiers.
//
// Each kind is controlled by a Limit: Never, Always or UpToKB(n), where a
// threshold counts the inlined text (the data URI for binary resources).
//
// # Markers
//
// The inline attribute (default "data-inline") forces inlining of one
// element; "data-inline-ignore" prevents it. Both are removed from the
// output. In CSS the markers are written as a comment on the reference's
// line:
//
//	.logo { background: url(logo.png); } /* data-inline */
//
// # Failures
//
// By default a missing file or an HTTP error is logged and the reference is
// left as written. With WithStrict(true) the first such error stops the run.
// Errors raised by transform hooks and configuration errors always stop the
// run. In every case the returned text holds the substitutions that did
// complete.
package inliner
