package inliner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/alnah/go-inliner/internal/cssinline"
	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/fetch"
	"github.com/alnah/go-inliner/internal/htmlinline"
	"github.com/alnah/go-inliner/internal/minify"
	"github.com/alnah/go-inliner/internal/policy"
	"github.com/alnah/go-inliner/internal/resolve"
)

// Inliner resolves documents with a fixed set of options.
// It is safe for concurrent use; each call is an independent run.
type Inliner struct {
	opts     Options
	cfg      resolve.Config
	fetcher  *fetch.Fetcher
	minifier *minify.Minifier
	logger   *slog.Logger
}

// NewInliner creates an Inliner from DefaultOptions and opts.
// Returns a *ConfigurationError if the resulting options are inconsistent.
func NewInliner(opts ...Option) (*Inliner, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limiter := o.Limiter
	if limiter == nil && o.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.RequestsPerSecond), 1)
	}

	return &Inliner{
		opts: o,
		cfg: resolve.Config{
			Images:           o.Images,
			SVGs:             o.SVGs,
			Scripts:          o.Scripts,
			Links:            o.Links,
			Imports:          o.Imports,
			RelativeTo:       o.RelativeTo,
			RebaseRelativeTo: o.RebaseRelativeTo,
			Markers:          policy.NewMarkers(o.InlineAttribute),
			Strict:           o.Strict,
			MinifyScripts:    o.MinifyScripts,
			MinifyStyles:     o.MinifyStyles,
			ScriptTransform:  o.ScriptTransform,
			LinkTransform:    o.LinkTransform,
			Concurrency:      o.Concurrency,
		},
		fetcher: fetch.New(fetch.Config{
			Client:           o.HTTPClient,
			UserAgent:        o.UserAgent,
			Limiter:          limiter,
			RequestTransform: o.RequestTransform,
			RequestResource:  o.RequestResource,
			Root:             o.Root,
			Logger:           logger,
		}),
		minifier: minify.New(),
		logger:   logger,
	}, nil
}

// Options returns the snapshot the Inliner was built with.
func (in *Inliner) Options() Options { return in.opts }

// HTML inlines the resources of an HTML document. On error the returned
// document holds every substitution that completed.
func (in *Inliner) HTML(ctx context.Context, document string) (out string, err error) {
	out = document
	defer in.catchPanic(&err)

	run, err := in.newRun()
	if err != nil {
		return document, err
	}
	start := time.Now()
	out, err = htmlinline.Resolve(ctx, run, document)
	in.logger.Debug("inlined html document", "bytes_in", len(document), "bytes_out", len(out), "elapsed", time.Since(start))
	return out, err
}

// CSS inlines the resources of a stylesheet. Local references left external
// are rebased when RebaseRelativeTo is set. On error the returned stylesheet
// holds every substitution that completed.
func (in *Inliner) CSS(ctx context.Context, stylesheet string) (out string, err error) {
	out = stylesheet
	defer in.catchPanic(&err)

	run, err := in.newRun()
	if err != nil {
		return stylesheet, err
	}
	start := time.Now()
	out, err = cssinline.Resolve(ctx, run, cssinline.Job{
		Text:   stylesheet,
		Base:   run.Base(),
		Rebase: cssinline.Rebase{Prefix: run.RebasePrefix()},
	})
	if err == nil && in.opts.MinifyStyles {
		minified, merr := in.minifier.CSS(out)
		if merr != nil {
			return out, &failure.TransformError{Hook: "minify", Err: merr}
		}
		out = minified
	}
	in.logger.Debug("inlined stylesheet", "bytes_in", len(stylesheet), "bytes_out", len(out), "elapsed", time.Since(start))
	return out, err
}

func (in *Inliner) newRun() (*resolve.Run, error) {
	cfg := in.cfg
	return resolve.NewRun(&cfg, in.fetcher, in.logger, in.minifier)
}

// catchPanic turns a panic inside a run into ErrInternal.
func (in *Inliner) catchPanic(err *error) {
	if r := recover(); r != nil {
		in.logger.Error("panic during run", "panic", r)
		*err = fmt.Errorf("%w: %v", ErrInternal, r)
	}
}

// HTML inlines the resources of an HTML document with the given options.
func HTML(ctx context.Context, document string, opts ...Option) (string, error) {
	in, err := NewInliner(opts...)
	if err != nil {
		return document, err
	}
	return in.HTML(ctx, document)
}

// CSS inlines the resources of a stylesheet with the given options.
func CSS(ctx context.Context, stylesheet string, opts ...Option) (string, error) {
	in, err := NewInliner(opts...)
	if err != nil {
		return stylesheet, err
	}
	return in.CSS(ctx, stylesheet)
}

// Decode converts raw document bytes to text. A byte order mark or a
// <meta charset> declaration selects the encoding; UTF-8 is the default.
func Decode(b []byte) string { return fetch.DecodeDocument(b) }

// DecodeCSS converts raw stylesheet bytes to text. A byte order mark or a
// leading @charset rule selects the encoding; UTF-8 is the default.
func DecodeCSS(b []byte) string { return fetch.DecodeStylesheet(b) }
