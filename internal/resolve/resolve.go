// Package resolve holds the per-run state shared by the HTML and CSS
// resolvers: the immutable configuration snapshot, the deduplicating fetch
// session, the logger and the strict-mode failure policy.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/fetch"
	"github.com/alnah/go-inliner/internal/minify"
	"github.com/alnah/go-inliner/internal/policy"
	"github.com/alnah/go-inliner/internal/source"
)

// ContentTransform rewrites fetched script or stylesheet text.
type ContentTransform func(ctx context.Context, content string) (string, error)

// Config is the read-only snapshot of a run's options.
type Config struct {
	Images  policy.Limit
	SVGs    policy.Limit
	Scripts policy.Limit
	Links   policy.Limit
	Imports policy.Limit

	RelativeTo       string
	RebaseRelativeTo string
	Markers          policy.Markers
	Strict           bool

	MinifyScripts bool
	MinifyStyles  bool

	ScriptTransform ContentTransform
	LinkTransform   ContentTransform

	Concurrency int // 0 means unlimited
}

// Run is the state of one top-level invocation.
type Run struct {
	Config   *Config
	Session  *fetch.Session
	Logger   *slog.Logger
	Minifier *minify.Minifier

	base   source.Base
	prefix string
}

// NewRun prepares a run. The base is derived from Config.RelativeTo.
func NewRun(cfg *Config, fetcher *fetch.Fetcher, logger *slog.Logger, minifier *minify.Minifier) (*Run, error) {
	base, err := source.NewBase(cfg.RelativeTo)
	if err != nil {
		return nil, &failure.ConfigurationError{Option: "RelativeTo", Reason: err.Error()}
	}
	prefix, err := rebasePrefix(cfg.RelativeTo, cfg.RebaseRelativeTo)
	if err != nil {
		return nil, &failure.ConfigurationError{Option: "RebaseRelativeTo", Reason: err.Error()}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if minifier == nil {
		minifier = minify.New()
	}
	return &Run{
		Config:   cfg,
		Session:  fetcher.NewSession(),
		Logger:   logger,
		Minifier: minifier,
		base:     base,
		prefix:   prefix,
	}, nil
}

// Base is the location top-level references resolve against.
func (r *Run) Base() source.Base { return r.base }

// RebasePrefix is the path prefix applied to non-inlined local references
// at the top level, or "" when rebasing is off.
func (r *Run) RebasePrefix() string { return r.prefix }

// Recover applies the failure policy to an error raised while resolving src.
// It returns nil when the reference should be left untouched and the run
// continues, or the error when the run must stop.
func (r *Run) Recover(err error, src string) error {
	if err == nil || errors.Is(err, fetch.ErrSkipped) {
		return nil
	}
	if failure.IsFatal(err) || r.Config.Strict {
		return err
	}
	r.Logger.Warn("leaving reference untouched", "source", src, "error", err)
	return nil
}

// Protect runs fn, turning a panic into an error wrapping failure.ErrInternal.
// Resolvers wrap their goroutines with it so a broken hook cannot crash the
// caller.
func Protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", failure.ErrInternal, r)
		}
	}()
	return fn()
}

// rebasePrefix expresses the rebase directory relative to the document base.
// Both are resolved from the working directory.
func rebasePrefix(relativeTo, rebaseRelativeTo string) (string, error) {
	if rebaseRelativeTo == "" {
		return "", nil
	}
	if source.IsRemoteURL(rebaseRelativeTo) {
		return "", errors.New("must be a local path")
	}
	if relativeTo == "" || source.IsRemoteURL(relativeTo) {
		relativeTo = "."
	}
	from, err := filepath.Abs(relativeTo)
	if err != nil {
		return "", err
	}
	to, err := filepath.Abs(rebaseRelativeTo)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(from, to)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}
