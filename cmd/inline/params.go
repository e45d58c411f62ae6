package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	inliner "github.com/alnah/go-inliner"
	"github.com/alnah/go-inliner/internal/config"
)

// ErrInvalidHeader is returned for a --header value without "Name: value".
var ErrInvalidHeader = errors.New("invalid header")

// settings is the merged view of flags and config. Flags win when given.
type settings struct {
	options    []inliner.Option
	relativeTo string // empty means each input's directory
	strict     bool
	minifyHTML bool
	output     string
	kind       inputKind
	logger     *slog.Logger
}

// mergeSettings merges CLI flags and config into inliner options.
func mergeSettings(f *cliFlags, cfg *config.Config, stderr io.Writer) (*settings, error) {
	s := &settings{
		strict:     f.inline.strict || cfg.Strict,
		minifyHTML: f.minify.html || cfg.Minify.HTML,
		output:     pick(f.changed["output"], f.io.output, cfg.Output.DefaultDir),
		relativeTo: pick(f.changed["relative-to"], f.paths.relativeTo, cfg.Paths.RelativeTo),
		logger:     newLogger(stderr, f.common.quiet, f.common.verbose),
	}

	kind, err := parseKind(f.io.kind)
	if err != nil {
		return nil, err
	}
	s.kind = kind

	limits := []struct {
		name string
		flag *limitFlag
		cfg  *config.Limit
		with func(inliner.Limit) inliner.Option
	}{
		{"images", &f.inline.images, cfg.Inline.Images, inliner.WithImages},
		{"svgs", &f.inline.svgs, cfg.Inline.SVGs, inliner.WithSVGs},
		{"scripts", &f.inline.scripts, cfg.Inline.Scripts, inliner.WithScripts},
		{"links", &f.inline.links, cfg.Inline.Links, inliner.WithLinks},
		{"imports", &f.inline.imports, cfg.Inline.Imports, inliner.WithImports},
	}
	for _, l := range limits {
		switch {
		case f.changed[l.name]:
			s.options = append(s.options, l.with(l.flag.limit))
		case l.cfg != nil:
			s.options = append(s.options, l.with(l.cfg.Limit))
		}
	}

	if attr := pick(f.changed["inline-attribute"], f.inline.attribute, cfg.Inline.Attribute); attr != "" {
		s.options = append(s.options, inliner.WithInlineAttribute(attr))
	}
	if rebase := pick(f.changed["rebase-relative-to"], f.paths.rebaseRelativeTo, cfg.Paths.RebaseRelativeTo); rebase != "" {
		s.options = append(s.options, inliner.WithRebaseRelativeTo(rebase))
	}
	if root := pick(f.changed["root"], f.paths.root, cfg.Paths.Root); root != "" {
		s.options = append(s.options, inliner.WithRoot(root))
	}
	if ua := pick(f.changed["user-agent"], f.http.userAgent, cfg.HTTP.UserAgent); ua != "" {
		s.options = append(s.options, inliner.WithUserAgent(ua))
	}

	timeout, err := resolveTimeout(f, cfg)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		s.options = append(s.options, inliner.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	rps := cfg.HTTP.Rate
	if f.changed["rate"] {
		rps = f.http.rate
	}
	if rps < 0 {
		return nil, &inliner.ConfigurationError{Option: "rate", Reason: "must not be negative"}
	}
	if rps > 0 {
		// One limiter for the whole batch.
		s.options = append(s.options, inliner.WithLimiter(rate.NewLimiter(rate.Limit(rps), 1)))
	}

	concurrency := cfg.HTTP.Concurrency
	if f.changed["concurrency"] {
		concurrency = f.http.concurrency
	}

	headers, err := mergeHeaders(cfg.HTTP.Headers, f.http.headers)
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		s.options = append(s.options, inliner.WithRequestTransform(headerTransform(headers)))
	}

	s.options = append(s.options,
		inliner.WithStrict(s.strict),
		inliner.WithMinifyScripts(f.minify.scripts || cfg.Minify.Scripts),
		inliner.WithMinifyStyles(f.minify.styles || cfg.Minify.Styles),
		inliner.WithConcurrency(concurrency),
		inliner.WithLogger(s.logger),
	)

	// Surface option conflicts once, before any input is read.
	if _, err := inliner.NewInliner(s.options...); err != nil {
		return nil, err
	}
	return s, nil
}

// pick returns the flag value when the flag was given, the config value otherwise.
func pick(flagSet bool, flagValue, cfgValue string) string {
	if flagSet {
		return flagValue
	}
	return cfgValue
}

// resolveTimeout reads --timeout, falling back to http.timeout.
func resolveTimeout(f *cliFlags, cfg *config.Config) (time.Duration, error) {
	if !f.changed["timeout"] {
		return cfg.HTTP.TimeoutDuration()
	}
	d, err := time.ParseDuration(f.http.timeout)
	if err != nil {
		return 0, &inliner.ConfigurationError{Option: "timeout", Reason: err.Error()}
	}
	if d < 0 {
		return 0, &inliner.ConfigurationError{Option: "timeout", Reason: "must not be negative"}
	}
	return d, nil
}

// mergeHeaders combines config headers with --header values; flags win.
func mergeHeaders(fromConfig map[string]string, fromFlags []string) (http.Header, error) {
	h := make(http.Header)
	for name, value := range fromConfig {
		h.Set(name, value)
	}
	for _, raw := range fromFlags {
		name, value, ok := strings.Cut(raw, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("%w: %q (want \"Name: value\")", ErrInvalidHeader, raw)
		}
		h.Set(name, strings.TrimSpace(value))
	}
	return h, nil
}

// headerTransform adds headers to every outgoing request.
func headerTransform(headers http.Header) inliner.RequestTransform {
	return func(req *http.Request) (*http.Request, error) {
		for name, values := range headers {
			req.Header[name] = append([]string(nil), values...)
		}
		return req, nil
	}
}

// newLogger builds the stderr logger. Warnings show by default.
func newLogger(w io.Writer, quiet, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
