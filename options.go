package inliner

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"golang.org/x/time/rate"

	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/fetch"
	"github.com/alnah/go-inliner/internal/policy"
	"github.com/alnah/go-inliner/internal/resolve"
	"github.com/alnah/go-inliner/internal/source"
)

// Limit is the inlining policy of one resource type.
type Limit = policy.Limit

// Preset limits.
var (
	Never  = policy.Off // inline only references carrying the inline marker
	Always = policy.On  // inline regardless of size
)

// UpToKB inlines resources whose inlined text is at most n kilobytes
// (n*1000 bytes). n <= 0 is Never.
func UpToKB(n int) Limit { return policy.KB(n) }

// ParseLimit reads "true", "false", "on", "off", "yes", "no" or a
// kilobyte count.
func ParseLimit(s string) (Limit, error) { return policy.ParseLimit(s) }

// Hook types.
type (
	// Resource is the response of a ResourceRequester.
	Resource = fetch.Resource

	// RequestTransform rewrites an outgoing request. Returning ErrSkipRequest
	// skips it; returning a nil request is a configuration error.
	RequestTransform = fetch.RequestTransform

	// ResourceRequester replaces the HTTP transport for remote references.
	// A nil Resource with a nil error is a configuration error.
	ResourceRequester = fetch.ResourceRequester

	// ContentTransform rewrites fetched script or stylesheet text.
	ContentTransform = resolve.ContentTransform
)

// DefaultInlineAttribute is the default marker attribute.
const DefaultInlineAttribute = "data-inline"

// DefaultUserAgent is sent with remote requests unless overridden.
const DefaultUserAgent = "go-inliner"

// Options is the configuration snapshot of an Inliner.
type Options struct {
	Images  Limit // <img> and CSS url(), except .svg images
	SVGs    Limit // .svg images and <use> references
	Scripts Limit // <script src>
	Links   Limit // <link rel="stylesheet">
	Imports Limit // CSS @import

	// RelativeTo is the directory or URL references resolve against.
	// Empty means the working directory.
	RelativeTo string

	// RebaseRelativeTo rewrites local references that are not inlined so
	// they stay valid from this directory.
	RebaseRelativeTo string

	InlineAttribute string
	Strict          bool

	MinifyScripts bool
	MinifyStyles  bool

	RequestTransform RequestTransform
	RequestResource  ResourceRequester
	ScriptTransform  ContentTransform
	LinkTransform    ContentTransform

	HTTPClient        *http.Client
	UserAgent         string
	RequestsPerSecond float64       // 0 means unlimited
	Limiter           *rate.Limiter // shared limiter; overrides RequestsPerSecond
	Concurrency       int           // parallel fetches per document; 0 means unlimited
	Root              string        // when set, local reads must stay under it

	Logger *slog.Logger
}

// DefaultOptions returns the default snapshot: small images and SVGs,
// scripts and stylesheets inlined, imports kept.
func DefaultOptions() Options {
	return Options{
		Images:          UpToKB(8),
		SVGs:            UpToKB(8),
		Scripts:         Always,
		Links:           Always,
		Imports:         Never,
		InlineAttribute: DefaultInlineAttribute,
		UserAgent:       DefaultUserAgent,
	}
}

var attributeName = regexp.MustCompile(`^[A-Za-z_][-A-Za-z0-9_.:]*$`)

// Validate rejects inconsistent options.
func (o Options) Validate() error {
	if !attributeName.MatchString(o.InlineAttribute) {
		return &failure.ConfigurationError{
			Option: "InlineAttribute",
			Reason: fmt.Sprintf("%q is not a valid attribute name", o.InlineAttribute),
		}
	}
	limits := []struct {
		name  string
		limit Limit
	}{
		{"Images", o.Images}, {"SVGs", o.SVGs}, {"Scripts", o.Scripts},
		{"Links", o.Links}, {"Imports", o.Imports},
	}
	for _, l := range limits {
		if err := l.limit.Validate(); err != nil {
			return &failure.ConfigurationError{Option: l.name, Reason: err.Error()}
		}
	}
	if o.RebaseRelativeTo != "" {
		if source.IsRemoteURL(o.RebaseRelativeTo) {
			return &failure.ConfigurationError{Option: "RebaseRelativeTo", Reason: "must be a local path"}
		}
		if o.Images.Unbounded() {
			return &failure.ConfigurationError{
				Option: "RebaseRelativeTo",
				Reason: "cannot be combined with unbounded image inlining; give Images a threshold or disable it",
			}
		}
	}
	if o.Concurrency < 0 {
		return &failure.ConfigurationError{Option: "Concurrency", Reason: "must not be negative"}
	}
	if o.RequestsPerSecond < 0 {
		return &failure.ConfigurationError{Option: "RequestsPerSecond", Reason: "must not be negative"}
	}
	return nil
}

// Option configures an Inliner.
type Option func(*Options)

// WithOptions replaces the whole snapshot. Later options still apply.
func WithOptions(o Options) Option {
	return func(opts *Options) { *opts = o }
}

// WithImages sets the policy for images and CSS url() references.
func WithImages(l Limit) Option {
	return func(o *Options) { o.Images = l }
}

// WithSVGs sets the policy for SVG images and <use> references.
func WithSVGs(l Limit) Option {
	return func(o *Options) { o.SVGs = l }
}

// WithScripts sets the policy for external scripts.
func WithScripts(l Limit) Option {
	return func(o *Options) { o.Scripts = l }
}

// WithLinks sets the policy for linked stylesheets.
func WithLinks(l Limit) Option {
	return func(o *Options) { o.Links = l }
}

// WithImports sets the policy for CSS @import rules.
func WithImports(l Limit) Option {
	return func(o *Options) { o.Imports = l }
}

// WithRelativeTo sets the directory or URL references resolve against.
func WithRelativeTo(dir string) Option {
	return func(o *Options) { o.RelativeTo = dir }
}

// WithRebaseRelativeTo rewrites non-inlined local references relative to dir.
func WithRebaseRelativeTo(dir string) Option {
	return func(o *Options) { o.RebaseRelativeTo = dir }
}

// WithInlineAttribute sets the marker attribute name.
func WithInlineAttribute(name string) Option {
	return func(o *Options) { o.InlineAttribute = name }
}

// WithStrict makes missing resources and HTTP errors fail the run.
func WithStrict(strict bool) Option {
	return func(o *Options) { o.Strict = strict }
}

// WithMinifyScripts minifies inlined scripts.
func WithMinifyScripts(on bool) Option {
	return func(o *Options) { o.MinifyScripts = on }
}

// WithMinifyStyles minifies inlined stylesheets, and CSS output.
func WithMinifyStyles(on bool) Option {
	return func(o *Options) { o.MinifyStyles = on }
}

// WithRequestTransform sets a hook applied to every outgoing request.
func WithRequestTransform(fn RequestTransform) Option {
	return func(o *Options) { o.RequestTransform = fn }
}

// WithRequestResource replaces the HTTP transport.
func WithRequestResource(fn ResourceRequester) Option {
	return func(o *Options) { o.RequestResource = fn }
}

// WithScriptTransform sets a hook applied to fetched scripts.
func WithScriptTransform(fn ContentTransform) Option {
	return func(o *Options) { o.ScriptTransform = fn }
}

// WithLinkTransform sets a hook applied to resolved stylesheets.
func WithLinkTransform(fn ContentTransform) Option {
	return func(o *Options) { o.LinkTransform = fn }
}

// WithHTTPClient sets the client used for remote references.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// WithUserAgent sets the User-Agent header of remote requests.
func WithUserAgent(ua string) Option {
	return func(o *Options) { o.UserAgent = ua }
}

// WithRateLimit caps remote requests per second.
func WithRateLimit(rps float64) Option {
	return func(o *Options) { o.RequestsPerSecond = rps }
}

// WithLimiter shares one request limiter between Inliners.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *Options) { o.Limiter = l }
}

// WithConcurrency caps parallel fetches per document.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithRoot confines local reads to dir.
func WithRoot(dir string) Option {
	return func(o *Options) { o.Root = dir }
}

// WithLogger sets the logger receiving warnings and debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}
