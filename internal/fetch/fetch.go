// Package fetch retrieves the content behind located references.
//
// Local references are read from disk; remote references go through an
// injectable *http.Client, an optional request transform, an optional
// transport override and an optional rate limiter. A Session deduplicates
// fetches for the duration of one run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	"github.com/alnah/go-inliner/internal/source"
)

// ErrSkipped reports a request declined by a hook. The reference is left
// untouched without a warning.
var ErrSkipped = errors.New("fetch skipped")

// Mode selects the representation of fetched content.
type Mode int

const (
	Text    Mode = iota // raw text, decoded to UTF-8
	DataURI             // data:<mime>;base64,<payload>
)

func (m Mode) String() string {
	if m == DataURI {
		return "data-uri"
	}
	return "text"
}

// Content is a resolved resource.
type Content struct {
	Key       string
	Data      string // text, or a data URI in DataURI mode
	MediaType string
}

// Resource is the result of a transport override.
type Resource struct {
	Body        []byte
	ContentType string
}

// RequestTransform rewrites an outgoing request. Returning failure.ErrSkipRequest
// skips the reference; returning a nil request without error is a
// configuration error.
type RequestTransform func(req *http.Request) (*http.Request, error)

// ResourceRequester replaces the HTTP transport entirely.
type ResourceRequester func(ctx context.Context, req *http.Request) (*Resource, error)

// Config holds the fetcher's collaborators. The zero value is usable.
type Config struct {
	Client           *http.Client
	UserAgent        string
	Limiter          *rate.Limiter
	RequestTransform RequestTransform
	RequestResource  ResourceRequester
	ReadFile         func(name string) ([]byte, error)
	Root             string // when set, local reads must stay under it
	Logger           *slog.Logger
}

// Fetcher retrieves content without caching. Safe for concurrent use.
type Fetcher struct {
	cfg Config
}

// New creates a Fetcher, filling defaults for unset collaborators.
func New(cfg Config) *Fetcher {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.ReadFile == nil {
		cfg.ReadFile = os.ReadFile
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{cfg: cfg}
}

// Fetch retrieves loc in the requested mode.
func (f *Fetcher) Fetch(ctx context.Context, loc source.Location, mode Mode) (Content, error) {
	switch loc.Kind {
	case source.Local:
		return f.fetchLocal(loc, mode)
	case source.Remote:
		return f.fetchRemote(ctx, loc, mode)
	default:
		return Content{}, fmt.Errorf("%w: %s", source.ErrNotFetchable, loc.Kind)
	}
}
