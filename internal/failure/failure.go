// Package failure defines the error taxonomy shared by the resolution stages.
//
// Errors fall into two groups. Environmental failures (NotFoundError,
// HTTPError, FetchError, ImportCycleError) are recoverable: outside strict
// mode the offending reference is left untouched and a warning is logged.
// Hook failures (TransformError, ConfigurationError) and recovered panics
// (ErrInternal) are always fatal.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrSkipRequest is returned by request hooks to decline a request.
	// The reference is then left untouched without a warning.
	ErrSkipRequest = errors.New("request skipped")

	// ErrOutsideRoot reports a local reference that escapes the allowed root.
	ErrOutsideRoot = errors.New("path escapes allowed root")

	// ErrInternal wraps a panic recovered while resolving a reference.
	ErrInternal = errors.New("internal error")
)

// NotFoundError reports a local reference whose file cannot be read.
type NotFoundError struct {
	Source string // reference as written in the document
	Path   string // resolved filesystem path
	Err    error
}

func (e *NotFoundError) Error() string {
	if e.Path == "" || e.Path == e.Source {
		return fmt.Sprintf("%s: file not found", e.Source)
	}
	return fmt.Sprintf("%s: file not found (%s)", e.Source, e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// HTTPError reports a remote reference answered with a non-200 status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned http %d", e.URL, e.StatusCode)
}

// FetchError reports a transport failure while retrieving a reference.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransformError reports a failure returned by a caller-supplied hook
// or by the minifier.
type TransformError struct {
	Hook   string // "request", "script", "link", "minify"
	Source string
	Err    error
}

func (e *TransformError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s transform: %v", e.Hook, e.Err)
	}
	return fmt.Sprintf("%s transform of %s: %v", e.Hook, e.Source, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ConfigurationError reports an option or hook that cannot be used.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Option, e.Reason)
}

// ImportCycleError reports a stylesheet that imports itself, directly or not.
type ImportCycleError struct {
	Chain []string // import keys, outermost first, ending with the revisited key
}

func (e *ImportCycleError) Error() string {
	return "import cycle: " + strings.Join(e.Chain, " -> ")
}

// IsFatal reports whether err must abort a run regardless of strict mode.
func IsFatal(err error) bool {
	var transformErr *TransformError
	var configErr *ConfigurationError
	return errors.As(err, &transformErr) || errors.As(err, &configErr) || errors.Is(err, ErrInternal)
}
