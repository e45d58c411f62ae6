package main

import (
	"errors"
	"os"

	flag "github.com/spf13/pflag"

	inliner "github.com/alnah/go-inliner"
	"github.com/alnah/go-inliner/internal/config"
	"github.com/alnah/go-inliner/internal/hints"
)

// Exit codes for the inline CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // All inputs inlined
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or options
	ExitIO      = 3 // Input or reference file not found, unreadable or unwritable
	ExitRemote  = 4 // Remote reference failed (HTTP status or transport)
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is and errors.As to check wrapped errors.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		httpErr     *inliner.HTTPError
		fetchErr    *inliner.FetchError
		notFoundErr *inliner.NotFoundError
		cfgErr      *inliner.ConfigurationError
	)

	// Remote errors (exit 4)
	if errors.As(err, &httpErr) || errors.As(err, &fetchErr) {
		return ExitRemote
	}

	// I/O errors (exit 3)
	if errors.As(err, &notFoundErr) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) ||
		errors.Is(err, ErrNoInput) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.As(err, &cfgErr) ||
		errors.Is(err, flag.ErrHelp) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, inliner.ErrInvalidLimit) ||
		errors.Is(err, ErrUnsupportedInput) ||
		errors.Is(err, ErrOutputRequired) ||
		errors.Is(err, ErrStdinNotAlone) ||
		errors.Is(err, ErrInvalidWorkerCount) ||
		errors.Is(err, ErrInvalidHeader) {
		return ExitUsage
	}

	return ExitGeneral
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error, relativeToSet, strict bool) string {
	var (
		httpErr     *inliner.HTTPError
		fetchErr    *inliner.FetchError
		notFoundErr *inliner.NotFoundError
		cycleErr    *inliner.ImportCycleError
		cfgNotFound *config.NotFoundError
	)

	var hint string
	recoverable := true
	switch {
	case errors.As(err, &httpErr):
		hint = hints.ForHTTPStatus(httpErr.StatusCode)
	case errors.As(err, &fetchErr):
		hint = hints.ForFetch()
	case errors.Is(err, inliner.ErrOutsideRoot):
		hint = hints.ForOutsideRoot()
	case errors.As(err, &notFoundErr):
		hint = hints.ForNotFound(relativeToSet)
	case errors.As(err, &cycleErr):
		hint = hints.ForImportCycle()
	case errors.As(err, &cfgNotFound):
		return hints.ForConfigNotFound(cfgNotFound.Tried)
	case errors.Is(err, ErrUnsupportedInput):
		return hints.ForInputType()
	case errors.Is(err, ErrWriteOutput):
		return hints.ForOutputDirectory()
	default:
		recoverable = false
	}

	if strict && recoverable {
		hint += hints.ForStrict()
	}
	return hint
}
