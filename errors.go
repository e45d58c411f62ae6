package inliner

import (
	"github.com/alnah/go-inliner/internal/failure"
	"github.com/alnah/go-inliner/internal/policy"
)

// Sentinel errors for library operations.
var (
	// ErrSkipRequest is returned by a RequestTransform to skip a request.
	// The reference is left as written and nothing is logged.
	ErrSkipRequest = failure.ErrSkipRequest

	// ErrOutsideRoot is wrapped by NotFoundError when a local reference
	// resolves outside the directory set with WithRoot.
	ErrOutsideRoot = failure.ErrOutsideRoot

	// ErrInvalidLimit is returned by ParseLimit.
	ErrInvalidLimit = policy.ErrInvalidLimit

	// ErrInternal wraps a panic recovered during a run.
	ErrInternal = failure.ErrInternal
)

// Error types returned by a run. Use errors.As to inspect them.
type (
	NotFoundError      = failure.NotFoundError
	HTTPError          = failure.HTTPError
	FetchError         = failure.FetchError
	TransformError     = failure.TransformError
	ConfigurationError = failure.ConfigurationError
	ImportCycleError   = failure.ImportCycleError
)
