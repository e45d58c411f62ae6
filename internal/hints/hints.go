// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"net/http"
	"strings"
)

// ForNotFound returns hints for local references that do not exist.
func ForNotFound(relativeToSet bool) string {
	if relativeToSet {
		return format("check --relative-to points at the directory the references are written against")
	}
	return format("references resolve against the input's directory; use --relative-to to change it")
}

// ForOutsideRoot returns hints for reads rejected by --root.
func ForOutsideRoot() string {
	return format("the reference escapes --root; widen --root or mark the element with data-inline-ignore")
}

// ForHTTPStatus returns hints for remote responses with an error status.
func ForHTTPStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return format("the origin requires credentials; pass them with --header \"Authorization: ...\"")
	case status == http.StatusTooManyRequests:
		return format("the origin is rate limiting; lower --rate or --concurrency")
	case status >= 500:
		return format("the origin failed; retry later")
	}
	return ""
}

// ForFetch returns hints for transport failures.
func ForFetch() string {
	return format("check network access, or raise --timeout for slow origins")
}

// ForStrict returns the hint attached to failures surfaced by --strict.
func ForStrict() string {
	return format("without --strict the reference is left untouched and a warning is logged")
}

// ForImportCycle returns hints for stylesheets importing themselves.
func ForImportCycle() string {
	return format("add data-inline-ignore or disable --imports for the stylesheets in the cycle")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-inliner/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, ".config/go-inliner") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// ForInputType returns hints for inputs whose kind cannot be told from the name.
func ForInputType() string {
	return format("supported inputs: .html, .htm, .css, .md, .markdown; use --type for stdin")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

