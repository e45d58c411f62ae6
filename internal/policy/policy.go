// Package policy decides whether a discovered reference is inlined.
//
// Each resource type carries a default Limit: off, on, or on up to a size
// threshold in kilobytes. Documents override the default per reference with
// an inline marker or an ignore marker. The ignore marker always wins.
package policy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLimit is returned when a limit value cannot be parsed.
var ErrInvalidLimit = errors.New("invalid limit")

// Limit is the default inlining policy of a resource type.
// The zero value disables inlining.
type Limit struct {
	Enabled bool
	MaxKB   int // 0 means no size threshold
}

// Presets.
var (
	Off = Limit{}
	On  = Limit{Enabled: true}
)

// KB returns a limit that inlines resources up to n kilobytes.
// A non-positive n disables inlining, like a falsy threshold.
func KB(n int) Limit {
	if n <= 0 {
		return Off
	}
	return Limit{Enabled: true, MaxKB: n}
}

// Fits reports whether content of the given size is within the threshold.
// A kilobyte is 1000 bytes; a size equal to the threshold fits.
func (l Limit) Fits(size int) bool {
	return l.MaxKB <= 0 || size <= l.MaxKB*1000
}

// Unbounded reports whether the limit inlines everything regardless of size.
func (l Limit) Unbounded() bool {
	return l.Enabled && l.MaxKB <= 0
}

// Validate rejects negative thresholds.
func (l Limit) Validate() error {
	if l.MaxKB < 0 {
		return fmt.Errorf("%w: negative threshold %d", ErrInvalidLimit, l.MaxKB)
	}
	return nil
}

// String renders the limit the way ParseLimit reads it.
func (l Limit) String() string {
	switch {
	case !l.Enabled:
		return "false"
	case l.MaxKB > 0:
		return strconv.Itoa(l.MaxKB)
	default:
		return "true"
	}
}

// ParseLimit reads "true", "false", "on", "off", "yes", "no" or a kilobyte count.
func ParseLimit(s string) (Limit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes":
		return On, nil
	case "false", "off", "no", "":
		return Off, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Off, fmt.Errorf("%w: %q (want true, false or a size in KB)", ErrInvalidLimit, s)
	}
	if n < 0 {
		return Off, fmt.Errorf("%w: negative threshold %d", ErrInvalidLimit, n)
	}
	return KB(n), nil
}

// ShouldInline reports whether a reference is a candidate for inlining.
// Size is checked separately, after fetch, with Limit.Fits.
func ShouldInline(def Limit, inlineMarker, ignoreMarker bool) bool {
	if ignoreMarker {
		return false
	}
	return def.Enabled || inlineMarker
}

// Markers holds the marker names derived from the inline attribute.
type Markers struct {
	Inline string // e.g. "data-inline"
	Ignore string // e.g. "data-inline-ignore"
}

// NewMarkers derives both markers from the inline attribute name.
func NewMarkers(attr string) Markers {
	attr = strings.ToLower(strings.TrimSpace(attr))
	return Markers{Inline: attr, Ignore: attr + "-ignore"}
}

// Is reports whether name is one of the markers.
func (m Markers) Is(name string) bool {
	name = strings.ToLower(name)
	return name == m.Inline || name == m.Ignore
}
