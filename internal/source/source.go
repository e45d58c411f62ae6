// Package source classifies resource references and resolves them to
// fetchable locations.
//
// A reference is classified against a Base, which is either a local
// directory or a remote URL. Relative references under a remote base are
// remote themselves.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrNotFetchable is returned by Locate for references that are never fetched.
var ErrNotFetchable = errors.New("reference is not fetchable")

// Kind is the classification of a reference.
type Kind int

const (
	Local Kind = iota
	Remote
	DataURI
	CID
	Empty
	FragmentOnly
	Unsupported // other URL schemes: mailto:, javascript:, blob:, ...
)

var kindNames = [...]string{
	Local:        "local",
	Remote:       "remote",
	DataURI:      "data-uri",
	CID:          "cid",
	Empty:        "empty",
	FragmentOnly: "fragment-only",
	Unsupported:  "unsupported",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fetchable reports whether references of this kind are ever fetched.
func (k Kind) Fetchable() bool {
	return k == Local || k == Remote
}

// Base is the location references are resolved against.
type Base struct {
	dir string   // absolute directory, local bases only
	url *url.URL // remote bases only
}

// NewBase builds a base from a directory path or a remote URL.
// An empty string means the current working directory.
func NewBase(relativeTo string) (Base, error) {
	if IsRemoteURL(relativeTo) {
		u, err := url.Parse(withScheme(relativeTo))
		if err != nil {
			return Base{}, fmt.Errorf("parsing base URL %q: %w", relativeTo, err)
		}
		return Base{url: u}, nil
	}
	if relativeTo == "" {
		relativeTo = "."
	}
	dir, err := filepath.Abs(relativeTo)
	if err != nil {
		return Base{}, fmt.Errorf("resolving base directory %q: %w", relativeTo, err)
	}
	return Base{dir: dir}, nil
}

// Remote reports whether the base is a URL.
func (b Base) Remote() bool { return b.url != nil }

// Dir returns the directory of a local base.
func (b Base) Dir() string { return b.dir }

func (b Base) String() string {
	if b.url != nil {
		return b.url.String()
	}
	return b.dir
}

// Classify returns the kind of src under base.
func Classify(src string, base Base) Kind {
	s := strings.TrimSpace(src)
	if s == "" {
		return Empty
	}
	if s[0] == '#' {
		return FragmentOnly
	}

	lower := strings.ToLower(strings.TrimLeft(s, `"'`))
	switch {
	case strings.HasPrefix(lower, "data:"):
		return DataURI
	case strings.HasPrefix(lower, "cid:"):
		return CID
	case IsRemoteURL(lower):
		return Remote
	case hasScheme(lower):
		return Unsupported
	case base.Remote():
		return Remote
	}
	return Local
}

// Location is a reference resolved to something the fetcher can retrieve.
type Location struct {
	Source   string // reference as written
	Kind     Kind   // Local or Remote
	Path     string // absolute filesystem path, Local only
	URL      string // absolute URL with query and without fragment, Remote only
	Fragment string
}

// Key identifies the fetched resource. Local keys drop the query string,
// remote keys keep it.
func (l Location) Key() string {
	if l.Kind == Remote {
		return l.URL
	}
	return l.Path
}

// Dir returns the base for references found inside the resource.
func (l Location) Dir() Base {
	if l.Kind == Remote {
		u, err := url.Parse(l.URL)
		if err == nil {
			return Base{url: u}
		}
	}
	return Base{dir: filepath.Dir(l.Path)}
}

// Absolute returns the remote location as a URL including its fragment.
func (l Location) Absolute() string {
	if l.Fragment == "" {
		return l.URL
	}
	return l.URL + "#" + l.Fragment
}

// Locate resolves src under the base. Only local and remote references
// can be located.
func (b Base) Locate(src string) (Location, error) {
	s := strings.TrimSpace(src)
	switch kind := Classify(s, b); kind {
	case Remote:
		return b.locateRemote(src, s)
	case Local:
		return b.locateLocal(src, s), nil
	default:
		return Location{}, fmt.Errorf("%w: %q is %s", ErrNotFetchable, src, kind)
	}
}

func (b Base) locateRemote(src, s string) (Location, error) {
	ref, err := url.Parse(withScheme(s))
	if err != nil {
		return Location{}, fmt.Errorf("parsing %q: %w", src, err)
	}
	u := ref
	if b.url != nil {
		u = b.url.ResolveReference(ref)
	}
	loc := Location{Source: src, Kind: Remote, Fragment: u.Fragment}
	stripped := *u
	stripped.Fragment = ""
	stripped.RawFragment = ""
	loc.URL = stripped.String()
	return loc, nil
}

func (b Base) locateLocal(src, s string) Location {
	p, suffix := SplitSuffix(s)
	var fragment string
	if i := strings.IndexByte(suffix, '#'); i >= 0 {
		fragment = suffix[i+1:]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = strings.TrimLeft(p, "/")
	return Location{
		Source:   src,
		Kind:     Local,
		Path:     filepath.Join(b.dir, filepath.FromSlash(p)),
		Fragment: fragment,
	}
}

// SplitSuffix splits a reference into its path and its "?query#fragment" suffix.
func SplitSuffix(src string) (p, suffix string) {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		return src[:i], src[i:]
	}
	return src, ""
}

// IsRemoteURL reports whether s is an absolute or protocol-relative HTTP URL.
func IsRemoteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// IsRootRelative reports whether a local reference starts at the base root.
func IsRootRelative(src string) bool {
	return strings.HasPrefix(strings.TrimSpace(src), "/")
}

// withScheme rewrites protocol-relative URLs to https.
func withScheme(s string) string {
	if strings.HasPrefix(s, "//") {
		return "https:" + s
	}
	return s
}

// hasScheme reports whether s starts with a URL scheme. Single letters are
// Windows drive letters, not schemes.
func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		case c == ':' && i > 1:
			return true
		default:
			return false
		}
	}
	return false
}
