package fetch

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alnah/go-inliner/internal/source"
)

type result struct {
	content Content
	err     error
}

// Session deduplicates fetches within one run. Concurrent requests for the
// same key share one in-flight fetch; completed results, failures included,
// are reused until the session is discarded.
type Session struct {
	fetcher *Fetcher
	group   singleflight.Group

	mu   sync.Mutex
	done map[string]result
}

// NewSession starts a deduplicating session over f.
func (f *Fetcher) NewSession() *Session {
	return &Session{fetcher: f, done: make(map[string]result)}
}

// Fetch returns the content of loc, fetching it at most once per session.
func (s *Session) Fetch(ctx context.Context, loc source.Location, mode Mode) (Content, error) {
	key := mode.String() + " " + loc.Key()

	s.mu.Lock()
	r, ok := s.done[key]
	s.mu.Unlock()
	if ok {
		return r.content, r.err
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		s.mu.Lock()
		r, ok := s.done[key]
		s.mu.Unlock()
		if ok {
			return r, nil
		}

		content, err := s.fetcher.Fetch(ctx, loc, mode)
		r = result{content: content, err: err}

		s.mu.Lock()
		s.done[key] = r
		s.mu.Unlock()
		return r, nil
	})

	r = v.(result)
	return r.content, r.err
}
