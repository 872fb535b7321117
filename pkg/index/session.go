package index

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// DefaultPrefetchWidth bounds concurrent index queries issued by Prefetch.
const DefaultPrefetchWidth = 8

// Session memoizes an index client for the lifetime of one resolution run.
// Concurrent queries for the same key share a single upstream call and
// results, including errors, are remembered until the session is dropped.
type Session struct {
	client Client
	width  int

	flight   singleflight.Group
	mu       sync.Mutex
	versions map[string]listResult
	metadata map[string]metaResult
}

type listResult struct {
	cs  []Candidate
	err error
}

type metaResult struct {
	deps []requirement.Requirement
	err  error
}

// NewSession wraps client. width caps Prefetch fan-out; values below one
// use [DefaultPrefetchWidth].
func NewSession(client Client, width int) *Session {
	if width < 1 {
		width = DefaultPrefetchWidth
	}
	return &Session{
		client:   client,
		width:    width,
		versions: make(map[string]listResult),
		metadata: make(map[string]metaResult),
	}
}

func (s *Session) ListVersions(ctx context.Context, name string) ([]Candidate, error) {
	name = requirement.NormalizeName(name)
	s.mu.Lock()
	r, ok := s.versions[name]
	s.mu.Unlock()
	if !ok {
		v, _, _ := s.flight.Do("v:"+name, func() (any, error) {
			s.mu.Lock()
			if res, ok := s.versions[name]; ok {
				s.mu.Unlock()
				return res, nil
			}
			s.mu.Unlock()
			cs, err := s.client.ListVersions(ctx, name)
			res := listResult{cs: cs, err: err}
			if ctx.Err() == nil {
				s.mu.Lock()
				s.versions[name] = res
				s.mu.Unlock()
			}
			return res, nil
		})
		r = v.(listResult)
	}
	if r.err != nil {
		return nil, r.err
	}
	return append([]Candidate(nil), r.cs...), nil
}

func (s *Session) FetchMetadata(ctx context.Context, name string, v version.Version) ([]requirement.Requirement, error) {
	name = requirement.NormalizeName(name)
	key := name + "@" + v.String()
	s.mu.Lock()
	r, ok := s.metadata[key]
	s.mu.Unlock()
	if !ok {
		res, _, _ := s.flight.Do("m:"+key, func() (any, error) {
			s.mu.Lock()
			if res, ok := s.metadata[key]; ok {
				s.mu.Unlock()
				return res, nil
			}
			s.mu.Unlock()
			deps, err := s.client.FetchMetadata(ctx, name, v)
			res := metaResult{deps: deps, err: err}
			if ctx.Err() == nil {
				s.mu.Lock()
				s.metadata[key] = res
				s.mu.Unlock()
			}
			return res, nil
		})
		r = res.(metaResult)
	}
	if r.err != nil {
		return nil, r.err
	}
	return append([]requirement.Requirement(nil), r.deps...), nil
}

// Prefetch warms the version lists of names in parallel. Query failures are
// remembered and resurface on the next ListVersions call for that name, so
// Prefetch itself only reports cancellation.
func (s *Session) Prefetch(ctx context.Context, names []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.width)
	for _, name := range names {
		g.Go(func() error {
			s.ListVersions(gctx, name)
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

var _ Client = (*Session)(nil)
