package resolve

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/observability"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// maxLearned caps the incompatibilities carried into a Conflict report.
const maxLearned = 32

// Resolver turns root requirements into a [Graph] by backtracking search
// over an index.
//
// Resolver is safe for concurrent use; each Resolve call keeps its own
// per-run index session.
type Resolver struct {
	client index.Client
}

// New creates a Resolver over client.
func New(client index.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve computes a graph satisfying roots.
//
// The search is deterministic for identical index responses: names are
// decided in the order they are first required, and candidates are tried
// locked version first, then newest first.
//
// Errors:
//   - PACKAGE_NOT_FOUND when a root requirement names an unknown package
//   - UNSATISFIABLE (cause *Conflict) when the search is exhausted
//   - INDEX_UNAVAILABLE when the index fails; the search is abandoned
//   - ctx.Err() on cancellation
func (r *Resolver) Resolve(ctx context.Context, roots []requirement.Requirement, opts Options) (*Graph, error) {
	opts = opts.WithDefaults()
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, len(roots))
	start := time.Now()

	s := &search{
		ctx:     ctx,
		opts:    opts,
		log:     opts.Logger,
		session: index.NewSession(r.client, opts.PrefetchWidth),
		hooks:   hooks,
	}
	g, err := s.solve(roots)

	n := 0
	if g != nil {
		n = g.Len()
	}
	hooks.OnResolveComplete(ctx, n, time.Since(start), err)
	return g, err
}

// search holds one resolution run.
type search struct {
	ctx     context.Context
	opts    Options
	log     *log.Logger
	session *index.Session
	hooks   observability.ResolveHooks
}

// frame is a choice point: the state before deciding name, the candidates
// not yet tried, and what went wrong with the ones that were.
type frame struct {
	name       string
	base       *state
	candidates []index.Candidate
	failure    failure
}

// failure describes why a branch failed: the decided names whose choices
// contributed (the backjump targets) and the facts learned on the way.
type failure struct {
	culprits map[string]bool
	why      []Incompatibility
}

func newFailure() failure { return failure{culprits: make(map[string]bool)} }

func (f *failure) merge(o failure, except string) {
	for name := range o.culprits {
		if name != except && name != "" {
			f.culprits[name] = true
		}
	}
	f.learn(o.why...)
}

func (f *failure) learn(why ...Incompatibility) {
	f.why = append(f.why, why...)
	if len(f.why) > maxLearned {
		f.why = slices.Clone(f.why[len(f.why)-maxLearned:])
	}
}

func (s *search) solve(roots []requirement.Requirement) (*Graph, error) {
	st := newState()
	var active []requirement.Requirement
	for _, req := range roots {
		if !req.Applies(s.opts.Environment) {
			s.log.Debug("skipping root requirement", "requirement", req)
			continue
		}
		req = req.WithoutMarker()
		active = append(active, req)
		st.addConstraint(constraint{req: req})
		st.enqueue(req.Name)
	}

	var stack []*frame
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		name, ok := st.next()
		if !ok {
			return s.graph(active, st), nil
		}
		if err := s.session.Prefetch(s.ctx, st.queue); err != nil {
			return nil, err
		}

		cands, err := s.candidates(st, name)
		var fail failure
		switch {
		case errors.Is(err, errors.ErrCodePackageNotFound):
			if len(st.parents(name)) == 0 {
				return nil, err
			}
			fail = s.missing(st, name, "package %s does not exist", name)
		case err != nil:
			return nil, err
		case len(cands) == 0:
			fail = s.missing(st, name, "no version of %s satisfies", name)
		default:
			f := &frame{name: name, base: st, candidates: cands, failure: newFailure()}
			stack = append(stack, f)
			next, err := s.advance(f, len(stack))
			if err != nil {
				return nil, err
			}
			if next != nil {
				st = next
				continue
			}
			stack = stack[:len(stack)-1]
			fail = s.exhausted(f)
		}

		st, stack, err = s.backjump(stack, fail)
		if err != nil {
			return nil, err
		}
	}
}

// backjump unwinds to the most recent frame whose decision contributed to
// fail and resumes it with its next candidate. Frames that exhaust on the
// way pass their own culprits further down. An empty target set means the
// roots themselves conflict.
func (s *search) backjump(stack []*frame, fail failure) (*state, []*frame, error) {
	for {
		i := len(stack) - 1
		for i >= 0 && !fail.culprits[stack[i].name] {
			i--
		}
		if i < 0 {
			c := newConflict(fail.why)
			return nil, nil, errors.Wrap(errors.ErrCodeUnsatisfiable, c, "dependencies cannot be satisfied")
		}

		f := stack[i]
		s.hooks.OnBacktrack(s.ctx, f.name, len(stack), i+1)
		s.log.Debug("backjump", "to", f.name, "from_depth", len(stack), "to_depth", i+1)
		stack = stack[:i+1]
		f.failure.merge(fail, f.name)

		next, err := s.advance(f, i+1)
		if err != nil {
			return nil, nil, err
		}
		if next != nil {
			return next, stack, nil
		}
		stack = stack[:i]
		fail = s.exhausted(f)
	}
}

// advance tries f's remaining candidates in order and returns the first
// state in which the candidate and its dependencies are consistent.
func (s *search) advance(f *frame, depth int) (*state, error) {
	for len(f.candidates) > 0 {
		c := f.candidates[0]
		f.candidates = f.candidates[1:]

		next, fail, err := s.decide(f.base, f.name, c)
		if err != nil {
			return nil, err
		}
		if fail == nil {
			s.hooks.OnDecision(s.ctx, f.name, c.Version.String(), depth)
			s.log.Debug("decided", "package", f.name, "version", c.Version, "depth", depth)
			return next, nil
		}
		s.log.Debug("rejected", "package", f.name, "version", c.Version, "reason", fail.why[len(fail.why)-1].Reason)
		f.failure.merge(*fail, f.name)
	}
	return nil, nil
}

// exhausted turns a frame with no candidates left into a failure for the
// frames below it. The parents that required the name are culprits too:
// different parent versions might not need it, or need another range.
func (s *search) exhausted(f *frame) failure {
	out := newFailure()
	out.merge(f.failure, f.name)
	for p := range f.base.parents(f.name) {
		if p != f.name {
			out.culprits[p] = true
		}
	}
	out.learn(Incompatibility{
		Package: f.name,
		Reason:  fmt.Sprintf("no remaining version of %s is compatible", f.name),
		Causes:  f.base.causes(f.name),
	})
	return out
}

func (s *search) missing(st *state, name, format string, args ...any) failure {
	out := newFailure()
	maps.Copy(out.culprits, st.parents(name))
	out.learn(Incompatibility{Package: name, Reason: fmt.Sprintf(format, args...), Causes: st.causes(name)})
	s.log.Debug("no candidates", "package", name)
	return out
}

// decide assigns c to name on a copy of base and imposes c's dependencies.
// A non-nil failure means the candidate is inconsistent with base.
func (s *search) decide(base *state, name string, c index.Candidate) (*state, *failure, error) {
	deps, err := s.session.FetchMetadata(s.ctx, name, c.Version)
	if err != nil {
		if !errors.Is(err, errors.ErrCodePackageNotFound) {
			return nil, nil, err
		}
		if c.Source.Kind != index.SourceURL {
			f := newFailure()
			f.learn(Incompatibility{Package: name, Reason: fmt.Sprintf("metadata for %s %s is missing", name, c.Version)})
			return nil, &f, nil
		}
		s.log.Debug("no index metadata for direct reference", "package", name, "url", c.Source.URL)
		deps = nil
	}

	st := base.clone()
	a := &assignment{cand: c, deps: deps, extras: st.requestedExtras(name)}
	st.assign(name, a)
	for _, d := range deps {
		if !d.Applies(s.opts.Environment, a.extras...) {
			continue
		}
		if fail := s.require(st, name, d); fail != nil {
			return nil, fail, nil
		}
	}
	return st, nil, nil
}

// require records that from needs req. If req's package is already decided
// the decision must satisfy req; newly requested extras of a decided
// package are expanded in place. Undecided names join the queue.
func (s *search) require(st *state, from string, req requirement.Requirement) *failure {
	req = req.WithoutMarker()
	parent := st.own(from)
	parent.active = append(parent.active, req)

	st.addConstraint(constraint{req: req, from: from, fromVersion: parent.cand.Version.String()})

	a, ok := st.assigned[req.Name]
	if !ok {
		st.enqueue(req.Name)
		return nil
	}
	if !satisfiedBy(a.cand.Version, a.cand.Source, req) {
		f := newFailure()
		f.culprits[from] = true
		f.culprits[req.Name] = true
		f.learn(Incompatibility{
			Package: req.Name,
			Reason:  fmt.Sprintf("%s %s requires %s, but %s %s is selected", from, parent.cand.Version, req, req.Name, a.cand.Version),
			Causes:  st.causes(req.Name),
		})
		return &f
	}

	var added []string
	for _, e := range req.Extras {
		if !slices.Contains(a.extras, e) {
			added = append(added, e)
		}
	}
	if len(added) == 0 {
		return nil
	}
	old := a.extras
	b := st.own(req.Name)
	b.extras = append(slices.Clone(old), added...)
	slices.Sort(b.extras)
	for _, d := range b.deps {
		if d.Applies(s.opts.Environment, b.extras...) && !d.Applies(s.opts.Environment, old...) {
			if f := s.require(st, req.Name, d); f != nil {
				f.culprits[from] = true
				return f
			}
		}
	}
	return nil
}

// candidates lists the viable candidates for name under st's constraints,
// in the order they should be tried.
func (s *search) candidates(st *state, name string) ([]index.Candidate, error) {
	recs := st.constraints[name]

	var direct []string
	for _, c := range recs {
		if c.req.URL != "" && !slices.Contains(direct, stripFragment(c.req.URL)) {
			direct = append(direct, stripFragment(c.req.URL))
		}
	}

	var pool []index.Candidate
	switch {
	case len(direct) > 1:
		s.log.Debug("conflicting direct references", "package", name, "urls", direct)
		return nil, nil
	case len(direct) == 1:
		c, err := s.urlCandidate(name, urlWithFragment(recs, direct[0]))
		if err != nil {
			return nil, err
		}
		pool = []index.Candidate{c}
	default:
		override := s.opts.URLOverrides[name]
		listed, err := s.session.ListVersions(s.ctx, name)
		if err != nil && (override == "" || !errors.Is(err, errors.ErrCodePackageNotFound)) {
			return nil, err
		}
		if override != "" {
			c, err := s.urlCandidate(name, override)
			if err != nil {
				return nil, err
			}
			if s.opts.SourcePolicy == URLOnly {
				listed = nil
			}
			listed = append(listed, c)
		}
		pool = listed
	}

	viable := s.filter(pool, recs, false)
	if len(viable) == 0 && s.opts.Prereleases == version.PrereleaseIfNecessary {
		viable = s.filter(pool, recs, true)
	}

	slices.SortStableFunc(viable, func(a, b index.Candidate) int {
		if n := version.Compare(b.Version, a.Version); n != 0 {
			return n
		}
		return s.sourceRank(a) - s.sourceRank(b)
	})
	viable = slices.CompactFunc(viable, func(a, b index.Candidate) bool {
		return version.Equal(a.Version, b.Version)
	})

	if locked, ok := s.opts.Locked[name]; ok {
		if i := slices.IndexFunc(viable, func(c index.Candidate) bool { return version.Equal(c.Version, locked) }); i > 0 {
			c := viable[i]
			viable = slices.Insert(slices.Delete(viable, i, i+1), 0, c)
		}
	}
	return viable, nil
}

func (s *search) filter(pool []index.Candidate, recs []constraint, allowPre bool) []index.Candidate {
	constraints := make([]version.Constraint, len(recs))
	for i, c := range recs {
		constraints[i] = c.req.Constraint
	}

	var out []index.Candidate
	for _, c := range pool {
		ok := true
		for _, rec := range recs {
			if !satisfiedBy(c.Version, c.Source, rec.req) {
				ok = false
				break
			}
		}
		if !ok || !s.opts.Compatible(c) {
			continue
		}
		if c.Source.Kind == index.SourceIndex {
			if c.Yanked && !pinned(constraints, c.Version) {
				continue
			}
			if !allowPre && !s.opts.Prereleases.Admits(c.Version, constraints...) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func (s *search) sourceRank(c index.Candidate) int {
	urlFirst := s.opts.SourcePolicy != IndexFirst
	if (c.Source.Kind == index.SourceURL) == urlFirst {
		return 0
	}
	return 1
}

func (s *search) urlCandidate(name, rawURL string) (index.Candidate, error) {
	c, err := index.CandidateFromURL(rawURL)
	if err != nil {
		return index.Candidate{}, err
	}
	if c.Name != name {
		return index.Candidate{}, errors.New(errors.ErrCodeInvalidRequirement,
			"direct reference %s provides %s, not %s", rawURL, c.Name, name)
	}
	return c, nil
}

// urlWithFragment returns the first spelling of url among recs, keeping a
// digest fragment if one was given.
func urlWithFragment(recs []constraint, url string) string {
	for _, c := range recs {
		if stripFragment(c.req.URL) == url && c.req.URL != url {
			return c.req.URL
		}
	}
	return url
}

// pinned reports whether an exact-match clause names v, which admits a
// yanked release.
func pinned(constraints []version.Constraint, v version.Version) bool {
	for _, c := range constraints {
		for _, cl := range c.Clauses() {
			if (cl.Op == version.OpEqual && !cl.Wildcard && version.Equal(cl.Version, v)) ||
				(cl.Op == version.OpArbitrary && cl.Matches(v)) {
				return true
			}
		}
	}
	return false
}

func (s *search) graph(roots []requirement.Requirement, st *state) *Graph {
	nodes := make([]*Node, 0, len(st.order))
	for _, name := range st.order {
		a := st.assigned[name]
		nodes = append(nodes, &Node{
			Name:         name,
			Version:      a.cand.Version,
			Source:       a.cand.Source,
			Digest:       a.cand.Digest,
			Extras:       slices.Clone(a.extras),
			Dependencies: slices.Clone(a.active),
		})
	}
	return NewGraph(roots, nodes)
}
