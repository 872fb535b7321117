package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// Memory is an in-memory [Client] serving a fixed candidate set. It is safe
// for concurrent use and counts queries so tests can assert memoization.
type Memory struct {
	mu          sync.Mutex
	candidates  map[string][]Candidate
	deps        map[string][]published
	unavailable map[string]error
	calls       map[string]int
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		candidates:  make(map[string][]Candidate),
		deps:        make(map[string][]published),
		unavailable: make(map[string]error),
		calls:       make(map[string]int),
	}
}

// Add publishes name at ver with the given requirement strings. It panics
// on malformed input and is meant for test fixtures.
func (m *Memory) Add(name, ver string, deps ...string) *Memory {
	v := version.MustParse(ver)
	reqs := make([]requirement.Requirement, len(deps))
	for i, d := range deps {
		reqs[i] = requirement.MustParse(d)
	}
	name = requirement.NormalizeName(name)
	return m.AddCandidate(Candidate{
		Name:    name,
		Version: v,
		Source: Source{
			Kind:     SourceIndex,
			URL:      fmt.Sprintf("memory://%s/%s-%s.tar.gz", name, name, v),
			Filename: fmt.Sprintf("%s-%s.tar.gz", name, v),
		},
	}, reqs...)
}

// AddCandidate publishes a fully specified candidate.
func (m *Memory) AddCandidate(c Candidate, deps ...requirement.Requirement) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Name = requirement.NormalizeName(c.Name)
	m.candidates[c.Name] = append(m.candidates[c.Name], c)
	SortCandidates(m.candidates[c.Name])
	m.deps[c.Name] = append(m.deps[c.Name], published{v: c.Version, deps: deps})
	return m
}

// SetUnavailable makes every query for name fail with INDEX_UNAVAILABLE.
func (m *Memory) SetUnavailable(name string, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable[requirement.NormalizeName(name)] = cause
}

// Calls returns how many ListVersions queries name has received.
func (m *Memory) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[requirement.NormalizeName(name)]
}

func (m *Memory) ListVersions(_ context.Context, name string) ([]Candidate, error) {
	name = requirement.NormalizeName(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	if cause, ok := m.unavailable[name]; ok {
		return nil, Unavailable(name, cause)
	}
	cs, ok := m.candidates[name]
	if !ok {
		return nil, NotFound(name)
	}
	return append([]Candidate(nil), cs...), nil
}

func (m *Memory) FetchMetadata(_ context.Context, name string, v version.Version) ([]requirement.Requirement, error) {
	name = requirement.NormalizeName(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if cause, ok := m.unavailable[name]; ok {
		return nil, Unavailable(name, cause)
	}
	for _, p := range m.deps[name] {
		if version.Equal(p.v, v) {
			return append([]requirement.Requirement(nil), p.deps...), nil
		}
	}
	return nil, NotFound(name + "==" + v.String())
}

type published struct {
	v    version.Version
	deps []requirement.Requirement
}

var _ Client = (*Memory)(nil)
