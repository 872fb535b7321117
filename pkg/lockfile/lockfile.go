// Package lockfile persists a resolution as a diff-friendly TOML document.
//
// A lockfile pins one entry per package, sorted by name:
//
//	# This file is generated by pypackages. Do not edit by hand.
//	version = 1
//	python = "3.11"
//	requirements-hash = "4f2a9c1d7e3b8a60"
//
//	[[package]]
//	name = "requests"
//	version = "2.31.0"
//	source = "https://files.pythonhosted.org/.../requests-2.31.0-py3-none-any.whl"
//	digest = "sha256:58cd..."
//	dependencies = ["certifi>=2017.4.17", "urllib3<3,>=1.21.1"]
//
// Marshal output is byte-identical for identical resolutions. Unmarshal
// rejects structurally invalid documents with CORRUPT_LOCKFILE.
package lockfile

import (
	"bytes"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/resolve"
	"github.com/matzehuels/pypackages/pkg/version"
)

// FormatVersion is the lockfile schema version written by this package.
const FormatVersion = 1

const header = "# This file is generated by pypackages. Do not edit by hand.\n"

// Lockfile is the persisted snapshot of a resolution.
type Lockfile struct {
	Version          int     `toml:"version"`
	Python           string  `toml:"python"`
	RequirementsHash string  `toml:"requirements-hash"`
	Packages         []Entry `toml:"package"`
}

// Entry pins one package.
type Entry struct {
	Name         string          `toml:"name"`
	Version      version.Version `toml:"version"`
	Source       string          `toml:"source"`
	Direct       bool            `toml:"direct,omitempty"`
	Digest       string          `toml:"digest"`
	Extras       []string        `toml:"extras,omitempty"`
	Dependencies []string        `toml:"dependencies"`
}

// SourceInfo returns the entry's artifact location as an index source.
func (e Entry) SourceInfo() index.Source {
	kind := index.SourceIndex
	if e.Direct {
		kind = index.SourceURL
	}
	return index.Source{Kind: kind, URL: e.Source, Filename: path.Base(stripQuery(e.Source))}
}

// Requirements parses the entry's dependency strings.
func (e Entry) Requirements() ([]requirement.Requirement, error) {
	return requirement.ParseAll(e.Dependencies)
}

// FromGraph snapshots g. roots are the project's declared requirements,
// including ones whose markers are inactive, and feed the requirements hash.
func FromGraph(g *resolve.Graph, python string, roots []requirement.Requirement) *Lockfile {
	lf := &Lockfile{
		Version:          FormatVersion,
		Python:           python,
		RequirementsHash: RequirementsHash(roots, python),
		Packages:         make([]Entry, 0, g.Len()),
	}
	for _, n := range g.Nodes() {
		deps := make([]string, 0, len(n.Dependencies))
		for _, d := range n.Dependencies {
			if s := d.String(); !slices.Contains(deps, s) {
				deps = append(deps, s)
			}
		}
		slices.Sort(deps)
		lf.Packages = append(lf.Packages, Entry{
			Name:         n.Name,
			Version:      n.Version,
			Source:       n.Source.URL,
			Direct:       n.Source.Kind == index.SourceURL,
			Digest:       n.Digest,
			Extras:       slices.Clone(n.Extras),
			Dependencies: deps,
		})
	}
	return lf
}

// Entry looks up a package by name.
func (lf *Lockfile) Entry(name string) (Entry, bool) {
	name = requirement.NormalizeName(name)
	i, ok := slices.BinarySearchFunc(lf.Packages, name, func(e Entry, n string) int { return strings.Compare(e.Name, n) })
	if !ok {
		return Entry{}, false
	}
	return lf.Packages[i], true
}

// Locked returns the pinned versions, for use as resolver preferences.
func (lf *Lockfile) Locked() map[string]version.Version {
	out := make(map[string]version.Version, len(lf.Packages))
	for _, e := range lf.Packages {
		out[e.Name] = e.Version
	}
	return out
}

// Graph rebuilds a resolution graph from the lockfile for roots active in
// env. The graph is not validated; call Validate first when that matters.
func (lf *Lockfile) Graph(roots []requirement.Requirement, env requirement.Environment) (*resolve.Graph, error) {
	nodes := make([]*resolve.Node, 0, len(lf.Packages))
	for _, e := range lf.Packages {
		deps, err := e.Requirements()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorruptLockfile, err, "package %s", e.Name)
		}
		nodes = append(nodes, &resolve.Node{
			Name:         e.Name,
			Version:      e.Version,
			Source:       e.SourceInfo(),
			Digest:       e.Digest,
			Extras:       slices.Clone(e.Extras),
			Dependencies: deps,
		})
	}
	return resolve.NewGraph(activeRoots(roots, env), nodes), nil
}

// Marshal renders the lockfile. Entries are sorted by name and dependency
// lists are sorted, so equal lockfiles always produce equal bytes.
func (lf *Lockfile) Marshal() ([]byte, error) {
	out := *lf
	out.Packages = slices.Clone(lf.Packages)
	slices.SortFunc(out.Packages, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	for i := range out.Packages {
		e := &out.Packages[i]
		e.Dependencies = slices.Sorted(slices.Values(e.Dependencies))
		if e.Dependencies == nil {
			e.Dependencies = []string{}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode lockfile")
	}
	return buf.Bytes(), nil
}

// Unmarshal parses and checks a lockfile. Syntax errors, unknown schema
// versions, missing fields, unparsable versions or requirements and
// duplicate packages all fail with CORRUPT_LOCKFILE.
func Unmarshal(data []byte) (*Lockfile, error) {
	var lf Lockfile
	md, err := toml.Decode(string(data), &lf)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorruptLockfile, err, "parse lockfile")
	}
	if !md.IsDefined("version") {
		return nil, errors.New(errors.ErrCodeCorruptLockfile, "missing version")
	}
	if lf.Version != FormatVersion {
		return nil, errors.New(errors.ErrCodeCorruptLockfile, "unsupported lockfile version %d", lf.Version)
	}
	if lf.Python == "" {
		return nil, errors.New(errors.ErrCodeCorruptLockfile, "missing python")
	}

	seen := make(map[string]bool, len(lf.Packages))
	for i := range lf.Packages {
		e := &lf.Packages[i]
		if err := checkEntry(*e, i); err != nil {
			return nil, err
		}
		if seen[e.Name] {
			return nil, errors.New(errors.ErrCodeCorruptLockfile, "duplicate package %s", e.Name)
		}
		seen[e.Name] = true
		if e.Dependencies == nil {
			e.Dependencies = []string{}
		}
	}
	slices.SortFunc(lf.Packages, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return &lf, nil
}

func checkEntry(e Entry, i int) error {
	where := fmt.Sprintf("package #%d", i+1)
	if e.Name != "" {
		where = "package " + e.Name
	}
	switch {
	case e.Name == "":
		return errors.New(errors.ErrCodeCorruptLockfile, "%s: missing name", where)
	case e.Name != requirement.NormalizeName(e.Name):
		return errors.New(errors.ErrCodeCorruptLockfile, "%s: name is not normalized", where)
	case e.Version.IsZero():
		return errors.New(errors.ErrCodeCorruptLockfile, "%s: missing version", where)
	case e.Source == "":
		return errors.New(errors.ErrCodeCorruptLockfile, "%s: missing source", where)
	}
	if e.Digest != "" && !strings.HasPrefix(e.Digest, "sha256:") {
		return errors.New(errors.ErrCodeCorruptLockfile, "%s: unsupported digest %q", where, e.Digest)
	}
	if _, err := e.Requirements(); err != nil {
		return errors.Wrap(errors.ErrCodeCorruptLockfile, err, "%s: bad dependency", where)
	}
	return nil
}

func activeRoots(roots []requirement.Requirement, env requirement.Environment) []requirement.Requirement {
	var out []requirement.Requirement
	for _, r := range roots {
		if r.Applies(env) {
			out = append(out, r.WithoutMarker())
		}
	}
	return out
}

func stripQuery(u string) string {
	u, _, _ = strings.Cut(u, "#")
	u, _, _ = strings.Cut(u, "?")
	return u
}
