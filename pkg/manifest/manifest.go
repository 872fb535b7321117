// Package manifest loads a project's root requirements.
//
// Three formats are understood: pyproject.toml (PEP 621 [project] tables, and
// [tool.poetry] dependency tables), pipenv's Pipfile and pip-style
// requirements files. All produce the same [Manifest]: an ordered list of root requirements plus an
// optional target interpreter.
//
//	m, err := manifest.Load("pyproject.toml")
//	if err != nil {
//	    return err
//	}
//	g, err := resolver.Resolve(ctx, m.Requirements, opts)
package manifest

import (
	"os"
	"path/filepath"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/requirement"
)

// Manifest is the validated input of a resolution.
type Manifest struct {
	Path           string
	Type           string // parser that produced it
	Name           string // project name, when declared
	Python         string // target interpreter from [tool.pypackages], may be empty
	RequiresPython string // the project's own Requires-Python, informational
	IndexURL       string // from [tool.pypackages], may be empty

	Requirements []requirement.Requirement
	Groups       map[string][]requirement.Requirement // optional dependency groups
}

// WithGroups returns the root requirements plus those of the named
// optional groups, skipping requirements already present verbatim.
func (m *Manifest) WithGroups(names ...string) ([]requirement.Requirement, error) {
	out := append([]requirement.Requirement(nil), m.Requirements...)
	seen := make(map[string]bool, len(out))
	for _, r := range out {
		seen[r.String()] = true
	}
	for _, g := range names {
		reqs, ok := m.Groups[g]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "%s has no dependency group %q", m.Path, g)
		}
		for _, r := range reqs {
			if !seen[r.String()] {
				seen[r.String()] = true
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// Parser reads root requirements from one manifest format.
type Parser interface {
	// Parse reads the manifest at path.
	Parse(path string) (*Manifest, error)
	// Supports reports whether this parser handles the given filename.
	Supports(filename string) bool
	// Type returns the manifest type identifier.
	Type() string
}

// Parsers returns the built-in parsers in detection order.
func Parsers() []Parser {
	return []Parser{&Pyproject{}, &Pipfile{}, &Requirements{}}
}

// Detect finds a parser that supports the given file path.
func Detect(path string, parsers ...Parser) (Parser, error) {
	if len(parsers) == 0 {
		parsers = Parsers()
	}
	name := filepath.Base(path)
	for _, p := range parsers {
		if p.Supports(name) {
			return p, nil
		}
	}
	return nil, errors.New(errors.ErrCodeInvalidManifest, "unsupported manifest: %s", name)
}

// Load parses the manifest at path with the matching built-in parser.
func Load(path string) (*Manifest, error) {
	p, err := Detect(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(path)
}

// Find returns the manifest of the project in dir, preferring
// pyproject.toml, then Pipfile, then requirements.txt.
func Find(dir string) (string, error) {
	for _, name := range []string{"pyproject.toml", "Pipfile", "requirements.txt"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidManifest, "no pyproject.toml, Pipfile or requirements.txt in %s", dir)
}
