package manifest

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/requirement"
)

// Pyproject parses pyproject.toml. PEP 621 [project] dependencies win; a
// project that only declares [tool.poetry.dependencies] is read from there.
type Pyproject struct{}

func (p *Pyproject) Type() string              { return "pyproject.toml" }
func (p *Pyproject) Supports(name string) bool { return name == "pyproject.toml" }

type pyprojectFile struct {
	Project struct {
		Name                 string              `toml:"name"`
		RequiresPython       string              `toml:"requires-python"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
	Tool struct {
		Pypackages struct {
			Python   string `toml:"python"`
			IndexURL string `toml:"index-url"`
		} `toml:"pypackages"`
		Poetry struct {
			Name         string         `toml:"name"`
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (p *Pyproject) Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc pyprojectFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}

	m := &Manifest{
		Path:           path,
		Type:           p.Type(),
		Name:           doc.Project.Name,
		Python:         doc.Tool.Pypackages.Python,
		RequiresPython: doc.Project.RequiresPython,
		IndexURL:       doc.Tool.Pypackages.IndexURL,
	}

	specs := doc.Project.Dependencies
	if len(specs) == 0 && len(doc.Tool.Poetry.Dependencies) > 0 {
		if m.Name == "" {
			m.Name = doc.Tool.Poetry.Name
		}
		var python string
		specs, python, err = poetrySpecs(doc.Tool.Poetry.Dependencies)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
		}
		if m.RequiresPython == "" {
			m.RequiresPython = python
		}
	}
	if m.Requirements, err = parseSpecs(path, "dependencies", specs); err != nil {
		return nil, err
	}

	if len(doc.Project.OptionalDependencies) > 0 {
		m.Groups = make(map[string][]requirement.Requirement, len(doc.Project.OptionalDependencies))
		for _, g := range slices.Sorted(maps.Keys(doc.Project.OptionalDependencies)) {
			reqs, err := parseSpecs(path, "optional-dependencies."+g, doc.Project.OptionalDependencies[g])
			if err != nil {
				return nil, err
			}
			m.Groups[requirement.NormalizeName(g)] = reqs
		}
	}
	return m, nil
}

func parseSpecs(path, field string, specs []string) ([]requirement.Requirement, error) {
	out := make([]requirement.Requirement, 0, len(specs))
	for i, s := range specs {
		r, err := requirement.Parse(s)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s: %s[%d]", path, field, i)
		}
		out = append(out, r)
	}
	return out, nil
}

// poetrySpecs converts a [tool.poetry.dependencies] table to PEP 508
// strings in name order. The "python" key is returned separately.
//
//	requests = "^2.28"
//	uvicorn = { version = ">=0.20", extras = ["standard"], markers = "sys_platform != 'win32'" }
//	mylib = { url = "https://example.com/mylib-1.0-py3-none-any.whl" }
func poetrySpecs(deps map[string]any) (specs []string, python string, err error) {
	for _, name := range slices.Sorted(maps.Keys(deps)) {
		switch v := deps[name].(type) {
		case string:
			if name == "python" {
				python = v
				continue
			}
			specs = append(specs, name+poetryVersion(v))
		case map[string]any:
			s, err := poetryTable(name, v)
			if err != nil {
				return nil, "", err
			}
			if s != "" {
				specs = append(specs, s)
			}
		default:
			return nil, "", fmt.Errorf("dependency %s: unsupported value %v", name, v)
		}
	}
	return specs, python, nil
}

func poetryTable(name string, t map[string]any) (string, error) {
	if _, ok := t["path"]; ok {
		return "", nil
	}
	if _, ok := t["git"]; ok {
		return "", fmt.Errorf("dependency %s: git sources are not supported", name)
	}
	var b strings.Builder
	b.WriteString(name)
	if extras, ok := t["extras"].([]any); ok && len(extras) > 0 {
		parts := make([]string, 0, len(extras))
		for _, e := range extras {
			parts = append(parts, fmt.Sprint(e))
		}
		b.WriteString("[" + strings.Join(parts, ",") + "]")
	}
	if url, ok := t["url"].(string); ok {
		b.WriteString(" @ " + url)
	} else if v, ok := t["version"].(string); ok {
		b.WriteString(poetryVersion(v))
	}
	if markers, ok := t["markers"].(string); ok && markers != "" {
		b.WriteString(" ; " + markers)
	}
	return b.String(), nil
}

// poetryVersion turns a poetry constraint into a specifier suffix. Bare
// versions mean "==" in poetry; carets and tildes are understood by the
// constraint parser directly.
func poetryVersion(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "" || v == "*":
		return ""
	case strings.ContainsAny(v[:1], "<>=!~^"):
		return v
	}
	return "==" + v
}
