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

// Pipfile parses pipenv's Pipfile. [packages] become the root
// requirements, [dev-packages] the "dev" group and
// [requires].python_version the target interpreter. [[source]] entries
// point at simple-API indexes and are not used.
type Pipfile struct{}

func (p *Pipfile) Type() string              { return "Pipfile" }
func (p *Pipfile) Supports(name string) bool { return name == "Pipfile" }

type pipfileDoc struct {
	Packages    map[string]any `toml:"packages"`
	DevPackages map[string]any `toml:"dev-packages"`
	Requires    struct {
		PythonVersion     string `toml:"python_version"`
		PythonFullVersion string `toml:"python_full_version"`
	} `toml:"requires"`
}

// pipfileMarkers are the table keys pipenv accepts as single-variable
// markers, e.g. sys_platform = "== 'win32'".
var pipfileMarkers = []string{
	"implementation_name", "implementation_version", "os_name", "platform_machine",
	"platform_python_implementation", "platform_system", "python_full_version",
	"python_version", "sys_platform",
}

func (p *Pipfile) Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc pipfileDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}

	m := &Manifest{Path: path, Type: p.Type(), Python: doc.Requires.PythonVersion}
	if m.Python == "" {
		m.Python = doc.Requires.PythonFullVersion
	}

	specs, err := pipfileSpecs(doc.Packages)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
	}
	if m.Requirements, err = parseSpecs(path, "packages", specs); err != nil {
		return nil, err
	}

	if len(doc.DevPackages) > 0 {
		specs, err := pipfileSpecs(doc.DevPackages)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
		}
		dev, err := parseSpecs(path, "dev-packages", specs)
		if err != nil {
			return nil, err
		}
		m.Groups = map[string][]requirement.Requirement{"dev": dev}
	}
	return m, nil
}

// pipfileSpecs converts a Pipfile package table to PEP 508 strings in
// name order.
//
//	requests = "*"
//	flask = { version = ">=2.0", extras = ["async"] }
//	pywin32 = { version = "*", sys_platform = "== 'win32'" }
//	mylib = { file = "https://example.com/mylib-1.0-py3-none-any.whl" }
func pipfileSpecs(pkgs map[string]any) ([]string, error) {
	var specs []string
	for _, name := range slices.Sorted(maps.Keys(pkgs)) {
		switch v := pkgs[name].(type) {
		case string:
			specs = append(specs, name+poetryVersion(v))
		case map[string]any:
			s, err := pipfileTable(name, v)
			if err != nil {
				return nil, err
			}
			if s != "" {
				specs = append(specs, s)
			}
		default:
			return nil, fmt.Errorf("package %s: unsupported value %v", name, v)
		}
	}
	return specs, nil
}

func pipfileTable(name string, t map[string]any) (string, error) {
	if _, ok := t["path"]; ok {
		return "", nil
	}
	for _, vcs := range []string{"git", "hg", "svn", "bzr"} {
		if _, ok := t[vcs]; ok {
			return "", fmt.Errorf("package %s: %s sources are not supported", name, vcs)
		}
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
	if file, ok := t["file"].(string); ok {
		b.WriteString(" @ " + file)
	} else if v, ok := t["version"].(string); ok {
		b.WriteString(poetryVersion(v))
	}

	var markers []string
	if m, ok := t["markers"].(string); ok && m != "" {
		markers = append(markers, m)
	}
	for _, key := range pipfileMarkers {
		if cond, ok := t[key].(string); ok && cond != "" {
			markers = append(markers, key+" "+strings.TrimSpace(cond))
		}
	}
	if len(markers) == 1 {
		b.WriteString(" ; " + markers[0])
	} else if len(markers) > 1 {
		b.WriteString(" ; (" + strings.Join(markers, ") and (") + ")")
	}
	return b.String(), nil
}
