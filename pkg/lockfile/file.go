package lockfile

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/requirement"
)

// DefaultName is the lockfile name inside a project directory.
const DefaultName = "pypackages.lock"

// Read loads and checks the lockfile at path. A missing file is reported
// with an error satisfying errors.Is(err, fs.ErrNotExist).
func Read(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lf, err := Unmarshal(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorruptLockfile, err, "read %s", path)
	}
	return lf, nil
}

// Write stores lf at path. The document is written to a temporary file in
// the same directory and renamed into place, so readers see either the old
// or the new lockfile, never a torn one.
func Write(path string, lf *Lockfile) error {
	data, err := lf.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lock-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// RequirementsHash fingerprints a project's declared requirements and
// target interpreter. Declaration order and spelling differences that
// normalize away do not change the hash.
func RequirementsHash(roots []requirement.Requirement, python string) string {
	lines := make([]string, 0, len(roots))
	for _, r := range roots {
		lines = append(lines, r.String())
	}
	slices.Sort(lines)
	lines = slices.Compact(lines)

	h := xxhash.New()
	_, _ = h.WriteString("python=" + python + "\n")
	for _, l := range lines {
		_, _ = h.WriteString(l)
		_, _ = h.WriteString("\n")
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// Fresh reports whether lf can be reused for roots in env without
// resolving again.
func (lf *Lockfile) Fresh(roots []requirement.Requirement, env requirement.Environment) bool {
	return lf.Validate(roots, env) == nil
}

// Validate checks that lf can be installed as-is for roots in env: the
// requirements are unchanged, every active requirement and dependency is
// pinned to a satisfying entry, and requested extras were resolved. Any
// mismatch fails with STALE_LOCKFILE.
func (lf *Lockfile) Validate(roots []requirement.Requirement, env requirement.Environment) error {
	if lf.Python != env.PythonVersion {
		return errors.New(errors.ErrCodeStaleLockfile, "lockfile targets python %s, environment is %s", lf.Python, env.PythonVersion)
	}
	if lf.RequirementsHash != RequirementsHash(roots, lf.Python) {
		return errors.New(errors.ErrCodeStaleLockfile, "project requirements changed since the lockfile was written")
	}
	g, err := lf.Graph(roots, env)
	if err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeStaleLockfile, err, "lockfile is inconsistent")
	}
	for _, r := range g.Roots() {
		e, _ := lf.Entry(r.Name)
		if missing := missingExtras(r.Extras, e.Extras); len(missing) > 0 {
			return errors.New(errors.ErrCodeStaleLockfile, "%s extras [%s] are not locked", r.Name, strings.Join(missing, ","))
		}
	}
	for _, e := range lf.Packages {
		deps, _ := e.Requirements()
		for _, d := range deps {
			t, _ := lf.Entry(d.Name)
			if missing := missingExtras(d.Extras, t.Extras); len(missing) > 0 {
				return errors.New(errors.ErrCodeStaleLockfile, "%s requires %s extras [%s], which are not locked", e.Name, d.Name, strings.Join(missing, ","))
			}
		}
	}
	return nil
}

func missingExtras(want, have []string) []string {
	var out []string
	for _, x := range want {
		if !slices.Contains(have, x) {
			out = append(out, x)
		}
	}
	return out
}
