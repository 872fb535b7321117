package install

import (
	"path/filepath"

	"github.com/matzehuels/pypackages/pkg/requirement"
)

// DirName is the per-project directory holding every environment.
const DirName = "__pypackages__"

// Layout locates an isolated library tree:
//
//	<project>/__pypackages__/
//	    .lock
//	    <python>/
//	        lib/<name>/INSTALLED
//	        .staging/
type Layout struct {
	Project string
	Python  string // "3.11"
}

// NewLayout returns the layout for project and interpreter version python.
func NewLayout(project, python string) Layout {
	return Layout{Project: project, Python: python}
}

// Root is the __pypackages__ directory.
func (l Layout) Root() string { return filepath.Join(l.Project, DirName) }

// Lib is the directory holding one subdirectory per installed package.
func (l Layout) Lib() string { return filepath.Join(l.Root(), l.Python, "lib") }

// Staging is where packages are extracted before commit. It lives on the
// same filesystem as Lib so commits are plain renames.
func (l Layout) Staging() string { return filepath.Join(l.Root(), l.Python, ".staging") }

// LockPath is the advisory lock guarding every environment of the project.
func (l Layout) LockPath() string { return filepath.Join(l.Root(), ".lock") }

// PackageDir is the final location of a package.
func (l Layout) PackageDir(name string) string {
	return filepath.Join(l.Lib(), requirement.NormalizeName(name))
}
