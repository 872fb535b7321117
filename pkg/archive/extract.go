package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/pypackages/pkg/errors"
)

// Limits bounds what Extract is willing to write.
type Limits struct {
	MaxBytes int64 // total decompressed bytes, 0 means DefaultMaxBytes
	MaxFiles int   // number of entries, 0 means DefaultMaxFiles
}

const (
	DefaultMaxBytes int64 = 1 << 30
	DefaultMaxFiles       = 100_000
)

func (l Limits) withDefaults() Limits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultMaxFiles
	}
	return l
}

// Manifest describes an extracted package tree.
type Manifest struct {
	Root    string   // directory holding the package contents
	Files   []string // regular files relative to Root, slash separated, sorted
	Modules []string // top-level importable module and package names, sorted
	Skipped []string // in-root links and special files that were not written
	Bytes   int64    // decompressed bytes written
}

// UnsafeEntryError reports an archive member that would be written outside
// the extraction root.
type UnsafeEntryError struct {
	Path   string
	Reason string
}

func (e *UnsafeEntryError) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s", e.Path, e.Reason)
}

func unsafeEntry(p, reason string) error {
	return errors.Wrap(errors.ErrCodeUnsafeArchiveEntry, &UnsafeEntryError{Path: p, Reason: reason}, "refusing to extract")
}

// Extract writes the regular files and directories of r below dest, which
// must exist and should be empty. Any member resolving outside dest, by its
// own path or as a link target, aborts with UNSAFE_ARCHIVE_ENTRY before
// anything is written for it. Exceeding limits aborts with
// ARCHIVE_TOO_LARGE. Links that stay inside the root are skipped.
//
// For a rooted reader (an sdist) whose members all live under one
// top-level directory, that directory is flattened into dest. Wheels are
// written as stored.
//
// On error dest may hold a partial tree; callers extract into a staging
// directory and discard it.
func Extract(ctx context.Context, r Reader, dest string, limits Limits) (*Manifest, error) {
	limits = limits.withDefaults()
	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Root: root}
	tops := make(map[string]bool)
	var count int

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if count++; count > limits.MaxFiles {
			return nil, errors.New(errors.ErrCodeArchiveTooLarge, "archive has more than %d entries", limits.MaxFiles)
		}

		rel, err := localPath(e.Path)
		if err != nil {
			return nil, err
		}
		if rel == "." {
			continue
		}
		top, _, nested := strings.Cut(rel, "/")
		if nested || e.IsDir() {
			tops[top+"/"] = true
		} else {
			tops[top] = true
		}
		target := filepath.Join(root, filepath.FromSlash(rel))

		switch e.Type {
		case TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
		case TypeFile:
			if e.Size > limits.MaxBytes-m.Bytes {
				return nil, tooLarge(limits)
			}
			n, err := writeFile(e, target, limits.MaxBytes-m.Bytes)
			m.Bytes += n
			if err != nil {
				return nil, err
			}
			m.Files = append(m.Files, rel)
		case TypeSymlink, TypeHardlink:
			if err := checkLink(e, rel); err != nil {
				return nil, err
			}
			m.Skipped = append(m.Skipped, rel)
		default:
			m.Skipped = append(m.Skipped, rel)
		}
	}

	if r.Rooted() {
		if err := flatten(m, tops); err != nil {
			return nil, err
		}
	}
	slices.Sort(m.Files)
	m.Files = slices.Compact(m.Files)
	m.Modules = modules(m.Files)
	return m, nil
}

// localPath cleans an entry name and rejects names that are absolute or
// climb out of the root.
func localPath(name string) (string, error) {
	p := strings.ReplaceAll(name, `\`, "/")
	if p == "" {
		return "", unsafeEntry(name, "empty name")
	}
	if strings.HasPrefix(p, "/") || filepath.VolumeName(p) != "" || (len(p) > 1 && p[1] == ':') {
		return "", unsafeEntry(name, "absolute path")
	}
	p = path.Clean(p)
	if p == "." {
		return p, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", unsafeEntry(name, "path escapes the extraction root")
	}
	return p, nil
}

// checkLink rejects links whose target leaves the root. Symlink targets
// resolve relative to the link's directory; hardlink targets relative to
// the archive root.
func checkLink(e Entry, rel string) error {
	if e.Link == "" {
		return unsafeEntry(e.Path, "link without target")
	}
	t := strings.ReplaceAll(e.Link, `\`, "/")
	if strings.HasPrefix(t, "/") || (len(t) > 1 && t[1] == ':') {
		return unsafeEntry(e.Path, "link to absolute path "+e.Link)
	}
	if e.Type == TypeSymlink {
		t = path.Join(path.Dir(rel), t)
	}
	t = path.Clean(t)
	if t == ".." || strings.HasPrefix(t, "../") {
		return unsafeEntry(e.Path, "link target "+e.Link+" escapes the extraction root")
	}
	return nil
}

func tooLarge(l Limits) error {
	return errors.New(errors.ErrCodeArchiveTooLarge, "archive expands beyond %d bytes", l.MaxBytes)
}

// writeFile copies at most budget bytes of e to target. Declared sizes are
// not trusted; the copy stops one byte past the budget.
func writeFile(e Entry, target string, budget int64) (n int64, err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}
	src, err := e.Open()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", e.Path)
	}
	defer src.Close()

	perm := os.FileMode(0o644)
	if e.Mode&0o111 != 0 {
		perm = 0o755
	}
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	n, err = io.Copy(dst, io.LimitReader(src, budget+1))
	if err != nil {
		return n, errors.Wrap(errors.ErrCodeInvalidInput, err, "extract %s", e.Path)
	}
	if n > budget {
		return n, errors.New(errors.ErrCodeArchiveTooLarge, "archive expands beyond the size limit at %s", e.Path)
	}
	return n, nil
}

// flatten moves the contents of a single shared top-level directory up
// into the root.
func flatten(m *Manifest, tops map[string]bool) error {
	if len(tops) != 1 {
		return nil
	}
	var top string
	for t := range tops {
		top = t
	}
	name, isDir := strings.CutSuffix(top, "/")
	if !isDir {
		return nil
	}

	aside := filepath.Join(m.Root, ".flatten-"+uuid.NewString())
	if err := os.Rename(filepath.Join(m.Root, name), aside); err != nil {
		return err
	}
	children, err := os.ReadDir(aside)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(aside, c.Name()), filepath.Join(m.Root, c.Name())); err != nil {
			return err
		}
	}
	if err := os.Remove(aside); err != nil {
		return err
	}

	prefix := name + "/"
	for i, f := range m.Files {
		m.Files[i] = strings.TrimPrefix(f, prefix)
	}
	for i, s := range m.Skipped {
		m.Skipped[i] = strings.TrimPrefix(s, prefix)
	}
	return nil
}

// modules lists the top-level import names a tree provides: packages with
// an __init__.py, single-file modules and compiled extensions, looking
// through a src/ layout when present.
func modules(files []string) []string {
	var out []string
	add := func(name string) {
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, f := range files {
		f = strings.TrimPrefix(f, "src/")
		dir, file := path.Split(f)
		switch {
		case dir == "" && strings.HasSuffix(file, ".py") && file != "setup.py":
			add(strings.TrimSuffix(file, ".py"))
		case dir == "" && (strings.HasSuffix(file, ".so") || strings.HasSuffix(file, ".pyd")):
			name, _, _ := strings.Cut(file, ".")
			add(name)
		case file == "__init__.py" && strings.Count(dir, "/") == 1:
			add(strings.TrimSuffix(dir, "/"))
		}
	}
	slices.Sort(out)
	return out
}
