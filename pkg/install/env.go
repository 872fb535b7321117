package install

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pypackages/pkg/archive"
	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/observability"
	"github.com/matzehuels/pypackages/pkg/requirement"
)

// Options tunes an Environment.
type Options struct {
	Limits archive.Limits
	Logger *log.Logger
}

// Environment materializes packages into one interpreter's library tree.
// Its methods are safe for concurrent use; commits into the same package
// directory are serialized. Callers hold the project [FileLock] for the
// duration of a run so separate processes do not interleave.
type Environment struct {
	layout Layout
	limits archive.Limits
	logger *log.Logger

	mu    sync.Mutex
	names map[string]*sync.Mutex

	// beforeCommit runs after staging, right before the swap; tests use it
	// to inject failures.
	beforeCommit func(name string) error
	// removeAll deletes replaced installs.
	removeAll func(path string) error
}

// Open prepares the library and staging directories of layout.
func Open(layout Layout, opts Options) (*Environment, error) {
	for _, dir := range []string{layout.Lib(), layout.Staging()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dir)
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Environment{
		layout: layout,
		limits: opts.Limits,
		logger: opts.Logger,
		names:  make(map[string]*sync.Mutex),

		removeAll: os.RemoveAll,
	}, nil
}

// Layout returns the environment's directory layout.
func (env *Environment) Layout() Layout { return env.layout }

// Stage extracts the verified archive at archivePath into a fresh staging
// directory and writes the installed record into it. The final package
// directory is not touched. On error the staging directory is removed and
// p moves to Failed.
func (env *Environment) Stage(ctx context.Context, p *Package, archivePath string) error {
	if p.State != Planned {
		return p.transition(Staged)
	}
	dir := filepath.Join(env.layout.Staging(), p.Entry.Name+"-"+uuid.NewString())
	if err := env.stage(ctx, p, archivePath, dir); err != nil {
		_ = os.RemoveAll(dir)
		env.fail(p, err)
		return err
	}
	p.staged = dir
	return p.transition(Staged)
}

func (env *Environment) stage(ctx context.Context, p *Package, archivePath, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	r, err := archive.Open(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()
	if isZipSdist(p.Entry.SourceInfo().Filename) {
		r = archive.Sdist(r)
	}

	m, err := archive.Extract(ctx, r, dir, env.limits)
	if err != nil {
		return err
	}
	for _, s := range m.Skipped {
		env.logger.Debug("skipped archive member", "package", p.Entry.Name, "path", s)
	}
	if slices.Contains(m.Files, RecordName) {
		return errors.New(errors.ErrCodeUnsafeArchiveEntry, "%s ships its own %s file", p.Entry.Name, RecordName)
	}
	p.Manifest = m

	return writeRecord(dir, &Record{
		Name:        p.Entry.Name,
		Version:     p.Entry.Version,
		Digest:      p.Entry.Digest,
		Source:      p.Entry.Source,
		Files:       m.Files,
		Modules:     m.Modules,
		InstalledAt: time.Now().UTC().Truncate(time.Second),
	})
}

// isZipSdist reports whether filename names a zip source distribution
// rather than a wheel.
func isZipSdist(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".zip")
}

// Commit publishes a staged package at its final location in one atomic
// step: readers see either the previous install or the new one. On error
// the previous install is left in place, the staging directory is removed
// and p moves to Failed.
func (env *Environment) Commit(ctx context.Context, p *Package) (*Record, error) {
	name := p.Entry.Name
	ver := p.Entry.Version.String()
	if p.State != Staged {
		return nil, p.transition(Committed)
	}

	unlock := env.lockName(name)
	defer unlock()

	rec, err := env.commit(ctx, p)
	observability.Install().OnCommit(ctx, name, ver, err)
	if err != nil {
		_ = os.RemoveAll(p.staged)
		env.fail(p, err)
		return nil, err
	}
	p.Record = rec
	env.logger.Debug("committed", "package", name, "version", ver)
	return rec, p.transition(Committed)
}

func (env *Environment) commit(ctx context.Context, p *Package) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if env.beforeCommit != nil {
		if err := env.beforeCommit(p.Entry.Name); err != nil {
			return nil, err
		}
	}
	final := env.layout.PackageDir(p.Entry.Name)
	previous, err := swap(p.staged, final, env.layout.Staging())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "commit %s", p.Entry.Name)
	}
	p.staged = ""
	// The new install is live; a leftover is removed by CleanStaging.
	if previous != "" {
		if err := env.removeAll(previous); err != nil {
			env.logger.Warn("could not delete previous install", "package", p.Entry.Name, "path", previous, "err", err)
		}
	}
	rec, ok, err := readRecord(final)
	if err != nil || !ok {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read back record of %s", p.Entry.Name)
	}
	return rec, nil
}

// Fail marks p as failed, discarding anything it staged.
func (env *Environment) Fail(p *Package, cause error) {
	if p.staged != "" {
		_ = os.RemoveAll(p.staged)
	}
	env.fail(p, cause)
}

func (env *Environment) fail(p *Package, cause error) {
	p.staged = ""
	p.Err = cause
	if err := p.transition(Failed); err != nil {
		env.logger.Debug("ignored failure", "package", p.Entry.Name, "state", p.State, "err", cause)
	}
}

// Remove deletes an installed package. Removing a package that is not
// installed succeeds.
func (env *Environment) Remove(ctx context.Context, name string) error {
	name = requirement.NormalizeName(name)
	unlock := env.lockName(name)
	defer unlock()

	dir := env.layout.PackageDir(name)
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil
	}
	// The package leaves lib in one rename; only then is it deleted.
	trash := filepath.Join(env.layout.Staging(), name+"-removed-"+uuid.NewString())
	if err := os.Rename(dir, trash); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "remove %s", name)
	}
	observability.Install().OnRemove(ctx, name)
	env.logger.Debug("removed", "package", name)
	return os.RemoveAll(trash)
}

// Installed returns the record of an installed package.
func (env *Environment) Installed(name string) (*Record, bool, error) {
	return readRecord(env.layout.PackageDir(name))
}

// List returns the records of all installed packages sorted by name.
// Directories without a valid record are ignored.
func (env *Environment) List() ([]*Record, error) {
	entries, err := os.ReadDir(env.layout.Lib())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, ok, err := readRecord(filepath.Join(env.layout.Lib(), e.Name()))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Prune removes every package directory whose name is not in keep,
// including directories left without a record, and returns the removed
// names.
func (env *Environment) Prune(ctx context.Context, keep map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(env.layout.Lib())
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if !e.IsDir() || keep[e.Name()] {
			continue
		}
		if err := env.Remove(ctx, e.Name()); err != nil {
			return removed, err
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// CleanStaging removes staging leftovers from interrupted runs. Call it
// only while holding the project lock.
func (env *Environment) CleanStaging() error {
	entries, err := os.ReadDir(env.layout.Staging())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(env.layout.Staging(), e.Name())); err != nil {
			return err
		}
	}
	if len(entries) > 0 {
		env.logger.Debug("cleaned staging", "entries", len(entries))
	}
	return nil
}

func (env *Environment) lockName(name string) func() {
	env.mu.Lock()
	m, ok := env.names[name]
	if !ok {
		m = new(sync.Mutex)
		env.names[name] = m
	}
	env.mu.Unlock()
	m.Lock()
	return m.Unlock
}
