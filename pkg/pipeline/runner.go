package pipeline

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pypackages/pkg/acquire"
	"github.com/matzehuels/pypackages/pkg/cache"
	"github.com/matzehuels/pypackages/pkg/config"
	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/install"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/manifest"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/resolve"
)

// Runner executes the lock and sync stages.
//
// The Runner is stateless apart from its collaborators; one Runner may
// serve several projects, one run at a time per project directory.
type Runner struct {
	Index   index.Client
	Fetcher acquire.Fetcher
	Config  *config.Config
	Logger  *log.Logger

	// Cache is closed by [Runner.Close]; may be nil.
	Cache cache.Cache

	// Progress, when set, is called by Sync from a single goroutine with
	// the number of finished installs, the number planned and the pin of
	// the package that just finished.
	Progress func(done, total int, pin string)
}

// NewRunner creates a runner. A nil cfg uses [config.Default] and a nil
// logger discards output.
func NewRunner(cfg *config.Config, idx index.Client, f acquire.Fetcher, logger *log.Logger) *Runner {
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Index: idx, Fetcher: f, Config: cfg, Logger: logger}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// Python returns the target interpreter for m: the manifest's choice,
// else the configured one.
func (r *Runner) Python(m *manifest.Manifest) string {
	if m != nil && m.Python != "" {
		return m.Python
	}
	return r.Config.Python
}

// Environment returns the marker environment for interpreter python.
func (r *Runner) Environment(python string) requirement.Environment {
	return requirement.DefaultEnvironment(python)
}

// Lock produces a lockfile for m. When prev is still valid for the
// manifest and interpreter it is returned unchanged; otherwise the
// dependencies are resolved again, preferring the versions prev locked.
func (r *Runner) Lock(ctx context.Context, m *manifest.Manifest, prev *lockfile.Lockfile) (*LockResult, error) {
	python := r.Python(m)
	env := r.Environment(python)

	if prev != nil {
		err := prev.Validate(m.Requirements, env)
		if err == nil {
			g, err := prev.Graph(m.Requirements, env)
			if err == nil {
				r.Logger.Info("lockfile is up to date", "packages", len(prev.Packages))
				return &LockResult{Lockfile: prev, Graph: g, Reused: true}, nil
			}
		}
		r.Logger.Debug("lockfile is stale", "reason", err)
	}

	opts, err := r.resolveOptions(env)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.Python == python {
		opts.Locked = prev.Locked()
	}

	start := time.Now()
	g, err := resolve.New(r.Index).Resolve(ctx, m.Requirements, opts)
	if err != nil {
		return nil, err
	}
	lf := lockfile.FromGraph(g, python, m.Requirements)
	if err := r.fillDigests(ctx, lf); err != nil {
		return nil, err
	}
	r.Logger.Info("resolved dependencies", "packages", g.Len(), "python", python, "duration", time.Since(start).Round(time.Millisecond))
	return &LockResult{Lockfile: lf, Graph: g}, nil
}

func (r *Runner) resolveOptions(env requirement.Environment) (resolve.Options, error) {
	pre, err := r.Config.PrereleasePolicy()
	if err != nil {
		return resolve.Options{}, err
	}
	src, err := r.Config.SourcePolicy()
	if err != nil {
		return resolve.Options{}, err
	}
	overrides := make(map[string]string, len(r.Config.Resolve.URLOverrides))
	for name, u := range r.Config.Resolve.URLOverrides {
		overrides[requirement.NormalizeName(name)] = u
	}
	return resolve.Options{
		Prereleases:   pre,
		SourcePolicy:  src,
		URLOverrides:  overrides,
		Environment:   env,
		Compatible:    index.DefaultCompatible(env),
		PrefetchWidth: r.Config.Resolve.PrefetchWidth,
		Logger:        r.Logger,
	}, nil
}

// fillDigests hashes direct references the index could not vouch for, so
// later syncs verify against the content seen at lock time.
func (r *Runner) fillDigests(ctx context.Context, lf *lockfile.Lockfile) error {
	var a *acquire.Acquirer
	for i, e := range lf.Packages {
		if e.Digest != "" {
			continue
		}
		if a == nil {
			a = r.acquirer("")
		}
		d, err := a.Digest(ctx, e)
		if err != nil {
			return err
		}
		lf.Packages[i].Digest = d
		r.Logger.Warn("recorded digest of unverified direct reference", "package", e.Name, "source", e.Source, "digest", d)
	}
	return nil
}

func (r *Runner) acquirer(tempDir string) *acquire.Acquirer {
	opts := r.Config.AcquireOptions()
	opts.TempDir = tempDir
	opts.Logger = r.Logger
	return acquire.New(r.Fetcher, opts)
}

// Sync makes the project's environment for lf.Python match lf exactly.
//
// The environment lock is held for the whole run. Packages whose installed
// record matches their entry are left alone and reported as unchanged;
// the rest are downloaded concurrently and committed one by one as their
// downloads complete. Packages absent from lf are removed afterwards.
//
// Per-package failures are collected in the report. The returned error is
// reserved for failures of the run itself: the lock cannot be taken, the
// environment cannot be prepared, or ctx is cancelled.
func (r *Runner) Sync(ctx context.Context, project string, lf *lockfile.Lockfile) (*Report, error) {
	layout := install.NewLayout(project, lf.Python)
	lock, err := install.Lock(ctx, layout, r.Config.Lock.Wait)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.Logger.Warn("release environment lock", "err", err)
		}
	}()

	env, err := install.Open(layout, install.Options{Limits: r.Config.Limits(), Logger: r.Logger})
	if err != nil {
		return nil, err
	}
	if err := env.CleanStaging(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "clean staging")
	}

	report := &Report{Python: lf.Python}
	var todo []lockfile.Entry
	for _, e := range lf.Packages {
		rec, ok, err := env.Installed(e.Name)
		if err != nil {
			return nil, err
		}
		if ok && rec.Matches(e) {
			report.Unchanged = append(report.Unchanged, pin(e))
			continue
		}
		todo = append(todo, e)
	}
	r.Logger.Debug("planned sync", "install", len(todo), "unchanged", len(report.Unchanged))

	start := time.Now()
	r.progress(0, len(todo), "")
	finished := 0
	for res := range r.acquirer(layout.Staging()).Acquire(ctx, todo) {
		r.materialize(ctx, env, res, report)
		finished++
		r.progress(finished, len(todo), pin(res.Entry))
	}
	if err := ctx.Err(); err != nil {
		report.sort()
		return report, err
	}

	keep := make(map[string]bool, len(lf.Packages))
	for _, e := range lf.Packages {
		keep[e.Name] = true
	}
	removed, err := env.Prune(ctx, keep)
	report.Removed = removed
	report.sort()
	if err != nil {
		return report, errors.Wrap(errors.ErrCodeInternal, err, "prune environment")
	}

	r.Logger.Info("synced environment",
		"installed", len(report.Succeeded),
		"unchanged", len(report.Unchanged),
		"failed", len(report.Failed),
		"removed", len(report.Removed),
		"duration", time.Since(start).Round(time.Millisecond))
	return report, nil
}

// materialize stages and commits one downloaded package. It runs on the
// single goroutine draining the acquirer's results.
func (r *Runner) materialize(ctx context.Context, env *install.Environment, res acquire.Result, report *Report) {
	p := install.NewPackage(res.Entry)
	fail := func(err error) {
		r.Logger.Error("install failed", "package", p.Entry.Name, "version", p.Entry.Version, "err", err)
		report.Failed = append(report.Failed, Failure{Name: p.Entry.Name, Version: p.Entry.Version.String(), Err: err})
	}
	if res.Err != nil {
		env.Fail(p, res.Err)
		fail(res.Err)
		return
	}
	defer os.Remove(res.Path)

	if err := env.Stage(ctx, p, res.Path); err != nil {
		fail(err)
		return
	}
	if _, err := env.Commit(ctx, p); err != nil {
		fail(err)
		return
	}
	report.Succeeded = append(report.Succeeded, pin(p.Entry))
}

func (r *Runner) progress(done, total int, pin string) {
	if r.Progress != nil && total > 0 {
		r.Progress(done, total, pin)
	}
}

func pin(e lockfile.Entry) string { return e.Name + "==" + e.Version.String() }
