// Package pipeline orchestrates a pypackages run.
//
// # Stages
//
//  1. Lock: reuse the lockfile when it still satisfies the manifest,
//     otherwise resolve (preferring previously locked versions) and record
//     digests for direct references that have none
//  2. Sync: take the environment lock, skip packages whose installed record
//     matches the lockfile, download and verify the rest concurrently,
//     stage and commit each one, then prune packages the lockfile dropped
//
// Both stages are exposed on [Runner] so the CLI can run them together
// ("install") or separately ("lock", "sync").
//
//	runner := pipeline.NewRunner(cfg, idx, fetcher, logger)
//	res, err := runner.Lock(ctx, m, prev)
//	if err != nil {
//	    return err
//	}
//	report, err := runner.Sync(ctx, projectDir, res.Lockfile)
//
// Per-package download, integrity and extraction failures do not abort the
// run: they are collected in the [Report].
package pipeline

import (
	"slices"
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/resolve"
)

// LockResult is the outcome of [Runner.Lock].
type LockResult struct {
	Lockfile *lockfile.Lockfile
	Graph    *resolve.Graph
	// Reused is true when the previous lockfile was still valid and no
	// resolution ran.
	Reused bool
}

// Failure is a package that could not be installed.
type Failure struct {
	Name    string
	Version string
	Err     error
}

// Report summarizes a [Runner.Sync].
type Report struct {
	Python    string
	Succeeded []string // name==version, committed this run
	Unchanged []string // name==version, already installed and matching
	Failed    []Failure
	Removed   []string // names pruned because the lockfile dropped them
}

// OK reports whether every package is installed.
func (r *Report) OK() bool { return len(r.Failed) == 0 }

// Err summarizes failures as one error, or nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	names := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		names[i] = f.Name
	}
	first := r.Failed[0].Err
	code := errors.GetCode(first)
	if code == "" {
		code = errors.ErrCodeAcquisitionFailed
	}
	return errors.Wrap(code, first, "%d package(s) failed to install: %s", len(r.Failed), strings.Join(names, ", "))
}

func (r *Report) sort() {
	slices.Sort(r.Succeeded)
	slices.Sort(r.Unchanged)
	slices.Sort(r.Removed)
	slices.SortFunc(r.Failed, func(a, b Failure) int { return strings.Compare(a.Name, b.Name) })
}
