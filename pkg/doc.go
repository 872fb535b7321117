// Package pkg provides the core libraries of pypackages, a per-project
// Python package manager.
//
// # Overview
//
// pypackages resolves a project's Python requirements against a package
// index, pins the result in a lockfile and installs the pinned artifacts
// into an isolated __pypackages__/<python>/lib directory. The pkg
// directory is organized into four areas:
//
//  1. Model - [version], [requirement]: PEP 440 versions and constraints,
//     PEP 508 requirements and environment markers
//  2. Core - [index], [resolve], [lockfile], [acquire], [archive],
//     [install]: from index query to committed package
//  3. Infrastructure - [cache], [httputil], [integrations], [config],
//     [errors], [observability]
//  4. Orchestration - [pipeline], [manifest], [render]
//
// # Architecture
//
// The data flow of "pypackages install":
//
//	pyproject.toml / requirements.txt
//	         ↓
//	    [manifest] package (root requirements + target interpreter)
//	         ↓
//	    [resolve] package (backtracking over [index] candidates)
//	         ↓
//	    [lockfile] package (pinned versions, sources, digests)
//	         ↓
//	    [acquire] package (concurrent verified downloads)
//	         ↓
//	    [archive] + [install] packages (safe extraction, atomic commit)
//
// # Quick Start
//
//	cfg, _ := config.Load(config.LoadOptions{})
//	backend, _ := pipeline.OpenCache(ctx, cfg.Cache)
//	runner := pipeline.NewRunner(cfg, pipeline.NewIndex(cfg, backend, ""), pipeline.NewFetcher(cfg), logger)
//
//	m, _ := manifest.Load("pyproject.toml")
//	res, _ := runner.Lock(ctx, m, nil)
//	report, _ := runner.Sync(ctx, ".", res.Lockfile)
//
// # Errors
//
// Every failure carries a machine-readable code from [errors]
// (UNSATISFIABLE, INTEGRITY_VIOLATION, ENVIRONMENT_LOCKED, ...). Check
// codes with errors.Is(err, code); structured details such as the
// resolver's conflict explanation are reachable with the standard
// errors.As.
//
// [version]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/version
// [requirement]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/requirement
// [index]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/index
// [resolve]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/resolve
// [lockfile]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/lockfile
// [acquire]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/acquire
// [archive]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/archive
// [install]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/install
// [cache]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/httputil
// [integrations]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/integrations
// [config]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/observability
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/pipeline
// [manifest]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/manifest
// [render]: https://pkg.go.dev/github.com/matzehuels/pypackages/pkg/render
package pkg
