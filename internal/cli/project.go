package cli

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	stderrors "errors"

	"github.com/matzehuels/pypackages/pkg/config"
	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/install"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/manifest"
	"github.com/matzehuels/pypackages/pkg/pipeline"
)

// project is a loaded project directory: configuration, manifest and the
// paths derived from them.
type project struct {
	dir      string
	cfg      *config.Config
	manifest *manifest.Manifest
	lockPath string

	runner *pipeline.Runner // set by connect
}

// loadConfig loads the layered configuration and applies the persistent
// flags on top.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{File: c.opts.configFile})
	if err != nil {
		return nil, err
	}
	if c.opts.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	return cfg, nil
}

// openProject loads the manifest of the selected project directory. groups
// adds optional dependency groups to the root requirements.
func (c *CLI) openProject(groups []string) (*project, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	dir := c.opts.project
	if dir == "" {
		dir = "."
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "project directory")
	}

	path, err := manifest.Find(dir)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		reqs, err := m.WithGroups(groups...)
		if err != nil {
			return nil, err
		}
		m.Requirements = reqs
	}
	if c.opts.python != "" {
		m.Python = c.opts.python
	}
	c.Logger.Debug("loaded manifest", "path", path, "type", m.Type, "requirements", len(m.Requirements))

	return &project{
		dir:      dir,
		cfg:      cfg,
		manifest: m,
		lockPath: filepath.Join(dir, lockfile.DefaultName),
	}, nil
}

// connect opens the index cache and builds the pipeline runner, which logs
// through the context's logger.
func (p *project) connect(ctx context.Context) error {
	backend, err := pipeline.OpenCache(ctx, p.cfg.Cache)
	if err != nil {
		return err
	}
	idx := pipeline.NewIndex(p.cfg, backend, p.manifest.IndexURL)
	p.runner = pipeline.NewRunner(p.cfg, idx, pipeline.NewFetcher(p.cfg), loggerFromContext(ctx))
	p.runner.Cache = backend
	return nil
}

// Close releases the runner's resources.
func (p *project) Close() error {
	if p.runner == nil {
		return nil
	}
	return p.runner.Close()
}

// python returns the interpreter the project targets.
func (p *project) python() string {
	if p.manifest.Python != "" {
		return p.manifest.Python
	}
	return p.cfg.Python
}

// layout returns the environment layout for the project's interpreter.
func (p *project) layout() install.Layout {
	return install.NewLayout(p.dir, p.python())
}

// readLock reads the project's lockfile; a missing file yields nil.
func (p *project) readLock() (*lockfile.Lockfile, error) {
	lf, err := lockfile.Read(p.lockPath)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return lf, err
}

// name labels the project in rendered output.
func (p *project) name() string {
	if p.manifest.Name != "" {
		return p.manifest.Name
	}
	return filepath.Base(p.dir)
}

// exists reports whether path exists.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
