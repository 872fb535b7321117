package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/pipeline"
)

// lockCommand creates the lock command.
func (c *CLI) lockCommand() *cobra.Command {
	var groups []string

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Resolve dependencies and write pypackages.lock",
		Long: `Resolve the project's dependencies and write pypackages.lock.

An existing lockfile that still satisfies the manifest is kept as is. When the
manifest changed, previously locked versions are preferred so that only what
must change does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject(groups)
			if err != nil {
				return err
			}
			defer p.Close()
			if err := p.connect(cmd.Context()); err != nil {
				return err
			}

			_, err = c.lock(cmd.Context(), p)
			return err
		},
	}

	c.groupFlag(cmd, &groups)

	return cmd
}

// lock resolves p (reusing a valid lockfile) and writes the result.
func (c *CLI) lock(ctx context.Context, p *project) (*pipeline.LockResult, error) {
	prev, err := p.readLock()
	if err != nil {
		if !errors.Is(err, errors.ErrCodeCorruptLockfile) {
			return nil, err
		}
		printWarning("Ignoring unreadable lockfile: %s", errors.UserMessage(err))
		prev = nil
	}

	var status *statusLine
	if c.interactive() {
		status = newStatusLine(ctx, "Resolving dependencies")
		status.Start()
	}
	prog := newProgress(c.Logger)
	res, err := p.runner.Lock(ctx, p.manifest, prev)
	if status != nil {
		status.Stop()
	}
	if err != nil {
		printError("Resolution failed")
		return nil, err
	}

	if res.Reused {
		printSuccess("Lockfile is up to date")
	} else {
		if err := lockfile.Write(p.lockPath, res.Lockfile); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", p.lockPath)
		}
		prog.done("Wrote lockfile", "packages", len(res.Lockfile.Packages))
		printSuccess("Locked %d packages for Python %s", len(res.Lockfile.Packages), res.Lockfile.Python)
		printFile(p.lockPath)
	}
	printStats(res.Graph.Len(), len(res.Graph.Edges()), res.Reused)
	return res, nil
}
