package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/pipeline"
)

// installCommand creates the install command (lock + sync).
func (c *CLI) installCommand() *cobra.Command {
	var groups []string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Lock dependencies and install them into __pypackages__",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject(groups)
			if err != nil {
				return err
			}
			defer p.Close()
			if err := p.connect(cmd.Context()); err != nil {
				return err
			}

			res, err := c.lock(cmd.Context(), p)
			if err != nil {
				return err
			}
			return c.sync(cmd.Context(), p, res.Lockfile)
		},
	}

	c.groupFlag(cmd, &groups)

	return cmd
}

// syncCommand creates the sync command.
func (c *CLI) syncCommand() *cobra.Command {
	var groups []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Install exactly what pypackages.lock pins",
		Long: `Make __pypackages__ match pypackages.lock without resolving.

Packages already installed at the locked digest are left alone and packages the
lockfile does not list are removed. The lockfile must exist and still satisfy
the manifest; run "pypackages lock" otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject(groups)
			if err != nil {
				return err
			}
			defer p.Close()

			lf, err := p.readLock()
			if err != nil {
				return err
			}
			if lf == nil {
				printNextStep("Create one with", "pypackages lock")
				return errors.New(errors.ErrCodeInvalidInput, "%s not found", lockfile.DefaultName)
			}
			if err := p.connect(cmd.Context()); err != nil {
				return err
			}
			env := p.runner.Environment(p.runner.Python(p.manifest))
			if err := lf.Validate(p.manifest.Requirements, env); err != nil {
				printNextStep("Update it with", "pypackages lock")
				return err
			}
			return c.sync(cmd.Context(), p, lf)
		},
	}

	c.groupFlag(cmd, &groups)

	return cmd
}

// sync materializes lf and prints the report.
func (c *CLI) sync(ctx context.Context, p *project, lf *lockfile.Lockfile) error {
	var status *statusLine
	if c.interactive() {
		status = newStatusLine(ctx, "Installing")
		status.Start()
		p.runner.Progress = status.Advance
	}
	report, err := p.runner.Sync(ctx, p.dir, lf)
	if status != nil {
		status.Stop()
		p.runner.Progress = nil
	}
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}
	return report.Err()
}

// printReport prints one line per changed package and a summary.
func printReport(r *pipeline.Report) {
	for _, s := range r.Succeeded {
		printSuccess("Installed %s", StyleHighlight.Render(s))
	}
	for _, name := range r.Removed {
		printInfo("Removed %s", name)
	}
	for _, f := range r.Failed {
		printError("%s %s: %s", f.Name, f.Version, errors.UserMessage(f.Err))
	}
	printCounts(
		count{len(r.Succeeded), "installed"},
		count{len(r.Unchanged), "unchanged"},
		count{len(r.Removed), "removed"},
		count{len(r.Failed), "failed"},
	)
}
