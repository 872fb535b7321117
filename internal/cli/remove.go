package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/pypackages/pkg/install"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/requirement"
)

// removeCommand creates the remove command.
func (c *CLI) removeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove installed packages from __pypackages__",
		Long: `Remove installed packages from the project environment.

The manifest and lockfile are not edited: a package that is still locked is
installed again by the next sync.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeInstalled,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := c.openProject(nil)
			if err != nil {
				return err
			}
			lf, err := p.readLock()
			if err != nil {
				c.Logger.Debug("lockfile unreadable", "err", err)
			}

			layout := p.layout()
			lock, err := install.Lock(ctx, layout, p.cfg.Lock.Wait)
			if err != nil {
				return err
			}
			defer lock.Release()

			env, err := install.Open(layout, install.Options{Limits: p.cfg.Limits(), Logger: c.Logger})
			if err != nil {
				return err
			}
			for _, arg := range args {
				name := requirement.NormalizeName(arg)
				rec, ok, err := env.Installed(name)
				if err != nil {
					return err
				}
				if !ok {
					printInfo("%s is not installed", name)
					continue
				}
				if err := env.Remove(ctx, name); err != nil {
					return err
				}
				printSuccess("Removed %s %s", name, rec.Version)
				if lf != nil {
					if _, locked := lf.Entry(name); locked {
						printWarning("%s is still in %s and will be reinstalled by sync", name, lockfile.DefaultName)
					}
				}
			}
			return nil
		},
	}
}
