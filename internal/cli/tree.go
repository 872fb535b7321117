package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/pipeline"
)

// treeCommand creates the tree command.
func (c *CLI) treeCommand() *cobra.Command {
	var (
		format string
		output string
		groups []string
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the resolved dependency graph",
		Long: `Show the project's dependency graph.

The graph comes from pypackages.lock when it is up to date; otherwise the
dependencies are resolved without writing a lockfile.

Formats:
  text  indented tree (default)
  dot   Graphviz DOT source
  svg   rendered Graphviz graph`,
		Example: `  pypackages tree
  pypackages tree --format svg -o deps.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidateFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := c.openProject(groups)
			if err != nil {
				return err
			}
			defer p.Close()
			if err := p.connect(ctx); err != nil {
				return err
			}

			prev, err := p.readLock()
			if err != nil {
				c.Logger.Warn("ignoring lockfile", "err", err)
				prev = nil
			}
			res, err := p.runner.Lock(ctx, p.manifest, prev)
			if err != nil {
				return err
			}
			data, err := pipeline.Render(ctx, res.Graph, format, p.name())
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", output)
			}
			printSuccess("Rendered %d packages", res.Graph.Len())
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatText, "output format: text, dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	c.groupFlag(cmd, &groups)

	return cmd
}
