package cli

import (
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for pypackages.

Besides commands and flags, completions cover the package names installed in
the project (remove) and the manifest's optional dependency groups (--group).`,
		Example: `  source <(pypackages completion bash)
  pypackages completion zsh > "${fpath[1]}/_pypackages"
  pypackages completion fish > ~/.config/fish/completions/pypackages.fish
  pypackages completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, out := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// groupFlag registers --group on cmd with completion of the manifest's
// optional dependency groups.
func (c *CLI) groupFlag(cmd *cobra.Command, groups *[]string) {
	cmd.Flags().StringSliceVarP(groups, "group", "g", nil, "include optional dependency groups")
	_ = cmd.RegisterFlagCompletionFunc("group", c.completeGroups)
}

func (c *CLI) completeGroups(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	p, err := c.openProject(nil)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(p.manifest.Groups))
	for name := range p.manifest.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return matching(names, nil, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeInstalled completes the names of installed packages not yet on
// the command line.
func (c *CLI) completeInstalled(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	p, err := c.openProject(nil)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	pkgs, err := listInstalled(p.layout(), nil)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		names = append(names, pkg.Name)
	}
	return matching(names, args, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func matching(names, exclude []string, prefix string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, strings.ToLower(prefix)) && !slices.Contains(exclude, n) {
			out = append(out, n)
		}
	}
	return out
}
