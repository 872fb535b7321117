package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pypackages/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "pypackages"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	opts   globalOpts
}

// globalOpts holds the persistent flags shared by every command.
type globalOpts struct {
	project    string // project directory
	python     string // target interpreter, overrides manifest and config
	configFile string // explicit config file
	verbose    bool
	quiet      bool
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level; debug output carries
// timestamps.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	c.Logger.SetReportTimestamp(level <= log.DebugLevel)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "pypackages installs Python dependencies into __pypackages__",
		Long: `pypackages resolves a project's Python dependencies, pins them in a lockfile
and installs them into an isolated __pypackages__/<python>/lib directory inside
the project.`,
		Version:       buildinfo.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.SetLogLevel(logLevel(c.opts.verbose, c.opts.quiet, c.Logger.GetLevel()))
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVarP(&c.opts.project, "project", "C", "", "project directory (default: current directory)")
	flags.StringVar(&c.opts.python, "python", "", "target Python version, e.g. 3.11")
	flags.StringVar(&c.opts.configFile, "config", "", "config file (default: $XDG_CONFIG_HOME/pypackages/pypackages.toml)")
	flags.BoolVarP(&c.opts.verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVarP(&c.opts.quiet, "quiet", "q", false, "only log warnings and errors")
	flags.BoolVar(&c.opts.noCache, "no-cache", false, "bypass the index response cache")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Register all subcommands
	root.AddCommand(c.lockCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.syncCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// interactive reports whether progress spinners should be shown.
func (c *CLI) interactive() bool {
	if c.opts.verbose || c.opts.quiet {
		return false
	}
	fi, err := os.Stderr.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
