package cli

import (
	"context"
	"os"
)

// Execute runs the pypackages CLI with os.Args and returns an error if any
// command fails. Errors are returned unprinted; the caller reports them
// and picks the exit code.
//
// Logging goes to stderr at info level; --verbose switches to debug and
// --quiet to warnings only. The logger is attached to the command context
// and reaches the pipeline through the runner.
//
// Example:
//
//	func main() {
//	    if err := cli.Execute(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
func Execute(ctx context.Context) error {
	c := New(os.Stderr, LogInfo)
	return c.RootCommand().ExecuteContext(ctx)
}
