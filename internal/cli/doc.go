// Package cli implements the pypackages command-line interface.
//
// The CLI is a thin cobra layer over pkg/pipeline: it loads the
// configuration and the project manifest, builds a [pipeline.Runner] and
// prints the outcome with lipgloss styling.
//
// # Commands
//
//   - lock: resolve dependencies and write pypackages.lock
//   - install: lock, then sync
//   - sync: make __pypackages__ match the lockfile exactly
//   - remove: uninstall packages from the environment
//   - list: show installed packages (table, json or yaml)
//   - tree: show the dependency graph (text, dot or svg)
//   - cache: clear or locate the index response cache
//   - version, completion
//
// # Logging
//
// Logs go to stderr through charmbracelet/log. --verbose (-v) enables
// debug output and --quiet (-q) limits it to warnings. The logger is also
// attached to the command context.
package cli
