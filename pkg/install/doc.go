// Package install materializes verified artifacts into a per-project,
// per-interpreter library tree (see [Layout]).
//
// Every package moves through a small state machine:
//
//	Planned -> Staged -> Committed
//	Planned -> Staged -> Failed
//	Planned -> Failed
//
// [Environment.Stage] extracts into a private staging directory and writes
// the [Record] there; [Environment.Commit] publishes the whole directory
// with a single rename (renameat2 RENAME_EXCHANGE on Linux when replacing).
// A reader of lib/ therefore sees a package's old contents or its new
// contents, never a mix, and a record is visible only alongside the files
// it describes.
//
// Separate processes are kept apart by [Lock], an advisory flock on
// __pypackages__/.lock.
package install
