package install

import (
	"github.com/matzehuels/pypackages/pkg/archive"
	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/lockfile"
)

// State is a package's position in the install lifecycle.
type State int

const (
	Planned State = iota
	Staged
	Committed
	Failed
)

var stateNames = [...]string{"planned", "staged", "committed", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

var transitions = map[State][]State{
	Planned: {Staged, Failed},
	Staged:  {Committed, Failed},
}

// Package tracks one lock entry through Planned, Staged and then
// Committed or Failed.
type Package struct {
	Entry    lockfile.Entry
	State    State
	Manifest *archive.Manifest
	Record   *Record // set once Committed
	Err      error   // set once Failed

	staged string
}

// NewPackage plans the installation of e.
func NewPackage(e lockfile.Entry) *Package {
	return &Package{Entry: e, State: Planned}
}

func (p *Package) transition(to State) error {
	for _, s := range transitions[p.State] {
		if s == to {
			p.State = to
			return nil
		}
	}
	return errors.New(errors.ErrCodeInternal, "%s: illegal transition %s -> %s", p.Entry.Name, p.State, to)
}
