package install

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/version"
)

// RecordName is the installed-record file inside each package directory.
const RecordName = "INSTALLED"

// Record describes a committed package. It is written into the staged
// directory before commit, so it becomes visible together with the files.
type Record struct {
	Name        string          `toml:"name"`
	Version     version.Version `toml:"version"`
	Digest      string          `toml:"digest"`
	Source      string          `toml:"source"`
	Files       []string        `toml:"files"`
	Modules     []string        `toml:"modules,omitempty"`
	InstalledAt time.Time       `toml:"installed_at"`

	Path string `toml:"-"` // package directory, set when read
}

// Matches reports whether the record is the artifact e pins.
func (r *Record) Matches(e lockfile.Entry) bool {
	return r.Name == e.Name && version.Equal(r.Version, e.Version) && r.Digest == e.Digest
}

func writeRecord(dir string, rec *Record) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(rec); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode record for %s", rec.Name)
	}
	return os.WriteFile(filepath.Join(dir, RecordName), buf.Bytes(), 0o644)
}

// readRecord loads the record of the package in dir. A directory without
// a readable record reports ok=false.
func readRecord(dir string) (*Record, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, RecordName))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec Record
	if _, err := toml.Decode(string(data), &rec); err != nil || rec.Name == "" || rec.Version.IsZero() {
		return nil, false, nil
	}
	rec.Path = dir
	return &rec, true, nil
}
