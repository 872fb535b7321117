package install

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// swap moves staged to final. An existing final directory is replaced
// atomically where the platform allows it, and otherwise moved aside and
// restored if the second rename fails. On success previous names the
// replaced contents, still inside scratch, for the caller to delete.
func swap(staged, final, scratch string) (previous string, err error) {
	if _, err := os.Lstat(final); os.IsNotExist(err) {
		return "", os.Rename(staged, final)
	}
	if ok, err := exchange(staged, final); ok {
		if err != nil {
			return "", err
		}
		// staged now holds the previous install.
		return staged, nil
	}

	aside := filepath.Join(scratch, filepath.Base(final)+"-previous-"+uuid.NewString())
	if err := os.Rename(final, aside); err != nil {
		return "", err
	}
	if err := os.Rename(staged, final); err != nil {
		if restoreErr := os.Rename(aside, final); restoreErr != nil {
			return "", restoreErr
		}
		return "", err
	}
	return aside, nil
}
