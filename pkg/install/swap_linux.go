//go:build linux

package install

import (
	"errors"

	"golang.org/x/sys/unix"
)

// exchange swaps two paths with renameat2(RENAME_EXCHANGE). ok is false
// when the kernel or filesystem does not support the flag.
func exchange(a, b string) (ok bool, err error) {
	err = unix.Renameat2(unix.AT_FDCWD, a, unix.AT_FDCWD, b, unix.RENAME_EXCHANGE)
	if errors.Is(err, unix.ENOSYS) || errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP) {
		return false, nil
	}
	return true, err
}
