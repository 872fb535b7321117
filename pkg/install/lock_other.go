//go:build !unix

package install

import (
	"os"
	"strconv"
)

// tryLock creates path exclusively. Unlike flock, a crashed process leaves
// the file behind and it has to be removed by hand.
func tryLock(path string) (l *FileLock, held bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if os.IsExist(err) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	return &FileLock{file: f, path: path}, false, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if rmErr := os.Remove(l.path); err == nil {
		err = rmErr
	}
	return err
}
