package fs

import (
	"os"

	"golang.org/x/sys/unix"
)

// writeLock is the advisory exclusive OS file lock serialising writers
// (spec.md §5 "writers are mutually excluded via an advisory OS file lock
// on write-lock"). Grounded on get_write_lock in fs_fs.c, which
// lazily creates the lock file and then blocks on svn_io_file_lock2.
type writeLock struct {
	file *os.File
}

// acquireWriteLock blocks until the exclusive lock on path is held.
func acquireWriteLock(path string) (*writeLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return &writeLock{file: f}, nil
}

// release drops the lock; a writer crashing without calling release is
// recovered automatically by the OS releasing the flock on process exit
// (spec.md §5 "A writer that crashes leaves orphan transaction
// directories", not an un-droppable lock).
func (l *writeLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	if err != nil {
		return err
	}
	return closeErr
}
