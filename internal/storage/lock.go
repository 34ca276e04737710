package storage

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/manav03panchal/couponvault/internal/errors"
)

const (
	// LockFileName is the name of the lock file in the data directory.
	LockFileName = "couponvault.lock"

	lockPollInterval = 50 * time.Millisecond
)

var (
	// ErrLockAcquireFailed is returned when the lock file cannot be created or written.
	ErrLockAcquireFailed = stderrors.New("failed to acquire database lock")
	// ErrLockAlreadyHeld is returned when another process holds the lock.
	ErrLockAlreadyHeld = errors.ErrLockHeld
)

// FileLock is an advisory lock that keeps two couponvault processes from
// opening the same database. The holder's PID is written into the file.
type FileLock struct {
	path string
	file *os.File
	pid  int // holder seen on the last failed attempt
}

// NewFileLock creates a lock file handle in dir.
func NewFileLock(dir string) *FileLock {
	return &FileLock{path: filepath.Join(dir, LockFileName)}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire takes the lock or fails immediately with ErrLockAlreadyHeld.
func (l *FileLock) Acquire() error {
	if err := l.cleanStaleLock(); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	if err := flockAcquire(file); err != nil {
		file.Close()
		if stderrors.Is(err, ErrLockAlreadyHeld) {
			l.pid = l.readPID()
			if l.pid > 0 {
				return fmt.Errorf("%w: PID %d", ErrLockAlreadyHeld, l.pid)
			}
		}
		return err
	}

	if err := writePID(file); err != nil {
		_ = flockRelease(file)
		file.Close()
		return fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	l.file = file
	l.pid = 0
	return nil
}

// AcquireWithTimeout retries Acquire while another process holds the lock,
// for at most timeout.
func (l *FileLock) AcquireWithTimeout(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := l.Acquire()
		if err == nil || !stderrors.Is(err, ErrLockAlreadyHeld) || time.Now().After(deadline) {
			return err
		}
		time.Sleep(lockPollInterval)
	}
}

func writePID(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.Seek(0, 0); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(file, "%d", os.Getpid()); err != nil {
		return err
	}
	return file.Sync()
}

// Release unlocks and removes the lock file. Releasing twice is a no-op.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := flockRelease(l.file); err != nil {
		l.file.Close()
		l.file = nil
		return err
	}
	if err := l.file.Close(); err != nil {
		l.file = nil
		return err
	}
	l.file = nil

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// cleanStaleLock removes a lock file left behind by a process that no longer runs.
func (l *FileLock) cleanStaleLock() error {
	pid := l.readPID()
	if pid <= 0 || isProcessRunning(pid) {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clean stale lock: %v", err)
	}
	return nil
}

// readPID returns the PID recorded in the lock file, or 0.
func (l *FileLock) readPID() int {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// LockError is the user-facing form of a lock failure.
type LockError struct {
	Err error
	PID int
}

func (e *LockError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("cannot access database: another couponvault process (PID %d) is using it", e.PID)
	}
	return fmt.Sprintf("cannot access database: %v", e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// NewLockError wraps a lock failure, extracting the holder PID when present.
func NewLockError(err error) *LockError {
	lockErr := &LockError{Err: err}
	if !stderrors.Is(err, ErrLockAlreadyHeld) {
		return lockErr
	}
	if _, after, ok := strings.Cut(err.Error(), "PID "); ok {
		if pid, perr := strconv.Atoi(strings.TrimSpace(after)); perr == nil {
			lockErr.PID = pid
		}
	}
	return lockErr
}
