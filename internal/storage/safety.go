package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manav03panchal/couponvault/internal/errors"
)

const (
	// MinFreeSpace is the default free-space floor for opening a database (10MB).
	MinFreeSpace = 10 * 1024 * 1024
	// MinFreeSpaceWarning is the threshold for warning about low disk space (50MB).
	MinFreeSpaceWarning = 50 * 1024 * 1024
)

// DiskSpaceInfo contains information about available disk space.
type DiskSpaceInfo struct {
	Path       string
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
}

// FreePercent returns the percentage of free space.
func (d *DiskSpaceInfo) FreePercent() float64 {
	if d.TotalBytes == 0 {
		return 0
	}
	return float64(d.FreeBytes) / float64(d.TotalBytes) * 100
}

// CheckDiskSpace fails with ErrDiskFull when fewer than minFree bytes are
// available at path. A zero minFree uses MinFreeSpace. If the free space
// cannot be determined the check passes.
func CheckDiskSpace(path string, minFree uint64) error {
	if minFree == 0 {
		minFree = MinFreeSpace
	}
	info, err := GetDiskSpace(path)
	if err != nil {
		return nil
	}
	if info.FreeBytes < minFree {
		return errors.NewSystemError(
			fmt.Sprintf("insufficient disk space: %d MB free, need at least %d MB",
				info.FreeBytes/(1024*1024), minFree/(1024*1024)),
			errors.ErrDiskFull,
		)
	}
	return nil
}

// CheckDiskSpaceWarning returns a warning when disk space is low, or "".
func CheckDiskSpaceWarning(path string) string {
	info, err := GetDiskSpace(path)
	if err != nil {
		return ""
	}
	if info.FreeBytes < MinFreeSpaceWarning {
		return fmt.Sprintf("Warning: Low disk space (%d MB free)", info.FreeBytes/(1024*1024))
	}
	return ""
}

// SafeWrite writes data to path atomically (temp file + rename) after a
// disk space check. Used for export files.
func SafeWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := CheckDiskSpace(dir, uint64(len(data))+MinFreeSpace); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, ".couponvault-*.tmp")
	if err != nil {
		return diskError("create temp file", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return diskError("write", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return diskError("sync", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func diskError(op string, err error) error {
	if isDiskFullError(err) {
		return errors.NewSystemErrorWithOp(op, "disk full", errors.ErrDiskFull)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// EnsureDirectory creates path with owner-only permissions after a disk space check.
func EnsureDirectory(path string, minFree uint64) error {
	if err := CheckDiskSpace(filepath.Dir(path), minFree); err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return diskError("create directory", err)
	}
	return nil
}
