package safety

import (
	"io/fs"
	"os"
	"path/filepath"
)

// StorageMonitor checks the learning storage directory's on-disk footprint
// against a configured ceiling. Like the resource monitor, it fails closed
// on I/O errors.
type StorageMonitor struct {
	dir          string
	maxStorageMB int
}

// NewStorageMonitor creates a monitor for the given directory. A
// non-positive ceiling disables the check.
func NewStorageMonitor(dir string, maxStorageMB int) *StorageMonitor {
	return &StorageMonitor{dir: dir, maxStorageMB: maxStorageMB}
}

// StorageAvailable reports whether the storage directory is under its
// ceiling. A directory that does not exist yet counts as empty.
func (s *StorageMonitor) StorageAvailable() bool {
	if s.maxStorageMB <= 0 {
		return true
	}
	usedMB, err := s.usageMB()
	if err != nil {
		return false
	}
	return usedMB <= float64(s.maxStorageMB)
}

// UsageMB returns the summed size of all files under the storage directory
// in MB. Returns 0 on error.
func (s *StorageMonitor) UsageMB() float64 {
	mb, err := s.usageMB()
	if err != nil {
		return 0
	}
	return mb
}

func (s *StorageMonitor) usageMB() (float64, error) {
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return 0, nil
	}

	var total int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return float64(total) / (1024 * 1024), nil
}
