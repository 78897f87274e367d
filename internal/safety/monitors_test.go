package safety

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResourceMonitor_NoCeilings(t *testing.T) {
	rm := NewResourceMonitor(0, 0)
	if !rm.ResourceAvailable() {
		t.Errorf("ResourceAvailable() = false with no ceilings, want true")
	}
}

func TestResourceMonitor_GenerousCeiling(t *testing.T) {
	rm := NewResourceMonitor(1<<20, 0) // 1TB, cannot be exceeded
	if !rm.ResourceAvailable() {
		t.Errorf("ResourceAvailable() = false under a 1TB ceiling, want true")
	}
}

func TestResourceMonitor_TinyMemoryCeiling(t *testing.T) {
	rm := NewResourceMonitor(1, 0) // 1MB, any Go process exceeds this
	if rm.ResourceAvailable() {
		t.Errorf("ResourceAvailable() = true under a 1MB ceiling, want false")
	}
}

func TestResourceMonitor_MemoryGauge(t *testing.T) {
	rm := NewResourceMonitor(0, 0)
	if got := rm.MemoryUsageMB(); got <= 0 {
		t.Errorf("MemoryUsageMB() = %v, want > 0", got)
	}
}

func TestStorageMonitor_MissingDirCountsEmpty(t *testing.T) {
	sm := NewStorageMonitor(filepath.Join(t.TempDir(), "does-not-exist"), 10)
	if !sm.StorageAvailable() {
		t.Errorf("StorageAvailable() = false for missing dir, want true")
	}
	if got := sm.UsageMB(); got != 0 {
		t.Errorf("UsageMB() = %v for missing dir, want 0", got)
	}
}

func TestStorageMonitor_UnderCeiling(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "small.db"), make([]byte, 1024), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	sm := NewStorageMonitor(dir, 10)
	if !sm.StorageAvailable() {
		t.Errorf("StorageAvailable() = false for 1KB under 10MB ceiling, want true")
	}
}

func TestStorageMonitor_OverCeiling(t *testing.T) {
	dir := t.TempDir()
	// 2MB of data against a 1MB ceiling.
	if err := os.WriteFile(filepath.Join(dir, "big.db"), make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	sm := NewStorageMonitor(dir, 1)
	if sm.StorageAvailable() {
		t.Errorf("StorageAvailable() = true for 2MB over 1MB ceiling, want false")
	}
}

func TestStorageMonitor_NoCeiling(t *testing.T) {
	sm := NewStorageMonitor(t.TempDir(), 0)
	if !sm.StorageAvailable() {
		t.Errorf("StorageAvailable() = false with ceiling disabled, want true")
	}
}
