package safety

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ResourceMonitor performs point-in-time checks of process memory and CPU
// against configured ceilings. Checks fail closed: if sampling itself fails,
// resources are reported unavailable rather than risking an overcommit.
type ResourceMonitor struct {
	maxMemoryMB   int
	maxCPUPercent float64

	mu          sync.Mutex
	lastCPUTime time.Duration // cumulative process CPU at last sample
	lastSample  time.Time
}

// NewResourceMonitor creates a monitor with the given ceilings. Non-positive
// ceilings disable the respective check.
func NewResourceMonitor(maxMemoryMB int, maxCPUPercent float64) *ResourceMonitor {
	return &ResourceMonitor{
		maxMemoryMB:   maxMemoryMB,
		maxCPUPercent: maxCPUPercent,
	}
}

// ResourceAvailable reports whether the process is within its memory and CPU
// ceilings. Any sampling failure counts as unavailable.
func (r *ResourceMonitor) ResourceAvailable() bool {
	if r.maxMemoryMB > 0 {
		rssMB, err := r.memoryMB()
		if err != nil {
			return false
		}
		if rssMB > float64(r.maxMemoryMB) {
			return false
		}
	}

	if r.maxCPUPercent > 0 {
		cpu, err := r.cpuPercent()
		if err != nil {
			return false
		}
		if cpu > r.maxCPUPercent {
			return false
		}
	}

	return true
}

// MemoryUsageMB returns the current process memory in MB, for gauges.
// Returns 0 on sampling failure.
func (r *ResourceMonitor) MemoryUsageMB() float64 {
	mb, err := r.memoryMB()
	if err != nil {
		return 0
	}
	return mb
}

// memoryMB samples resident set size from /proc/self/statm, falling back to
// the Go heap when procfs is unavailable.
func (r *ResourceMonitor) memoryMB() (float64, error) {
	data, err := os.ReadFile("/proc/self/statm")
	if err == nil {
		fields := strings.Fields(string(data))
		if len(fields) >= 2 {
			pages, perr := strconv.ParseInt(fields[1], 10, 64)
			if perr == nil {
				return float64(pages) * float64(os.Getpagesize()) / (1024 * 1024), nil
			}
		}
		return 0, fmt.Errorf("malformed /proc/self/statm: %q", string(data))
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.Sys) / (1024 * 1024), nil
}

// cpuPercent estimates recent CPU usage from /proc/self/stat utime+stime
// deltas between calls. The first call has no baseline and reports 0.
func (r *ResourceMonitor) cpuPercent() (float64, error) {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return 0, err
	}

	// Field 2 (comm) may contain spaces; skip past the closing paren.
	idx := strings.LastIndexByte(string(data), ')')
	if idx < 0 {
		return 0, fmt.Errorf("malformed /proc/self/stat")
	}
	fields := strings.Fields(string(data)[idx+1:])
	// utime and stime are fields 14 and 15 of the full line; after stripping
	// pid and comm they sit at offsets 11 and 12.
	if len(fields) < 13 {
		return 0, fmt.Errorf("short /proc/self/stat: %d fields", len(fields))
	}
	utime, err := strconv.ParseInt(fields[11], 10, 64)
	if err != nil {
		return 0, err
	}
	stime, err := strconv.ParseInt(fields[12], 10, 64)
	if err != nil {
		return 0, err
	}

	const clockTick = 100 // USER_HZ on linux
	cpuTime := time.Duration(utime+stime) * time.Second / clockTick
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastSample.IsZero() {
		r.lastCPUTime = cpuTime
		r.lastSample = now
		return 0, nil
	}

	wall := now.Sub(r.lastSample)
	used := cpuTime - r.lastCPUTime
	r.lastCPUTime = cpuTime
	r.lastSample = now

	if wall <= 0 {
		return 0, nil
	}
	return 100 * float64(used) / float64(wall), nil
}
