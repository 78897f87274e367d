// Package safety provides the failure-isolation infrastructure for the
// learning core: per-operation circuit breakers and advisory resource gates.
// Nothing in this package is allowed to panic or return an error to the
// caller; it is the last line of defense.
package safety

import (
	"log"
	"sync"
	"time"
)

// breakerState tracks failures for one operation name.
type breakerState struct {
	errorCount  int
	lastFailure time.Time
}

// FailureManager is a per-operation circuit breaker. After MaxErrors
// consecutive recorded failures an operation is considered unsafe until
// Timeout has elapsed since the last failure, at which point the breaker
// closes again on its own. Failures resuming after the reset re-open it.
type FailureManager struct {
	maxErrors int
	timeout   time.Duration

	mu    sync.Mutex
	state map[string]*breakerState
}

// NewFailureManager creates a FailureManager. maxErrors <= 0 and
// timeout <= 0 fall back to conservative defaults.
func NewFailureManager(maxErrors int, timeout time.Duration) *FailureManager {
	if maxErrors <= 0 {
		maxErrors = 5
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &FailureManager{
		maxErrors: maxErrors,
		timeout:   timeout,
		state:     make(map[string]*breakerState),
	}
}

// RecordFailure increments the error counter for an operation and records
// the failure time. It never panics, even if its own bookkeeping goes wrong.
func (f *FailureManager) RecordFailure(operation string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[safety] failure bookkeeping panicked for %s: %v", operation, r)
		}
	}()

	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.state[operation]
	if !ok {
		st = &breakerState{}
		f.state[operation] = st
	}
	st.errorCount++
	st.lastFailure = time.Now()

	if st.errorCount == f.maxErrors+1 {
		log.Printf("[safety] circuit opened for %s after %d errors (last: %v)", operation, st.errorCount, err)
	}
}

// OperationSafe reports whether an operation may be attempted. The breaker
// auto-closes once the timeout has elapsed since the last recorded failure.
func (f *FailureManager) OperationSafe(operation string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.state[operation]
	if !ok {
		return true
	}
	if st.errorCount <= f.maxErrors {
		return true
	}
	if time.Since(st.lastFailure) >= f.timeout {
		// Cooldown elapsed: close the breaker and start counting fresh.
		st.errorCount = 0
		return true
	}
	return false
}

// Reset manually closes the breaker for an operation.
func (f *FailureManager) Reset(operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, operation)
}

// BreakerStatus describes one operation's breaker for health reporting.
type BreakerStatus struct {
	Operation   string    `json:"operation"`
	ErrorCount  int       `json:"error_count"`
	Open        bool      `json:"open"`
	LastFailure time.Time `json:"last_failure"`
}

// Snapshot returns the current breaker states, for HealthStatus.
func (f *FailureManager) Snapshot() []BreakerStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]BreakerStatus, 0, len(f.state))
	for op, st := range f.state {
		out = append(out, BreakerStatus{
			Operation:   op,
			ErrorCount:  st.errorCount,
			Open:        st.errorCount > f.maxErrors && time.Since(st.lastFailure) < f.timeout,
			LastFailure: st.lastFailure,
		})
	}
	return out
}
