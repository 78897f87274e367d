package config

// Configuration keys understood by Get. These mirror the VIGIL_* environment
// variables and YAML keys.
const (
	KeyLearningMode          = "learning_mode"
	KeyStoragePath           = "storage_path"
	KeyMaxMemoryMB           = "max_memory_mb"
	KeyMaxStorageMB          = "max_storage_mb"
	KeyMaxCPUPercent         = "max_cpu_percent"
	KeyMaxErrorsPerOperation = "max_errors_per_operation"
	KeyCircuitBreakerTimeout = "circuit_breaker_timeout"
	KeyPatternCacheCapacity  = "pattern_cache_capacity"
	KeyEventWindowSize       = "event_window_size"
	KeyWriteQueueSize        = "write_queue_size"
	KeyWriteWorkers          = "write_workers"
	KeyMinSampleSize         = "min_sample_size"
)

// Get returns the configuration value for a key, or nil for unknown keys.
// It reads from the current snapshot, so it is safe to call concurrently
// with Reload.
func (c *Controller) Get(key string) any {
	cfg := c.Snapshot()
	switch key {
	case KeyLearningMode:
		return cfg.Mode.String()
	case KeyStoragePath:
		return cfg.StoragePath
	case KeyMaxMemoryMB:
		return cfg.MaxMemoryMB
	case KeyMaxStorageMB:
		return cfg.MaxStorageMB
	case KeyMaxCPUPercent:
		return cfg.MaxCPUPercent
	case KeyMaxErrorsPerOperation:
		return cfg.MaxErrorsPerOperation
	case KeyCircuitBreakerTimeout:
		return cfg.CircuitBreakerTimeout
	case KeyPatternCacheCapacity:
		return cfg.PatternCacheCapacity
	case KeyEventWindowSize:
		return cfg.EventWindowSize
	case KeyWriteQueueSize:
		return cfg.WriteQueueSize
	case KeyWriteWorkers:
		return cfg.WriteWorkers
	case KeyMinSampleSize:
		return cfg.MinSampleSize
	default:
		return nil
	}
}

// Settings returns all known keys and their current values, for display.
func (c *Controller) Settings() map[string]any {
	keys := []string{
		KeyLearningMode, KeyStoragePath, KeyMaxMemoryMB, KeyMaxStorageMB,
		KeyMaxCPUPercent, KeyMaxErrorsPerOperation, KeyCircuitBreakerTimeout,
		KeyPatternCacheCapacity, KeyEventWindowSize, KeyWriteQueueSize,
		KeyWriteWorkers, KeyMinSampleSize,
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = c.Get(k)
	}
	return out
}
