package core

import (
	"sync"

	"github.com/ShayCichocki/vigil/internal/config"
)

var (
	defaultMu   sync.Mutex
	defaultCore *Core
)

// Default returns the process-wide Core, creating it on first use with
// configuration loaded from the given path (empty for the XDG default).
// Subsequent calls return the same instance regardless of the path.
func Default(configPath string) (*Core, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCore != nil {
		return defaultCore, nil
	}

	ctrl, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	c, err := New(ctrl)
	if err != nil {
		return nil, err
	}
	defaultCore = c
	return defaultCore, nil
}

// ResetDefault shuts down and clears the process-wide Core. Intended for
// tests that need a fresh instance.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCore != nil {
		defaultCore.Shutdown()
		defaultCore = nil
	}
}
