package runnable

import (
	"sync"
)

// globalDefaults holds the process-wide default configuration.
var globalDefaults = &configDefaults{}

// configDefaults guards the defaults applied beneath every call's config.
type configDefaults struct {
	mu  sync.RWMutex
	cfg Config
}

// SetDefaults merges cfg into the process-wide defaults. Defaults sit
// beneath the config of every top-level call, so a call's own keys win.
//
// Example:
//
//	runnable.SetDefaults(runnable.NewConfig().
//	    WithMaxConcurrency(4).
//	    WithTags("service:ingest"))
func SetDefaults(cfg Config) {
	globalDefaults.mu.Lock()
	defer globalDefaults.mu.Unlock()
	globalDefaults.cfg = globalDefaults.cfg.Merge(cfg)
}

// Defaults returns the current process-wide defaults.
func Defaults() Config {
	globalDefaults.mu.RLock()
	defer globalDefaults.mu.RUnlock()
	return globalDefaults.cfg
}

// ResetDefaults clears all process-wide defaults.
func ResetDefaults() {
	globalDefaults.mu.Lock()
	defer globalDefaults.mu.Unlock()
	globalDefaults.cfg = Config{}
}

// withDefaults layers cfg over the process-wide defaults for a root call.
func withDefaults(cfg Config) Config {
	d := Defaults()
	if d.Len() == 0 {
		return cfg
	}
	return d.Merge(cfg)
}
