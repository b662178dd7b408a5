package runloop

import (
	"sync"
	"time"
)

// Settings is a snapshot of caller-tunable run options resolved from
// whatever configuration source the embedding application uses.
type Settings struct {
	MaxIterations     int
	Temperature       float64
	Profile           string
	Model             string
	AskBeforeContinue bool
}

// RunConfig converts a settings snapshot into a RunConfig.
func (s Settings) RunConfig() RunConfig {
	return RunConfig{
		MaxIterations:     s.MaxIterations,
		Temperature:       s.Temperature,
		Profile:           s.Profile,
		Model:             s.Model,
		AskBeforeContinue: s.AskBeforeContinue,
	}
}

// SettingsCache memoizes a Settings value with an explicit timestamp. The
// cache is passed by reference into whatever needs it; there is no hidden
// package-level state. Safe for concurrent use.
type SettingsCache struct {
	mu       sync.Mutex
	value    Settings
	cachedAt time.Time
	loader   func() (Settings, error)
}

// NewSettingsCache builds a cache around the given loader. The loader is
// invoked on the first Get and again whenever the cached value is older
// than the TTL.
func NewSettingsCache(loader func() (Settings, error)) *SettingsCache {
	return &SettingsCache{loader: loader}
}

// Get returns the cached settings, reloading when the entry is missing or
// older than ttl. A reload failure with a previously cached value falls
// back to the stale value.
func (c *SettingsCache) Get(ttl time.Duration) (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cachedAt.IsZero() && time.Since(c.cachedAt) < ttl {
		return c.value, nil
	}

	v, err := c.loader()
	if err != nil {
		if !c.cachedAt.IsZero() {
			return c.value, nil
		}
		return Settings{}, err
	}
	c.value = v
	c.cachedAt = time.Now()
	return v, nil
}

// Invalidate clears the cached value so the next Get reloads.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
