package generation

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"
)

// StandardLogoURL returns a placeholder logo for name without calling the image service.
func StandardLogoURL(name string) string {
	return "https://placehold.co/512x512/0000FF/FFFFFF/png?text=" + url.QueryEscape(name)
}

// LogoCache remembers generated logo URLs by prompt for the process lifetime.
// Concurrent requests for one prompt share a single call. Failures are not cached.
type LogoCache struct {
	mu    sync.RWMutex
	urls  map[string]string
	group singleflight.Group
}

// NewLogoCache creates an empty cache.
func NewLogoCache() *LogoCache {
	return &LogoCache{urls: make(map[string]string)}
}

// Get returns the cached URL for prompt or runs gen once to produce it.
func (l *LogoCache) Get(ctx context.Context, prompt string, gen func(context.Context) (string, error)) (string, bool, error) {
	l.mu.RLock()
	u, ok := l.urls[prompt]
	l.mu.RUnlock()
	if ok {
		return u, true, nil
	}

	v, err, _ := l.group.Do(prompt, func() (any, error) {
		l.mu.RLock()
		cached, ok := l.urls[prompt]
		l.mu.RUnlock()
		if ok {
			return cached, nil
		}
		u, err := gen(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}
		l.mu.Lock()
		l.urls[prompt] = u
		l.mu.Unlock()
		return u, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}

// Len returns the number of cached prompts.
func (l *LogoCache) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.urls)
}
