// Package cache keeps derived report results in process memory.
package cache

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ReportCache is a domain.ReportCache backed by go-cache
type ReportCache struct {
	mu     sync.Mutex // serialises prefix deletes against Close
	c      *gocache.Cache
	closed bool
}

// New creates a cache whose entries expire after ttl and are swept every cleanup
func New(ttl, cleanup time.Duration) *ReportCache {
	return &ReportCache{c: gocache.New(ttl, cleanup)}
}

// Get returns a cached value
func (r *ReportCache) Get(key string) (any, bool) {
	return r.c.Get(key)
}

// Set stores a value with the default expiration. It is a no-op once closed.
func (r *ReportCache) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.c.SetDefault(key, value)
}

// DeletePrefix removes every key starting with prefix
func (r *ReportCache) DeletePrefix(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.c.Items() {
		if strings.HasPrefix(key, prefix) {
			r.c.Delete(key)
		}
	}
}

// Flush removes every key
func (r *ReportCache) Flush() {
	r.c.Flush()
}

// Close drops every entry and stops accepting new ones
func (r *ReportCache) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.c.Flush()
}
