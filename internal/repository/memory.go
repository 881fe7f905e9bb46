package repository

import (
	"context"
	"sync"
	"time"

	"velora/internal/models"
)

type cachedDresses struct {
	dresses   []*models.WeddingDress
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryCacheRepository is the in-process stand-in used when Redis is unavailable.
type MemoryCacheRepository struct {
	mu         sync.Mutex
	dresses    map[string]cachedDresses
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryCacheRepository(ttl time.Duration) *MemoryCacheRepository {
	return &MemoryCacheRepository{
		dresses:    make(map[string]cachedDresses),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryCacheRepository) GetDresses(_ context.Context, key string) ([]*models.WeddingDress, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.dresses[key]
	if !ok {
		return nil, false, nil
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.dresses, key)
		return nil, false, nil
	}
	return entry.dresses, true, nil
}

func (r *MemoryCacheRepository) SetDresses(_ context.Context, key string, dresses []*models.WeddingDress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dresses[key] = cachedDresses{dresses: dresses, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryCacheRepository) InvalidateDresses(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.dresses {
		delete(r.dresses, key)
	}
	return nil
}

func (r *MemoryCacheRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	// sweep expired counters so one-off clients do not pile up
	if len(r.rateLimits) > 1024 {
		for k, e := range r.rateLimits {
			if now.After(e.expiresAt) && k != key {
				delete(r.rateLimits, k)
			}
		}
	}

	return entry.count <= limit, nil
}
