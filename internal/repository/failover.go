package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"velora/internal/domain"
	"velora/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCacheRepository serves from Redis and switches to the in-memory cache after a Redis error.
// Redis is retried once per recoveryInterval.
type FailoverCacheRepository struct {
	primary   domain.CacheRepository
	fallback  domain.CacheRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverCacheRepository(primary, fallback domain.CacheRepository, logger *zerolog.Logger) *FailoverCacheRepository {
	return &FailoverCacheRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCacheRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// usePrimary reports whether the call should go to Redis.
func (r *FailoverCacheRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverCacheRepository) recovered() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary cache recovered")
	}
}

func (r *FailoverCacheRepository) GetDresses(ctx context.Context, key string) ([]*models.WeddingDress, bool, error) {
	if r.usePrimary() {
		dresses, ok, err := r.primary.GetDresses(ctx, key)
		if err == nil {
			r.recovered()
			return dresses, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetDresses(ctx, key)
}

func (r *FailoverCacheRepository) SetDresses(ctx context.Context, key string, dresses []*models.WeddingDress) error {
	if r.usePrimary() {
		err := r.primary.SetDresses(ctx, key, dresses)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetDresses(ctx, key, dresses)
}

// InvalidateDresses clears both caches.
func (r *FailoverCacheRepository) InvalidateDresses(ctx context.Context) error {
	_ = r.fallback.InvalidateDresses(ctx)
	if r.usePrimary() {
		err := r.primary.InvalidateDresses(ctx)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
