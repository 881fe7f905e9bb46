package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"velora/internal/config"
	"velora/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	dressCachePrefix = "velora:dresses:"
	rateLimitPrefix  = "velora:rate_limit:"
)

type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCacheRepository(client *redis.Client, ttl time.Duration) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisCacheRepository) GetDresses(ctx context.Context, key string) ([]*models.WeddingDress, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, dressCachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get dresses from redis: %w", err)
	}

	var dresses []*models.WeddingDress
	if err := json.Unmarshal(val, &dresses); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal dresses: %w", err)
	}
	return dresses, true, nil
}

func (r *RedisCacheRepository) SetDresses(ctx context.Context, key string, dresses []*models.WeddingDress) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(dresses)
	if err != nil {
		return fmt.Errorf("failed to marshal dresses: %w", err)
	}

	if err := r.client.Set(ctx, dressCachePrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set dresses in redis: %w", err)
	}
	return nil
}

// InvalidateDresses drops every cached catalog page.
func (r *RedisCacheRepository) InvalidateDresses(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	iter := r.client.Scan(ctx, 0, dressCachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan dress cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete dress cache: %w", err)
	}
	return nil
}

func (r *RedisCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := rateLimitPrefix + key
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, redisKey, window)
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
