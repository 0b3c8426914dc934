package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/mmo-game/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализует CacheRepo используя Redis как Hot Cache для
// component.QueryCache's voxel->component lookups. Deletes fan out an
// invalidation notice through an optional CacheInvalidator so other
// engine replicas drop their own cached entry for the same key.
type RedisCache struct {
	client      *redis.Client
	config      *CacheConfig
	invalidator CacheInvalidator
}

// NewRedisCache создаёт новый Redis кеш.
//
// Параметры:
//
//	config - конфигурация Redis
//	invalidator - опциональный invalidator для Pub/Sub (может быть nil)
//
// Возвращает:
//
//	*RedisCache - готовый к использованию кеш
//	error - ошибка подключения или конфигурации
func NewRedisCache(config *CacheConfig, invalidator CacheInvalidator) (*RedisCache, error) {
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 30 * time.Second
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.PoolTimeout == 0 {
		config.PoolTimeout = 30 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.MaxConnections,
		PoolTimeout:  config.PoolTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s", config.RedisURL)
	return &RedisCache{client: rdb, config: config, invalidator: invalidator}, nil
}

// Get получает значение по ключу из Redis кеша.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		return val, nil
	}
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	logging.Error("Redis Get error for key %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение в Redis кеше.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из кеша и отправляет уведомление об инвалидации.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		logging.Error("Redis Delete error for key %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}

	if r.invalidator != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.invalidator.PublishInvalidation(ctx, key); err != nil {
				logging.Error("Failed to publish invalidation for key %s: %v", key, err)
			}
		}()
	}

	return nil
}

// Close закрывает соединение с Redis.
func (r *RedisCache) Close() error {
	if err := r.client.Close(); err != nil {
		logging.Error("Error closing Redis connection: %v", err)
		return err
	}
	logging.Info("Redis cache closed")
	return nil
}
