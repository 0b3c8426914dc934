package cache

import (
	"context"
	"time"
)

// CacheRepo определяет интерфейс для кеширования данных.
// The only implementation, RedisCache, is exercised exclusively through
// component.QueryCache's Get/Set/Delete lookup path — no batch or
// cold-storage tier sits above it here.
//
// Использование:
//
//	cache := NewRedisCache(config, invalidator)
//	data, err := cache.Get(ctx, "key")
//	err = cache.Set(ctx, "key", data, 30*time.Second)
type CacheRepo interface {
	// Get получает значение по ключу из кеша.
	// Возвращает ErrCacheMiss если ключ не найден.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кеше с указанным TTL.
	// TTL = 0 означает отсутствие истечения.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключ из кеша и уведомляет об инвалидации.
	Delete(ctx context.Context, key string) error

	// Close закрывает соединение с кешем.
	Close() error
}

// CacheInvalidator управляет инвалидацией кеша через Pub/Sub.
type CacheInvalidator interface {
	// PublishInvalidation отправляет уведомление об инвалидации.
	PublishInvalidation(ctx context.Context, key string) error

	// SubscribeInvalidations подписывается на уведомления об инвалидации.
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error

	// Close закрывает соединение.
	Close() error
}

// InvalidationHandler обрабатывает уведомления об инвалидации кеша.
type InvalidationHandler func(key string) error

// CacheConfig содержит конфигурацию для кеша.
type CacheConfig struct {
	// Redis конфигурация
	RedisURL      string `yaml:"redis_url" env:"CACHE_REDIS_URL"`
	RedisPassword string `yaml:"redis_password" env:"CACHE_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"CACHE_REDIS_DB"`

	// TTL настройки
	DefaultTTL time.Duration `yaml:"default_ttl" env:"CACHE_DEFAULT_TTL"`

	// Производительность
	MaxConnections int           `yaml:"max_connections" env:"CACHE_MAX_CONNECTIONS"`
	PoolTimeout    time.Duration `yaml:"pool_timeout" env:"CACHE_POOL_TIMEOUT"`
}

// ErrCacheMiss is returned by CacheRepo.Get when the key is absent.
var ErrCacheMiss = NewCacheError("cache miss")

// CacheError представляет ошибку кеша.
type CacheError struct {
	Message string
}

func (e *CacheError) Error() string {
	return e.Message
}

func NewCacheError(message string) *CacheError {
	return &CacheError{Message: message}
}

// IsCacheMiss проверяет, является ли ошибка промахом кеша.
func IsCacheMiss(err error) bool {
	return err == ErrCacheMiss
}
