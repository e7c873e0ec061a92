package cache

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/mapcoord/internal/coord"
)

// ErrCacheMiss - ключа нет в кеше или он истек
var ErrCacheMiss = errors.New("cache miss")

// Cache - горячий кеш упакованных пунктов назначения (Hot Cache).
// Холодное хранилище - storage.DestinationRepo.
//
// Использование:
//
//	c := NewMemoryCache()
//	v, err := c.Get(ctx, itemID)
//	err = c.Set(ctx, itemID, v, 30*time.Second)
type Cache interface {
	// Get возвращает упакованную координату или ErrCacheMiss.
	Get(ctx context.Context, itemID uint64) (coord.Packed, error)

	// Set сохраняет значение; ttl = 0 - без истечения.
	Set(ctx context.Context, itemID uint64, v coord.Packed, ttl time.Duration) error

	// Delete удаляет ключ; отсутствие ключа не ошибка.
	Delete(ctx context.Context, itemID uint64) error

	// Close закрывает соединение с кешем.
	Close() error
}

// Invalidator рассылает инвалидации кеша между узлами.
type Invalidator interface {
	// PublishInvalidation отправляет уведомление об изменении предмета.
	PublishInvalidation(ctx context.Context, itemID uint64) error

	// SubscribeInvalidations подписывается на уведомления других узлов.
	SubscribeInvalidations(handler InvalidationHandler) error

	// Close закрывает соединение.
	Close() error
}

// InvalidationHandler обрабатывает уведомление об инвалидации.
type InvalidationHandler func(itemID uint64) error

// Metrics - счетчики попаданий кеша
type Metrics struct {
	Requests int64   `json:"requests"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}
