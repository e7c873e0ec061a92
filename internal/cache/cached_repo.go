package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/logging"
	"github.com/annel0/mapcoord/internal/storage"
)

// CachedDestinationRepo - read-through кеш перед storage.DestinationRepo.
// Запись идет сразу в хранилище, ключ кеша удаляется и рассылается инвалидация.
type CachedDestinationRepo struct {
	cold        storage.DestinationRepo
	hot         Cache
	invalidator Invalidator // может быть nil
	ttl         time.Duration

	requests int64
	hits     int64
	misses   int64
}

var _ storage.DestinationRepo = (*CachedDestinationRepo)(nil)

// NewCachedDestinationRepo оборачивает хранилище кешем.
// Инвалидации других узлов удаляют ключи локального кеша.
func NewCachedDestinationRepo(cold storage.DestinationRepo, hot Cache, invalidator Invalidator, ttl time.Duration) (*CachedDestinationRepo, error) {
	r := &CachedDestinationRepo{cold: cold, hot: hot, invalidator: invalidator, ttl: ttl}
	if invalidator != nil {
		err := invalidator.SubscribeInvalidations(func(itemID uint64) error {
			return hot.Delete(context.Background(), itemID)
		})
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *CachedDestinationRepo) Load(ctx context.Context, itemID uint64) (coord.Position, bool, error) {
	atomic.AddInt64(&r.requests, 1)

	v, err := r.hot.Get(ctx, itemID)
	if err == nil {
		atomic.AddInt64(&r.hits, 1)
		return coord.UnpackAbsolute(v), true, nil
	}
	atomic.AddInt64(&r.misses, 1)
	if !errors.Is(err, ErrCacheMiss) {
		logging.Warn("Cache get error for item %d: %v", itemID, err)
	}

	pos, ok, err := r.cold.Load(ctx, itemID)
	if err != nil || !ok {
		return pos, ok, err
	}
	if err := r.hot.Set(ctx, itemID, coord.PackAbsolute(pos), r.ttl); err != nil {
		logging.Warn("Cache set error for item %d: %v", itemID, err)
	}
	return pos, true, nil
}

func (r *CachedDestinationRepo) Save(ctx context.Context, itemID uint64, pos coord.Position) error {
	if err := r.cold.Save(ctx, itemID, pos); err != nil {
		return err
	}
	r.invalidate(ctx, itemID)
	return nil
}

func (r *CachedDestinationRepo) Delete(ctx context.Context, itemID uint64) error {
	err := r.cold.Delete(ctx, itemID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	r.invalidate(ctx, itemID)
	return err
}

func (r *CachedDestinationRepo) BatchSave(ctx context.Context, destinations map[uint64]coord.Position) error {
	if err := r.cold.BatchSave(ctx, destinations); err != nil {
		return err
	}
	for itemID := range destinations {
		r.invalidate(ctx, itemID)
	}
	return nil
}

// List всегда читает холодное хранилище
func (r *CachedDestinationRepo) List(ctx context.Context) (map[uint64]coord.Position, error) {
	return r.cold.List(ctx)
}

func (r *CachedDestinationRepo) invalidate(ctx context.Context, itemID uint64) {
	if err := r.hot.Delete(ctx, itemID); err != nil {
		logging.Warn("Cache delete error for item %d: %v", itemID, err)
	}
	if r.invalidator != nil {
		if err := r.invalidator.PublishInvalidation(ctx, itemID); err != nil {
			logging.Warn("Cache invalidation publish error for item %d: %v", itemID, err)
		}
	}
}

// Metrics возвращает счетчики попаданий
func (r *CachedDestinationRepo) Metrics() Metrics {
	m := Metrics{
		Requests: atomic.LoadInt64(&r.requests),
		Hits:     atomic.LoadInt64(&r.hits),
		Misses:   atomic.LoadInt64(&r.misses),
	}
	if m.Requests > 0 {
		m.HitRatio = float64(m.Hits) / float64(m.Requests)
	}
	return m
}

// Close закрывает инвалидатор, кеш и хранилище
func (r *CachedDestinationRepo) Close() error {
	var errs []error
	if r.invalidator != nil {
		errs = append(errs, r.invalidator.Close())
	}
	errs = append(errs, r.hot.Close(), r.cold.Close())
	return errors.Join(errs...)
}
