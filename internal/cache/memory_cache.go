package cache

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/mapcoord/internal/coord"
)

type memoryItem struct {
	value   coord.Packed
	expires time.Time // нулевое - без истечения
}

// MemoryCache - кеш в памяти процесса, для одного узла и тестов
type MemoryCache struct {
	mu    sync.RWMutex
	items map[uint64]memoryItem
	now   func() time.Time
}

// NewMemoryCache создает пустой кеш
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[uint64]memoryItem),
		now:   time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, itemID uint64) (coord.Packed, error) {
	m.mu.RLock()
	item, ok := m.items[itemID]
	m.mu.RUnlock()

	if !ok || (!item.expires.IsZero() && m.now().After(item.expires)) {
		return 0, ErrCacheMiss
	}
	return item.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, itemID uint64, v coord.Packed, ttl time.Duration) error {
	item := memoryItem{value: v}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.items[itemID] = item
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, itemID uint64) error {
	m.mu.Lock()
	delete(m.items, itemID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Close() error { return nil }
