package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/annel0/mapcoord/internal/coord"
)

// MemoryDestinationRepo реализует DestinationRepo в памяти.
// Хранит те же упакованные слова, что и постоянные хранилища, поэтому
// поведение кодека одинаково для всех бэкендов.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryDestinationRepo struct {
	mu   sync.RWMutex
	data map[uint64]coord.Packed // itemID -> упакованная позиция
}

// NewMemoryDestinationRepo создает новый репозиторий в памяти.
func NewMemoryDestinationRepo() *MemoryDestinationRepo {
	return &MemoryDestinationRepo{
		data: make(map[uint64]coord.Packed),
	}
}

// Save сохраняет пункт назначения в памяти.
func (r *MemoryDestinationRepo) Save(ctx context.Context, itemID uint64, pos coord.Position) error {
	if err := validateDestination(itemID, pos); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[itemID] = coord.PackAbsolute(pos)
	return nil
}

// Load загружает пункт назначения из памяти.
func (r *MemoryDestinationRepo) Load(ctx context.Context, itemID uint64) (coord.Position, bool, error) {
	if itemID == 0 {
		return coord.Position{}, false, fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}
	if err := checkContext(ctx); err != nil {
		return coord.Position{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	packed, exists := r.data[itemID]
	if !exists {
		return coord.Position{}, false, nil
	}
	return coord.UnpackAbsolute(packed), true, nil
}

// Delete удаляет пункт назначения из памяти.
func (r *MemoryDestinationRepo) Delete(ctx context.Context, itemID uint64) error {
	if itemID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[itemID]; !exists {
		return fmt.Errorf("предмет %d: %w", itemID, ErrNotFound)
	}

	delete(r.data, itemID)
	return nil
}

// BatchSave сохраняет несколько пунктов назначения.
func (r *MemoryDestinationRepo) BatchSave(ctx context.Context, destinations map[uint64]coord.Position) error {
	if len(destinations) == 0 {
		return nil // Нечего сохранять
	}
	if err := validateBatch(destinations); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for itemID, pos := range destinations {
		r.data[itemID] = coord.PackAbsolute(pos)
	}
	return nil
}

// List возвращает копию всех пунктов назначения.
func (r *MemoryDestinationRepo) List(ctx context.Context) (map[uint64]coord.Position, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[uint64]coord.Position, len(r.data))
	for itemID, packed := range r.data {
		result[itemID] = coord.UnpackAbsolute(packed)
	}
	return result, nil
}

// Raw возвращает упакованное слово предмета (для отладки и тестов формата).
func (r *MemoryDestinationRepo) Raw(itemID uint64) (coord.Packed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	packed, ok := r.data[itemID]
	return packed, ok
}

// Count возвращает количество сохраненных пунктов назначения.
func (r *MemoryDestinationRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close ничего не делает для хранилища в памяти.
func (r *MemoryDestinationRepo) Close() error {
	return nil
}
