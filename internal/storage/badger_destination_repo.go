package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/dgraph-io/badger/v3"
)

const destinationKeyPrefix = "dest:"

// BadgerDestinationRepo хранит пункты назначения в BadgerDB.
// Ключ - "dest:<itemID>", значение - 4 байта упакованной координаты.
type BadgerDestinationRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerDestinationRepo открывает BadgerDB в каталоге <dataPath>/destinations
func NewBadgerDestinationRepo(dataPath string) (*BadgerDestinationRepo, error) {
	dbPath := filepath.Join(dataPath, "destinations")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB
	return openBadgerDestinationRepo(opts, dbPath)
}

// NewInMemoryBadgerDestinationRepo открывает BadgerDB без диска (тесты, CLI)
func NewInMemoryBadgerDestinationRepo() (*BadgerDestinationRepo, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadgerDestinationRepo(opts, "")
}

func openBadgerDestinationRepo(opts badger.Options, dbPath string) (*BadgerDestinationRepo, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerDestinationRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

func destinationKey(itemID uint64) []byte {
	return []byte(destinationKeyPrefix + strconv.FormatUint(itemID, 10))
}

// ready проверяет состояние хранилища; вызывается под mutex.RLock
func (r *BadgerDestinationRepo) ready() error {
	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return nil
}

// Save сохраняет пункт назначения.
func (r *BadgerDestinationRepo) Save(ctx context.Context, itemID uint64, pos coord.Position) error {
	if err := validateDestination(itemID, pos); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(destinationKey(itemID), encodePacked(pos))
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения пункта назначения %d: %w", itemID, err)
	}
	return nil
}

// Load загружает пункт назначения.
func (r *BadgerDestinationRepo) Load(ctx context.Context, itemID uint64) (coord.Position, bool, error) {
	if itemID == 0 {
		return coord.Position{}, false, fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}
	if err := checkContext(ctx); err != nil {
		return coord.Position{}, false, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return coord.Position{}, false, err
	}

	var pos coord.Position
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(destinationKey(itemID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			p, err := decodePacked(val)
			if err != nil {
				return err
			}
			pos, found = p, true
			return nil
		})
	})
	if err != nil {
		return coord.Position{}, false, fmt.Errorf("ошибка загрузки пункта назначения %d: %w", itemID, err)
	}
	return pos, found, nil
}

// Delete удаляет пункт назначения.
func (r *BadgerDestinationRepo) Delete(ctx context.Context, itemID uint64) error {
	if itemID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		key := destinationKey(itemID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("предмет %d: %w", itemID, ErrNotFound)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// BatchSave сохраняет пункты назначения через WriteBatch.
func (r *BadgerDestinationRepo) BatchSave(ctx context.Context, destinations map[uint64]coord.Position) error {
	if len(destinations) == 0 {
		return nil
	}
	if err := validateBatch(destinations); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	for itemID, pos := range destinations {
		if err := wb.Set(destinationKey(itemID), encodePacked(pos)); err != nil {
			return fmt.Errorf("ошибка записи пункта назначения %d в batch: %w", itemID, err)
		}
	}
	return wb.Flush()
}

// List возвращает все пункты назначения.
func (r *BadgerDestinationRepo) List(ctx context.Context) (map[uint64]coord.Position, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	result := make(map[uint64]coord.Position)
	prefix := []byte(destinationKeyPrefix)

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))

			itemID, err := strconv.ParseUint(strings.TrimPrefix(key, destinationKeyPrefix), 10, 64)
			if err != nil {
				return fmt.Errorf("неверный ключ %q: %w", key, err)
			}

			err = item.Value(func(val []byte) error {
				pos, err := decodePacked(val)
				if err != nil {
					return err
				}
				result[itemID] = pos
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пунктов назначения: %w", err)
	}
	return result, nil
}

// Close закрывает хранилище данных
func (r *BadgerDestinationRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}

	r.isReady = false
	return r.db.Close()
}
