package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/annel0/mapcoord/internal/coord"
)

var (
	// ErrNotFound - для предмета нет сохраненного пункта назначения
	ErrNotFound = errors.New("пункт назначения не найден")
	// ErrInvalidItem - нулевой идентификатор предмета
	ErrInvalidItem = errors.New("недействительный itemID")
)

// DestinationRepo определяет интерфейс хранения пунктов назначения телепортов.
// Пункт назначения привязан к идентификатору предмета-телепорта и хранится
// в виде упакованной мировой координаты (coord.Absolute), как в файле карты.
type DestinationRepo interface {
	// Save сохраняет пункт назначения предмета.
	// Позиция должна лежать в домене Absolute: усечение при записи недопустимо.
	Save(ctx context.Context, itemID uint64, pos coord.Position) error

	// Load загружает пункт назначения.
	// Возвращает:
	//   coord.Position - позиция
	//   bool - false, если пункт назначения не задан
	//   error - ошибка хранилища
	Load(ctx context.Context, itemID uint64) (coord.Position, bool, error)

	// Delete удаляет пункт назначения; ErrNotFound, если его не было.
	Delete(ctx context.Context, itemID uint64) error

	// BatchSave сохраняет несколько пунктов назначения за один проход.
	// При ошибке валидации ничего не записывается.
	BatchSave(ctx context.Context, destinations map[uint64]coord.Position) error

	// List возвращает все сохраненные пункты назначения.
	List(ctx context.Context) (map[uint64]coord.Position, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

// validateDestination проверяет идентификатор и принадлежность позиции домену Absolute
func validateDestination(itemID uint64, pos coord.Position) error {
	if itemID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}
	if err := coord.CheckDomain(coord.Absolute, pos); err != nil {
		return fmt.Errorf("пункт назначения предмета %d: %w", itemID, err)
	}
	return nil
}

func validateBatch(destinations map[uint64]coord.Position) error {
	for itemID, pos := range destinations {
		if err := validateDestination(itemID, pos); err != nil {
			return err
		}
	}
	return nil
}

// encodePacked/decodePacked - 4 байта big-endian, общий формат значений для KV хранилищ
func encodePacked(pos coord.Position) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(coord.PackAbsolute(pos)))
	return buf
}

func decodePacked(val []byte) (coord.Position, error) {
	if len(val) != 4 {
		return coord.Position{}, fmt.Errorf("неверная длина упакованной координаты: %d байт", len(val))
	}
	return coord.UnpackAbsolute(coord.Packed(binary.BigEndian.Uint32(val))), nil
}

// checkContext возвращает ошибку отмененного контекста
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
