package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisDestinationRepo хранит пункты назначения в одном Redis hash:
// <prefix>destinations, поле - itemID, значение - упакованная координата (десятичное uint32).
type RedisDestinationRepo struct {
	client *redis.Client
	key    string
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "mapcoord:",
	}
}

// NewRedisDestinationRepo подключается к Redis и проверяет соединение
func NewRedisDestinationRepo(ctx context.Context, config *RedisConfig) (*RedisDestinationRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Connected to Redis at %s", config.Addr)
	return NewRedisDestinationRepoWithClient(client, config.KeyPrefix), nil
}

// NewRedisDestinationRepoWithClient использует уже созданный клиент
func NewRedisDestinationRepoWithClient(client *redis.Client, keyPrefix string) *RedisDestinationRepo {
	return &RedisDestinationRepo{
		client: client,
		key:    keyPrefix + "destinations",
	}
}

func field(itemID uint64) string {
	return strconv.FormatUint(itemID, 10)
}

// Save сохраняет пункт назначения.
func (r *RedisDestinationRepo) Save(ctx context.Context, itemID uint64, pos coord.Position) error {
	if err := validateDestination(itemID, pos); err != nil {
		return err
	}

	packed := uint32(coord.PackAbsolute(pos))
	if err := r.client.HSet(ctx, r.key, field(itemID), packed).Err(); err != nil {
		return fmt.Errorf("failed to save destination %d: %w", itemID, err)
	}
	return nil
}

// Load загружает пункт назначения.
func (r *RedisDestinationRepo) Load(ctx context.Context, itemID uint64) (coord.Position, bool, error) {
	if itemID == 0 {
		return coord.Position{}, false, fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}

	val, err := r.client.HGet(ctx, r.key, field(itemID)).Result()
	if errors.Is(err, redis.Nil) {
		return coord.Position{}, false, nil
	}
	if err != nil {
		return coord.Position{}, false, fmt.Errorf("failed to load destination %d: %w", itemID, err)
	}

	pos, err := parsePackedString(val)
	if err != nil {
		return coord.Position{}, false, fmt.Errorf("destination %d: %w", itemID, err)
	}
	return pos, true, nil
}

// Delete удаляет пункт назначения.
func (r *RedisDestinationRepo) Delete(ctx context.Context, itemID uint64) error {
	if itemID == 0 {
		return fmt.Errorf("%w: %d", ErrInvalidItem, itemID)
	}

	n, err := r.client.HDel(ctx, r.key, field(itemID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete destination %d: %w", itemID, err)
	}
	if n == 0 {
		return fmt.Errorf("предмет %d: %w", itemID, ErrNotFound)
	}
	return nil
}

// BatchSave записывает все поля одной командой HSET.
func (r *RedisDestinationRepo) BatchSave(ctx context.Context, destinations map[uint64]coord.Position) error {
	if len(destinations) == 0 {
		return nil
	}
	if err := validateBatch(destinations); err != nil {
		return err
	}

	values := make([]interface{}, 0, len(destinations)*2)
	for itemID, pos := range destinations {
		values = append(values, field(itemID), uint32(coord.PackAbsolute(pos)))
	}

	if err := r.client.HSet(ctx, r.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// List возвращает все пункты назначения; поврежденные поля пропускаются.
func (r *RedisDestinationRepo) List(ctx context.Context) (map[uint64]coord.Position, error) {
	all, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations: %w", err)
	}

	result := make(map[uint64]coord.Position, len(all))
	for f, val := range all {
		itemID, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			logging.GetStorageLogger().Warn("⚠️ Invalid destination field %q: %v", f, err)
			continue
		}
		pos, err := parsePackedString(val)
		if err != nil {
			logging.GetStorageLogger().Warn("⚠️ Invalid destination value for %d: %v", itemID, err)
			continue
		}
		result[itemID] = pos
	}
	return result, nil
}

// Close закрывает соединение с Redis
func (r *RedisDestinationRepo) Close() error {
	return r.client.Close()
}

func parsePackedString(val string) (coord.Position, error) {
	v, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return coord.Position{}, fmt.Errorf("неверная упакованная координата %q: %w", val, err)
	}
	return coord.UnpackAbsolute(coord.Packed(v)), nil
}
