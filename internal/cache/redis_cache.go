package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisCache реализует Cache поверх Redis.
// Ключ: <prefix>cache:dest:<itemID>, значение - 4 байта big-endian.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisCacheConfig содержит настройки подключения
type RedisCacheConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisCache подключается к Redis и проверяет соединение
func NewRedisCache(ctx context.Context, config RedisCacheConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s", config.Addr)
	return NewRedisCacheWithClient(rdb, config.KeyPrefix), nil
}

// NewRedisCacheWithClient использует готовый клиент
func NewRedisCacheWithClient(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, prefix: keyPrefix + "cache:dest:"}
}

func (r *RedisCache) key(itemID uint64) string {
	return r.prefix + strconv.FormatUint(itemID, 10)
}

func (r *RedisCache) Get(ctx context.Context, itemID uint64) (coord.Packed, error) {
	val, err := r.client.Get(ctx, r.key(itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, fmt.Errorf("redis get error: %w", err)
	}
	if len(val) != 4 {
		// Битое значение считаем промахом, холодное хранилище перезапишет его
		logging.Warn("Redis cache: повреждено значение %s (%d байт)", r.key(itemID), len(val))
		return 0, ErrCacheMiss
	}
	return coord.Packed(binary.BigEndian.Uint32(val)), nil
}

func (r *RedisCache) Set(ctx context.Context, itemID uint64, v coord.Packed, ttl time.Duration) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	if err := r.client.Set(ctx, r.key(itemID), buf[:], ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, itemID uint64) error {
	if err := r.client.Del(ctx, r.key(itemID)).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
