package storage

import (
	"context"
	"fmt"

	"github.com/annel0/mapcoord/internal/config"
	"github.com/annel0/mapcoord/internal/logging"
)

// Open создает репозиторий по настройке storage.backend
func Open(ctx context.Context, cfg config.StorageConfig) (DestinationRepo, error) {
	log := logging.GetStorageLogger()

	switch cfg.Backend {
	case "", "memory":
		log.Warn("⚠️ Используется хранилище в памяти: данные теряются при перезапуске")
		return NewMemoryDestinationRepo(), nil
	case "badger":
		log.Info("💾 BadgerDB: %s", cfg.Badger.Path)
		return NewBadgerDestinationRepo(cfg.Badger.Path)
	case "redis":
		return NewRedisDestinationRepo(ctx, &RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case "maria":
		return NewMariaDestinationRepo(ctx, cfg.Maria.DSN)
	case "mongo":
		return NewMongoDestinationRepo(ctx, MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	default:
		return nil, fmt.Errorf("неизвестный backend хранилища: %q", cfg.Backend)
	}
}
