package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/mapcoord/internal/coord"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	World    WorldConfig    `yaml:"world"`
	Codec    CodecConfig    `yaml:"codec"`
	Storage  StorageConfig  `yaml:"storage"`
	EventBus EventBusConfig `yaml:"eventbus"`
	Journal  JournalConfig  `yaml:"journal"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort     int    `yaml:"rest_port"`
	MetricsPort  int    `yaml:"metrics_port"`
	ServiceName  string `yaml:"service_name"`
	Telemetry    bool   `yaml:"telemetry"`
	OTLPEndpoint string `yaml:"otlp_endpoint"` // host:port, пусто - из OTEL_EXPORTER_OTLP_ENDPOINT
}

// WorldConfig задает границы мира для проверки позиций
type WorldConfig struct {
	coord.Bounds `yaml:",inline"`
	SectorSize   int `yaml:"sector_size"`
}

type CodecConfig struct {
	// Strict включает отказ от упаковки координат вне домена вместо усечения.
	Strict bool `yaml:"strict"`
}

type StorageConfig struct {
	Backend string     `yaml:"backend"` // memory | badger | redis | maria | mongo
	Badger  BadgerConf `yaml:"badger"`
	Redis   RedisConf  `yaml:"redis"`
	Maria   MariaConf  `yaml:"maria"`
	Mongo   MongoConf  `yaml:"mongo"`
	Cache   CacheConf  `yaml:"cache"`
}

// CacheConf - горячий кеш перед хранилищем
type CacheConf struct {
	Backend         string `yaml:"backend"` // none | memory | redis (адрес из storage.redis)
	TTLSeconds      int    `yaml:"ttl_seconds"`
	InvalidationURL string `yaml:"invalidation_url"` // NATS; пусто - без рассылки инвалидаций
}

type BadgerConf struct {
	Path string `yaml:"path"`
}

type RedisConf struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type MariaConf struct {
	DSN string `yaml:"dsn"`
}

type MongoConf struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Capacity  int    `yaml:"capacity"`
}

type JournalConfig struct {
	Compression string `yaml:"compression"` // none | gzip | zstd
	Capacity    int    `yaml:"capacity"`
	FlushMillis int    `yaml:"flush_ms"` // 0 - только при заполнении и остановке
	ApplyRemote bool   `yaml:"apply_remote"` // применять пачки дельт других узлов
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает конфигурацию со значениями по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ServiceName: "mapcoord",
		},
		World: WorldConfig{
			Bounds:     coord.DefaultBounds(),
			SectorSize: 32,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Badger:  BadgerConf{Path: "data"},
			Cache:   CacheConf{Backend: "none", TTLSeconds: 30},
			Redis:   RedisConf{Addr: "localhost:6379", KeyPrefix: "mapcoord:"},
			Mongo: MongoConf{
				URI:        "mongodb://localhost:27017",
				Database:   "mapcoord",
				Collection: "teleport_destinations",
			},
		},
		EventBus: EventBusConfig{
			Stream:    "MAPCOORD",
			Retention: 24,
			Capacity:  1024,
		},
		Journal: JournalConfig{
			Compression: "zstd",
			Capacity:    256,
			FlushMillis: 500,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "MAPCOORD_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "MAPCOORD_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV MAPCOORD_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MAPCOORD_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "badger", "redis", "maria", "mongo":
	default:
		return fmt.Errorf("неизвестный storage.backend: %q", c.Storage.Backend)
	}

	switch c.Storage.Cache.Backend {
	case "", "none", "memory", "redis":
	default:
		return fmt.Errorf("неизвестный storage.cache.backend: %q", c.Storage.Cache.Backend)
	}

	switch c.Journal.Compression {
	case "none", "gzip", "zstd":
	default:
		return fmt.Errorf("неизвестный journal.compression: %q", c.Journal.Compression)
	}

	if c.World.MinLayer > c.World.MaxLayer {
		return fmt.Errorf("world.min_layer (%d) больше world.max_layer (%d)", c.World.MinLayer, c.World.MaxLayer)
	}
	if c.World.SectorSize <= 0 {
		return fmt.Errorf("world.sector_size должен быть положительным: %d", c.World.SectorSize)
	}
	return nil
}
