package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/mapcoord/internal/api"
	"github.com/annel0/mapcoord/internal/cache"
	"github.com/annel0/mapcoord/internal/config"
	"github.com/annel0/mapcoord/internal/destination"
	"github.com/annel0/mapcoord/internal/eventbus"
	"github.com/annel0/mapcoord/internal/journal"
	"github.com/annel0/mapcoord/internal/logging"
	"github.com/annel0/mapcoord/internal/metrics"
	"github.com/annel0/mapcoord/internal/observability"
	"github.com/annel0/mapcoord/internal/problems"
	"github.com/annel0/mapcoord/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или MAPCOORD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.GetLoggerManager().CloseAll()
	level := logging.ParseLevel(cfg.Logging.Level)
	for _, component := range []string{"server", "api", "storage", "journal", "destination"} {
		_ = logging.GetLoggerManager().SetLogLevel(component, level, logging.DEBUG)
	}

	logging.Info("🗺️  Запуск mapcoord: storage=%s, journal=%s, strict=%v",
		cfg.Storage.Backend, cfg.Journal.Compression, cfg.Codec.Strict)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.GetLoggerManager().CloseAll()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(ctx context.Context, cfg *config.Config) error {
	nodeID := fmt.Sprintf("%s-%s", cfg.Server.ServiceName, uuid.NewString()[:8])
	logging.Info("🆔 Узел %s", nodeID)

	// === Телеметрия ===
	shutdownTelemetry := observability.ShutdownFunc(observability.Noop)
	if cfg.Server.Telemetry {
		fn, err := observability.InitTelemetry(ctx, cfg.Server.ServiceName, cfg.Server.OTLPEndpoint)
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
		} else {
			shutdownTelemetry = fn
		}
	}
	defer shutdownTelemetry(context.Background())

	// === Метрики ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	codec := metrics.NewCodec(metrics.NewCodecMetrics(reg))

	// === Хранилище ===
	repo, err := openRepo(ctx, cfg, nodeID)
	if err != nil {
		return fmt.Errorf("хранилище: %w", err)
	}
	defer repo.Close()

	// === Шина событий ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("шина событий: %w", err)
	}
	defer bus.Close()
	eventbus.Init(bus)

	exporter := eventbus.NewMetricsExporter(bus, reg)
	exporter.Start()
	defer exporter.Stop()

	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		return fmt.Errorf("логирование событий: %w", err)
	}

	// === Журнал дельт ===
	jcodec, err := journal.NewCodec(cfg.Journal.Compression, cfg.Codec.Strict)
	if err != nil {
		return err
	}
	j, err := journal.New(bus, jcodec, journal.Config{
		Source:     nodeID,
		Capacity:   cfg.Journal.Capacity,
		FlushEvery: time.Duration(cfg.Journal.FlushMillis) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	// === Сервис ===
	problemList := problems.NewList(nil, nil)
	svc := destination.NewService(repo, destination.Config{
		Bounds: cfg.World.Bounds,
		Strict: cfg.Codec.Strict,
		Source: nodeID,
	}, destination.Deps{
		Journal:  j,
		Bus:      bus,
		Problems: problemList,
		Codec:    codec,
	})

	// Реплика с собственным хранилищем применяет дельты других узлов без записи в журнал
	if cfg.Journal.ApplyRemote {
		consumer, err := journal.NewConsumer(bus, jcodec, nodeID, svc.Apply)
		if err != nil {
			return fmt.Errorf("consumer журнала: %w", err)
		}
		defer consumer.Stop()
	}

	if n, err := svc.Validate(ctx); err != nil {
		logging.Warn("⚠️ Проверка пунктов назначения: %v", err)
	} else if n > 0 {
		logging.Warn("⚠️ Найдено %d пунктов назначения вне карты", n)
	}

	// === HTTP ===
	gin.SetMode(gin.ReleaseMode)
	rest := api.NewRestServer(api.Config{
		Addr:        fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		ServiceName: cfg.Server.ServiceName,
		Service:     svc,
		Codec:       codec,
		Problems:    problemList,
		Registry:    reg,
		SectorSize:  cfg.World.SectorSize,
	})

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- rest.Start() }()
	go func() {
		logging.Info("📈 Prometheus метрики на %s", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("сервер метрик: %w", err)
			return
		}
		errCh <- nil
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   ❤️  Health check: http://localhost:%d/health", cfg.Server.GetRESTPort())

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал, завершение работы...")
	case runErr = <-errCh:
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rest.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	if err := j.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка отправки остатка журнала: %v", err)
	}
	return runErr
}

// openRepo открывает хранилище и при необходимости ставит перед ним кеш
func openRepo(ctx context.Context, cfg *config.Config, nodeID string) (storage.DestinationRepo, error) {
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	cc := cfg.Storage.Cache
	var hot cache.Cache
	switch cc.Backend {
	case "", "none":
		return repo, nil
	case "memory":
		hot = cache.NewMemoryCache()
	case "redis":
		rc := cfg.Storage.Redis
		hot, err = cache.NewRedisCache(ctx, cache.RedisCacheConfig{
			Addr: rc.Addr, Password: rc.Password, DB: rc.DB, KeyPrefix: rc.KeyPrefix,
		})
		if err != nil {
			repo.Close()
			return nil, err
		}
	}

	var inv cache.Invalidator
	if cc.InvalidationURL != "" {
		n, err := cache.NewNATSInvalidator(cache.InvalidatorConfig{NATSURL: cc.InvalidationURL}, nodeID)
		if err != nil {
			hot.Close()
			repo.Close()
			return nil, err
		}
		inv = n
	}

	cached, err := cache.NewCachedDestinationRepo(repo, hot, inv, time.Duration(cc.TTLSeconds)*time.Second)
	if err != nil {
		if inv != nil {
			inv.Close()
		}
		hot.Close()
		repo.Close()
		return nil, err
	}
	logging.Info("🔥 Кеш пунктов назначения: %s (ttl=%ds)", cc.Backend, cc.TTLSeconds)
	return cached, nil
}

// openBus выбирает JetStream при заданном URL, иначе in-memory шину
func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("🚌 EventBus: in-memory (capacity=%d)", cfg.Capacity)
		return eventbus.NewMemoryBus(cfg.Capacity), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, err
	}
	logging.Info("🚌 EventBus: JetStream %s stream=%s", cfg.URL, cfg.Stream)
	return bus, nil
}
