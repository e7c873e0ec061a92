package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/mapcoord/internal/destination"
	"github.com/annel0/mapcoord/internal/logging"
	"github.com/annel0/mapcoord/internal/metrics"
	"github.com/annel0/mapcoord/internal/middleware"
	"github.com/annel0/mapcoord/internal/problems"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router     *gin.Engine
	httpServer *http.Server
	service    *destination.Service
	codec      *metrics.Codec
	problems   *problems.List
	metrics    *ServerMetrics
	strict     bool
	sectorSize int
	log        *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr        string               // адрес для запуска сервера, ":8088"
	ServiceName string               // имя сервиса для otelgin
	Service     *destination.Service // пункты назначения телепортов
	Codec       *metrics.Codec       // кодек с учетом метрик; nil - без учета
	Problems    *problems.List       // список проблем карты; может быть nil
	Registry    *prometheus.Registry // реестр метрик для /metrics; nil - новый
	SectorSize  int                  // размер сектора карты, по умолчанию 32
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mapcoord"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Codec == nil {
		cfg.Codec = metrics.NewCodec(nil)
	}
	if cfg.SectorSize <= 0 {
		cfg.SectorSize = 32
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(cfg.ServiceName))

	loggerMw := middleware.NewRequestLogger(nil)
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("mapcoord", cfg.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Registry)

	rs := &RestServer{
		router:     router,
		service:    cfg.Service,
		codec:      cfg.Codec,
		problems:   cfg.Problems,
		metrics:    NewServerMetrics(),
		sectorSize: cfg.SectorSize,
		log:        logging.GetAPILogger(),
	}
	if cfg.Service != nil {
		rs.strict = cfg.Service.Strict()
	}
	rs.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")

	coordGroup := api.Group("/coord")
	{
		coordGroup.POST("/encode", rs.handleEncode)
		coordGroup.POST("/decode", rs.handleDecode)
		coordGroup.GET("/domain/:mode", rs.handleDomain)
		coordGroup.POST("/parse", rs.handleParse)
		coordGroup.GET("/sector/:x/:y/:z", rs.handleSector)
	}

	if rs.service != nil {
		dest := api.Group("/destinations")
		{
			dest.GET("", rs.handleListDestinations)
			dest.POST("/shift", rs.handleShiftAll)
			dest.POST("/validate", rs.handleValidate)
			dest.GET("/:id", rs.handleGetDestination)
			dest.PUT("/:id", rs.handleSetDestination)
			dest.DELETE("/:id", rs.handleDeleteDestination)
			dest.POST("/:id/move", rs.handleMoveDestination)
			dest.POST("/:id/undo", rs.handleUndoDestination)
		}
	}

	api.GET("/problems", rs.handleProblems)
	api.GET("/stats", rs.handleStats)

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start запускает REST сервер; блокируется до Shutdown
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 REST API слушает %s", rs.httpServer.Addr)
	if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("REST сервер: %w", err)
	}
	return nil
}

// Shutdown корректно останавливает сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.httpServer.Shutdown(ctx)
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (rs *RestServer) handleStats(c *gin.Context) {
	stats := map[string]interface{}{
		"server": rs.metrics.Snapshot(),
		"strict": rs.strict,
	}
	if rs.problems != nil {
		stats["problems"] = rs.problems.Len()
	}
	if rs.service != nil {
		if all, err := rs.service.List(c.Request.Context()); err == nil {
			stats["destinations"] = len(all)
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}
