// Package v1 provides HTTP API version 1: the operator surface for
// triggering and inspecting reconciliation runs.
package v1

import (
	"github.com/gin-gonic/gin"

	"crosslist/internal/domain/notification"
	"crosslist/internal/domain/pricelog"
	"crosslist/internal/infrastructure/http/v1/handlers"
	"crosslist/internal/infrastructure/http/v1/middleware"
	"crosslist/internal/infrastructure/storage/postgres"
	"crosslist/internal/reconcile"
	"crosslist/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger
	Pool   *postgres.Pool

	SourceSync    *reconcile.Service
	PriceSync     *reconcile.PriceService
	Runs          *reconcile.RunRegistry
	Notifications notification.Repository
	PriceLog      pricelog.Repository
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	{
		base := handlers.NewBaseHandler()

		runsHandler := handlers.NewRunsHandler(base, cfg.SourceSync, cfg.PriceSync, cfg.Runs)
		runsHandler.RegisterRoutes(api)

		notificationsHandler := handlers.NewNotificationsHandler(base, cfg.Notifications, cfg.PriceLog)
		notificationsHandler.RegisterRoutes(api)
	}

	return router
}
