package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"research-grant-api/authz"
	"research-grant-api/config"
	"research-grant-api/middleware"
	"research-grant-api/routes"
	"research-grant-api/services"
	"research-grant-api/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}

	logger, logFile := config.InitLogging(settings.Log, settings.IsProduction())
	if logFile != nil {
		defer logFile.Close()
	}

	st, closeStore, err := openStore(settings, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer closeStore()

	authorizer, err := authz.New(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load authorization policy")
	}

	ttl := time.Duration(settings.Auth.JWTExpireHours) * time.Hour
	deps := routes.Dependencies{
		Auth:      services.NewAuthService(st, settings.Auth.JWTSecret, ttl, logger),
		Workflow:  services.NewWorkflowService(st, authorizer, logger),
		Dashboard: services.NewDashboardService(st, authorizer, logger),
		Authz:     authorizer,
		Metrics:   settings.MetricsEnabled,
	}
	if gs, ok := st.(*store.GormStore); ok {
		deps.HealthCheck = gs.Ping
	}

	if settings.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(settings.AllowedOrigins))

	if settings.RateLimit.Enabled {
		limit, err := middleware.RateLimitMiddleware(
			settings.RateLimit.AuthRate,
			middleware.NewRateLimitStore(settings.RateLimit, logger),
		)
		if err != nil {
			logger.WithError(err).Fatal("Failed to configure rate limiting")
		}
		deps.AuthRateLimit = limit
	}

	routes.SetupRoutes(router, deps)

	server := &http.Server{
		Addr:              ":" + settings.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":         settings.ServerPort,
			"environment":  settings.Environment,
			"store_driver": settings.StoreDriver,
		}).Info("🚀 Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("❌ Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
}

// openStore selects the store implementation from STORE_DRIVER.
func openStore(settings *config.Settings, logger *logrus.Logger) (store.Store, func(), error) {
	if settings.StoreDriver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	db, err := config.OpenDatabase(settings, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logger.Info("📊 Database connected successfully")
	return store.NewGormStore(db), closeFn, nil
}
