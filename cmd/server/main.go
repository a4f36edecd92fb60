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

	"tenantdb/internal/app"
	"tenantdb/internal/router"
	"tenantdb/internal/services"
	"tenantdb/pkg/config"
	"tenantdb/pkg/jwt"
	"tenantdb/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting tenantdb server...")

	a, err := app.New(cfg)
	if err != nil {
		appLogger.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	if err := a.Registry.Start(); err != nil {
		appLogger.Fatalf("Failed to start connection janitor: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	r := router.SetupRouter(router.Dependencies{
		Config:    cfg,
		Central:   a.Central,
		Registry:  a.Registry,
		Tenants:   a.Tenants,
		Auth:      services.NewAuthService(jwt.FromConfig(cfg), a.Redis),
		Companies: services.NewCompanyService(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
