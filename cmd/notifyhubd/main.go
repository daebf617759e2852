package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/adhesikan/NotifyHub/config"
	"github.com/adhesikan/NotifyHub/internal/api"
	"github.com/adhesikan/NotifyHub/internal/db"
	"github.com/adhesikan/NotifyHub/internal/logging"
	"github.com/adhesikan/NotifyHub/internal/metrics"
	"github.com/adhesikan/NotifyHub/internal/push"
	"github.com/adhesikan/NotifyHub/internal/store"
)

func main() {
	// Optional .env for local development; system env wins otherwise.
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Server.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatal("VAPID keys must be configured; generate them and add them to the config file")
	}

	// Process-wide push credentials, built once and injected into the
	// transport rather than read as ambient state.
	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
		HTTPClient:      &http.Client{Timeout: cfg.Push.SendTimeout()},
	}

	metrics.Init()

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	appStore := store.NewGormStore(gormDB)
	engine := push.NewEngine(appStore, &push.WebPushSender{}, webpushOptions, logger)

	handler := api.NewHandler(engine, appStore, webpushOptions, logger)
	router := api.NewRouter(handler, cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("HTTP server shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
