package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/config"
	"autopilot-assistant/pkg/metrics"
	redisClient "autopilot-assistant/pkg/redis"
	"autopilot-assistant/pkg/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithField("instance_id", cfg.InstanceID).Info("Starting assistant service")

	// Initialize metrics
	metrics := metrics.NewMetrics()

	// Connect to Redis
	redisConfig := redisClient.DefaultConnectionConfig()
	redisConfig.URL = cfg.RedisURL

	redis, err := redisClient.NewClient(redisConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	// Create the assistant service
	svc := service.New(redis.RDB(), cfg, logger, metrics)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start service
	if err := svc.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start service")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during service shutdown")
	}

	logger.Info("Assistant service shutdown complete")
}
