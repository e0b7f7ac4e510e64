package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rideshare/internal/app"
	"rideshare/internal/config"
	"rideshare/internal/mq"
)

// notifier drains the event queue and writes every event to the log. It
// stands in for push and e-mail delivery.
func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := app.NewLogger(cfg.Log, "rideshare-notifier")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.RabbitMQ.URL == "" {
		logger.Fatal("RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := mq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, 0, mq.LogHandler(logger.Named("events")), logger)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Info("notifier exited")
}
