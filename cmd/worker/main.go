package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Brownie44l1/fer-classifier/internal/app"
	"github.com/Brownie44l1/fer-classifier/internal/config"
	"github.com/Brownie44l1/fer-classifier/internal/logging"
	"github.com/Brownie44l1/fer-classifier/internal/messaging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize classifier", zap.Error(err))
	}
	defer application.Close()

	subscriber := messaging.NewSubscriber(ctx, messaging.Options{
		Broker:         cfg.MQTTBroker,
		RequestTopic:   cfg.MQTTRequestTopic,
		ResponsePrefix: cfg.MQTTResponsePrefix,
	}, application.Service, logger)

	if err := subscriber.Start(); err != nil {
		logger.Error("failed to start MQTT worker", zap.Error(err))
		return
	}
	defer subscriber.Stop()

	<-ctx.Done()
	logger.Info("interrupt signal received, exiting")
}
