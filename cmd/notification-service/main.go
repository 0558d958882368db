package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/iyhunko/dapp-marketplace/internal/config"
	"github.com/iyhunko/dapp-marketplace/internal/logger"
	"github.com/iyhunko/dapp-marketplace/internal/metrics"
	sqspkg "github.com/iyhunko/dapp-marketplace/internal/sqs"
)

func main() {
	conf, err := config.LoadFromEnv()
	handleErr("loading config", err)
	handleErr("validating config", conf.ValidateQueue())
	logger.InitJSONLogger(conf.DebugMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqsClient, err := sqspkg.NewClient(ctx, conf.AWS)
	handleErr("creating SQS client", err)
	consumer := sqspkg.NewConsumer(sqsClient, conf.AWS.SQSQueueURL, nil)

	metricsServer := metrics.StartMetricsServer(conf.MetricsServer.Port)
	defer metricsServer.Close()

	slog.Info("Notification service started. Listening for messages...")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Consumer error", slog.Any("err", err))
	}
	slog.Info("Shutting down gracefully...")
}

func handleErr(msg string, err error) {
	if err != nil {
		log.Fatalf("error while %s: %v", msg, err)
	}
}
