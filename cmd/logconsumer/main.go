package main

import (
	"context"
	"os"

	"github.com/flicky/qbcart/internal/bootstrap"
	"github.com/flicky/qbcart/internal/broker"
	"github.com/flicky/qbcart/internal/config"
	"github.com/flicky/qbcart/internal/repository"
	"github.com/flicky/qbcart/internal/telemetry"
	"github.com/flicky/qbcart/internal/worker"
)

func main() {
	log := bootstrap.NewLogger("logconsumer")

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Error("setup telemetry", "error", err)
		os.Exit(1)
	}

	dbPool, err := bootstrap.OpenPostgres(ctx, cfg.DB)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Error("open redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	amqpConn, err := bootstrap.DialRabbitMQ(cfg.RabbitMQ)
	if err != nil {
		log.Error("open rabbitmq", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := broker.DeclareQueue(amqpCh, cfg.RabbitMQ.AuditQueue); err != nil {
		log.Error("declare queue", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(dbPool)
	activityWorker := worker.NewActivityWorker(
		amqpCh, cfg.RabbitMQ.AuditQueue, store.Activity(),
		worker.NewRedisDeduper(redisClient, "activity_processed:"), log,
	)
	if err := activityWorker.Start(ctx); err != nil {
		log.Error("start activity worker", "error", err)
		os.Exit(1)
	}

	metricsSrv := bootstrap.ServeMetrics(cfg.Server.MetricsPort, log)

	bootstrap.WaitForSignal()
	log.Info("shutting down...")

	activityWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("flush traces", "error", err)
	}
	log.Info("logconsumer stopped")
}
