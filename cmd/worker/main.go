package main

import (
	"context"
	"os"

	"github.com/flicky/qbcart/internal/bootstrap"
	"github.com/flicky/qbcart/internal/broker"
	"github.com/flicky/qbcart/internal/config"
	"github.com/flicky/qbcart/internal/notify"
	"github.com/flicky/qbcart/internal/repository"
	"github.com/flicky/qbcart/internal/telemetry"
	"github.com/flicky/qbcart/internal/worker"
)

func main() {
	log := bootstrap.NewLogger("worker")

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

	// Consuming and publishing use separate channels so flow control on one
	// does not stall the other.
	consumeCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer consumeCh.Close()

	publishCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer publishCh.Close()

	if err := broker.DeclareQueue(consumeCh, cfg.RabbitMQ.TaskQueue); err != nil {
		log.Error("declare queue", "error", err)
		os.Exit(1)
	}

	store := repository.NewStore(dbPool)
	publisher := broker.NewAsyncPublisher(publishCh, cfg.RabbitMQ.PublishBuffer, log)
	dispatcher := notify.NewDispatcher(publisher, cfg.RabbitMQ.TaskQueue, log)
	mailer := notify.NewMailer(store, notify.NewSender(cfg.Mail, log), cfg.Mail, cfg.Report, log)

	notificationWorker := worker.NewNotificationWorker(
		consumeCh, cfg.RabbitMQ.TaskQueue, mailer,
		worker.NewRedisDeduper(redisClient, "task_processed:"), log,
	)
	if err := notificationWorker.Start(ctx); err != nil {
		log.Error("start notification worker", "error", err)
		os.Exit(1)
	}

	scheduler := notify.NewScheduler(store.Schedules(), dispatcher, cfg.Report, log)
	if err := scheduler.Start(ctx); err != nil {
		log.Error("start scheduler", "error", err)
		os.Exit(1)
	}

	metricsSrv := bootstrap.ServeMetrics(cfg.Server.MetricsPort, log)

	bootstrap.WaitForSignal()
	log.Info("shutting down...")

	scheduler.Stop()
	notificationWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := publisher.Close(shutdownCtx); err != nil {
		log.Error("drain publisher", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("flush traces", "error", err)
	}
	log.Info("worker stopped")
}
