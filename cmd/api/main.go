package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/qbcart/internal/audit"
	"github.com/flicky/qbcart/internal/bootstrap"
	"github.com/flicky/qbcart/internal/broker"
	"github.com/flicky/qbcart/internal/config"
	"github.com/flicky/qbcart/internal/handler"
	"github.com/flicky/qbcart/internal/notify"
	"github.com/flicky/qbcart/internal/repository"
	"github.com/flicky/qbcart/internal/service"
	"github.com/flicky/qbcart/internal/telemetry"
)

func main() {
	log := bootstrap.NewLogger("api")

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

	// PostgreSQL
	dbPool, err := bootstrap.OpenPostgres(ctx, cfg.DB)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		log.Error("open redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// RabbitMQ
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

	for _, q := range []string{cfg.RabbitMQ.AuditQueue, cfg.RabbitMQ.TaskQueue} {
		if err := broker.DeclareQueue(amqpCh, q); err != nil {
			log.Error("declare queue", "queue", q, "error", err)
			os.Exit(1)
		}
	}
	log.Info("connected to RabbitMQ")

	publisher := broker.NewAsyncPublisher(amqpCh, cfg.RabbitMQ.PublishBuffer, log)
	recorder := audit.NewPublisher(publisher, cfg.RabbitMQ.AuditQueue, log)
	dispatcher := notify.NewDispatcher(publisher, cfg.RabbitMQ.TaskQueue, log)

	store := repository.NewStore(dbPool)

	// Services
	authSvc := service.NewAuthService(store.Users(), cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(store, redisClient, recorder)
	cartSvc := service.NewCartService(store, recorder, log)
	orderSvc := service.NewOrderService(store, recorder, dispatcher, log)
	adminSvc := service.NewAdminService(store, notify.ValidateSpec)

	healthH := handler.NewHealthHandler(map[string]handler.Pinger{
		"postgres": dbPool.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		"rabbitmq": func(context.Context) error {
			if amqpConn.IsClosed() {
				return amqp.ErrClosed
			}
			return nil
		},
	})

	router := handler.NewRouter(handler.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Product: handler.NewProductHandler(productSvc),
		Cart:    handler.NewCartHandler(cartSvc, store.Products()),
		Order:   handler.NewOrderHandler(orderSvc),
		Admin:   handler.NewAdminHandler(adminSvc),
		Health:  healthH,
	}, cfg.JWT.Secret, cfg.Telemetry.ServiceName, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	bootstrap.WaitForSignal()
	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	if err := publisher.Close(shutdownCtx); err != nil {
		log.Error("drain publisher", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("flush traces", "error", err)
	}
	cancel()
	log.Info("server stopped")
}
