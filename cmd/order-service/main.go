package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"cinema-ticketing/internal/config"
	"cinema-ticketing/internal/idgen"
	"cinema-ticketing/internal/kafka"
	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/order"
	"cinema-ticketing/internal/order/api"
	"cinema-ticketing/internal/order/db"
	"cinema-ticketing/internal/order/expiry"
	"cinema-ticketing/internal/order/outbox"
	"cinema-ticketing/internal/seatclient"
)

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	maxRetries := 5
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		if err = sqldb.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("PostgreSQL connection error after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger("order-service")
	defer log.Close()

	log.Info("APP", "Starting Order Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB := connectPostgres(ctx, cfg.DB, log)
	defer bunDB.Close()

	if err := db.Migrate(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	log.LogDatabase("MIGRATE", "orders,outbox_events", "schema ensured")

	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.OrderCreated}); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderCreated)
	defer producer.Close()
	log.Info("KAFKA", fmt.Sprintf("Producer ready for topic %s", cfg.Kafka.OrderCreated))

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	ids, err := idgen.NewSnowflakeGenerator(cfg.Seat.SnowflakeNode)
	if err != nil {
		log.Fatal("APP", fmt.Sprintf("Snowflake init failed: %v", err))
	}

	repo := &db.DB{Bun: bunDB}
	seats := seatclient.NewClient(cfg.Seat.SeatServiceURL, log)
	scheduler := expiry.NewAsynqScheduler(asynqClient)
	orders := order.NewService(repo, seats, scheduler, ids, cfg.Seat.LockExpire, log)

	relay := outbox.NewRelay(repo, producer, log)
	go relay.Run(ctx)
	log.Info("OUTBOX", "Outbox relay started")

	compensator := expiry.NewCompensator(orders, log)
	asynqServer := expiry.NewServer(redisOpt)
	go func() {
		log.Info("EXPIRY", "Expire-task worker started")
		if err := asynqServer.Run(compensator.Mux()); err != nil {
			log.Fatal("EXPIRY", fmt.Sprintf("Worker error: %v", err))
		}
	}()

	handler := api.NewHandler(orders, log)
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	handler.Routes(r)
	log.Info("ROUTER", "Order routes registered under /api/v1")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Order Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	}
	asynqServer.Shutdown()
	cancel() // stops the outbox relay
	log.Info("APP", "Order Service shutdown complete")
}
