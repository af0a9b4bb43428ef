package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"cinema-ticketing/internal/config"
	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/seatmap"
	"cinema-ticketing/internal/seatmap/api"
)

func connectRedis(ctx context.Context, addr string, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})

	maxRetries := 5
	var err error
	for i := 0; i < maxRetries; i++ {
		log.Info("REDIS", fmt.Sprintf("Connecting to Redis at %s (attempt %d/%d)", addr, i+1, maxRetries))
		if err = client.Ping(ctx).Err(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error after %d attempts: %v", maxRetries, err))
	}

	log.Info("REDIS", "Redis connection successful")
	return client
}

func main() {
	log := logger.NewLogger("seat-service")
	defer log.Close()

	log.Info("APP", "Starting Seat Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	redisClient := connectRedis(ctx, cfg.Redis.Addr, log)
	defer redisClient.Close()

	seats := seatmap.NewService(seatmap.NewStore(redisClient), cfg.Seat.LockExpire, log)
	handler := api.NewHandler(seats, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1/seats", func(r chi.Router) {
		r.Post("/lock", handler.LockSeats)
		r.Post("/release", handler.ReleaseSeats)
		r.Post("/sold", handler.MarkSeatsSold)
		r.Post("/init", handler.InitSeatMap)
		r.Get("/status", handler.GetSeatStatus)
	})
	log.Info("ROUTER", "Seat routes registered under /api/v1/seats")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Seat Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Seat Service shutdown complete")
	}
}
