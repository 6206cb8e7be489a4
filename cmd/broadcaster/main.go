package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordmarket/sale-service/internal/config"
	"github.com/ordmarket/sale-service/internal/platform/logger"
	"github.com/ordmarket/sale-service/internal/ws"
)

func main() {
	cfg, err := config.LoadBroadcaster()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logg.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	subscriber, err := ws.NewSubscriber(redisClient, logg)
	if err != nil {
		logg.Fatal("init subscriber", "err", err)
	}
	defer subscriber.Close()
	logg.Info("connected to redis", "addr", cfg.RedisAddr)

	manager := ws.NewManager(logg)
	go manager.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan *ws.Message, 256)
	go func() {
		if err := subscriber.Listen(ctx, messages); err != nil && err != context.Canceled {
			logg.Error("subscriber stopped", "err", err)
		}
	}()
	go func() {
		for msg := range messages {
			manager.Broadcast(msg.ItemID, []byte(msg.Payload))
		}
	}()

	handler := ws.NewHandler(manager, logg)
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("broadcaster listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error("forced shutdown", "err", err)
	}
	logg.Info("stopped")
}
