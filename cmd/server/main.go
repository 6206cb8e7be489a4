package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/ordmarket/sale-service/internal/config"
	"github.com/ordmarket/sale-service/internal/core"
	"github.com/ordmarket/sale-service/internal/events"
	"github.com/ordmarket/sale-service/internal/httpapi"
	"github.com/ordmarket/sale-service/internal/platform/logger"
	"github.com/ordmarket/sale-service/internal/store/redistore"
)

func main() {
	cfg, err := config.LoadServer()
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
	defer redisClient.Close()

	auctionStore, err := redistore.New(redisClient, core.KindAuction, func() *core.Auction { return &core.Auction{} })
	if err != nil {
		logg.Fatal("init auction store", "err", err)
	}
	raffleStore, err := redistore.New(redisClient, core.KindRaffle, func() *core.Raffle { return &core.Raffle{} })
	if err != nil {
		logg.Fatal("init raffle store", "err", err)
	}
	logg.Info("connected to redis", "addr", cfg.RedisAddr)

	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logg.Fatal("connect to nats", "url", cfg.NatsURL, "err", err)
	}
	defer natsConn.Close()
	logg.Info("connected to nats", "url", cfg.NatsURL)

	publisher, err := events.NewPublisher(redisClient, natsConn, logg)
	if err != nil {
		logg.Fatal("init event publisher", "err", err)
	}

	auctions := core.NewAuctionLedger(auctionStore, logg)
	raffles := core.NewRaffleLedger(raffleStore, logg)

	handler := httpapi.NewHandler(auctions, raffles, publisher, logg)
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("sale service listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logg.Error("forced shutdown", "err", err)
	}
	logg.Info("stopped")
}
