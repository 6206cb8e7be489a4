package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ordmarket/sale-service/internal/archive"
	"github.com/ordmarket/sale-service/internal/config"
	"github.com/ordmarket/sale-service/internal/platform/logger"
)

func main() {
	cfg, err := config.LoadArchiver()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logg.Sync()

	db, err := archive.NewPostgresClient(cfg.PostgresURL)
	if err != nil {
		logg.Fatal("connect to postgres", "err", err)
	}
	defer db.Close()
	logg.Info("connected to postgres")

	if err := db.InitSchema(context.Background()); err != nil {
		logg.Fatal("init schema", "err", err)
	}

	consumer, err := archive.NewConsumer(cfg.NatsURL, db, logg)
	if err != nil {
		logg.Fatal("connect to nats", "url", cfg.NatsURL, "err", err)
	}
	defer consumer.Close()
	logg.Info("connected to nats", "url", cfg.NatsURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logg.Error("consumer stopped", "err", err)
		}
	}()

	handler := archive.NewHandler(db, logg)
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Info("archiver listening", "addr", cfg.Addr)
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
