package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/lexshelf-orders/internal/config"
	"github.com/ariefcatur/lexshelf-orders/internal/httpx"
	"github.com/ariefcatur/lexshelf-orders/internal/inventory"
	kafkax "github.com/ariefcatur/lexshelf-orders/internal/kafka"
	"github.com/ariefcatur/lexshelf-orders/internal/logging"
	"github.com/ariefcatur/lexshelf-orders/internal/metrics"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/ariefcatur/lexshelf-orders/internal/postgres"
	"github.com/ariefcatur/lexshelf-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// The inventory worker releases expired reservations and keeps the product read
// cache in step with stock movements.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.ServiceName == "order-api" {
		cfg.ServiceName = "inventory"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.StoreDriver != config.DriverPostgres {
		log.Fatalf("inventory worker needs STORE_DRIVER=postgres; the memory driver reaps inside the API")
	}

	logger, err := logging.Init(logging.Options{Mode: cfg.LogMode, File: cfg.LogFile, Service: cfg.ServiceName})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		zap.L().Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.ServiceName, 1024)
	prod.Start()
	defer func() {
		prod.Close()
		prod.WaitClosed()
	}()

	stats := metrics.New()
	reaper := &inventory.Reaper{
		Ledger:    &orders.ReservationRepo{DB: db},
		Publisher: prod,
		Metrics:   stats,
		TTL:       cfg.ReservationTTL,
		Batch:     cfg.ReaperBatch,
	}
	invalidator := &inventory.CacheInvalidator{
		Cache:       redisx.Cache{RDB: rdb},
		Products:    &orders.Repo{DB: db},
		ServiceName: cfg.ServiceName,
	}
	topics := []string{orders.TopicOrderPlaced, orders.TopicStockReleased}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, topics, cfg.InventoryWorkers)

	g, gctx := errgroup.WithContext(ctx)
	sched, err := reaper.Schedule(gctx, cfg.ReaperSchedule)
	if err != nil {
		zap.L().Fatal("reaper", zap.Error(err))
	}
	sched.Start()
	zap.L().Info("reaper scheduled", zap.String("spec", cfg.ReaperSchedule), zap.Duration("ttl", cfg.ReservationTTL))

	g.Go(func() error {
		zap.L().Info("inventory consumer started",
			zap.String("group", cfg.InventoryGroup), zap.Strings("topics", topics), zap.Int("workers", cfg.InventoryWorkers))
		return cons.Start(gctx, invalidator.HandleMessage)
	})

	// Metrics
	msrv := httpx.NewMetricsServer(cfg.InventoryMetrics, stats, map[string]httpx.HealthCheck{
		"postgres": db.Ping, "redis": redisx.Cache{RDB: rdb}.Ping,
	})
	g.Go(func() error {
		zap.L().Info("metrics listening", zap.String("addr", cfg.InventoryMetrics))
		if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = msrv.Shutdown(shutdownCtx)
		<-sched.Stop().Done()
		zap.L().Info("reaper stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("inventory exited", zap.Error(err))
	}
}
