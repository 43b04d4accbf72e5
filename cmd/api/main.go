package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/lexshelf-orders/internal/checkout"
	"github.com/ariefcatur/lexshelf-orders/internal/config"
	"github.com/ariefcatur/lexshelf-orders/internal/httpx"
	"github.com/ariefcatur/lexshelf-orders/internal/inventory"
	kafkax "github.com/ariefcatur/lexshelf-orders/internal/kafka"
	"github.com/ariefcatur/lexshelf-orders/internal/logging"
	"github.com/ariefcatur/lexshelf-orders/internal/memstore"
	"github.com/ariefcatur/lexshelf-orders/internal/metrics"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/ariefcatur/lexshelf-orders/internal/postgres"
	"github.com/ariefcatur/lexshelf-orders/internal/redisx"
	"github.com/ariefcatur/lexshelf-orders/internal/seed"
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

// backend is everything the API needs from a store driver.
type backend struct {
	catalog  checkout.Catalog
	orders   checkout.OrderStore
	ledger   checkout.Ledger
	queries  httpx.OrderQueries
	products httpx.ProductQueries
	cache    redisx.KV
	events   httpx.EventPublisher
	checks   map[string]httpx.HealthCheck
	reaper   *inventory.Reaper // in-process reaper, memory driver only
	close    func()
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.Init(logging.Options{Mode: cfg.LogMode, File: cfg.LogFile, Service: cfg.ServiceName})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	b, err := open(ctx, cfg, m)
	if err != nil {
		zap.L().Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer b.close()

	router := httpx.NewRouter(b.checks)
	(&httpx.OrdersHandler{
		Placer:  checkout.NewPlacer(b.catalog, b.orders, b.ledger, orders.ClockNumbers{}, m),
		Orders:  b.queries,
		Cache:   b.cache,
		Events:  b.events,
		Timeout: cfg.CheckoutTimeout,
	}).Register(router)
	(&httpx.ProductsHandler{Catalog: b.products, Cache: b.cache}).Register(router)
	httpx.RegisterMetrics(router, m)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("driver", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if b.reaper != nil {
		sched, err := b.reaper.Schedule(gctx, cfg.ReaperSchedule)
		if err != nil {
			zap.L().Fatal("reaper", zap.Error(err))
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}

	if err := g.Wait(); err != nil {
		zap.L().Error("api exited", zap.Error(err))
	}
}

func open(ctx context.Context, cfg config.Config, m *metrics.Collector) (*backend, error) {
	if cfg.StoreDriver == config.DriverMemory {
		s := memstore.New()
		n, err := seed.Load(ctx, s)
		if err != nil {
			return nil, err
		}
		zap.L().Warn("using in-memory store, data is lost on exit", zap.Int("seeded_products", n))
		return &backend{
			catalog: s, orders: s, ledger: s, queries: s, products: s,
			cache:  redisx.NewMemoryKV(),
			reaper: &inventory.Reaper{Ledger: s, Metrics: m, TTL: cfg.ReservationTTL, Batch: cfg.ReaperBatch},
			close:  func() {},
		}, nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMax)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	rdb := redisx.New(cfg.RedisAddr)
	cache := redisx.Cache{RDB: rdb}
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.ServiceName, 1024)
	prod.Start()

	repo := &orders.Repo{DB: db}
	return &backend{
		catalog: repo, orders: repo, ledger: &orders.ReservationRepo{DB: db}, queries: repo, products: repo,
		cache:  cache,
		events: prod,
		checks: map[string]httpx.HealthCheck{"postgres": db.Ping, "redis": cache.Ping},
		close: func() {
			prod.Close()
			prod.WaitClosed()
			_ = rdb.Close()
			db.Close()
		},
	}, nil
}
