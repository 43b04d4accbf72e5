package main

import (
	"context"
	"github.com/ariefcatur/lexshelf-orders/internal/config"
	"github.com/ariefcatur/lexshelf-orders/internal/logging"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/ariefcatur/lexshelf-orders/internal/postgres"
	"github.com/ariefcatur/lexshelf-orders/internal/seed"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.Init(logging.Options{Mode: cfg.LogMode, Service: "seed"})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, 2)
	if err != nil {
		zap.L().Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		zap.L().Fatal("migrate", zap.Error(err))
	}
	n, err := seed.Load(ctx, &orders.Repo{DB: db})
	if err != nil {
		zap.L().Fatal("seed", zap.Int("written", n), zap.Error(err))
	}
	zap.L().Info("catalog seeded", zap.Int("products", n))
}
