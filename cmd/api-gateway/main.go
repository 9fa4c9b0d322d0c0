package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/api-gateway/proxy"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// targets
	h, err := proxy.NewHandler(proxy.Targets{
		Catalog: env("CATALOG_URL", "http://localhost:8080"),
		Wallet:  env("WALLET_URL", "http://localhost:8082"),
		Bets:    env("BET_URL", "http://localhost:8083"),
	}, log)
	if err != nil {
		log.Fatal("gateway config", zap.Error(err))
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort)
	defer msrv.Close()

	if err := httpx.Serve(ctx, ":"+cfg.HTTPPort, h, log); err != nil {
		log.Fatal("gateway failed", zap.Error(err))
	}
	log.Info("api-gateway stopped")
}
