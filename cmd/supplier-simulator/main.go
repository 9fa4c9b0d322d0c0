package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/supplier-simulator/checkout"
	"github.com/radieske/sports-bet-ledger/internal/supplier-simulator/feed"
)

// Simulador local: feed de odds no formato da the-odds-api e checkout de depósito.
func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, metrics.Instrument)

	feed.New(cfg.SimFeedAPIKey, time.Now().UnixNano()).Routes(r)
	checkout.New(cfg.SimWalletURL, cfg.SimGatewayID, cfg.SimGatewaySecret, log).Routes(r)

	msrv := metrics.StartMetricsServer(cfg.MetricsPort)
	defer msrv.Close()

	log.Info("supplier simulator running",
		zap.String("addr", ":"+cfg.HTTPPort),
		zap.String("wallet_url", cfg.SimWalletURL))
	if err := httpx.Serve(ctx, ":"+cfg.HTTPPort, r, log); err != nil {
		log.Fatal("simulator", zap.Error(err))
	}
}
