package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/dashboard"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/auth"
	sharedcache "github.com/radieske/sports-bet-ledger/internal/shared/cache"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/shared/settings"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/deposit"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/gateway"
	whttp "github.com/radieske/sports-bet-ledger/internal/wallet-service/http"
	kpub "github.com/radieske/sports-bet-ledger/internal/wallet-service/producer"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/withdrawal"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Conexão com banco de dados Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache de settings e contadores do painel
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	if cfg.Env == "local" {
		if err := kafka.EnsureTopics(ctx, cfg.Brokers(), log, cfg.TopicDepositCompleted, cfg.TopicWithdrawalUpdated); err != nil {
			log.Warn("ensure topics", zap.Error(err))
		}
	}
	writer := kafka.NewWriter(cfg.Brokers())
	defer writer.Close()

	// deps
	store := ledger.NewPostgres(pg, log)
	payments := repo.NewPostgres(pg)
	sets := settings.NewStore(pg, rdb, cfg.SettingsCacheTTL, settings.Defaults(cfg), log)
	pub := kpub.NewKafkaPublisher(writer, cfg.TopicDepositCompleted, cfg.TopicWithdrawalUpdated)

	api := whttp.NewServer(log, whttp.Deps{
		Ledger:      store,
		Deposits:    deposit.New(store, payments, sets, pub, cfg.DepositMinMinor, cfg.DepositReturnURL, log),
		Withdrawals: withdrawal.New(store, payments, sets, pub, cfg.WithdrawalMinMinor, log),
		Gateways:    gateway.New(payments, log),
		Settings:    sets,
		Dashboard:   dashboard.NewStore(rdb),
		Profiles:    payments,
	}, auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer))

	// metrics/health
	msrv := metrics.StartMetricsServer(cfg.MetricsPort,
		pg.PingContext,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	)
	defer msrv.Close()

	if err := httpx.Serve(ctx, ":"+cfg.HTTPPort, api.Router(), log); err != nil {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("wallet-service stopped")
}
