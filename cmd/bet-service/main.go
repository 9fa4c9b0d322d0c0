package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/bet-service/engine"
	bhttp "github.com/radieske/sports-bet-ledger/internal/bet-service/http"
	kpub "github.com/radieske/sports-bet-ledger/internal/bet-service/producer"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
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

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de system_settings)
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writer sem tópico fixo (bet_placed / bet_settled)
	if cfg.Env == "local" {
		if err := kafka.EnsureTopics(ctx, cfg.Brokers(), log, cfg.TopicBetPlaced, cfg.TopicBetSettled); err != nil {
			log.Warn("ensure topics", zap.Error(err))
		}
	}
	writer := kafka.NewWriter(cfg.Brokers())
	defer writer.Close()

	// deps
	eng := engine.New(
		ledger.NewPostgres(pg, log),
		repo.NewPostgres(pg),
		catalog.NewPostgres(pg),
		settings.NewStore(pg, rdb, cfg.SettingsCacheTTL, settings.Defaults(cfg), log),
		kpub.NewKafkaPublisher(writer, cfg.TopicBetPlaced, cfg.TopicBetSettled),
		log,
	)
	api := bhttp.NewServer(log, eng, auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer))

	// metrics/health
	msrv := metrics.StartMetricsServer(cfg.MetricsPort,
		pg.PingContext,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	)
	defer msrv.Close()

	if err := httpx.Serve(ctx, ":"+cfg.HTTPPort, api.Router(), log); err != nil {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("bet-service stopped")
}
