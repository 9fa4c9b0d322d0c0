package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/catalog"
	ccache "github.com/radieske/sports-bet-ledger/internal/catalog-service/cache"
	chttp "github.com/radieske/sports-bet-ledger/internal/catalog-service/http"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/importer"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/shared/auth"
	sharedcache "github.com/radieske/sports-bet-ledger/internal/shared/cache"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
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

	// Postgres: partidas, fontes e categorias
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache das listagens públicas
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	matches := catalog.NewPostgres(pg)
	sources := repo.NewPostgres(pg)

	api := chttp.NewServer(log, chttp.Deps{
		Matches:  matches,
		Sources:  sources,
		Importer: importer.New(sources, matches, cfg.ImportTimeout, log),
		Cache:    ccache.New(rdb, cfg.CatalogCacheTTL),
	}, auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer))

	msrv := metrics.StartMetricsServer(cfg.MetricsPort,
		pg.PingContext,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	)
	defer msrv.Close()

	if err := httpx.Serve(ctx, ":"+cfg.HTTPPort, api.Router(), log); err != nil {
		log.Fatal("api", zap.Error(err))
	}
	log.Info("catalog-service stopped")
}
