package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/dashboard"
	"github.com/radieske/sports-bet-ledger/internal/shared/cache"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/stats-worker/consumer"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	ledgerTopics := []string{cfg.TopicBetPlaced, cfg.TopicBetSettled, cfg.TopicDepositCompleted, cfg.TopicWithdrawalUpdated}
	if cfg.Env == "local" {
		if err := kafka.EnsureTopics(ctx, cfg.Brokers(), log, append(ledgerTopics, cfg.TopicEventsDLQ)...); err != nil {
			log.Warn("ensure topics", zap.Error(err))
		}
	}

	// consumer group: cada evento é contado por uma única instância
	reader := kafka.NewGroupReader(cfg.Brokers(), "stats-worker", ledgerTopics)
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.Brokers())
	defer dlq.Close()

	proc := &consumer.Processor{
		Log:      log,
		Reader:   reader,
		Counters: dashboard.NewStore(rdb),
		DLQ:      dlq,
		DLQTopic: cfg.TopicEventsDLQ,
	}

	msrv := metrics.StartMetricsServer(cfg.MetricsPort,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	)
	defer msrv.Close()

	log.Info("stats-worker started", zap.Strings("topics", ledgerTopics))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("stats-worker stopped")
}
