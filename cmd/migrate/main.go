// migrate aplica ou desfaz o schema embutido em internal/shared/db/migrations.
//
//	migrate up
//	migrate down -steps 1
//	migrate version
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("migrate", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dsn := fs.String("dsn", cfg.PostgresDSN, "postgres DSN (default: POSTGRES_DSN)")
	steps := fs.Int("steps", 1, "migrations to roll back with down")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: migrate [-dsn DSN] up|down|version [-steps N]")
		fs.PrintDefaults()
	}

	if len(os.Args) < 2 {
		fs.Usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	_ = fs.Parse(os.Args[2:])

	switch cmd {
	case "up":
		v, err := db.MigrateUp(*dsn)
		if err != nil {
			log.Fatal("migrate up", zap.Error(err))
		}
		log.Info("schema up to date", zap.Uint("version", v))
	case "down":
		if err := db.MigrateDown(*dsn, *steps); err != nil {
			log.Fatal("migrate down", zap.Error(err))
		}
		log.Info("rolled back", zap.Int("steps", *steps))
	case "version":
		v, dirty, err := db.MigrateVersion(*dsn)
		if err != nil {
			log.Fatal("migrate version", zap.Error(err))
		}
		log.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
	default:
		fs.Usage()
		os.Exit(2)
	}
}
