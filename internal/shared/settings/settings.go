// Package settings lê e grava system_settings com cache em Redis.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/cache"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

const cacheKey = "settings:current"

// Values são as configurações de plataforma editáveis pelo admin. Valores em paise.
type Values struct {
	MinBetMinor       int64  `json:"min_bet_amount"`
	MaxBetMinor       int64  `json:"max_bet_amount"`
	EnableDeposits    bool   `json:"enable_deposits"`
	EnableWithdrawals bool   `json:"enable_withdrawals"`
	MaintenanceMode   bool   `json:"maintenance_mode"`
	SiteName          string `json:"site_name"`
}

// Defaults vem da configuração do processo
func Defaults(cfg config.Config) Values {
	return Values{
		MinBetMinor:       cfg.StakeMinMinor,
		MaxBetMinor:       cfg.StakeMaxMinor,
		EnableDeposits:    true,
		EnableWithdrawals: true,
		SiteName:          "BetPro",
	}
}

// Validate confere coerência dos limites
func (v Values) Validate() error {
	if v.MinBetMinor <= 0 {
		return apperr.InvalidInput.With("min_bet_amount must be positive")
	}
	if v.MaxBetMinor < v.MinBetMinor {
		return apperr.InvalidInput.With("max_bet_amount must be >= min_bet_amount")
	}
	return nil
}

// fields mapeia chave persistida -> campo de Values
func (v *Values) fields() map[string]any {
	return map[string]any{
		"min_bet_amount":     &v.MinBetMinor,
		"max_bet_amount":     &v.MaxBetMinor,
		"enable_deposits":    &v.EnableDeposits,
		"enable_withdrawals": &v.EnableWithdrawals,
		"maintenance_mode":   &v.MaintenanceMode,
		"site_name":          &v.SiteName,
	}
}

type Store struct {
	db       *sql.DB
	rdb      redis.Cmdable // opcional
	ttl      time.Duration
	defaults Values
	log      *zap.Logger
}

func NewStore(db *sql.DB, rdb redis.Cmdable, ttl time.Duration, defaults Values, log *zap.Logger) *Store {
	return &Store{db: db, rdb: rdb, ttl: ttl, defaults: defaults, log: log}
}

// Current devolve os valores efetivos: defaults sobrescritos pelo banco.
// Falha no Redis não impede a leitura; cai direto no Postgres.
func (s *Store) Current(ctx context.Context) (Values, error) {
	if s.rdb != nil {
		var v Values
		ok, err := cache.GetJSON(ctx, s.rdb, cacheKey, &v)
		if err != nil {
			s.log.Warn("settings cache read failed", zap.Error(err))
		} else if ok {
			return v, nil
		}
	}

	v, err := s.load(ctx)
	if err != nil {
		return Values{}, err
	}

	if s.rdb != nil {
		if err := cache.SetJSON(ctx, s.rdb, cacheKey, v, s.ttl); err != nil {
			s.log.Warn("settings cache write failed", zap.Error(err))
		}
	}
	return v, nil
}

func (s *Store) load(ctx context.Context) (Values, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return Values{}, db.Classify(err)
	}
	defer rows.Close()

	v := s.defaults
	f := v.fields()
	for rows.Next() {
		var (
			key string
			raw []byte
		)
		if err := rows.Scan(&key, &raw); err != nil {
			return Values{}, err
		}
		dst, ok := f[key]
		if !ok {
			continue // chave desconhecida (ex.: conteúdo do site) não afeta o núcleo
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			s.log.Warn("invalid setting ignored", zap.String("key", key), zap.Error(err))
		}
	}
	return v, rows.Err()
}

// Update aplica um patch parcial (chave -> valor JSON), valida o resultado e invalida o cache.
func (s *Store) Update(ctx context.Context, patch map[string]json.RawMessage) (Values, error) {
	cur, err := s.load(ctx)
	if err != nil {
		return Values{}, err
	}

	next := cur
	f := next.fields()
	for key, raw := range patch {
		dst, ok := f[key]
		if !ok {
			return Values{}, apperr.InvalidInput.With("unknown setting %q", key)
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return Values{}, apperr.InvalidInput.With("invalid value for %s: %v", key, err)
		}
	}
	if err := next.Validate(); err != nil {
		return Values{}, err
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for key := range patch {
			b, err := json.Marshal(next.fields()[key])
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO system_settings(key, value, updated_at) VALUES($1, $2, now())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, string(b)); err != nil {
				return fmt.Errorf("upsert setting %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return Values{}, err
	}

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
			s.log.Warn("settings cache invalidation failed", zap.Error(err))
		}
	}
	return next, nil
}
