// Package dashboard mantém os contadores do painel administrativo em um hash Redis,
// alimentados pelos eventos de ledger. Cada evento é aplicado uma única vez.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/topics"
)

const (
	countersKey = "dashboard:counters"
	seenPrefix  = "dashboard:seen:"
	DedupTTL    = 48 * time.Hour
)

// ErrMalformed marca mensagens que nunca serão aplicáveis (vão para a DLQ)
var ErrMalformed = errors.New("malformed ledger event")

// Snapshot é o que o painel exibe. Valores monetários em paise.
type Snapshot struct {
	BetsPlaced           int64 `json:"bets_placed"`
	BetsPending          int64 `json:"bets_pending"`
	BetsWon              int64 `json:"bets_won"`
	BetsLost             int64 `json:"bets_lost"`
	BetsCancelled        int64 `json:"bets_cancelled"`
	StakedMinor          int64 `json:"staked_minor"`
	PaidOutMinor         int64 `json:"paid_out_minor"`
	RefundedMinor        int64 `json:"refunded_minor"`
	Deposits             int64 `json:"deposits"`
	DepositedMinor       int64 `json:"deposited_minor"`
	WithdrawalsPending   int64 `json:"withdrawals_pending"`
	WithdrawalsCompleted int64 `json:"withdrawals_completed"`
	WithdrawalsRejected  int64 `json:"withdrawals_rejected"`
	WithdrawnMinor       int64 `json:"withdrawn_minor"`
}

// fields liga o nome do campo no hash ao campo do Snapshot
func (s *Snapshot) fields() map[string]*int64 {
	return map[string]*int64{
		"bets_placed":           &s.BetsPlaced,
		"bets_pending":          &s.BetsPending,
		"bets_won":              &s.BetsWon,
		"bets_lost":             &s.BetsLost,
		"bets_cancelled":        &s.BetsCancelled,
		"staked_minor":          &s.StakedMinor,
		"paid_out_minor":        &s.PaidOutMinor,
		"refunded_minor":        &s.RefundedMinor,
		"deposits":              &s.Deposits,
		"deposited_minor":       &s.DepositedMinor,
		"withdrawals_pending":   &s.WithdrawalsPending,
		"withdrawals_completed": &s.WithdrawalsCompleted,
		"withdrawals_rejected":  &s.WithdrawalsRejected,
		"withdrawn_minor":       &s.WithdrawnMinor,
	}
}

// Delta é o efeito de um evento sobre os contadores
type Delta struct {
	EventID string
	Incr    map[string]int64
}

// DeltaFor decodifica a mensagem do tópico e calcula os incrementos.
func DeltaFor(topic string, value []byte) (Delta, error) {
	switch topic {
	case topics.BetPlaced:
		var e events.BetPlaced
		if err := decode(value, &e, &e.EventID); err != nil {
			return Delta{}, err
		}
		return Delta{EventID: e.EventID, Incr: map[string]int64{
			"bets_placed":  1,
			"bets_pending": 1,
			"staked_minor": e.StakeMinor,
		}}, nil

	case topics.BetSettled:
		var e events.BetSettled
		if err := decode(value, &e, &e.EventID); err != nil {
			return Delta{}, err
		}
		d := Delta{EventID: e.EventID, Incr: map[string]int64{"bets_pending": -1}}
		switch e.Outcome {
		case "won":
			d.Incr["bets_won"] = 1
			d.Incr["paid_out_minor"] = e.CreditMinor
		case "lost":
			d.Incr["bets_lost"] = 1
		case "cancelled":
			d.Incr["bets_cancelled"] = 1
			d.Incr["refunded_minor"] = e.CreditMinor
		default:
			return Delta{}, fmt.Errorf("%w: outcome %q", ErrMalformed, e.Outcome)
		}
		return d, nil

	case topics.DepositCompleted:
		var e events.DepositCompleted
		if err := decode(value, &e, &e.EventID); err != nil {
			return Delta{}, err
		}
		return Delta{EventID: e.EventID, Incr: map[string]int64{
			"deposits":        1,
			"deposited_minor": e.AmountMinor,
		}}, nil

	case topics.WithdrawalUpdated:
		var e events.WithdrawalUpdated
		if err := decode(value, &e, &e.EventID); err != nil {
			return Delta{}, err
		}
		d := Delta{EventID: e.EventID, Incr: map[string]int64{}}
		switch e.Status {
		case "pending":
			d.Incr["withdrawals_pending"] = 1
		case "completed":
			d.Incr["withdrawals_pending"] = -1
			d.Incr["withdrawals_completed"] = 1
			d.Incr["withdrawn_minor"] = e.AmountMinor
		case "rejected":
			d.Incr["withdrawals_pending"] = -1
			d.Incr["withdrawals_rejected"] = 1
		default:
			return Delta{}, fmt.Errorf("%w: withdrawal status %q", ErrMalformed, e.Status)
		}
		return d, nil
	}
	return Delta{}, fmt.Errorf("%w: unknown topic %q", ErrMalformed, topic)
}

func decode(value []byte, dst any, eventID *string) error {
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if *eventID == "" {
		return fmt.Errorf("%w: missing event_id", ErrMalformed)
	}
	return nil
}

type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable) *Store { return &Store{rdb: rdb, ttl: DedupTTL} }

// Apply aplica o delta uma vez por event_id. applied=false para evento já visto.
func (s *Store) Apply(ctx context.Context, d Delta) (applied bool, err error) {
	ok, err := s.rdb.SetNX(ctx, seenPrefix+d.EventID, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup marker: %w", err)
	}
	if !ok {
		return false, nil
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for field, n := range d.Incr {
			if n != 0 {
				p.HIncrBy(ctx, countersKey, field, n)
			}
		}
		return nil
	})
	if err != nil {
		// libera o marcador para a reentrega tentar de novo
		_ = s.rdb.Del(ctx, seenPrefix+d.EventID).Err()
		return false, fmt.Errorf("apply counters: %w", err)
	}
	return true, nil
}

func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	raw, err := s.rdb.HGetAll(ctx, countersKey).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read counters: %w", err)
	}
	var snap Snapshot
	f := snap.fields()
	for k, v := range raw {
		dst, ok := f[k]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Snapshot{}, fmt.Errorf("counter %s: %w", k, err)
		}
		*dst = n
	}
	return snap, nil
}
