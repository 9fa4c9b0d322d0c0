// Package engine coloca e liquida apostas sobre o ledger.
// Toda checagem de saldo e o débito correspondente rodam na mesma transação,
// com a partição do usuário travada.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/shared/settings"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type BetRepo interface {
	Insert(ctx context.Context, q db.Queryable, b *repo.Bet) error
	Get(ctx context.Context, q db.Queryable, id string) (repo.Bet, error)
	GetForUpdate(ctx context.Context, q db.Queryable, id string) (repo.Bet, error)
	GetByReference(ctx context.Context, q db.Queryable, ref string) (repo.Bet, error)
	MarkSettled(ctx context.Context, q db.Queryable, id string, status repo.Status, at time.Time) error
	InsertHistory(ctx context.Context, q db.Queryable, betID string, from, to repo.Status, actor, reason string) error
	PendingByMatch(ctx context.Context, matchID string) ([]repo.Bet, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]repo.Bet, error)
	ListAll(ctx context.Context, f repo.Filter) ([]repo.Bet, error)
	Stats(ctx context.Context) (repo.Stats, error)
}

type MatchSource interface {
	Get(ctx context.Context, id string) (catalog.Match, error)
	GetForShare(ctx context.Context, q db.Queryable, id string) (catalog.Match, error)
	SetStatus(ctx context.Context, id string, status catalog.MatchStatus, result catalog.BetType) error
}

type SettingsSource interface {
	Current(ctx context.Context) (settings.Values, error)
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

type Engine struct {
	ledger   ledger.Store
	bets     BetRepo
	matches  MatchSource
	settings SettingsSource
	pub      Publisher
	log      *zap.Logger
	now      func() time.Time
}

func New(l ledger.Store, bets BetRepo, matches MatchSource, s SettingsSource, pub Publisher, log *zap.Logger) *Engine {
	return &Engine{ledger: l, bets: bets, matches: matches, settings: s, pub: pub, log: log, now: time.Now}
}

// PlaceBetInput é a aposta pedida pelo usuário autenticado
type PlaceBetInput struct {
	MatchID        string
	BetType        catalog.BetType
	StakeMinor     int64
	IdempotencyKey string
}

// BetReference é a chave de idempotência do débito da aposta
func BetReference(userID, key string) string { return "bet:" + userID + ":" + key }

// PlaceBet debita o stake e grava a aposta pending numa única transação.
// replayed=true quando a mesma chave de idempotência já tinha sido aceita.
func (e *Engine) PlaceBet(ctx context.Context, userID string, in PlaceBetInput) (bet repo.Bet, replayed bool, err error) {
	bt, err := catalog.ParseBetType(string(in.BetType))
	if err != nil {
		return repo.Bet{}, false, err
	}
	cur, err := e.settings.Current(ctx)
	if err != nil {
		return repo.Bet{}, false, err
	}
	if cur.MaintenanceMode {
		return repo.Bet{}, false, apperr.Maintenance
	}
	if in.StakeMinor < cur.MinBetMinor || in.StakeMinor > cur.MaxBetMinor {
		return repo.Bet{}, false, apperr.InvalidStake.With("stake %d outside [%d, %d]", in.StakeMinor, cur.MinBetMinor, cur.MaxBetMinor)
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	ref := BetReference(userID, key)
	log := e.log.With(zap.String("user_id", userID), zap.String("reference_id", ref))

	err = e.ledger.Atomically(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		q := tx.Queryable()

		seen, err := tx.HasReference(ctx, ref)
		if err != nil {
			return err
		}
		if seen {
			replayed = true
			bet, err = e.bets.GetByReference(ctx, q, ref)
			return err
		}

		m, err := e.matches.GetForShare(ctx, q, in.MatchID)
		if err != nil {
			return err
		}
		if err := catalog.CheckBettable(m); err != nil {
			return err
		}
		odds, err := catalog.OddsFor(m, bt)
		if err != nil {
			return err
		}
		payout, err := repo.PotentialPayout(in.StakeMinor, odds)
		if err != nil {
			return err
		}

		bet = repo.Bet{
			ID:                   uuid.NewString(),
			UserID:               userID,
			MatchID:              m.ID,
			BetType:              bt,
			StakeMinor:           in.StakeMinor,
			Odds:                 odds,
			PotentialPayoutMinor: payout,
			Status:               repo.StatusPending,
			ReferenceID:          ref,
			HomeTeam:             m.HomeTeam,
			AwayTeam:             m.AwayTeam,
		}
		if _, err := ledger.Debit(ctx, tx, ledger.Entry{
			Kind:         ledger.KindBetStake,
			ReferenceID:  ref,
			RelatedBetID: bet.ID,
		}, in.StakeMinor); err != nil {
			return err
		}
		return e.bets.Insert(ctx, q, &bet)
	})
	if errors.Is(err, apperr.DuplicateReference) {
		// outra requisição com a mesma chave commitou primeiro
		if prev, gerr := e.bets.GetByReference(ctx, nil, ref); gerr == nil {
			return prev, true, nil
		}
	}
	if err != nil {
		log.Info("bet rejected", zap.String("code", apperr.CodeOf(err)), zap.Error(err))
		return repo.Bet{}, false, err
	}
	if replayed {
		log.Info("bet replayed", zap.String("bet_id", bet.ID))
		return bet, true, nil
	}

	metrics.BetsPlaced.Inc()
	log.Info("bet placed", zap.String("bet_id", bet.ID), zap.Int64("stake_minor", bet.StakeMinor), zap.String("odds", bet.Odds.String()))

	if err := e.pub.PublishBetPlaced(ctx, events.BetPlaced{
		EventID:              uuid.NewString(),
		BetID:                bet.ID,
		UserID:               bet.UserID,
		MatchID:              bet.MatchID,
		BetType:              string(bet.BetType),
		StakeMinor:           bet.StakeMinor,
		Odds:                 bet.Odds.String(),
		PotentialPayoutMinor: bet.PotentialPayoutMinor,
		ReferenceID:          ref,
	}); err != nil {
		log.Warn("publish bet_placed failed", zap.String("bet_id", bet.ID), zap.Error(err))
	}
	return bet, false, nil
}

// SettleBet leva a aposta de pending para won, lost ou cancelled.
// won credita o payout fixado na colocação; cancelled devolve o stake; lost não gera entrada.
func (e *Engine) SettleBet(ctx context.Context, betID string, outcome repo.Status, actor string) (repo.Bet, error) {
	if !outcome.IsTerminal() {
		return repo.Bet{}, apperr.InvalidInput.With("outcome must be won, lost or cancelled")
	}
	b, err := e.bets.Get(ctx, nil, betID)
	if err != nil {
		return repo.Bet{}, err
	}
	return e.settle(ctx, b.UserID, betID, outcome, actor, "")
}

func (e *Engine) settle(ctx context.Context, userID, betID string, outcome repo.Status, actor, reason string) (repo.Bet, error) {
	var (
		bet    repo.Bet
		credit int64
	)
	err := e.ledger.Atomically(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		q := tx.Queryable()

		var err error
		bet, err = e.bets.GetForUpdate(ctx, q, betID)
		if err != nil {
			return err
		}
		if bet.Status != repo.StatusPending {
			return apperr.AlreadySettled.With("bet %s is %s", bet.ID, bet.Status)
		}

		switch outcome {
		case repo.StatusWon:
			credit = bet.PotentialPayoutMinor
			_, err = tx.Append(ctx, ledger.Entry{
				Kind:         ledger.KindBetPayout,
				AmountMinor:  credit,
				ReferenceID:  "bet-payout:" + bet.ID,
				RelatedBetID: bet.ID,
			})
		case repo.StatusCancelled:
			credit = bet.StakeMinor
			_, err = tx.Append(ctx, ledger.Entry{
				Kind:         ledger.KindBetRefund,
				AmountMinor:  credit,
				ReferenceID:  "bet-refund:" + bet.ID,
				RelatedBetID: bet.ID,
			})
		}
		if err != nil {
			return err
		}

		at := e.now()
		if err := e.bets.MarkSettled(ctx, q, bet.ID, outcome, at); err != nil {
			return err
		}
		if err := e.bets.InsertHistory(ctx, q, bet.ID, repo.StatusPending, outcome, actor, reason); err != nil {
			return err
		}
		bet.Status = outcome
		bet.SettledAt = &at
		return nil
	})
	if err != nil {
		return repo.Bet{}, err
	}

	metrics.BetsSettled.WithLabelValues(string(outcome)).Inc()
	e.log.Info("bet settled",
		zap.String("bet_id", bet.ID),
		zap.String("user_id", bet.UserID),
		zap.String("outcome", string(outcome)),
		zap.Int64("credit_minor", credit),
		zap.String("actor", actor))

	if err := e.pub.PublishBetSettled(ctx, events.BetSettled{
		EventID:     uuid.NewString(),
		BetID:       bet.ID,
		UserID:      bet.UserID,
		MatchID:     bet.MatchID,
		Outcome:     string(outcome),
		StakeMinor:  bet.StakeMinor,
		CreditMinor: credit,
		SettledBy:   actor,
	}); err != nil {
		e.log.Warn("publish bet_settled failed", zap.String("bet_id", bet.ID), zap.Error(err))
	}
	return bet, nil
}

// MatchResult é o resultado informado pelo admin: seleção vencedora ou cancelamento
type MatchResult string

const ResultCancelled MatchResult = "cancelled"

func ParseMatchResult(s string) (MatchResult, error) {
	if s == string(ResultCancelled) {
		return ResultCancelled, nil
	}
	if _, err := catalog.ParseBetType(s); err != nil {
		return "", apperr.InvalidInput.With("result must be home, draw, away or cancelled")
	}
	return MatchResult(s), nil
}

// SettleSummary conta o que SettleMatch fez com cada aposta pendente
type SettleSummary struct {
	Won       int `json:"won"`
	Lost      int `json:"lost"`
	Cancelled int `json:"cancelled"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// SettleMatch encerra a partida e liquida cada aposta pendente na transação do seu usuário.
// Rodar de novo com o mesmo resultado termina uma execução parcial.
func (e *Engine) SettleMatch(ctx context.Context, matchID string, result MatchResult, actor string) (SettleSummary, error) {
	m, err := e.matches.Get(ctx, matchID)
	if err != nil {
		return SettleSummary{}, err
	}

	status, winner := catalog.StatusCompleted, catalog.BetType(result)
	if result == ResultCancelled {
		status, winner = catalog.StatusCancelled, ""
	}
	if m.Status.Final() && (m.Status != status || m.Result != winner) {
		return SettleSummary{}, apperr.InvalidTransition.With("match %s already %s", m.ID, m.Status)
	}
	if !m.Status.Final() {
		if err := e.matches.SetStatus(ctx, m.ID, status, winner); err != nil {
			return SettleSummary{}, err
		}
	}

	pending, err := e.bets.PendingByMatch(ctx, m.ID)
	if err != nil {
		return SettleSummary{}, err
	}

	var sum SettleSummary
	for _, b := range pending {
		outcome := repo.StatusLost
		switch {
		case result == ResultCancelled:
			outcome = repo.StatusCancelled
		case b.BetType == winner:
			outcome = repo.StatusWon
		}

		_, err := e.settle(ctx, b.UserID, b.ID, outcome, actor, "match "+string(result))
		switch {
		case errors.Is(err, apperr.AlreadySettled):
			sum.Skipped++
		case err != nil:
			sum.Failed++
			e.log.Error("settle bet failed", zap.String("bet_id", b.ID), zap.String("match_id", m.ID), zap.Error(err))
		case outcome == repo.StatusWon:
			sum.Won++
		case outcome == repo.StatusLost:
			sum.Lost++
		default:
			sum.Cancelled++
		}
	}

	e.log.Info("match settled",
		zap.String("match_id", m.ID),
		zap.String("result", string(result)),
		zap.Int("won", sum.Won),
		zap.Int("lost", sum.Lost),
		zap.Int("cancelled", sum.Cancelled),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

// GetBet devolve a aposta só para o dono; de outro usuário vira NotFound.
func (e *Engine) GetBet(ctx context.Context, userID, betID string) (repo.Bet, error) {
	b, err := e.bets.Get(ctx, nil, betID)
	if err != nil {
		return repo.Bet{}, err
	}
	if b.UserID != userID {
		return repo.Bet{}, apperr.NotFound.With("bet %s not found", betID)
	}
	return b, nil
}

func (e *Engine) AdminGetBet(ctx context.Context, betID string) (repo.Bet, error) {
	return e.bets.Get(ctx, nil, betID)
}

func (e *Engine) ListBets(ctx context.Context, userID string, limit, offset int) ([]repo.Bet, error) {
	return e.bets.ListByUser(ctx, userID, limit, offset)
}

func (e *Engine) ListAll(ctx context.Context, f repo.Filter) ([]repo.Bet, error) {
	return e.bets.ListAll(ctx, f)
}

func (e *Engine) Stats(ctx context.Context) (repo.Stats, error) {
	return e.bets.Stats(ctx)
}
