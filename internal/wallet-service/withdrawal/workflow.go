// Package withdrawal implementa o fluxo de saque: pedido do usuário, aprovação ou rejeição pelo admin.
// O débito só acontece na aprovação, com o saldo checado de novo sob o lock do usuário.
package withdrawal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/shared/settings"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/repo"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type Repo interface {
	InsertWithdrawal(ctx context.Context, q db.Queryable, w *repo.Withdrawal) error
	GetWithdrawal(ctx context.Context, q db.Queryable, id string) (repo.Withdrawal, error)
	GetWithdrawalForUpdate(ctx context.Context, q db.Queryable, id string) (repo.Withdrawal, error)
	GetWithdrawalByReference(ctx context.Context, q db.Queryable, ref string) (repo.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, q db.Queryable, id string, from, to repo.WithdrawalStatus, notes, by string, at time.Time) error
	ListWithdrawals(ctx context.Context, userID string, limit, offset int) ([]repo.Withdrawal, error)
	ListAllWithdrawals(ctx context.Context, status repo.WithdrawalStatus, limit, offset int) ([]repo.Withdrawal, error)
}

type SettingsSource interface {
	Current(ctx context.Context) (settings.Values, error)
}

type Publisher interface {
	PublishWithdrawalUpdated(ctx context.Context, e events.WithdrawalUpdated) error
}

type Workflow struct {
	ledger    ledger.Store
	repo      Repo
	settings  SettingsSource
	pub       Publisher
	log       *zap.Logger
	minAmount int64
	now       func() time.Time
}

func New(l ledger.Store, r Repo, s SettingsSource, pub Publisher, minAmount int64, log *zap.Logger) *Workflow {
	return &Workflow{ledger: l, repo: r, settings: s, pub: pub, log: log, minAmount: minAmount, now: time.Now}
}

// RequestInput é o pedido de saque do usuário autenticado
type RequestInput struct {
	AmountMinor    int64
	Method         string
	BankDetails    json.RawMessage
	IdempotencyKey string
}

// LedgerReference é a reference_id do débito de um saque aprovado
func LedgerReference(withdrawalID string) string { return "withdrawal:" + withdrawalID }

// Request registra o pedido em pending. O saldo precisa cobrir o valor, mas nada é debitado ainda.
func (f *Workflow) Request(ctx context.Context, userID string, in RequestInput) (w repo.Withdrawal, replayed bool, err error) {
	if in.AmountMinor < f.minAmount {
		return repo.Withdrawal{}, false, apperr.BelowMinimum.With("minimum withdrawal is %d", f.minAmount)
	}
	cur, err := f.settings.Current(ctx)
	if err != nil {
		return repo.Withdrawal{}, false, err
	}
	if cur.MaintenanceMode {
		return repo.Withdrawal{}, false, apperr.Maintenance
	}
	if !cur.EnableWithdrawals {
		return repo.Withdrawal{}, false, apperr.WithdrawalsDisabled
	}
	if in.Method == "" {
		in.Method = "bank_transfer"
	}

	key := in.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	ref := "withdrawal-request:" + userID + ":" + key

	err = f.ledger.Atomically(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		q := tx.Queryable()

		prev, err := f.repo.GetWithdrawalByReference(ctx, q, ref)
		if err == nil {
			w, replayed = prev, true
			return nil
		}
		if !errors.Is(err, apperr.NotFound) {
			return err
		}

		ok, err := ledger.WouldCoverDebit(ctx, tx, in.AmountMinor)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InsufficientBalance.With("balance does not cover withdrawal of %d", in.AmountMinor)
		}

		w = repo.Withdrawal{
			UserID:      userID,
			AmountMinor: in.AmountMinor,
			Method:      in.Method,
			BankDetails: in.BankDetails,
			ReferenceID: ref,
		}
		return f.repo.InsertWithdrawal(ctx, q, &w)
	})
	if err != nil {
		return repo.Withdrawal{}, false, err
	}
	if replayed {
		return w, true, nil
	}

	metrics.Withdrawals.WithLabelValues(string(repo.WithdrawalPending)).Inc()
	f.log.Info("withdrawal requested",
		zap.String("user_id", userID),
		zap.String("withdrawal_id", w.ID),
		zap.Int64("amount_minor", w.AmountMinor))
	f.publish(ctx, w, "")
	return w, false, nil
}

// Approve debita o saque e o conclui na mesma transação (pending -> approved -> completed).
func (f *Workflow) Approve(ctx context.Context, id, admin, notes string) (repo.Withdrawal, error) {
	return f.decide(ctx, id, admin, notes, true)
}

// Reject encerra o pedido sem efeito no ledger.
func (f *Workflow) Reject(ctx context.Context, id, admin, notes string) (repo.Withdrawal, error) {
	return f.decide(ctx, id, admin, notes, false)
}

func (f *Workflow) decide(ctx context.Context, id, admin, notes string, approve bool) (repo.Withdrawal, error) {
	head, err := f.repo.GetWithdrawal(ctx, nil, id)
	if err != nil {
		return repo.Withdrawal{}, err
	}

	var w repo.Withdrawal
	err = f.ledger.Atomically(ctx, head.UserID, func(ctx context.Context, tx ledger.Tx) error {
		q := tx.Queryable()

		var err error
		w, err = f.repo.GetWithdrawalForUpdate(ctx, q, id)
		if err != nil {
			return err
		}

		final := repo.WithdrawalRejected
		if approve {
			if !w.Status.CanTransition(repo.WithdrawalApproved) {
				return apperr.InvalidTransition.With("withdrawal %s is %s", w.ID, w.Status)
			}
			if _, err := ledger.Debit(ctx, tx, ledger.Entry{
				Kind:                ledger.KindWithdrawalRelease,
				ReferenceID:         LedgerReference(w.ID),
				RelatedWithdrawalID: w.ID,
			}, w.AmountMinor); err != nil {
				return err
			}
			final = repo.WithdrawalCompleted
			if !repo.WithdrawalApproved.CanTransition(final) {
				return apperr.InvalidTransition.With("withdrawal %s cannot complete", w.ID)
			}
		} else if !w.Status.CanTransition(repo.WithdrawalRejected) {
			return apperr.InvalidTransition.With("withdrawal %s is %s", w.ID, w.Status)
		}

		at := f.now()
		if err := f.repo.UpdateWithdrawal(ctx, q, w.ID, w.Status, final, notes, admin, at); err != nil {
			return err
		}
		w.Status, w.AdminNotes, w.ProcessedBy, w.ProcessedAt = final, notes, admin, &at
		return nil
	})
	if err != nil {
		f.log.Info("withdrawal decision rejected",
			zap.String("withdrawal_id", id),
			zap.Bool("approve", approve),
			zap.String("code", apperr.CodeOf(err)))
		return repo.Withdrawal{}, err
	}

	metrics.Withdrawals.WithLabelValues(string(w.Status)).Inc()
	f.log.Info("withdrawal decided",
		zap.String("withdrawal_id", w.ID),
		zap.String("user_id", w.UserID),
		zap.String("status", string(w.Status)),
		zap.String("admin", admin))
	f.publish(ctx, w, string(repo.WithdrawalPending))
	return w, nil
}

func (f *Workflow) publish(ctx context.Context, w repo.Withdrawal, old string) {
	if err := f.pub.PublishWithdrawalUpdated(ctx, events.WithdrawalUpdated{
		EventID:      uuid.NewString(),
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		AmountMinor:  w.AmountMinor,
		OldStatus:    old,
		Status:       string(w.Status),
	}); err != nil {
		f.log.Warn("publish withdrawal_updated failed", zap.String("withdrawal_id", w.ID), zap.Error(err))
	}
}

func (f *Workflow) List(ctx context.Context, userID string, limit, offset int) ([]repo.Withdrawal, error) {
	return f.repo.ListWithdrawals(ctx, userID, limit, offset)
}

func (f *Workflow) ListAll(ctx context.Context, status repo.WithdrawalStatus, limit, offset int) ([]repo.Withdrawal, error) {
	return f.repo.ListAllWithdrawals(ctx, status, limit, offset)
}
