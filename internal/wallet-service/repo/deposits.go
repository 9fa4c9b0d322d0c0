package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

const intentColumns = `id, user_id, gateway_id, amount_minor, status, COALESCE(gateway_reference,''), created_at, completed_at`

func scanIntent(row interface{ Scan(...any) error }) (DepositIntent, error) {
	var (
		d         DepositIntent
		status    string
		completed sql.NullTime
	)
	err := row.Scan(&d.ID, &d.UserID, &d.GatewayID, &d.AmountMinor, &status, &d.GatewayReference, &d.CreatedAt, &completed)
	d.Status = DepositStatus(status)
	d.CompletedAt = timePtr(completed)
	return d, err
}

func (p *Postgres) InsertIntent(ctx context.Context, q db.Queryable, d *DepositIntent) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = DepositPending
	return p.conn(q).QueryRowContext(ctx, `
		INSERT INTO deposit_intents(id, user_id, gateway_id, amount_minor, status)
		VALUES($1,$2,$3,$4,'pending')
		RETURNING created_at`, d.ID, d.UserID, d.GatewayID, d.AmountMinor).Scan(&d.CreatedAt)
}

func (p *Postgres) GetIntent(ctx context.Context, q db.Queryable, id string) (DepositIntent, error) {
	return p.getIntent(ctx, q, id, "")
}

func (p *Postgres) GetIntentForUpdate(ctx context.Context, q db.Queryable, id string) (DepositIntent, error) {
	return p.getIntent(ctx, q, id, " FOR UPDATE")
}

func (p *Postgres) getIntent(ctx context.Context, q db.Queryable, id, lock string) (DepositIntent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return DepositIntent{}, apperr.NotFound.With("deposit %s not found", id)
	}
	d, err := scanIntent(p.conn(q).QueryRowContext(ctx, `SELECT `+intentColumns+` FROM deposit_intents WHERE id=$1`+lock, id))
	if err == sql.ErrNoRows {
		return DepositIntent{}, apperr.NotFound.With("deposit %s not found", id)
	}
	if err != nil {
		return DepositIntent{}, db.Classify(err)
	}
	return d, nil
}

// FinishIntent move a intenção de pending para completed ou failed.
// Retorna InvalidTransition se ela já não estiver pending.
func (p *Postgres) FinishIntent(ctx context.Context, q db.Queryable, id string, status DepositStatus, gatewayRef string, at time.Time) error {
	res, err := p.conn(q).ExecContext(ctx, `
		UPDATE deposit_intents SET status=$2, gateway_reference=NULLIF($3,''), completed_at=$4
		WHERE id=$1 AND status='pending'`, id, string(status), gatewayRef, at)
	if err != nil {
		return db.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.InvalidTransition.With("deposit %s is not pending", id)
	}
	return nil
}

func (p *Postgres) ListIntents(ctx context.Context, userID string, limit, offset int) ([]DepositIntent, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+intentColumns+` FROM deposit_intents
		WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []DepositIntent
	for rows.Next() {
		d, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
