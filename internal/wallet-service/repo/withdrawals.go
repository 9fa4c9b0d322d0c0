package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

const withdrawalColumns = `id, user_id, amount_minor, method, bank_details, status, reference_id,
	COALESCE(admin_notes,''), COALESCE(processed_by,''), requested_at, processed_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (Withdrawal, error) {
	var (
		w         Withdrawal
		status    string
		details   []byte
		processed sql.NullTime
	)
	err := row.Scan(&w.ID, &w.UserID, &w.AmountMinor, &w.Method, &details, &status, &w.ReferenceID,
		&w.AdminNotes, &w.ProcessedBy, &w.RequestedAt, &processed)
	w.Status = WithdrawalStatus(status)
	w.BankDetails = details
	w.ProcessedAt = timePtr(processed)
	return w, err
}

func (p *Postgres) InsertWithdrawal(ctx context.Context, q db.Queryable, w *Withdrawal) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if len(w.BankDetails) == 0 {
		w.BankDetails = []byte(`{}`)
	}
	w.Status = WithdrawalPending
	return p.conn(q).QueryRowContext(ctx, `
		INSERT INTO withdrawal_requests(id, user_id, amount_minor, method, bank_details, status, reference_id)
		VALUES($1,$2,$3,$4,$5,'pending',$6)
		RETURNING requested_at`,
		w.ID, w.UserID, w.AmountMinor, w.Method, string(w.BankDetails), w.ReferenceID,
	).Scan(&w.RequestedAt)
}

func (p *Postgres) GetWithdrawal(ctx context.Context, q db.Queryable, id string) (Withdrawal, error) {
	return p.getWithdrawal(ctx, q, `id=$1`, id, "")
}

func (p *Postgres) GetWithdrawalForUpdate(ctx context.Context, q db.Queryable, id string) (Withdrawal, error) {
	return p.getWithdrawal(ctx, q, `id=$1`, id, " FOR UPDATE")
}

func (p *Postgres) GetWithdrawalByReference(ctx context.Context, q db.Queryable, ref string) (Withdrawal, error) {
	return p.getWithdrawal(ctx, q, `reference_id=$1`, ref, "")
}

func (p *Postgres) getWithdrawal(ctx context.Context, q db.Queryable, where, arg, lock string) (Withdrawal, error) {
	if where == `id=$1` {
		if _, err := uuid.Parse(arg); err != nil {
			return Withdrawal{}, apperr.NotFound.With("withdrawal %s not found", arg)
		}
	}
	w, err := scanWithdrawal(p.conn(q).QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE `+where+lock, arg))
	if err == sql.ErrNoRows {
		return Withdrawal{}, apperr.NotFound.With("withdrawal %s not found", arg)
	}
	if err != nil {
		return Withdrawal{}, db.Classify(err)
	}
	return w, nil
}

// UpdateWithdrawal grava a decisão do admin. from protege contra decisão concorrente.
func (p *Postgres) UpdateWithdrawal(ctx context.Context, q db.Queryable, id string, from, to WithdrawalStatus, notes, by string, at time.Time) error {
	res, err := p.conn(q).ExecContext(ctx, `
		UPDATE withdrawal_requests
		SET status=$3, admin_notes=NULLIF($4,''), processed_by=$5, processed_at=$6
		WHERE id=$1 AND status=$2`, id, string(from), string(to), notes, by, at)
	if err != nil {
		return db.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.InvalidTransition.With("withdrawal %s is not %s", id, from)
	}
	return nil
}

func (p *Postgres) ListWithdrawals(ctx context.Context, userID string, limit, offset int) ([]Withdrawal, error) {
	return p.listWithdrawals(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE user_id=$1 ORDER BY requested_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

// ListAllWithdrawals é a fila do admin, mais antigos primeiro
func (p *Postgres) ListAllWithdrawals(ctx context.Context, status WithdrawalStatus, limit, offset int) ([]Withdrawal, error) {
	return p.listWithdrawals(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE ($1 = '' OR status = $1) ORDER BY requested_at ASC LIMIT $2 OFFSET $3`, string(status), limit, offset)
}

func (p *Postgres) listWithdrawals(ctx context.Context, query string, args ...any) ([]Withdrawal, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
