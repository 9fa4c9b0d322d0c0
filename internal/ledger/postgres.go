package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

const refConstraint = "ledger_entries_reference_id_key"

// Postgres implementa o Store sobre ledger_entries + wallets.
// A linha de wallets é o lock da partição do usuário e guarda o saldo materializado.
type Postgres struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPostgres(db *sql.DB, log *zap.Logger) *Postgres { return &Postgres{db: db, log: log} }

// Atomically garante a carteira, trava a linha (FOR UPDATE) e roda fn.
// No commit o saldo materializado é regravado a partir do ledger.
func (p *Postgres) Atomically(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	if userID == "" {
		return apperr.InvalidInput.With("user id required")
	}

	var appended []Entry
	err := db.WithTx(ctx, p.db, func(sqlTx *sql.Tx) error {
		if _, err := sqlTx.ExecContext(ctx,
			`INSERT INTO wallets(user_id) VALUES($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return fmt.Errorf("ensure wallet: %w", err)
		}

		var cached int64
		if err := sqlTx.QueryRowContext(ctx,
			`SELECT balance_minor FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&cached); err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}

		t := &pgTx{tx: sqlTx, userID: userID, cached: cached, log: p.log}
		if err := fn(ctx, t); err != nil {
			return err
		}
		if err := t.flush(ctx); err != nil {
			return err
		}
		appended = t.appended
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range appended {
		metrics.LedgerAppends.WithLabelValues(string(e.Kind)).Inc()
		metrics.LedgerAmount.WithLabelValues(string(e.Kind)).Add(float64(abs(e.AmountMinor)))
	}
	return nil
}

// EntriesFor lista em ordem de seq (mais antiga primeiro), a partir de after.
func (p *Postgres) EntriesFor(ctx context.Context, userID string, after int64, limit int) (Page, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT seq, id, user_id, kind, amount_minor, reference_id, related_bet_id, related_withdrawal_id, created_at
		FROM ledger_entries
		WHERE user_id=$1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3`, userID, after, limit)
	if err != nil {
		return Page{}, db.Classify(err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return Page{}, err
	}

	page := Page{Entries: entries, Next: after}
	if n := len(entries); n > 0 {
		page.Next = entries[n-1].Seq
	}
	return page, nil
}

// CurrentBalance soma o ledger num único statement (um snapshot).
func (p *Postgres) CurrentBalance(ctx context.Context, userID string) (int64, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_minor), 0) FROM ledger_entries WHERE user_id=$1`, userID).Scan(&bal)
	if err != nil {
		return 0, db.Classify(err)
	}
	return bal, nil
}

// Recent lista entradas de todos os usuários, mais recentes primeiro (visão administrativa).
func (p *Postgres) Recent(ctx context.Context, kind Kind, limit, offset int) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT seq, id, user_id, kind, amount_minor, reference_id, related_bet_id, related_withdrawal_id, created_at
		FROM ledger_entries
		WHERE ($1 = '' OR kind = $1)
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3`, string(kind), limit, offset)
	if err != nil {
		return nil, db.Classify(err)
	}
	return scanEntries(rows)
}

// ListWallets devolve as carteiras com o saldo materializado e o nome/email do perfil.
func (p *Postgres) ListWallets(ctx context.Context, limit, offset int) ([]Wallet, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT w.user_id, COALESCE(pr.full_name,''), COALESCE(pr.email,''), w.balance_minor, w.updated_at
		FROM wallets w
		LEFT JOIN profiles pr ON pr.user_id = w.user_id
		ORDER BY w.updated_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		var w Wallet
		if err := rows.Scan(&w.UserID, &w.FullName, &w.Email, &w.BalanceMinor, &w.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			kind       string
			betID, wID sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.UserID, &kind, &e.AmountMinor, &e.ReferenceID, &betID, &wID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.RelatedBetID = betID.String
		e.RelatedWithdrawalID = wID.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// pgTx é a Tx do ledger sobre uma *sql.Tx com a linha de wallets já travada.
type pgTx struct {
	tx     *sql.Tx
	userID string
	log    *zap.Logger

	cached   int64 // saldo materializado lido no lock
	balance  int64 // saldo recalculado do ledger + anexos desta Tx
	loaded   bool
	drift    bool
	appended []Entry
}

func (t *pgTx) UserID() string         { return t.userID }
func (t *pgTx) Queryable() db.Queryable { return t.tx }

func (t *pgTx) Balance(ctx context.Context) (int64, error) {
	if t.loaded {
		return t.balance, nil
	}

	var sum int64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_minor), 0) FROM ledger_entries WHERE user_id=$1`, t.userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("fold ledger: %w", err)
	}

	if sum != t.cached {
		// projeção divergente: o ledger vence, a coluna é regravada no flush
		t.drift = true
		metrics.ProjectionDrift.Inc()
		t.log.Warn("wallet projection drift repaired",
			zap.String("user_id", t.userID),
			zap.Int64("cached", t.cached),
			zap.Int64("ledger", sum))
	}

	t.balance = sum
	t.loaded = true
	return sum, nil
}

func (t *pgTx) HasReference(ctx context.Context, referenceID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE reference_id=$1)`, referenceID).Scan(&exists)
	return exists, err
}

func (t *pgTx) Append(ctx context.Context, entries ...Entry) ([]Entry, error) {
	if _, err := t.Balance(ctx); err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.UserID == "" {
			e.UserID = t.userID
		}
		if e.UserID != t.userID {
			return nil, apperr.InvalidInput.With("entry for %s appended under %s lock", e.UserID, t.userID)
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}

		err := t.tx.QueryRowContext(ctx, `
			INSERT INTO ledger_entries(id, user_id, kind, amount_minor, reference_id, related_bet_id, related_withdrawal_id)
			VALUES($1,$2,$3,$4,$5,$6,$7)
			RETURNING seq, created_at`,
			e.ID, e.UserID, string(e.Kind), e.AmountMinor, e.ReferenceID,
			nullString(e.RelatedBetID), nullString(e.RelatedWithdrawalID),
		).Scan(&e.Seq, &e.CreatedAt)
		if err != nil {
			if db.IsUniqueViolation(err, refConstraint) {
				return nil, apperr.DuplicateReference.With("reference %s already recorded", e.ReferenceID).Wrap(err)
			}
			return nil, fmt.Errorf("insert ledger entry: %w", err)
		}

		t.balance += e.AmountMinor
		t.appended = append(t.appended, e)
		out = append(out, e)
	}
	return out, nil
}

// flush regrava o saldo materializado com o valor recalculado.
func (t *pgTx) flush(ctx context.Context) error {
	if len(t.appended) == 0 && !t.drift {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE wallets SET balance_minor=$1, version=version+1, updated_at=now()
		WHERE user_id=$2`, t.balance, t.userID)
	if err != nil {
		return fmt.Errorf("update wallet projection: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
