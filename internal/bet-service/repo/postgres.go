package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

const betColumns = `b.id, b.user_id, b.match_id, b.bet_type, b.stake_minor, b.odds, b.potential_payout_minor,
	b.status, b.reference_id, b.placed_at, b.settled_at, m.home_team, m.away_team`

// Postgres implementa operações de persistência de apostas em banco Postgres.
// q == nil usa a conexão do repositório; senão roda na transação do chamador.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) conn(q db.Queryable) db.Queryable {
	if q == nil {
		return p.db
	}
	return q
}

func scanBet(row interface{ Scan(...any) error }) (Bet, error) {
	var (
		b               Bet
		betType, status string
		settled         sql.NullTime
	)
	err := row.Scan(&b.ID, &b.UserID, &b.MatchID, &betType, &b.StakeMinor, &b.Odds, &b.PotentialPayoutMinor,
		&status, &b.ReferenceID, &b.PlacedAt, &settled, &b.HomeTeam, &b.AwayTeam)
	if err != nil {
		return Bet{}, err
	}
	b.BetType = catalog.BetType(betType)
	b.Status = Status(status)
	if settled.Valid {
		t := settled.Time
		b.SettledAt = &t
	}
	return b, nil
}

// Insert grava a aposta em pending
func (p *Postgres) Insert(ctx context.Context, q db.Queryable, b *Bet) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return p.conn(q).QueryRowContext(ctx, `
		INSERT INTO bets(id, user_id, match_id, bet_type, stake_minor, odds, potential_payout_minor, status, reference_id)
		VALUES($1,$2,$3,$4,$5,$6,$7,'pending',$8)
		RETURNING placed_at`,
		b.ID, b.UserID, b.MatchID, string(b.BetType), b.StakeMinor, b.Odds, b.PotentialPayoutMinor, b.ReferenceID,
	).Scan(&b.PlacedAt)
}

// Get retorna a aposta pelo id
func (p *Postgres) Get(ctx context.Context, q db.Queryable, id string) (Bet, error) {
	return p.getWhere(ctx, q, `b.id=$1`, id, "")
}

// GetForUpdate trava a linha da aposta até o fim da transação
func (p *Postgres) GetForUpdate(ctx context.Context, q db.Queryable, id string) (Bet, error) {
	return p.getWhere(ctx, q, `b.id=$1`, id, " FOR UPDATE OF b")
}

// GetByReference retorna a aposta gravada com a chave de idempotência
func (p *Postgres) GetByReference(ctx context.Context, q db.Queryable, ref string) (Bet, error) {
	return p.getWhere(ctx, q, `b.reference_id=$1`, ref, "")
}

func (p *Postgres) getWhere(ctx context.Context, q db.Queryable, where, arg, lock string) (Bet, error) {
	if where == `b.id=$1` {
		if _, err := uuid.Parse(arg); err != nil {
			return Bet{}, apperr.NotFound.With("bet %s not found", arg)
		}
	}
	b, err := scanBet(p.conn(q).QueryRowContext(ctx,
		`SELECT `+betColumns+` FROM bets b JOIN matches m ON m.id = b.match_id WHERE `+where+lock, arg))
	if err == sql.ErrNoRows {
		return Bet{}, apperr.NotFound.With("bet %s not found", arg)
	}
	if err != nil {
		return Bet{}, db.Classify(err)
	}
	return b, nil
}

// MarkSettled move a aposta de pending para o status final.
// A condição status='pending' é a segunda barreira contra liquidação dupla.
func (p *Postgres) MarkSettled(ctx context.Context, q db.Queryable, id string, status Status, at time.Time) error {
	res, err := p.conn(q).ExecContext(ctx,
		`UPDATE bets SET status=$2, settled_at=$3 WHERE id=$1 AND status='pending'`, id, string(status), at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.AlreadySettled.With("bet %s is not pending", id)
	}
	return nil
}

// InsertHistory registra a transição para auditoria
func (p *Postgres) InsertHistory(ctx context.Context, q db.Queryable, betID string, from, to Status, actor, reason string) error {
	_, err := p.conn(q).ExecContext(ctx, `
		INSERT INTO bet_status_history(bet_id, old_status, new_status, actor, reason)
		VALUES($1,$2,$3,$4,$5)`, betID, string(from), string(to), actor, reason)
	return err
}

// PendingByMatch lista apostas em aberto de uma partida
func (p *Postgres) PendingByMatch(ctx context.Context, matchID string) ([]Bet, error) {
	return p.list(ctx, `SELECT `+betColumns+` FROM bets b JOIN matches m ON m.id = b.match_id
		WHERE b.match_id=$1 AND b.status='pending' ORDER BY b.placed_at ASC`, matchID)
}

// ListByUser lista as apostas do usuário, mais recentes primeiro
func (p *Postgres) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Bet, error) {
	return p.list(ctx, `SELECT `+betColumns+` FROM bets b JOIN matches m ON m.id = b.match_id
		WHERE b.user_id=$1 ORDER BY b.placed_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
}

// ListAll é a listagem administrativa com filtros
func (p *Postgres) ListAll(ctx context.Context, f Filter) ([]Bet, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return p.list(ctx, `SELECT `+betColumns+` FROM bets b JOIN matches m ON m.id = b.match_id
		WHERE ($1 = '' OR b.status = $1)
		  AND ($2 = '' OR b.match_id::text = $2)
		  AND ($3 = '' OR b.user_id ILIKE '%' || $3 || '%' OR m.home_team ILIKE '%' || $3 || '%' OR m.away_team ILIKE '%' || $3 || '%')
		ORDER BY b.placed_at DESC
		LIMIT $4 OFFSET $5`, string(f.Status), f.MatchID, f.Search, f.Limit, f.Offset)
}

func (p *Postgres) list(ctx context.Context, query string, args ...any) ([]Bet, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Stats agrega contagens e valores para o painel
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status='pending'),
		       COALESCE(SUM(stake_minor), 0),
		       COALESCE(SUM(potential_payout_minor) FILTER (WHERE status='won'), 0)
		FROM bets`).Scan(&s.Total, &s.Pending, &s.TotalStakedMinor, &s.TotalPaidOutMinor)
	return s, db.Classify(err)
}
