package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

const matchColumns = `id, COALESCE(external_id,''), COALESCE(api_source_id::text,''), home_team, away_team, sport,
	COALESCE(category_key,''), match_date, status, COALESCE(result,''), home_odds, draw_odds, away_odds,
	show_on_frontend, created_at, updated_at`

// Postgres persiste partidas. Métodos que recebem db.Queryable rodam dentro da transação do chamador.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// ImportedMatch é uma partida vinda de uma API externa
type ImportedMatch struct {
	ExternalID  string
	HomeTeam    string
	AwayTeam    string
	Sport       string
	CategoryKey string
	MatchDate   time.Time
	HomeOdds    decimal.NullDecimal
	DrawOdds    decimal.NullDecimal
	AwayOdds    decimal.NullDecimal
}

// AdminFilter filtra a listagem administrativa
type AdminFilter struct {
	Status MatchStatus
	Search string
	Limit  int
	Offset int
}

func scanMatch(row interface{ Scan(...any) error }) (Match, error) {
	var (
		m              Match
		status, result string
	)
	err := row.Scan(&m.ID, &m.ExternalID, &m.APISourceID, &m.HomeTeam, &m.AwayTeam, &m.Sport,
		&m.CategoryKey, &m.MatchDate, &status, &result, &m.HomeOdds, &m.DrawOdds, &m.AwayOdds,
		&m.ShowOnFrontend, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Match{}, err
	}
	m.Status = MatchStatus(status)
	m.Result = BetType(result)
	return m, nil
}

// Get lê a partida sem lock
func (p *Postgres) Get(ctx context.Context, id string) (Match, error) {
	return p.get(ctx, p.db, id, "")
}

// GetForShare lê a partida com FOR SHARE dentro da transação da aposta:
// uma troca de visibilidade/odds concorrente espera o commit da aposta (e vice-versa).
func (p *Postgres) GetForShare(ctx context.Context, q db.Queryable, id string) (Match, error) {
	if q == nil {
		q = p.db
	}
	return p.get(ctx, q, id, " FOR SHARE")
}

func (p *Postgres) get(ctx context.Context, q db.Queryable, id, lock string) (Match, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Match{}, apperr.NotFound.With("match %s not found", id)
	}
	m, err := scanMatch(q.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id=$1`+lock, id))
	if err == sql.ErrNoRows {
		return Match{}, apperr.NotFound.With("match %s not found", id)
	}
	if err != nil {
		return Match{}, db.Classify(err)
	}
	return m, nil
}

// ListVisible devolve as partidas exibidas no site, por data
func (p *Postgres) ListVisible(ctx context.Context) ([]Match, error) {
	return p.list(ctx, `SELECT `+matchColumns+` FROM matches WHERE show_on_frontend ORDER BY match_date ASC`)
}

// ListAdmin lista todas as partidas com filtro de status e busca por time/esporte
func (p *Postgres) ListAdmin(ctx context.Context, f AdminFilter) ([]Match, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	return p.list(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR home_team ILIKE '%' || $2 || '%' OR away_team ILIKE '%' || $2 || '%' OR sport ILIKE '%' || $2 || '%')
		ORDER BY match_date DESC
		LIMIT $3 OFFSET $4`, string(f.Status), f.Search, f.Limit, f.Offset)
}

func (p *Postgres) list(ctx context.Context, query string, args ...any) ([]Match, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Create insere uma partida cadastrada pelo admin
func (p *Postgres) Create(ctx context.Context, m *Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = StatusUpcoming
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO matches(id, home_team, away_team, sport, category_key, match_date, status,
			home_odds, draw_odds, away_odds, show_on_frontend)
		VALUES($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		m.ID, m.HomeTeam, m.AwayTeam, m.Sport, m.CategoryKey, m.MatchDate, string(m.Status),
		m.HomeOdds, m.DrawOdds, m.AwayOdds, m.ShowOnFrontend,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return db.Classify(err)
}

// UpdateOdds troca as odds correntes. Apostas existentes guardam a própria odd.
func (p *Postgres) UpdateOdds(ctx context.Context, id string, home, draw, away decimal.NullDecimal) error {
	return p.exec(ctx, id, `UPDATE matches SET home_odds=$2, draw_odds=$3, away_odds=$4, updated_at=now() WHERE id=$1`,
		home, draw, away)
}

// SetVisibility liga/desliga a exibição no site
func (p *Postgres) SetVisibility(ctx context.Context, id string, show bool) error {
	return p.exec(ctx, id, `UPDATE matches SET show_on_frontend=$2, updated_at=now() WHERE id=$1`, show)
}

// SetStatus atualiza status e resultado (resultado vazio vira NULL).
// Só aplica transições válidas; partida encerrada não muda mais.
func (p *Postgres) SetStatus(ctx context.Context, id string, status MatchStatus, result BetType) error {
	err := p.exec(ctx, id, `
		UPDATE matches SET status=$2, result=NULLIF($3,''), updated_at=now()
		 WHERE id=$1 AND status = ANY($4)`,
		string(status), string(result), pq.Array(SourcesFor(status)))
	if !errors.Is(err, apperr.NotFound) {
		return err
	}
	cur, gerr := p.Get(ctx, id)
	if gerr != nil {
		return gerr
	}
	return apperr.InvalidTransition.With("match %s: %s -> %s", id, cur.Status, status)
}

// Delete remove a partida. Partidas com apostas não podem ser removidas.
func (p *Postgres) Delete(ctx context.Context, id string) error {
	err := p.exec(ctx, id, `DELETE FROM matches WHERE id=$1`)
	if db.IsForeignKeyViolation(err) {
		return apperr.MatchReferenced.With("match %s has bets", id)
	}
	return err
}

func (p *Postgres) exec(ctx context.Context, id, query string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound.With("match %s not found", id)
	}
	res, err := p.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return err
		}
		return db.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound.With("match %s not found", id)
	}
	return nil
}

// UpsertImported grava partidas de uma API externa.
// Novas entram como upcoming e ocultas; existentes só têm odds e data atualizadas.
func (p *Postgres) UpsertImported(ctx context.Context, apiSourceID string, items []ImportedMatch) (inserted, updated int, err error) {
	err = db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		for _, it := range items {
			var wasInsert bool
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO matches(id, external_id, api_source_id, home_team, away_team, sport, category_key,
					match_date, status, home_odds, draw_odds, away_odds, show_on_frontend)
				VALUES($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,'upcoming',$9,$10,$11,false)
				ON CONFLICT (api_source_id, external_id) DO UPDATE SET
					match_date = EXCLUDED.match_date,
					home_odds  = EXCLUDED.home_odds,
					draw_odds  = EXCLUDED.draw_odds,
					away_odds  = EXCLUDED.away_odds,
					updated_at = now()
				RETURNING (xmax = 0)`,
				uuid.NewString(), it.ExternalID, apiSourceID, it.HomeTeam, it.AwayTeam, it.Sport, it.CategoryKey,
				it.MatchDate, it.HomeOdds, it.DrawOdds, it.AwayOdds,
			).Scan(&wasInsert); err != nil {
				return fmt.Errorf("upsert match %s: %w", it.ExternalID, err)
			}
			if wasInsert {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}
