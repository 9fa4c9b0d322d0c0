package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

// GameAPI é uma fonte externa de partidas e categorias
type GameAPI struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Provider  string     `json:"provider"`
	APIURL    string     `json:"api_url"`
	APIKey    string     `json:"-"`
	IsActive  bool       `json:"is_active"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Category é uma categoria de esporte descoberta numa GameAPI
type Category struct {
	ID          string    `json:"id"`
	APISourceID string    `json:"api_source_id"`
	Key         string    `json:"category_key"`
	Name        string    `json:"name"`
	Group       string    `json:"group"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Postgres implementa a persistência de game_apis e sport_categories
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

const apiColumns = `id, name, provider, api_url, api_key, is_active, last_sync, created_at, updated_at`

func scanAPI(row interface{ Scan(...any) error }) (GameAPI, error) {
	var (
		a    GameAPI
		last sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Provider, &a.APIURL, &a.APIKey, &a.IsActive, &last, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return GameAPI{}, err
	}
	if last.Valid {
		t := last.Time
		a.LastSync = &t
	}
	return a, nil
}

func (r *Postgres) ListAPIs(ctx context.Context) ([]GameAPI, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+apiColumns+` FROM game_apis ORDER BY created_at DESC`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []GameAPI
	for rows.Next() {
		a, err := scanAPI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Postgres) GetAPI(ctx context.Context, id string) (GameAPI, error) {
	if _, err := uuid.Parse(id); err != nil {
		return GameAPI{}, apperr.NotFound.With("game api %s not found", id)
	}
	a, err := scanAPI(r.DB.QueryRowContext(ctx, `SELECT `+apiColumns+` FROM game_apis WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return GameAPI{}, apperr.NotFound.With("game api %s not found", id)
	}
	if err != nil {
		return GameAPI{}, db.Classify(err)
	}
	return a, nil
}

func (r *Postgres) CreateAPI(ctx context.Context, a *GameAPI) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO game_apis(id, name, provider, api_url, api_key, is_active)
		VALUES($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.Provider, a.APIURL, a.APIKey, a.IsActive,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err)
}

// UpdateAPI troca os dados de conexão. api_key vazia mantém a chave atual.
func (r *Postgres) UpdateAPI(ctx context.Context, a GameAPI) error {
	return r.exec(ctx, a.ID, `
		UPDATE game_apis SET name=$2, provider=$3, api_url=$4,
			api_key = CASE WHEN $5 = '' THEN api_key ELSE $5 END,
			is_active=$6, updated_at=now()
		WHERE id=$1`,
		a.Name, a.Provider, a.APIURL, a.APIKey, a.IsActive)
}

// DeleteAPI remove a fonte; categorias caem junto e partidas ficam sem origem.
func (r *Postgres) DeleteAPI(ctx context.Context, id string) error {
	return r.exec(ctx, id, `DELETE FROM game_apis WHERE id=$1`)
}

func (r *Postgres) TouchSync(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, id, `UPDATE game_apis SET last_sync=$2, updated_at=now() WHERE id=$1`, at)
}

func (r *Postgres) exec(ctx context.Context, id, query string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound.With("%s not found", id)
	}
	res, err := r.DB.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return db.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound.With("%s not found", id)
	}
	return nil
}

// ListCategories lista categorias; activeOnly é a visão pública.
func (r *Postgres) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, api_source_id, category_key, name, sport_group, is_active, created_at
		FROM sport_categories
		WHERE NOT $1 OR is_active
		ORDER BY sport_group, name`, activeOnly)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.APISourceID, &c.Key, &c.Name, &c.Group, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveCategoryKeys devolve as chaves ativas de uma fonte, usadas na importação
func (r *Postgres) ActiveCategoryKeys(ctx context.Context, apiID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT category_key FROM sport_categories
		WHERE api_source_id=$1 AND is_active
		ORDER BY category_key`, apiID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *Postgres) SetCategoryActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, id, `UPDATE sport_categories SET is_active=$2 WHERE id=$1`, active)
}

// InsertCategories grava categorias novas como inativas; chaves já conhecidas são ignoradas.
func (r *Postgres) InsertCategories(ctx context.Context, apiID string, cats []Category) (inserted int, err error) {
	err = db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, c := range cats {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO sport_categories(id, api_source_id, category_key, name, sport_group, is_active)
				VALUES($1,$2,$3,$4,$5,false)
				ON CONFLICT (api_source_id, category_key) DO NOTHING`,
				uuid.NewString(), apiID, c.Key, c.Name, c.Group)
			if err != nil {
				return db.Classify(err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
