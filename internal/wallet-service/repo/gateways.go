package repo

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

const gatewayColumns = `id, name, type, checkout_url, webhook_url, api_key, secret_key, is_active, is_test_mode, created_at, updated_at`

func scanGateway(row interface{ Scan(...any) error }) (Gateway, error) {
	var (
		g   Gateway
		typ string
	)
	err := row.Scan(&g.ID, &g.Name, &typ, &g.CheckoutURL, &g.WebhookURL, &g.APIKey, &g.SecretKey,
		&g.IsActive, &g.IsTestMode, &g.CreatedAt, &g.UpdatedAt)
	g.Type = GatewayType(typ)
	return g, err
}

// ListGateways lista gateways; activeOnly para a listagem pública
func (p *Postgres) ListGateways(ctx context.Context, activeOnly bool) ([]Gateway, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+gatewayColumns+` FROM payment_gateways
		WHERE (NOT $1 OR is_active) ORDER BY name ASC`, activeOnly)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var out []Gateway
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *Postgres) GetGateway(ctx context.Context, id string) (Gateway, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Gateway{}, apperr.NotFound.With("gateway %s not found", id)
	}
	g, err := scanGateway(p.db.QueryRowContext(ctx, `SELECT `+gatewayColumns+` FROM payment_gateways WHERE id=$1`, id))
	if err == sql.ErrNoRows {
		return Gateway{}, apperr.NotFound.With("gateway %s not found", id)
	}
	if err != nil {
		return Gateway{}, db.Classify(err)
	}
	return g, nil
}

func (p *Postgres) CreateGateway(ctx context.Context, g *Gateway) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO payment_gateways(id, name, type, checkout_url, webhook_url, api_key, secret_key, is_active, is_test_mode)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		g.ID, g.Name, string(g.Type), g.CheckoutURL, g.WebhookURL, g.APIKey, g.SecretKey, g.IsActive, g.IsTestMode,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	return db.Classify(err)
}

// UpdateGateway regrava os campos editáveis. Chaves vazias mantêm as atuais.
func (p *Postgres) UpdateGateway(ctx context.Context, g *Gateway) error {
	err := p.db.QueryRowContext(ctx, `
		UPDATE payment_gateways SET
			name=$2, type=$3, checkout_url=$4, webhook_url=$5,
			api_key    = COALESCE(NULLIF($6,''), api_key),
			secret_key = COALESCE(NULLIF($7,''), secret_key),
			is_active=$8, is_test_mode=$9, updated_at=now()
		WHERE id=$1
		RETURNING created_at, updated_at`,
		g.ID, g.Name, string(g.Type), g.CheckoutURL, g.WebhookURL, g.APIKey, g.SecretKey, g.IsActive, g.IsTestMode,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return apperr.NotFound.With("gateway %s not found", g.ID)
	}
	return db.Classify(err)
}

func (p *Postgres) SetGatewayActive(ctx context.Context, id string, active bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound.With("gateway %s not found", id)
	}
	res, err := p.db.ExecContext(ctx, `UPDATE payment_gateways SET is_active=$2, updated_at=now() WHERE id=$1`, id, active)
	if err != nil {
		return db.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound.With("gateway %s not found", id)
	}
	return nil
}
