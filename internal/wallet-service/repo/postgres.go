package repo

import (
	"database/sql"
	"time"

	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

// Postgres implementa gateways, intenções de depósito, saques e perfis em banco.
// Métodos que recebem db.Queryable rodam na transação do ledger do chamador (nil = conexão própria).
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) conn(q db.Queryable) db.Queryable {
	if q == nil {
		return p.db
	}
	return q
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
