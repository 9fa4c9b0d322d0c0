package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

type Profile struct {
	UserID    string     `json:"user_id"`
	FullName  string     `json:"full_name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	KYCStatus KYCStatus  `json:"kyc_status"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// GetProfile devolve o perfil do usuário; sem cadastro volta vazio com KYC pendente
func (p *Postgres) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var (
		pr  = Profile{UserID: userID}
		kyc string
		at  time.Time
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT full_name, email, phone, kyc_status, updated_at FROM profiles WHERE user_id=$1`, userID,
	).Scan(&pr.FullName, &pr.Email, &pr.Phone, &kyc, &at)
	if err == sql.ErrNoRows {
		pr.KYCStatus = KYCPending
		return pr, nil
	}
	if err != nil {
		return Profile{}, db.Classify(err)
	}
	pr.KYCStatus, pr.UpdatedAt = KYCStatus(kyc), &at
	return pr, nil
}

// UpsertProfile grava nome, email e telefone. kyc_status nunca vem do usuário.
func (p *Postgres) UpsertProfile(ctx context.Context, pr *Profile) error {
	var (
		kyc string
		at  time.Time
	)
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO profiles(user_id, full_name, email, phone)
		VALUES($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name  = EXCLUDED.full_name,
			email      = EXCLUDED.email,
			phone      = EXCLUDED.phone,
			updated_at = now()
		RETURNING kyc_status, updated_at`,
		pr.UserID, pr.FullName, pr.Email, pr.Phone,
	).Scan(&kyc, &at)
	if err != nil {
		return db.Classify(err)
	}
	pr.KYCStatus, pr.UpdatedAt = KYCStatus(kyc), &at
	return nil
}
