// Package deposit inicia depósitos via gateway e credita o ledger no callback assinado.
package deposit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/shared/settings"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/repo"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type Repo interface {
	GetGateway(ctx context.Context, id string) (repo.Gateway, error)
	InsertIntent(ctx context.Context, q db.Queryable, d *repo.DepositIntent) error
	GetIntent(ctx context.Context, q db.Queryable, id string) (repo.DepositIntent, error)
	GetIntentForUpdate(ctx context.Context, q db.Queryable, id string) (repo.DepositIntent, error)
	FinishIntent(ctx context.Context, q db.Queryable, id string, status repo.DepositStatus, gatewayRef string, at time.Time) error
	ListIntents(ctx context.Context, userID string, limit, offset int) ([]repo.DepositIntent, error)
}

type SettingsSource interface {
	Current(ctx context.Context) (settings.Values, error)
}

type Publisher interface {
	PublishDepositCompleted(ctx context.Context, e events.DepositCompleted) error
}

type Service struct {
	ledger    ledger.Store
	repo      Repo
	settings  SettingsSource
	pub       Publisher
	log       *zap.Logger
	minAmount int64
	returnURL string
	now       func() time.Time
}

func New(l ledger.Store, r Repo, s SettingsSource, pub Publisher, minAmount int64, returnURL string, log *zap.Logger) *Service {
	return &Service{ledger: l, repo: r, settings: s, pub: pub, log: log, minAmount: minAmount, returnURL: returnURL, now: time.Now}
}

// Initiated é o que o cliente precisa para seguir ao checkout do gateway
type Initiated struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	AmountMinor   int64  `json:"amount_minor"`
}

// LedgerReference é a reference_id do crédito de um depósito
func LedgerReference(transactionID string) string { return "deposit:" + transactionID }

// Initiate grava a intenção pending e monta a URL de checkout. Nada é creditado aqui.
func (s *Service) Initiate(ctx context.Context, userID string, amountMinor int64, gatewayID string) (Initiated, error) {
	if amountMinor < s.minAmount {
		return Initiated{}, apperr.BelowMinimum.With("minimum deposit is %d", s.minAmount)
	}
	cur, err := s.settings.Current(ctx)
	if err != nil {
		return Initiated{}, err
	}
	if cur.MaintenanceMode {
		return Initiated{}, apperr.Maintenance
	}
	if !cur.EnableDeposits {
		return Initiated{}, apperr.DepositsDisabled
	}

	gw, err := s.repo.GetGateway(ctx, gatewayID)
	if errors.Is(err, apperr.NotFound) || (err == nil && !gw.IsActive) {
		return Initiated{}, apperr.GatewayUnavailable.With("gateway %s is not available", gatewayID)
	}
	if err != nil {
		return Initiated{}, err
	}

	intent := repo.DepositIntent{ID: uuid.NewString(), UserID: userID, GatewayID: gw.ID, AmountMinor: amountMinor}
	// a URL sai antes do insert: gateway mal configurado não deixa intenção pending órfã
	redirect, err := checkoutURL(gw, intent, s.returnURL)
	if err != nil {
		return Initiated{}, err
	}
	// Atomically garante a carteira do usuário (FK de deposit_intents)
	err = s.ledger.Atomically(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		return s.repo.InsertIntent(ctx, tx.Queryable(), &intent)
	})
	if err != nil {
		return Initiated{}, err
	}
	s.log.Info("deposit initiated",
		zap.String("user_id", userID),
		zap.String("transaction_id", intent.ID),
		zap.String("gateway", gw.Name),
		zap.Int64("amount_minor", amountMinor))
	return Initiated{TransactionID: intent.ID, RedirectURL: redirect, AmountMinor: amountMinor}, nil
}

func checkoutURL(gw repo.Gateway, d repo.DepositIntent, returnURL string) (string, error) {
	u, err := url.Parse(gw.CheckoutURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperr.GatewayUnavailable.With("gateway %s has an invalid checkout url", gw.ID)
	}
	q := u.Query()
	q.Set("amount", strconv.FormatInt(d.AmountMinor, 10))
	q.Set("transaction_id", d.ID)
	q.Set("user_id", d.UserID)
	q.Set("gateway", string(gw.Type))
	q.Set("redirect_url", returnURL)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Callback é o corpo enviado pelo gateway
type Callback struct {
	TransactionID    string `json:"transaction_id" validate:"required,uuid"`
	Status           string `json:"status" validate:"required,oneof=completed failed"`
	GatewayReference string `json:"gateway_reference"`
	AmountMinor      int64  `json:"amount" validate:"required,gt=0"`
}

// CallbackResult informa o estado final da intenção e se este callback creditou o ledger
type CallbackResult struct {
	Intent   repo.DepositIntent `json:"deposit"`
	Credited bool               `json:"credited"`
}

// Sign calcula a assinatura esperada no header X-Signature (HMAC-SHA256 hex do corpo cru)
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleCallback é o único gatilho de crédito de depósito.
// Repetir o mesmo callback não credita de novo.
func (s *Service) HandleCallback(ctx context.Context, gatewayID string, body []byte, signature string) (CallbackResult, error) {
	gw, err := s.repo.GetGateway(ctx, gatewayID)
	if errors.Is(err, apperr.NotFound) {
		return CallbackResult{}, apperr.Unauthorized.With("unknown gateway")
	}
	if err != nil {
		return CallbackResult{}, err
	}

	sig := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if sig == "" || !hmac.Equal([]byte(sig), []byte(Sign(gw.SecretKey, body))) {
		metrics.Deposits.WithLabelValues("bad_signature").Inc()
		return CallbackResult{}, apperr.Unauthorized.With("invalid callback signature")
	}

	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return CallbackResult{}, apperr.InvalidInput.With("malformed callback: %v", err)
	}
	if err := httpx.Validate(&cb); err != nil {
		return CallbackResult{}, err
	}

	head, err := s.repo.GetIntent(ctx, nil, cb.TransactionID)
	if err != nil {
		return CallbackResult{}, err
	}
	if head.GatewayID != gw.ID {
		return CallbackResult{}, apperr.NotFound.With("deposit %s not found", cb.TransactionID)
	}
	if cb.AmountMinor != head.AmountMinor {
		metrics.Deposits.WithLabelValues("amount_mismatch").Inc()
		return CallbackResult{}, apperr.AmountMismatch.With("callback amount %d, deposit amount %d", cb.AmountMinor, head.AmountMinor)
	}

	log := s.log.With(zap.String("transaction_id", head.ID), zap.String("user_id", head.UserID))

	var (
		res       CallbackResult
		failedNow bool
	)
	err = s.ledger.Atomically(ctx, head.UserID, func(ctx context.Context, tx ledger.Tx) error {
		q := tx.Queryable()

		d, err := s.repo.GetIntentForUpdate(ctx, q, head.ID)
		if err != nil {
			return err
		}
		res.Intent = d
		if d.Status != repo.DepositPending {
			// callback repetido ou tardio: estado final já registrado
			return nil
		}

		at := s.now()
		if cb.Status == string(repo.DepositFailed) {
			if err := s.repo.FinishIntent(ctx, q, d.ID, repo.DepositFailed, cb.GatewayReference, at); err != nil {
				return err
			}
			res.Intent.Status, res.Intent.CompletedAt = repo.DepositFailed, &at
			failedNow = true
			return nil
		}

		if _, err := tx.Append(ctx, ledger.Entry{
			Kind:        ledger.KindDeposit,
			AmountMinor: d.AmountMinor,
			ReferenceID: LedgerReference(d.ID),
		}); err != nil {
			return err
		}
		if err := s.repo.FinishIntent(ctx, q, d.ID, repo.DepositCompleted, cb.GatewayReference, at); err != nil {
			return err
		}
		res.Intent.Status, res.Intent.GatewayReference, res.Intent.CompletedAt = repo.DepositCompleted, cb.GatewayReference, &at
		res.Credited = true
		return nil
	})
	if errors.Is(err, apperr.DuplicateReference) {
		// o crédito já existe: mesmo efeito de um callback repetido
		d, gerr := s.repo.GetIntent(ctx, nil, head.ID)
		if gerr != nil {
			return CallbackResult{}, gerr
		}
		metrics.Deposits.WithLabelValues("duplicate").Inc()
		return CallbackResult{Intent: d}, nil
	}
	if err != nil {
		return CallbackResult{}, err
	}

	switch {
	case res.Credited:
		metrics.Deposits.WithLabelValues("credited").Inc()
		log.Info("deposit credited", zap.Int64("amount_minor", res.Intent.AmountMinor))
		if err := s.pub.PublishDepositCompleted(ctx, events.DepositCompleted{
			EventID:       uuid.NewString(),
			TransactionID: res.Intent.ID,
			UserID:        res.Intent.UserID,
			GatewayID:     res.Intent.GatewayID,
			AmountMinor:   res.Intent.AmountMinor,
		}); err != nil {
			log.Warn("publish deposit_completed failed", zap.Error(err))
		}
	case failedNow:
		metrics.Deposits.WithLabelValues("failed").Inc()
		log.Info("deposit failed at gateway", zap.String("gateway_reference", cb.GatewayReference))
	default:
		metrics.Deposits.WithLabelValues("duplicate").Inc()
		log.Info("deposit callback replayed", zap.String("status", string(res.Intent.Status)))
	}
	return res, nil
}

func (s *Service) ListIntents(ctx context.Context, userID string, limit, offset int) ([]repo.DepositIntent, error) {
	return s.repo.ListIntents(ctx, userID, limit, offset)
}
