// Package gateway administra os gateways de pagamento usados nos depósitos.
package gateway

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/repo"
)

type Repo interface {
	ListGateways(ctx context.Context, activeOnly bool) ([]repo.Gateway, error)
	GetGateway(ctx context.Context, id string) (repo.Gateway, error)
	CreateGateway(ctx context.Context, g *repo.Gateway) error
	UpdateGateway(ctx context.Context, g *repo.Gateway) error
	SetGatewayActive(ctx context.Context, id string, active bool) error
}

type Service struct {
	repo Repo
	log  *zap.Logger
}

func New(r Repo, log *zap.Logger) *Service { return &Service{repo: r, log: log} }

// Input são os campos editáveis pelo admin
type Input struct {
	Name        string
	Type        string
	CheckoutURL string
	WebhookURL  string
	APIKey      string
	SecretKey   string
	IsActive    bool
	IsTestMode  bool
}

func (in Input) toGateway(requireSecret bool) (repo.Gateway, error) {
	typ, err := repo.ParseGatewayType(in.Type)
	if err != nil {
		return repo.Gateway{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return repo.Gateway{}, apperr.InvalidInput.With("gateway name required")
	}
	if err := checkURL(in.CheckoutURL); err != nil {
		return repo.Gateway{}, err
	}
	if in.WebhookURL != "" {
		if err := checkURL(in.WebhookURL); err != nil {
			return repo.Gateway{}, err
		}
	}
	if requireSecret && in.SecretKey == "" {
		return repo.Gateway{}, apperr.InvalidInput.With("secret_key required to verify callbacks")
	}
	return repo.Gateway{
		Name:        name,
		Type:        typ,
		CheckoutURL: in.CheckoutURL,
		WebhookURL:  in.WebhookURL,
		APIKey:      in.APIKey,
		SecretKey:   in.SecretKey,
		IsActive:    in.IsActive,
		IsTestMode:  in.IsTestMode,
	}, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.InvalidInput.With("invalid url %q", raw)
	}
	return nil
}

// Active é a listagem pública; as chaves nunca são serializadas
func (s *Service) Active(ctx context.Context) ([]repo.Gateway, error) {
	return s.repo.ListGateways(ctx, true)
}

func (s *Service) List(ctx context.Context) ([]repo.Gateway, error) {
	return s.repo.ListGateways(ctx, false)
}

func (s *Service) Create(ctx context.Context, in Input) (repo.Gateway, error) {
	g, err := in.toGateway(true)
	if err != nil {
		return repo.Gateway{}, err
	}
	if err := s.repo.CreateGateway(ctx, &g); err != nil {
		return repo.Gateway{}, err
	}
	s.log.Info("gateway created", zap.String("gateway_id", g.ID), zap.String("name", g.Name), zap.Bool("active", g.IsActive))
	return g, nil
}

// Update regrava o gateway; chaves em branco mantêm as atuais
func (s *Service) Update(ctx context.Context, id string, in Input) (repo.Gateway, error) {
	if _, err := s.repo.GetGateway(ctx, id); err != nil {
		return repo.Gateway{}, err
	}
	g, err := in.toGateway(false)
	if err != nil {
		return repo.Gateway{}, err
	}
	g.ID = id
	if err := s.repo.UpdateGateway(ctx, &g); err != nil {
		return repo.Gateway{}, err
	}
	s.log.Info("gateway updated", zap.String("gateway_id", id))
	return g, nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (repo.Gateway, error) {
	if err := s.repo.SetGatewayActive(ctx, id, active); err != nil {
		return repo.Gateway{}, err
	}
	s.log.Info("gateway toggled", zap.String("gateway_id", id), zap.Bool("active", active))
	return s.repo.GetGateway(ctx, id)
}
