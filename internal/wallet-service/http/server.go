package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/dashboard"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/auth"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
	"github.com/radieske/sports-bet-ledger/internal/shared/settings"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/deposit"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/dto"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/gateway"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/withdrawal"
)

const maxCallbackBody = 64 << 10

// Ledger são as leituras de saldo e extrato
type Ledger interface {
	CurrentBalance(ctx context.Context, userID string) (int64, error)
	EntriesFor(ctx context.Context, userID string, after int64, limit int) (ledger.Page, error)
	ListWallets(ctx context.Context, limit, offset int) ([]ledger.Wallet, error)
	Recent(ctx context.Context, kind ledger.Kind, limit, offset int) ([]ledger.Entry, error)
}

type Deposits interface {
	Initiate(ctx context.Context, userID string, amountMinor int64, gatewayID string) (deposit.Initiated, error)
	HandleCallback(ctx context.Context, gatewayID string, body []byte, signature string) (deposit.CallbackResult, error)
	ListIntents(ctx context.Context, userID string, limit, offset int) ([]repo.DepositIntent, error)
}

type Withdrawals interface {
	Request(ctx context.Context, userID string, in withdrawal.RequestInput) (repo.Withdrawal, bool, error)
	Approve(ctx context.Context, id, admin, notes string) (repo.Withdrawal, error)
	Reject(ctx context.Context, id, admin, notes string) (repo.Withdrawal, error)
	List(ctx context.Context, userID string, limit, offset int) ([]repo.Withdrawal, error)
	ListAll(ctx context.Context, status repo.WithdrawalStatus, limit, offset int) ([]repo.Withdrawal, error)
}

type Gateways interface {
	Active(ctx context.Context) ([]repo.Gateway, error)
	List(ctx context.Context) ([]repo.Gateway, error)
	Create(ctx context.Context, in gateway.Input) (repo.Gateway, error)
	Update(ctx context.Context, id string, in gateway.Input) (repo.Gateway, error)
	SetActive(ctx context.Context, id string, active bool) (repo.Gateway, error)
}

type Settings interface {
	Current(ctx context.Context) (settings.Values, error)
	Update(ctx context.Context, patch map[string]json.RawMessage) (settings.Values, error)
}

type Dashboard interface {
	Snapshot(ctx context.Context) (dashboard.Snapshot, error)
}

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (repo.Profile, error)
	UpsertProfile(ctx context.Context, p *repo.Profile) error
}

// Deps agrupa os serviços atrás das rotas de carteira
type Deps struct {
	Ledger      Ledger
	Deposits    Deposits
	Withdrawals Withdrawals
	Gateways    Gateways
	Settings    Settings
	Dashboard   Dashboard
	Profiles    Profiles
}

// Server expõe carteira, depósitos, saques e a administração financeira
type Server struct {
	log      *zap.Logger
	d        Deps
	verifier *auth.Verifier
}

func NewServer(log *zap.Logger, d Deps, v *auth.Verifier) *Server {
	return &Server{log: log, d: d, verifier: v}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, metrics.Instrument)

	// callback do gateway: autenticado pela assinatura, não por JWT
	r.Post("/v1/deposits/callback/{gatewayID}", s.depositCallback)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.verifier, httpx.WriteError))

		r.Get("/v1/profile", s.getProfile)
		r.Put("/v1/profile", s.updateProfile)
		r.Get("/v1/wallet", s.getWallet)
		r.Get("/v1/wallet/entries", s.listEntries) // ?after&limit
		r.Get("/v1/gateways", s.activeGateways)
		r.Post("/v1/deposits", s.initiateDeposit)
		r.Get("/v1/deposits", s.listDeposits)
		r.Post("/v1/withdrawals", s.requestWithdrawal) // Idempotency-Key opcional
		r.Get("/v1/withdrawals", s.listWithdrawals)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(httpx.WriteError))
			r.Get("/wallets", s.adminWallets)
			r.Get("/wallets/{userID}/entries", s.adminUserEntries)
			r.Get("/transactions", s.adminTransactions) // ?kind
			r.Get("/withdrawals", s.adminWithdrawals)   // ?status
			r.Post("/withdrawals/{id}/approve", s.approveWithdrawal)
			r.Post("/withdrawals/{id}/reject", s.rejectWithdrawal)
			r.Get("/gateways", s.adminGateways)
			r.Post("/gateways", s.createGateway)
			r.Put("/gateways/{id}", s.updateGateway)
			r.Post("/gateways/{id}/toggle", s.toggleGateway)
			r.Get("/settings", s.getSettings)
			r.Put("/settings", s.updateSettings)
			r.Get("/dashboard", s.dashboard)
		})
	})
	return r
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	p, err := s.d.Profiles.GetProfile(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	var req dto.ProfileRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p := repo.Profile{
		UserID:   id.UserID,
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    req.Phone,
	}
	if err := s.d.Profiles.UpsertProfile(r.Context(), &p); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	bal, err := s.d.Ledger.CurrentBalance(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.WalletResponse{UserID: id.UserID, BalanceMinor: bal})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	s.writeEntries(w, r, id.UserID)
}

func (s *Server) adminUserEntries(w http.ResponseWriter, r *http.Request) {
	s.writeEntries(w, r, chi.URLParam(r, "userID"))
}

// writeEntries pagina por cursor (seq), não por offset
func (s *Server) writeEntries(w http.ResponseWriter, r *http.Request, userID string) {
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			httpx.WriteError(w, r, apperr.InvalidInput.With("after must be a non-negative integer"))
			return
		}
		after = n
	}
	p := httpx.PageFrom(r)

	page, err := s.d.Ledger.EntriesFor(r.Context(), userID, after, p.Limit)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if page.Entries == nil {
		page.Entries = []ledger.Entry{}
	}
	httpx.WriteJSON(w, http.StatusOK, page)
}

func (s *Server) activeGateways(w http.ResponseWriter, r *http.Request) {
	gs, err := s.d.Gateways.Active(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.GatewayListResponse{Gateways: nonNil(gs)})
}

func (s *Server) initiateDeposit(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req dto.DepositRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out, err := s.d.Deposits.Initiate(r.Context(), id.UserID, req.AmountMinor, req.GatewayID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (s *Server) listDeposits(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	p := httpx.PageFrom(r)

	ds, err := s.d.Deposits.ListIntents(r.Context(), id.UserID, p.Limit, p.Offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if ds == nil {
		ds = []repo.DepositIntent{}
	}
	httpx.WriteJSON(w, http.StatusOK, dto.DepositListResponse{Deposits: ds, Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) depositCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		httpx.WriteError(w, r, apperr.InvalidInput.With("unreadable body"))
		return
	}

	gatewayID := chi.URLParam(r, "gatewayID")
	res, err := s.d.Deposits.HandleCallback(r.Context(), gatewayID, body, r.Header.Get("X-Signature"))
	if err != nil {
		s.log.Warn("deposit callback rejected",
			zap.String("gateway_id", gatewayID),
			zap.String("code", apperr.CodeOf(err)))
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req dto.WithdrawalRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	wd, replayed, err := s.d.Withdrawals.Request(r.Context(), id.UserID, withdrawal.RequestInput{
		AmountMinor:    req.AmountMinor,
		Method:         req.Method,
		BankDetails:    req.BankDetails,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, dto.WithdrawalResponse{Withdrawal: wd, Replayed: replayed})
}

func (s *Server) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	p := httpx.PageFrom(r)

	ws, err := s.d.Withdrawals.List(r.Context(), id.UserID, p.Limit, p.Offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.WithdrawalListResponse{Withdrawals: nonNilW(ws), Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) adminWallets(w http.ResponseWriter, r *http.Request) {
	p := httpx.PageFrom(r)
	ws, err := s.d.Ledger.ListWallets(r.Context(), p.Limit, p.Offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if ws == nil {
		ws = []ledger.Wallet{}
	}
	httpx.WriteJSON(w, http.StatusOK, dto.WalletListResponse{Wallets: ws, Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) adminTransactions(w http.ResponseWriter, r *http.Request) {
	var kind ledger.Kind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, err := ledger.ParseKind(v)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		kind = k
	}
	p := httpx.PageFrom(r)

	es, err := s.d.Ledger.Recent(r.Context(), kind, p.Limit, p.Offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if es == nil {
		es = []ledger.Entry{}
	}
	httpx.WriteJSON(w, http.StatusOK, dto.EntryListResponse{Entries: es, Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) adminWithdrawals(w http.ResponseWriter, r *http.Request) {
	var st repo.WithdrawalStatus
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, err := repo.ParseWithdrawalStatus(v)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		st = parsed
	}
	p := httpx.PageFrom(r)

	ws, err := s.d.Withdrawals.ListAll(r.Context(), st, p.Limit, p.Offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.WithdrawalListResponse{Withdrawals: nonNilW(ws), Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.d.Withdrawals.Approve)
}

func (s *Server) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.decide(w, r, s.d.Withdrawals.Reject)
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, admin, notes string) (repo.Withdrawal, error)) {
	admin, _ := auth.FromContext(r.Context())

	var req dto.DecisionRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	wd, err := fn(r.Context(), chi.URLParam(r, "id"), admin.UserID, req.Notes)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wd)
}

func (s *Server) adminGateways(w http.ResponseWriter, r *http.Request) {
	gs, err := s.d.Gateways.List(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.GatewayListResponse{Gateways: nonNil(gs)})
}

func (s *Server) createGateway(w http.ResponseWriter, r *http.Request) {
	var req dto.GatewayRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	g, err := s.d.Gateways.Create(r.Context(), gatewayInput(req))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, g)
}

func (s *Server) updateGateway(w http.ResponseWriter, r *http.Request) {
	var req dto.GatewayRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	g, err := s.d.Gateways.Update(r.Context(), chi.URLParam(r, "id"), gatewayInput(req))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

func (s *Server) toggleGateway(w http.ResponseWriter, r *http.Request) {
	var req dto.ToggleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	g, err := s.d.Gateways.SetActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, g)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	v, err := s.d.Settings.Current(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// updateSettings aceita patch parcial: só as chaves enviadas mudam
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCallbackBody)).Decode(&patch); err != nil {
		httpx.WriteError(w, r, apperr.InvalidInput.With("malformed json: %v", err))
		return
	}
	if len(patch) == 0 {
		httpx.WriteError(w, r, apperr.InvalidInput.With("empty settings patch"))
		return
	}

	admin, _ := auth.FromContext(r.Context())
	v, err := s.d.Settings.Update(r.Context(), patch)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.log.Info("settings updated", zap.String("admin", admin.UserID), zap.Int("keys", len(patch)))
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.d.Dashboard.Snapshot(r.Context())
	if err != nil {
		httpx.WriteError(w, r, apperr.Unavailable.Wrap(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

func gatewayInput(req dto.GatewayRequest) gateway.Input {
	return gateway.Input{
		Name:        req.Name,
		Type:        req.Type,
		CheckoutURL: req.CheckoutURL,
		WebhookURL:  req.WebhookURL,
		APIKey:      req.APIKey,
		SecretKey:   req.SecretKey,
		IsActive:    req.IsActive,
		IsTestMode:  req.IsTestMode,
	}
}

func nonNil(gs []repo.Gateway) []repo.Gateway {
	if gs == nil {
		return []repo.Gateway{}
	}
	return gs
}

func nonNilW(ws []repo.Withdrawal) []repo.Withdrawal {
	if ws == nil {
		return []repo.Withdrawal{}
	}
	return ws
}
