package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/bet-service/dto"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/engine"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/shared/auth"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/logger"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

// Service são as operações do motor de apostas usadas pelos handlers
type Service interface {
	PlaceBet(ctx context.Context, userID string, in engine.PlaceBetInput) (repo.Bet, bool, error)
	SettleBet(ctx context.Context, betID string, outcome repo.Status, actor string) (repo.Bet, error)
	SettleMatch(ctx context.Context, matchID string, result engine.MatchResult, actor string) (engine.SettleSummary, error)
	GetBet(ctx context.Context, userID, betID string) (repo.Bet, error)
	AdminGetBet(ctx context.Context, betID string) (repo.Bet, error)
	ListBets(ctx context.Context, userID string, limit, offset int) ([]repo.Bet, error)
	ListAll(ctx context.Context, f repo.Filter) ([]repo.Bet, error)
	Stats(ctx context.Context) (repo.Stats, error)
}

// Server expõe as rotas de apostas (usuário e admin)
type Server struct {
	log      *zap.Logger
	svc      Service
	verifier *auth.Verifier
}

func NewServer(log *zap.Logger, svc Service, v *auth.Verifier) *Server {
	return &Server{log: log, svc: svc, verifier: v}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, metrics.Instrument)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.verifier, httpx.WriteError))

		r.Post("/v1/bets", s.placeBet)   // Idempotency-Key opcional
		r.Get("/v1/bets", s.listBets)    // ?limit&offset
		r.Get("/v1/bets/{id}", s.getBet) // só o dono

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(httpx.WriteError))
			r.Get("/bets", s.adminListBets) // ?status&match_id&search
			r.Get("/bets/stats", s.adminStats)
			r.Get("/bets/{id}", s.adminGetBet)
			r.Post("/bets/{id}/settle", s.settleBet)
			r.Post("/matches/{id}/settle", s.settleMatch)
		})
	})
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req dto.PlaceBetRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	bet, replayed, err := s.svc.PlaceBet(r.Context(), id.UserID, engine.PlaceBetInput{
		MatchID:        req.MatchID,
		BetType:        catalog.BetType(req.BetType),
		StakeMinor:     req.StakeMinor,
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
	httpx.WriteJSON(w, status, dto.PlaceBetResponse{Bet: bet, Replayed: replayed})
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	p := httpx.PageFrom(r)

	bets, err := s.svc.ListBets(r.Context(), id.UserID, p.Limit, p.Offset)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.BetListResponse{Bets: nonNil(bets), Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	bet, err := s.svc.GetBet(r.Context(), id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

func (s *Server) adminListBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := httpx.PageFrom(r)
	f := repo.Filter{MatchID: q.Get("match_id"), Search: q.Get("search"), Limit: p.Limit, Offset: p.Offset}
	if v := q.Get("status"); v != "" {
		st, err := repo.ParseStatus(v)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		f.Status = st
	}

	bets, err := s.svc.ListAll(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.BetListResponse{Bets: nonNil(bets), Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) adminStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) adminGetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.svc.AdminGetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

func (s *Server) settleBet(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.FromContext(r.Context())

	var req dto.SettleBetRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	bet, err := s.svc.SettleBet(r.Context(), chi.URLParam(r, "id"), repo.Status(req.Outcome), admin.UserID)
	if err != nil {
		logger.WithUser(s.log, admin.UserID).Info("settle rejected", zap.String("bet_id", chi.URLParam(r, "id")), zap.Error(err))
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

func (s *Server) settleMatch(w http.ResponseWriter, r *http.Request) {
	admin, _ := auth.FromContext(r.Context())

	var req dto.SettleMatchRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	result, err := engine.ParseMatchResult(req.Result)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	sum, err := s.svc.SettleMatch(r.Context(), chi.URLParam(r, "id"), result, admin.UserID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sum)
}

func nonNil(b []repo.Bet) []repo.Bet {
	if b == nil {
		return []repo.Bet{}
	}
	return b
}
