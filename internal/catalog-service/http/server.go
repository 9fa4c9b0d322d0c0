package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/dto"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/importer"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/shared/auth"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

// Matches é o acesso às partidas (catalog.Postgres)
type Matches interface {
	Get(ctx context.Context, id string) (catalog.Match, error)
	ListVisible(ctx context.Context) ([]catalog.Match, error)
	ListAdmin(ctx context.Context, f catalog.AdminFilter) ([]catalog.Match, error)
	Create(ctx context.Context, m *catalog.Match) error
	UpdateOdds(ctx context.Context, id string, home, draw, away decimal.NullDecimal) error
	SetVisibility(ctx context.Context, id string, show bool) error
	SetStatus(ctx context.Context, id string, status catalog.MatchStatus, result catalog.BetType) error
	Delete(ctx context.Context, id string) error
}

// Sources é o acesso a game_apis e sport_categories
type Sources interface {
	ListAPIs(ctx context.Context) ([]repo.GameAPI, error)
	GetAPI(ctx context.Context, id string) (repo.GameAPI, error)
	CreateAPI(ctx context.Context, a *repo.GameAPI) error
	UpdateAPI(ctx context.Context, a repo.GameAPI) error
	DeleteAPI(ctx context.Context, id string) error
	ListCategories(ctx context.Context, activeOnly bool) ([]repo.Category, error)
	SetCategoryActive(ctx context.Context, id string, active bool) error
}

type Importer interface {
	ImportMatches(ctx context.Context, apiID string) (importer.Result, error)
	FetchCategories(ctx context.Context, apiID string) (int, error)
}

// ListingCache guarda as listagens públicas por versão do catálogo
type ListingCache interface {
	Version(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
	GetListing(ctx context.Context, version int64, view, sport string, dst any) (bool, error)
	SetListing(ctx context.Context, version int64, view, sport string, v any) error
	GetCategories(ctx context.Context, version int64, dst any) (bool, error)
	SetCategories(ctx context.Context, version int64, v any) error
}

type Deps struct {
	Matches  Matches
	Sources  Sources
	Importer Importer
	Cache    ListingCache
}

// Server expõe o catálogo público e a administração de partidas e fontes
type Server struct {
	log      *zap.Logger
	deps     Deps
	verifier *auth.Verifier
	now      func() time.Time
}

func NewServer(log *zap.Logger, d Deps, v *auth.Verifier) *Server {
	return &Server{log: log, deps: d, verifier: v, now: time.Now}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, metrics.Instrument)

	// público
	r.Get("/v1/matches", s.listMatches) // ?view=live|upcoming|results&sport=
	r.Get("/v1/matches/{id}", s.getMatch)
	r.Get("/v1/categories", s.listCategories)

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(auth.Middleware(s.verifier, httpx.WriteError), auth.RequireAdmin(httpx.WriteError))

		r.Get("/matches", s.adminListMatches) // ?status&search&limit&offset
		r.Post("/matches", s.createMatch)
		r.Put("/matches/{id}/odds", s.updateOdds)
		r.Put("/matches/{id}/visibility", s.setVisibility)
		r.Put("/matches/{id}/status", s.setStatus)
		r.Delete("/matches/{id}", s.deleteMatch)

		r.Get("/game-apis", s.listAPIs)
		r.Post("/game-apis", s.createAPI)
		r.Put("/game-apis/{id}", s.updateAPI)
		r.Delete("/game-apis/{id}", s.deleteAPI)
		r.Post("/game-apis/{id}/import", s.importMatches)
		r.Post("/game-apis/{id}/categories", s.fetchCategories)

		r.Get("/categories", s.adminListCategories)
		r.Post("/categories/{id}/toggle", s.toggleCategory)
	})
	return r
}

// version devolve a versão do catálogo; ok=false quando o Redis falhou e o cache deve ser ignorado.
func (s *Server) version(ctx context.Context) (int64, bool) {
	v, err := s.deps.Cache.Version(ctx)
	if err != nil {
		s.log.Warn("catalog cache unavailable", zap.Error(err))
		return 0, false
	}
	return v, true
}

// invalidate é chamado após toda mutação administrativa
func (s *Server) invalidate(ctx context.Context) {
	if err := s.deps.Cache.Bump(ctx); err != nil {
		s.log.Warn("catalog cache bump failed", zap.Error(err))
	}
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := catalog.ParseView(q.Get("view"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	sport := strings.TrimSpace(q.Get("sport"))

	ver, cacheOK := s.version(r.Context())
	if cacheOK {
		var cached []catalog.Match
		if ok, _ := s.deps.Cache.GetListing(r.Context(), ver, string(view), sport, &cached); ok {
			httpx.WriteJSON(w, http.StatusOK, dto.MatchListResponse{Matches: nonNil(cached)})
			return
		}
	}

	all, err := s.deps.Matches.ListVisible(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	now := s.now()
	out := make([]catalog.Match, 0, len(all))
	for _, m := range all {
		if view.Includes(m, now) && catalog.SportIs(m, sport) {
			out = append(out, m)
		}
	}

	if cacheOK {
		if err := s.deps.Cache.SetListing(r.Context(), ver, string(view), sport, out); err != nil {
			s.log.Warn("catalog cache set failed", zap.Error(err))
		}
	}
	httpx.WriteJSON(w, http.StatusOK, dto.MatchListResponse{Matches: out})
}

// getMatch: partida oculta é tratada como inexistente fora do admin
func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Matches.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && !m.ShowOnFrontend {
		err = apperr.NotFound.With("match %s not found", m.ID)
	}
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	ver, cacheOK := s.version(r.Context())
	if cacheOK {
		var cached []repo.Category
		if ok, _ := s.deps.Cache.GetCategories(r.Context(), ver, &cached); ok {
			httpx.WriteJSON(w, http.StatusOK, dto.CategoryListResponse{Categories: nonNilC(cached)})
			return
		}
	}

	cats, err := s.deps.Sources.ListCategories(r.Context(), true)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	cats = nonNilC(cats)
	if cacheOK {
		if err := s.deps.Cache.SetCategories(r.Context(), ver, cats); err != nil {
			s.log.Warn("catalog cache set failed", zap.Error(err))
		}
	}
	httpx.WriteJSON(w, http.StatusOK, dto.CategoryListResponse{Categories: cats})
}

func (s *Server) adminListMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := httpx.PageFrom(r)
	f := catalog.AdminFilter{Search: strings.TrimSpace(q.Get("search")), Limit: p.Limit, Offset: p.Offset}
	if v := q.Get("status"); v != "" {
		st, err := catalog.ParseMatchStatus(v)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		f.Status = st
	}

	ms, err := s.deps.Matches.ListAdmin(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.AdminMatchListResponse{Matches: nonNil(ms), Limit: p.Limit, Offset: p.Offset})
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.MatchRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := validateOdds(req.HomeOdds, req.DrawOdds, req.AwayOdds); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	m := catalog.Match{
		HomeTeam:       strings.TrimSpace(req.HomeTeam),
		AwayTeam:       strings.TrimSpace(req.AwayTeam),
		Sport:          strings.TrimSpace(req.Sport),
		CategoryKey:    strings.TrimSpace(req.CategoryKey),
		MatchDate:      req.MatchDate.UTC(),
		Status:         catalog.StatusUpcoming,
		HomeOdds:       req.HomeOdds,
		DrawOdds:       req.DrawOdds,
		AwayOdds:       req.AwayOdds,
		ShowOnFrontend: req.ShowOnFrontend,
	}
	if err := s.deps.Matches.Create(r.Context(), &m); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	httpx.WriteJSON(w, http.StatusCreated, m)
}

func (s *Server) updateOdds(w http.ResponseWriter, r *http.Request) {
	var req dto.OddsRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := validateOdds(req.HomeOdds, req.DrawOdds, req.AwayOdds); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.deps.Matches.UpdateOdds(r.Context(), id, req.HomeOdds, req.DrawOdds, req.AwayOdds); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.mutated(w, r, id)
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request) {
	var req dto.VisibilityRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.deps.Matches.SetVisibility(r.Context(), id, *req.Show); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.mutated(w, r, id)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	st, _ := catalog.ParseMatchStatus(req.Status)
	// encerrar partida liquida as apostas: isso é do bet-service (POST /v1/admin/matches/{id}/settle)
	if st.Final() {
		httpx.WriteError(w, r, apperr.InvalidTransition.With("status %s is set by match settlement", st))
		return
	}
	id := chi.URLParam(r, "id")
	m, err := s.deps.Matches.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if !m.Status.CanTransition(st) {
		httpx.WriteError(w, r, apperr.InvalidTransition.With("match %s: %s -> %s", id, m.Status, st))
		return
	}
	if err := s.deps.Matches.SetStatus(r.Context(), id, st, ""); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.mutated(w, r, id)
}

func (s *Server) deleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Matches.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// mutated invalida o cache e devolve a partida atualizada
func (s *Server) mutated(w http.ResponseWriter, r *http.Request, id string) {
	s.invalidate(r.Context())
	m, err := s.deps.Matches.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, m)
}

func (s *Server) listAPIs(w http.ResponseWriter, r *http.Request) {
	apis, err := s.deps.Sources.ListAPIs(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if apis == nil {
		apis = []repo.GameAPI{}
	}
	httpx.WriteJSON(w, http.StatusOK, dto.GameAPIListResponse{APIs: apis})
}

func (s *Server) createAPI(w http.ResponseWriter, r *http.Request) {
	var req dto.GameAPIRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if req.APIKey == "" {
		httpx.WriteError(w, r, apperr.InvalidInput.With("api_key is required"))
		return
	}
	a := gameAPI(req)
	if err := s.deps.Sources.CreateAPI(r.Context(), &a); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func (s *Server) updateAPI(w http.ResponseWriter, r *http.Request) {
	var req dto.GameAPIRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	cur, err := s.deps.Sources.GetAPI(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	a := gameAPI(req)
	a.ID = cur.ID
	if req.IsActive == nil {
		a.IsActive = cur.IsActive
	}
	if err := s.deps.Sources.UpdateAPI(r.Context(), a); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	updated, err := s.deps.Sources.GetAPI(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteAPI(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sources.DeleteAPI(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) importMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.deps.Importer.ImportMatches(r.Context(), id)
	if err != nil {
		s.log.Warn("import failed", zap.String("api_id", id), zap.Error(err))
		httpx.WriteError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	httpx.WriteJSON(w, http.StatusOK, dto.ImportResponse{Result: res, APIID: id})
}

func (s *Server) fetchCategories(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.deps.Importer.FetchCategories(r.Context(), id)
	if err != nil {
		s.log.Warn("fetch categories failed", zap.String("api_id", id), zap.Error(err))
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.FetchCategoriesResponse{APIID: id, Inserted: n})
}

func (s *Server) adminListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Sources.ListCategories(r.Context(), false)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.CategoryListResponse{Categories: nonNilC(cats)})
}

func (s *Server) toggleCategory(w http.ResponseWriter, r *http.Request) {
	var req dto.ToggleRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := s.deps.Sources.SetCategoryActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	s.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func gameAPI(req dto.GameAPIRequest) repo.GameAPI {
	a := repo.GameAPI{
		Name:     strings.TrimSpace(req.Name),
		Provider: strings.TrimSpace(req.Provider),
		APIURL:   strings.TrimSpace(req.APIURL),
		APIKey:   req.APIKey,
		IsActive: true,
	}
	if req.IsActive != nil {
		a.IsActive = *req.IsActive
	}
	return a
}

func validateOdds(odds ...decimal.NullDecimal) error {
	for _, o := range odds {
		if err := catalog.ValidateOdds(o); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(m []catalog.Match) []catalog.Match {
	if m == nil {
		return []catalog.Match{}
	}
	return m
}

func nonNilC(c []repo.Category) []repo.Category {
	if c == nil {
		return []repo.Category{}
	}
	return c
}
