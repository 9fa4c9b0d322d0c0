// Package proxy roteia /api/{catalog,wallet,bets}/* para os serviços internos.
package proxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

// Targets são as URLs base dos serviços
type Targets struct {
	Catalog string
	Wallet  string
	Bets    string
}

// headers aceitos do navegador; Idempotency-Key e X-Signature são usados por apostas, saques e callbacks
const allowHeaders = "Content-Type, Authorization, Idempotency-Key, X-Signature"

func rp(to string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream failed", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
		httpx.WriteError(w, r, apperr.Unavailable.With("upstream %s unavailable", u.Host))
	}
	return p, nil
}

// NewHandler monta o roteador do gateway
func NewHandler(t Targets, log *zap.Logger) (http.Handler, error) {
	routes := []struct {
		prefix, target string
	}{
		{"/api/catalog", t.Catalog},
		{"/api/wallet", t.Wallet},
		{"/api/bets", t.Bets},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, withCORS, metrics.Instrument)
	for _, rt := range routes {
		p, err := rp(rt.target, log)
		if err != nil {
			return nil, err
		}
		r.Handle(rt.prefix+"/*", http.StripPrefix(rt.prefix, p))
	}
	return r, nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
