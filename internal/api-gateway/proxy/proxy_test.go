package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func upstream(t *testing.T, name string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", name)
		w.Header().Set("X-Seen-Key", r.Header.Get("Idempotency-Key"))
		_, _ = io.WriteString(w, r.URL.RequestURI())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutesStripPrefix(t *testing.T) {
	cat, wal, bet := upstream(t, "catalog"), upstream(t, "wallet"), upstream(t, "bets")
	h, err := NewHandler(Targets{Catalog: cat.URL, Wallet: wal.URL, Bets: bet.URL}, zap.NewNop())
	require.NoError(t, err)

	cases := []struct {
		path, upstream, seen string
	}{
		{"/api/catalog/v1/matches?view=live", "catalog", "/v1/matches?view=live"},
		{"/api/wallet/v1/wallet", "wallet", "/v1/wallet"},
		{"/api/bets/v1/bets", "bets", "/v1/bets"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, c.path, nil)
		req.Header.Set("Idempotency-Key", "k-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, c.path)
		assert.Equal(t, c.upstream, rec.Header().Get("X-Upstream"))
		assert.Equal(t, c.seen, rec.Body.String())
		assert.Equal(t, "k-1", rec.Header().Get("X-Seen-Key"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/odds/v1/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreflight(t *testing.T) {
	h, err := NewHandler(Targets{Catalog: "http://catalog:8080", Wallet: "http://wallet:8082", Bets: "http://bets:8083"}, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/bets/v1/bets", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	allowed := rec.Header().Get("Access-Control-Allow-Headers")
	for _, hdr := range []string{"Authorization", "Idempotency-Key", "X-Signature"} {
		assert.Contains(t, allowed, hdr)
	}
}

func TestUpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	h, err := NewHandler(Targets{Catalog: url, Wallet: url, Bets: url}, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/wallet/v1/wallet", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"dependency_unavailable"`)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestInvalidTarget(t *testing.T) {
	_, err := NewHandler(Targets{Catalog: "catalog:8080"}, zap.NewNop())
	assert.Error(t, err)
}
