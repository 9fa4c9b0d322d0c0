package checkout

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/supplier-simulator/dto"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/deposit"
)

type walletStub struct {
	mu       sync.Mutex
	srv      *httptest.Server
	status   int
	path     string
	received callback
	sigOK    bool
}

func newWallet(t *testing.T, secret string) *walletStub {
	w := &walletStub{status: http.StatusOK}
	w.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.mu.Lock()
		defer w.mu.Unlock()
		w.path = r.URL.Path
		w.sigOK = r.Header.Get("X-Signature") == deposit.Sign(secret, body)
		_ = json.Unmarshal(body, &w.received)
		rw.WriteHeader(w.status)
	}))
	t.Cleanup(w.srv.Close)
	return w
}

func handler(c *Checkout) http.Handler {
	r := chi.NewRouter()
	c.Routes(r)
	return r
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCheckoutCompletes(t *testing.T) {
	wallet := newWallet(t, "s3cret")
	c := New(wallet.srv.URL, "gw-default", "s3cret", zap.NewNop())
	c.SuccessRate = 100

	q := url.Values{
		"amount":         {"20000"},
		"transaction_id": {"tx-1"},
		"user_id":        {"u1"},
		"gateway":        {"upi"},
		"gateway_id":     {"gw-1"},
		"redirect_url":   {"https://bet.example.com/wallet?tab=deposits"},
	}
	rec := get(handler(c), "/checkout?"+q.Encode())
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "bet.example.com", loc.Host)
	assert.Equal(t, "completed", loc.Query().Get("status"))
	assert.Equal(t, "deposits", loc.Query().Get("tab"))

	assert.Equal(t, "/v1/deposits/callback/gw-1", wallet.path)
	assert.True(t, wallet.sigOK)
	assert.Equal(t, "tx-1", wallet.received.TransactionID)
	assert.Equal(t, int64(20000), wallet.received.Amount)
	assert.Equal(t, dto.PaymentCompleted, wallet.received.Status)
	assert.Contains(t, wallet.received.GatewayReference, "SIM-")
}

func TestCheckoutFailsAndDefaultsGateway(t *testing.T) {
	wallet := newWallet(t, "s3cret")
	c := New(wallet.srv.URL, "gw-default", "s3cret", zap.NewNop())
	c.SuccessRate = 0

	rec := get(handler(c), "/checkout?amount=500&transaction_id=tx-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/deposits/callback/gw-default", wallet.path)
	assert.Equal(t, dto.PaymentFailed, wallet.received.Status)
}

func TestCheckoutErrors(t *testing.T) {
	wallet := newWallet(t, "s3cret")
	c := New(wallet.srv.URL, "", "s3cret", zap.NewNop())
	h := handler(c)

	assert.Equal(t, http.StatusBadRequest, get(h, "/checkout?amount=abc&transaction_id=tx").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/checkout?amount=100&transaction_id=tx").Code)

	wallet.mu.Lock()
	wallet.status = http.StatusUnauthorized
	wallet.mu.Unlock()
	rec := get(h, "/checkout?amount=100&transaction_id=tx&gateway_id=gw")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
