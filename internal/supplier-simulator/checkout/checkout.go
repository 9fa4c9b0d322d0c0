// Package checkout simula a página de pagamento de um gateway: decide o resultado,
// envia o callback assinado ao wallet-service e devolve o usuário ao site.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/supplier-simulator/dto"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/deposit"
)

var checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "simulator_checkouts_total",
	Help: "pagamentos simulados por resultado",
}, []string{"status"})

type Checkout struct {
	Log       *zap.Logger
	Client    *http.Client
	WalletURL string
	GatewayID string // usado quando a URL de checkout não traz gateway_id
	Secret    string

	// SuccessRate em %, como um gateway de testes que recusa parte dos pagamentos
	SuccessRate int

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(walletURL, gatewayID, secret string, log *zap.Logger) *Checkout {
	return &Checkout{
		Log:         log,
		Client:      &http.Client{Timeout: 5 * time.Second},
		WalletURL:   walletURL,
		GatewayID:   gatewayID,
		Secret:      secret,
		SuccessRate: 80,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Checkout) Routes(r chi.Router) {
	r.Get("/checkout", c.pay)
}

type callback struct {
	TransactionID    string `json:"transaction_id"`
	Status           string `json:"status"`
	GatewayReference string `json:"gateway_reference"`
	Amount           int64  `json:"amount"`
}

func (c *Checkout) outcome() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rnd.Intn(100) < c.SuccessRate {
		return dto.PaymentCompleted
	}
	return dto.PaymentFailed
}

// pay recebe os parâmetros que o wallet-service põe na URL de redirecionamento
func (c *Checkout) pay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txID := q.Get("transaction_id")
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if txID == "" || err != nil || amount <= 0 {
		httpx.WriteError(w, r, apperr.InvalidInput.With("transaction_id and amount are required"))
		return
	}
	gatewayID := q.Get("gateway_id")
	if gatewayID == "" {
		gatewayID = c.GatewayID
	}
	if gatewayID == "" {
		httpx.WriteError(w, r, apperr.InvalidInput.With("gateway_id is not configured"))
		return
	}

	cb := callback{
		TransactionID:    txID,
		Status:           c.outcome(),
		GatewayReference: "SIM-" + uuid.NewString()[:8],
		Amount:           amount,
	}
	log := c.Log.With(zap.String("transaction_id", txID), zap.String("status", cb.Status))

	if err := c.notify(r.Context(), gatewayID, cb); err != nil {
		log.Warn("callback failed", zap.Error(err))
		checkouts.WithLabelValues("callback_error").Inc()
		httpx.WriteError(w, r, apperr.Unavailable.With("wallet callback failed"))
		return
	}
	checkouts.WithLabelValues(cb.Status).Inc()
	log.Info("payment simulated", zap.Int64("amount", amount))

	back := q.Get("redirect_url")
	if back == "" {
		httpx.WriteJSON(w, http.StatusOK, cb)
		return
	}
	u, err := url.Parse(back)
	if err != nil {
		httpx.WriteError(w, r, apperr.InvalidInput.With("invalid redirect_url"))
		return
	}
	rq := u.Query()
	rq.Set("transaction_id", txID)
	rq.Set("status", cb.Status)
	u.RawQuery = rq.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// notify envia o callback com o corpo assinado por HMAC-SHA256 em X-Signature
func (c *Checkout) notify(ctx context.Context, gatewayID string, cb callback) error {
	body, err := json.Marshal(cb)
	if err != nil {
		return err
	}
	target := fmt.Sprintf("%s/v1/deposits/callback/%s", c.WalletURL, url.PathEscape(gatewayID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", deposit.Sign(c.Secret, body))

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("wallet returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
