package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerAppends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_appended_total",
		Help: "entradas gravadas no ledger por tipo",
	}, []string{"kind"})

	LedgerAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_amount_minor_total",
		Help: "soma absoluta (paise) movimentada por tipo",
	}, []string{"kind"})

	ProjectionDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_projection_drift_total",
		Help: "saldos materializados divergentes do ledger e reparados",
	})

	BetsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bets_placed_total",
		Help: "apostas aceitas",
	})

	BetsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bets_settled_total",
		Help: "apostas liquidadas por resultado",
	}, []string{"outcome"})

	Withdrawals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "withdrawals_total",
		Help: "transições de saque por status",
	}, []string{"status"})

	Deposits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_callbacks_total",
		Help: "callbacks de depósito por resultado",
	}, []string{"result"})

	DomainErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_errors_total",
		Help: "erros devolvidos ao chamador por código",
	}, []string{"code"})

	StatsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stats_worker_events_total",
		Help: "eventos de ledger consumidos pelo stats-worker por resultado",
	}, []string{"topic", "result"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "latência das rotas HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// Instrument mede latência por rota chi (padrão, não path concreto).
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		HTTPDuration.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Observe(time.Since(start).Seconds())
	})
}
