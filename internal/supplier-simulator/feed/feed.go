// Package feed simula a the-odds-api para a importação de partidas em ambiente local.
package feed

import (
	"math"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/radieske/sports-bet-ledger/internal/shared/httpx"
	"github.com/radieske/sports-bet-ledger/internal/supplier-simulator/dto"
)

var feedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "simulator_feed_requests_total",
	Help: "requisições ao feed de odds simulado",
}, []string{"endpoint", "status"})

type fixture struct {
	id     string
	sport  string
	home   string
	away   string
	offset time.Duration // início relativo a Now
	draw   bool
}

var sports = []dto.Sport{
	{Key: "soccer_brazil_campeonato", Group: "Soccer", Title: "Brazil Série A", Active: true},
	{Key: "cricket_ipl", Group: "Cricket", Title: "IPL", Active: true},
}

// Catálogo fixo de partidas simuladas
var fixtures = []fixture{
	{id: "sim-match-001", sport: "soccer_brazil_campeonato", home: "Flamengo", away: "Palmeiras", offset: 2 * time.Hour, draw: true},
	{id: "sim-match-002", sport: "soccer_brazil_campeonato", home: "Grêmio", away: "Internacional", offset: 26 * time.Hour, draw: true},
	{id: "sim-match-003", sport: "soccer_brazil_campeonato", home: "Corinthians", away: "Santos", offset: 50 * time.Hour, draw: true},
	{id: "sim-match-004", sport: "cricket_ipl", home: "Mumbai Indians", away: "Chennai Super Kings", offset: 6 * time.Hour},
	{id: "sim-match-005", sport: "cricket_ipl", home: "Royal Challengers Bengaluru", away: "Kolkata Knight Riders", offset: 30 * time.Hour},
}

// Feed serve /v4/sports e /v4/sports/{sport}/odds com odds aleatórias a cada chamada
type Feed struct {
	APIKey string // vazio aceita qualquer chamada
	Now    func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func New(apiKey string, seed int64) *Feed {
	return &Feed{APIKey: apiKey, Now: time.Now, rnd: rand.New(rand.NewSource(seed))}
}

func (f *Feed) Routes(r chi.Router) {
	r.Get("/v4/sports", f.listSports)
	r.Get("/v4/sports/", f.listSports)
	r.Get("/v4/sports/{sport}/odds", f.listOdds)
}

// authorized aceita a chave como query apiKey (the-odds-api) ou Bearer
func (f *Feed) authorized(r *http.Request) bool {
	if f.APIKey == "" {
		return true
	}
	return r.URL.Query().Get("apiKey") == f.APIKey ||
		strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") == f.APIKey
}

func (f *Feed) listSports(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		feedRequests.WithLabelValues("sports", "unauthorized").Inc()
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}
	feedRequests.WithLabelValues("sports", "ok").Inc()
	httpx.WriteJSON(w, http.StatusOK, sports)
}

func (f *Feed) listOdds(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		feedRequests.WithLabelValues("odds", "unauthorized").Inc()
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid api key"})
		return
	}
	sport := chi.URLParam(r, "sport")
	title, ok := sportTitle(sport)
	if !ok && sport != "upcoming" {
		feedRequests.WithLabelValues("odds", "unknown_sport").Inc()
		httpx.WriteJSON(w, http.StatusNotFound, map[string]string{"message": "unknown sport"})
		return
	}

	now := f.Now().UTC()
	out := []dto.Event{}
	for _, fx := range fixtures {
		if sport != "upcoming" && fx.sport != sport {
			continue
		}
		if sport == "upcoming" {
			title, _ = sportTitle(fx.sport)
		}
		out = append(out, f.event(fx, title, now))
	}
	feedRequests.WithLabelValues("odds", "ok").Inc()
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (f *Feed) event(fx fixture, title string, now time.Time) dto.Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	outcomes := []dto.Outcome{
		{Name: fx.home, Price: f.rnd2(1.40, 3.50)},
		{Name: fx.away, Price: f.rnd2(2.00, 5.00)},
	}
	if fx.draw {
		outcomes = append(outcomes, dto.Outcome{Name: "Draw", Price: f.rnd2(2.50, 4.50)})
	}
	return dto.Event{
		ID:           fx.id,
		SportKey:     fx.sport,
		SportTitle:   title,
		CommenceTime: now.Add(fx.offset).Truncate(time.Minute).Format(time.RFC3339),
		HomeTeam:     fx.home,
		AwayTeam:     fx.away,
		Bookmakers: []dto.Bookmaker{{
			Key:        "simulator",
			Title:      "Simulator",
			LastUpdate: now.Format(time.RFC3339),
			Markets:    []dto.Market{{Key: "h2h", Outcomes: outcomes}},
		}},
	}
}

// rnd2 gera um número entre min e max com duas casas
func (f *Feed) rnd2(min, max float64) float64 {
	v := f.rnd.Float64()*(max-min) + min
	return math.Round(v*100) / 100
}

func sportTitle(key string) (string, bool) {
	for _, s := range sports {
		if s.Key == key {
			return s.Title, true
		}
	}
	return "", false
}
