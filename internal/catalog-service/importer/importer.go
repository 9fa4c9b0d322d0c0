// Package importer traz partidas e categorias de APIs externas no formato da the-odds-api.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/repo"
)

const fetchParallelism = 4

// APIRepo é o acesso às fontes e categorias usado pela importação
type APIRepo interface {
	GetAPI(ctx context.Context, id string) (repo.GameAPI, error)
	ActiveCategoryKeys(ctx context.Context, apiID string) ([]string, error)
	InsertCategories(ctx context.Context, apiID string, cats []repo.Category) (int, error)
	TouchSync(ctx context.Context, id string, at time.Time) error
}

// MatchUpserter grava as partidas importadas
type MatchUpserter interface {
	UpsertImported(ctx context.Context, apiSourceID string, items []catalog.ImportedMatch) (inserted, updated int, err error)
}

type Importer struct {
	APIs    APIRepo
	Matches MatchUpserter
	Client  *http.Client
	Log     *zap.Logger
	Now     func() time.Time
}

func New(apis APIRepo, matches MatchUpserter, timeout time.Duration, log *zap.Logger) *Importer {
	return &Importer{
		APIs:    apis,
		Matches: matches,
		Client:  &http.Client{Timeout: timeout},
		Log:     log,
		Now:     time.Now,
	}
}

// Result resume uma importação de partidas
type Result struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// formato de evento da the-odds-api (/v4/sports/{sport}/odds)
type oddsEvent struct {
	ID           string   `json:"id"`
	SportKey     string   `json:"sport_key"`
	SportTitle   string   `json:"sport_title"`
	CommenceTime string   `json:"commence_time"`
	HomeTeam     string   `json:"home_team"`
	AwayTeam     string   `json:"away_team"`
	Bookmakers   []bookie `json:"bookmakers"`
}

type bookie struct {
	Key     string   `json:"key"`
	Markets []market `json:"markets"`
}

type market struct {
	Key      string    `json:"key"`
	Outcomes []outcome `json:"outcomes"`
}

type outcome struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// formato de /v4/sports
type sportEntry struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Group  string `json:"group"`
	Active bool   `json:"active"`
}

// ImportMatches busca eventos das categorias ativas da fonte (ou "upcoming" se nenhuma estiver ativa)
// e grava com upsert. Partidas novas entram ocultas.
func (im *Importer) ImportMatches(ctx context.Context, apiID string) (Result, error) {
	api, err := im.APIs.GetAPI(ctx, apiID)
	if err != nil {
		return Result{}, err
	}
	if !api.IsActive {
		return Result{}, apperr.InvalidTransition.With("game api %s is inactive", api.Name)
	}

	keys, err := im.APIs.ActiveCategoryKeys(ctx, apiID)
	if err != nil {
		return Result{}, err
	}
	if len(keys) == 0 {
		keys = []string{"upcoming"}
	}

	// uma requisição por categoria, no máximo fetchParallelism ao mesmo tempo
	batches := make([][]oddsEvent, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)
	for i, k := range keys {
		g.Go(func() error {
			return im.getJSON(gctx, api, oddsURL(api.APIURL, k), &batches[i])
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var (
		res   Result
		items []catalog.ImportedMatch
	)
	for _, evs := range batches {
		for _, ev := range evs {
			m, ok := toImported(ev)
			if !ok {
				res.Skipped++
				continue
			}
			items = append(items, m)
		}
	}

	if len(items) > 0 {
		res.Inserted, res.Updated, err = im.Matches.UpsertImported(ctx, apiID, items)
		if err != nil {
			return Result{}, err
		}
	}
	if err := im.APIs.TouchSync(ctx, apiID, im.Now().UTC()); err != nil {
		return Result{}, err
	}

	im.Log.Info("matches imported",
		zap.String("api_id", apiID),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// FetchCategories lê a lista de esportes da fonte e grava as novas como inativas
func (im *Importer) FetchCategories(ctx context.Context, apiID string) (int, error) {
	api, err := im.APIs.GetAPI(ctx, apiID)
	if err != nil {
		return 0, err
	}

	var sports []sportEntry
	if err := im.getJSON(ctx, api, api.APIURL, &sports); err != nil {
		return 0, err
	}

	cats := make([]repo.Category, 0, len(sports))
	for _, s := range sports {
		if s.Key == "" {
			continue
		}
		name := s.Title
		if name == "" {
			name = s.Key
		}
		cats = append(cats, repo.Category{Key: s.Key, Name: name, Group: s.Group})
	}
	if len(cats) == 0 {
		return 0, nil
	}

	n, err := im.APIs.InsertCategories(ctx, apiID, cats)
	if err != nil {
		return 0, err
	}
	im.Log.Info("categories fetched", zap.String("api_id", apiID), zap.Int("received", len(cats)), zap.Int("inserted", n))
	return n, nil
}

func (im *Importer) getJSON(ctx context.Context, api repo.GameAPI, rawURL string, dst any) error {
	target, err := withKey(rawURL, api)
	if err != nil {
		return apperr.InvalidInput.With("bad api url %q", api.APIURL).Wrap(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return apperr.InvalidInput.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if api.APIKey != "" && !isOddsAPI(target) {
		req.Header.Set("Authorization", "Bearer "+api.APIKey)
	}

	resp, err := im.Client.Do(req)
	if err != nil {
		return apperr.Unavailable.With("fetch %s", api.Name).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return apperr.Unavailable.With("%s returned %d", api.Name, resp.StatusCode)
		}
		return apperr.InvalidTransition.With("%s returned %d", api.Name, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(dst); err != nil {
		return apperr.InvalidInput.With("decode %s response", api.Name).Wrap(err)
	}
	return nil
}

func isOddsAPI(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && strings.HasSuffix(u.Hostname(), "the-odds-api.com")
}

// withKey põe a chave como query apiKey nos hosts da the-odds-api; os demais usam Bearer.
func withKey(rawURL string, api repo.GameAPI) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}
	if api.APIKey != "" && isOddsAPI(rawURL) {
		q := u.Query()
		q.Set("apiKey", api.APIKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// oddsURL monta {base}/{sport}/odds pedindo só o mercado h2h em odds decimais
func oddsURL(base, sportKey string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + url.PathEscape(sportKey) + "/odds"
	q := u.Query()
	q.Set("markets", "h2h")
	q.Set("regions", "eu")
	q.Set("oddsFormat", "decimal")
	u.RawQuery = q.Encode()
	return u.String()
}

// toImported converte um evento; sem id, times ou data válida ele é descartado.
func toImported(ev oddsEvent) (catalog.ImportedMatch, bool) {
	if ev.ID == "" || ev.HomeTeam == "" || ev.AwayTeam == "" {
		return catalog.ImportedMatch{}, false
	}
	at, err := time.Parse(time.RFC3339, ev.CommenceTime)
	if err != nil {
		return catalog.ImportedMatch{}, false
	}

	sport := ev.SportTitle
	if sport == "" {
		sport = ev.SportKey
	}
	m := catalog.ImportedMatch{
		ExternalID:  ev.ID,
		HomeTeam:    ev.HomeTeam,
		AwayTeam:    ev.AwayTeam,
		Sport:       sport,
		CategoryKey: ev.SportKey,
		MatchDate:   at.UTC(),
	}

	// primeira casa com mercado h2h
	for _, b := range ev.Bookmakers {
		for _, mk := range b.Markets {
			if mk.Key != "h2h" {
				continue
			}
			for _, o := range mk.Outcomes {
				price := validOdds(o.Price)
				switch {
				case strings.EqualFold(o.Name, ev.HomeTeam):
					m.HomeOdds = price
				case strings.EqualFold(o.Name, ev.AwayTeam):
					m.AwayOdds = price
				case strings.EqualFold(o.Name, "draw"):
					m.DrawOdds = price
				}
			}
			return m, true
		}
	}
	return m, true
}

func validOdds(p decimal.Decimal) decimal.NullDecimal {
	if p.LessThan(catalog.MinOdds) {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: p, Valid: true}
}
