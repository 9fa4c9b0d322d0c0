package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/repo"
)

type memAPIs struct {
	mu     sync.Mutex
	api    repo.GameAPI
	active []string
	cats   map[string]repo.Category
	synced *time.Time
}

func (m *memAPIs) GetAPI(_ context.Context, id string) (repo.GameAPI, error) {
	if id != m.api.ID {
		return repo.GameAPI{}, apperr.NotFound.With("game api %s not found", id)
	}
	return m.api, nil
}

func (m *memAPIs) ActiveCategoryKeys(context.Context, string) ([]string, error) {
	return m.active, nil
}

func (m *memAPIs) InsertCategories(_ context.Context, _ string, cats []repo.Category) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range cats {
		if _, ok := m.cats[c.Key]; ok {
			continue
		}
		m.cats[c.Key] = c
		n++
	}
	return n, nil
}

func (m *memAPIs) TouchSync(_ context.Context, _ string, at time.Time) error {
	m.synced = &at
	return nil
}

type memMatches struct {
	got  []catalog.ImportedMatch
	seen map[string]bool
}

func (m *memMatches) UpsertImported(_ context.Context, _ string, items []catalog.ImportedMatch) (int, int, error) {
	ins, upd := 0, 0
	for _, it := range items {
		if m.seen[it.ExternalID] {
			upd++
		} else {
			m.seen[it.ExternalID] = true
			ins++
		}
		m.got = append(m.got, it)
	}
	return ins, upd, nil
}

const eventsJSON = `[
  {"id":"ev1","sport_key":"soccer_epl","sport_title":"EPL","commence_time":"2026-11-01T15:00:00Z",
   "home_team":"Arsenal","away_team":"Chelsea",
   "bookmakers":[{"key":"b1","markets":[
     {"key":"totals","outcomes":[{"name":"Over","price":1.9}]},
     {"key":"h2h","outcomes":[{"name":"Arsenal","price":2.1},{"name":"Chelsea","price":3.4},{"name":"Draw","price":3.25}]}]}]},
  {"id":"ev2","sport_key":"soccer_epl","sport_title":"EPL","commence_time":"not-a-date","home_team":"A","away_team":"B"},
  {"id":"ev3","sport_key":"soccer_epl","sport_title":"EPL","commence_time":"2026-11-02T15:00:00Z",
   "home_team":"Leeds","away_team":"Everton","bookmakers":[]}
]`

func newImporter(t *testing.T, srvURL string) (*Importer, *memAPIs, *memMatches) {
	apis := &memAPIs{
		api:  repo.GameAPI{ID: "api-1", Name: "odds", APIURL: srvURL + "/v4/sports/", APIKey: "k1", IsActive: true},
		cats: map[string]repo.Category{},
	}
	matches := &memMatches{seen: map[string]bool{}}
	im := New(apis, matches, 2*time.Second, zaptest.NewLogger(t))
	im.Now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
	return im, apis, matches
}

func TestImportMatches(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))
		assert.Equal(t, "h2h", r.URL.Query().Get("markets"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	}))
	defer srv.Close()

	im, apis, matches := newImporter(t, srv.URL)
	apis.active = []string{"soccer_epl"}

	res, err := im.ImportMatches(context.Background(), "api-1")
	require.NoError(t, err)
	assert.Equal(t, Result{Inserted: 2, Skipped: 1}, res)
	assert.Equal(t, []string{"/v4/sports/soccer_epl/odds"}, paths)
	require.NotNil(t, apis.synced)

	require.Len(t, matches.got, 2)
	ev1 := matches.got[0]
	assert.Equal(t, "ev1", ev1.ExternalID)
	assert.Equal(t, "EPL", ev1.Sport)
	assert.Equal(t, "soccer_epl", ev1.CategoryKey)
	assert.Equal(t, "2.1", ev1.HomeOdds.Decimal.String())
	assert.Equal(t, "3.25", ev1.DrawOdds.Decimal.String())
	assert.Equal(t, "3.4", ev1.AwayOdds.Decimal.String())

	// sem casa de apostas: entra sem odds
	assert.False(t, matches.got[1].HomeOdds.Valid)

	res, err = im.ImportMatches(context.Background(), "api-1")
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2, Skipped: 1}, res)
}

func TestImportMatchesFallsBackToUpcoming(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	im, _, _ := newImporter(t, srv.URL)
	res, err := im.ImportMatches(context.Background(), "api-1")
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, "/v4/sports/upcoming/odds", path)
}

func TestImportErrors(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	im, apis, _ := newImporter(t, srv.URL)

	_, err := im.ImportMatches(context.Background(), "api-1")
	assert.ErrorIs(t, err, apperr.Unavailable)
	assert.Nil(t, apis.synced)

	status = http.StatusUnauthorized
	_, err = im.FetchCategories(context.Background(), "api-1")
	assert.ErrorIs(t, err, apperr.InvalidTransition)

	apis.api.IsActive = false
	_, err = im.ImportMatches(context.Background(), "api-1")
	assert.ErrorIs(t, err, apperr.InvalidTransition)

	_, err = im.ImportMatches(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.NotFound)
}

func TestFetchCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/sports/", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"key":"soccer_epl","title":"EPL","group":"Soccer","active":true},
			{"key":"cricket_ipl","title":"IPL","group":"Cricket","active":true},
			{"key":"","title":"broken"}
		]`))
	}))
	defer srv.Close()

	im, apis, _ := newImporter(t, srv.URL)

	n, err := im.FetchCategories(context.Background(), "api-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Cricket", apis.cats["cricket_ipl"].Group)

	n, err = im.FetchCategories(context.Background(), "api-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithKey(t *testing.T) {
	api := repo.GameAPI{APIKey: "secret"}

	got, err := withKey("https://api.the-odds-api.com/v4/sports/?all=true", api)
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "secret", u.Query().Get("apiKey"))
	assert.Equal(t, "true", u.Query().Get("all"))

	got, err = withKey("https://feeds.example.com/sports", api)
	require.NoError(t, err)
	assert.Equal(t, "https://feeds.example.com/sports", got)

	_, err = withKey("not a url", api)
	assert.Error(t, err)
}
