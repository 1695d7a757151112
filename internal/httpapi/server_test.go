package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moosync/moosyncd/internal/eventbus"
	"github.com/moosync/moosyncd/internal/hostcall"
	"github.com/moosync/moosyncd/internal/models"
	"github.com/moosync/moosyncd/internal/oauth"
	"github.com/moosync/moosyncd/internal/playback"
	"github.com/moosync/moosyncd/internal/providers"
)

// fakeLoginAdapter lets the /providers/:key/login and /signout routes be
// exercised without a real OAuth-backed adapter.
type fakeLoginAdapter struct {
	providers.BaseAdapter
	redirectURL  string
	signedOut    string
}

func (a *fakeLoginAdapter) Login(ctx context.Context, accountID string) (string, error) {
	return a.redirectURL, nil
}

func (a *fakeLoginAdapter) Signout(ctx context.Context, accountID string) error {
	a.signedOut = accountID
	return nil
}

func (a *fakeLoginAdapter) Search(ctx context.Context, term string) (models.SearchResult, error) {
	return models.SearchResult{Songs: []models.Song{{ID: "fake:1", Title: term}}}, nil
}

func (a *fakeLoginAdapter) FetchUserPlaylists(ctx context.Context, p models.Pagination) ([]models.Playlist, models.Pagination, error) {
	return []models.Playlist{{ID: "fake-playlist:1", Name: "Mix"}}, p, nil
}

func newTestDeps(t *testing.T) (Deps, *fakeLoginAdapter) {
	t.Helper()
	bus := eventbus.New()
	registry := providers.NewRegistry(bus, nil)
	adapter := &fakeLoginAdapter{BaseAdapter: providers.NewBaseAdapter("fake", "fake", models.ScopeAccounts)}
	registry.Register(adapter)

	queue := playback.NewQueue(bus)
	coord := playback.NewCoordinator(registry, bus, playback.NewLibrespotBackend(), playback.NewLocalBackend(), playback.NewStreamBackend())
	oauthBroker := oauth.NewBroker(registry)
	hub := NewHub(bus, hostcall.NewUIBridge([]byte("test-secret"), nil))

	return Deps{Registry: registry, Queue: queue, Coord: coord, OAuth: oauthBroker, Hub: hub}, adapter
}

func doJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_ProvidersListsStatuses(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fake"`)
}

func TestRouter_ProviderLogin_ReturnsRedirectURL(t *testing.T) {
	deps, adapter := newTestDeps(t)
	adapter.redirectURL = "https://example.com/auth"
	router := NewRouter(deps)

	w := doJSON(router, http.MethodPost, "/providers/fake/login", map[string]string{"account_id": "acc-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://example.com/auth")
}

func TestRouter_ProviderLogin_UnknownKeyIsError(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodPost, "/providers/missing/login", map[string]string{"account_id": "x"})
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestRouter_ProviderSignout_ClearsAccount(t *testing.T) {
	deps, adapter := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodPost, "/providers/fake/signout", map[string]string{"account_id": "acc-1"})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "acc-1", adapter.signedOut)
}

func TestRouter_QueuePlayNowThenSnapshot(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	songs := []models.Song{{ID: "local:1", Title: "Track", Type: models.SongTypeLocal, Path: "/a.flac"}}
	w := doJSON(router, http.MethodPost, "/queue/play-now", map[string]any{"songs": songs})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "local:1")
}

func TestRouter_QueueClear_EmptiesSnapshot(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	songs := []models.Song{{ID: "local:1", Title: "Track", Type: models.SongTypeLocal, Path: "/a.flac"}}
	doJSON(router, http.MethodPost, "/queue/add", map[string]any{"songs": songs})

	w := doJSON(router, http.MethodPost, "/queue/clear", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/queue", nil)
	var state models.QueueState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Empty(t, state.Songs)
}

func TestRouter_PlaybackSeek_InvalidBodyIsValidationError(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/playback/seek", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusNoContent, w.Code)
}

func TestRouter_PlaybackVolume_SetsCoordinatorVolume(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodPost, "/playback/volume", map[string]int{"volume": 42})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 42, deps.Coord.GetVolume())
}

func TestRouter_PlaybackNext_NoQueueIsNoContent(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodPost, "/playback/next", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_ProviderSearch_ReturnsResults(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodGet, "/providers/fake/search?term=hello", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fake:1")
}

func TestRouter_ProviderPlaylists_ReturnsPlaylists(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodGet, "/providers/fake/playlists?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fake-playlist:1")
}

func TestRouter_ProviderPlaylistContent_UnknownKeyIsError(t *testing.T) {
	deps, _ := newTestDeps(t)
	router := NewRouter(deps)

	w := doJSON(router, http.MethodGet, "/providers/missing/playlists/p1/content", nil)
	assert.NotEqual(t, http.StatusOK, w.Code)
}
