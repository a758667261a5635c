package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, api ImageSearcher, keyHash string) (*httptest.Server, *Gallery) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Server.ApiKeyHash = keyHash
	g := NewGallery(context.Background(), NewSearchClient(api, 3), NewFavorites(newMemoryKV()), cfg.Debounce())
	t.Cleanup(g.Close)
	srv := httptest.NewServer(NewServer(&cfg, g))
	t.Cleanup(srv.Close)
	return srv, g
}

func doJSON(t *testing.T, method, url, body string, header map[string]string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res
}

func TestServerSearchAndLoadMore(t *testing.T) {
	api := newFakeSearcher()
	api.pages["cats"] = [][]Image{{testImage("a1")}, {testImage("a2")}}
	srv, _ := newTestServer(t, api, "")

	var view GalleryView
	res := doJSON(t, http.MethodPost, srv.URL+"/gallery/search", `{"query":"cats"}`, nil, &view)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))
	assert.Equal(t, "cats", view.Query)
	require.Len(t, view.Images, 1)

	res = doJSON(t, http.MethodPost, srv.URL+"/gallery/more", "", nil, &view)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 2, view.Page)
	assert.Len(t, view.Images, 2)
}

func TestServerUpstreamFailure(t *testing.T) {
	api := newFakeSearcher()
	api.fail[1] = &UpstreamError{StatusCode: 500}
	srv, _ := newTestServer(t, api, "")

	var view GalleryView
	res := doJSON(t, http.MethodPost, srv.URL+"/gallery/search", `{"query":"cats"}`, nil, &view)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, searchFailedMessage, view.Error)
}

func TestServerFavorites(t *testing.T) {
	srv, g := newTestServer(t, newFakeSearcher(), "")
	body, err := json.Marshal(testImage("f1"))
	require.NoError(t, err)

	var toggled struct {
		Id       string `json:"id"`
		Favorite bool   `json:"favorite"`
	}
	res := doJSON(t, http.MethodPost, srv.URL+"/favorites/toggle", string(body), nil, &toggled)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, toggled.Favorite)
	assert.True(t, g.IsFavorite("f1"))

	var status struct {
		Favorite bool `json:"favorite"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/favorites/f1", "", nil, &status)
	assert.True(t, status.Favorite)

	var list struct {
		Images []Image `json:"images"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/favorites", "", nil, &list)
	assert.Equal(t, []Image{testImage("f1")}, list.Images)

	res = doJSON(t, http.MethodPost, srv.URL+"/favorites/toggle", `{"uri":"no id"}`, nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestServerRequiresApiKey(t *testing.T) {
	hash, err := argon2id.CreateHash("let-me-in", argon2id.DefaultParams)
	require.NoError(t, err)
	srv, _ := newTestServer(t, newFakeSearcher(), hash)

	res := doJSON(t, http.MethodGet, srv.URL+"/gallery", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = doJSON(t, http.MethodGet, srv.URL+"/gallery", "", map[string]string{apiKeyHeader: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	for i := 0; i < 2; i++ {
		res = doJSON(t, http.MethodGet, srv.URL+"/gallery", "", map[string]string{apiKeyHeader: "let-me-in"}, nil)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	}

	res = doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestServerBrotliResponse(t *testing.T) {
	srv, _ := newTestServer(t, newFakeSearcher(), "")
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/gallery", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "br")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "br", res.Header.Get("Content-Encoding"))

	var view GalleryView
	require.NoError(t, json.NewDecoder(brotli.NewReader(res.Body)).Decode(&view))
	assert.Equal(t, 1, view.Page)
}

func TestServerUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, newFakeSearcher(), "")
	res := doJSON(t, http.MethodGet, srv.URL+"/nope", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestServerRefreshReportsLoadState(t *testing.T) {
	srv, g := newTestServer(t, newFakeSearcher(), "")
	g.ToggleFavorite(context.Background(), testImage("r1"))

	var refreshed struct {
		Images    []Image `json:"images"`
		IsLoading bool    `json:"isLoading"`
	}
	res := doJSON(t, http.MethodPost, srv.URL+"/favorites/refresh", "", nil, &refreshed)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"r1"}, imageIds(refreshed.Images))
	assert.Equal(t, g.FavoritesLoading(), refreshed.IsLoading)
}
