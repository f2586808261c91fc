package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kapitbahay/internal/cache"
	"kapitbahay/internal/duplicate"
	"kapitbahay/internal/events"
	"kapitbahay/internal/geo"
	"kapitbahay/internal/handlers"
	"kapitbahay/internal/heatmap"
	"kapitbahay/internal/lifecycle"
	"kapitbahay/internal/models"
	"kapitbahay/internal/modqueue"
	"kapitbahay/internal/proximity"
	"kapitbahay/internal/ratelimit"
	"kapitbahay/internal/reactions"
	"kapitbahay/internal/routing"
	"kapitbahay/internal/search"
	"kapitbahay/internal/store"
)

type apiFixture struct {
	srv   *httptest.Server
	store *store.Store
	hub   *events.Hub
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, u := range []models.User{
		{ID: "trusted", DisplayName: "Aling Nena", Role: models.RoleResident, TrustScore: 80},
		{ID: "newbie", DisplayName: "Bagong Lipat", Role: models.RoleResident, TrustScore: 5},
		{ID: "neighbor", DisplayName: "Mang Tomas", Role: models.RoleResident, TrustScore: 40},
		{ID: "mod", DisplayName: "Kap", Role: models.RoleModerator, TrustScore: 90},
		{ID: "taho-cart", DisplayName: "Taho", Role: models.RoleVendor, TrustScore: 30},
	} {
		u.CreatedAt = time.Now().UTC()
		require.NoError(t, st.UpsertUser(ctx, u))
	}

	index := proximity.NewIndex()
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	lc, err := lifecycle.NewService(lifecycle.Options{
		Store:    st,
		Index:    index,
		Detector: duplicate.NewDetector(index, duplicate.DefaultPolicy(), nil),
		// Zero draws pin the fuzz offset to the minimum radius at bearing
		// zero, keeping duplicate scores deterministic.
		Fuzzer:    geo.NewFuzzerWithSource(func() float64 { return 0 }),
		Catalog:   models.DefaultCatalog(),
		Limiter:   ratelimit.NoopLimiter{},
		Publisher: hub,
	})
	require.NoError(t, err)

	h := handlers.NewHandler(
		lc,
		reactions.NewAggregator(st, index, hub),
		modqueue.NewService(st, index, hub),
		heatmap.NewService(index, cache.NoopCache{}),
		search.NewService(index),
		index,
		st,
	)
	srv := httptest.NewServer(routing.SetupRouter(routing.Config{
		Handlers: h,
		Hub:      hub,
		Logger:   zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)

	return &apiFixture{srv: srv, store: st, hub: hub}
}

func (f *apiFixture) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (f *apiFixture) getJSON(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusAccepted {
		return nil
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func submitBody(author, content string) map[string]any {
	return map[string]any{
		"author_id": author,
		"category":  "street_food",
		"content":   content,
		"lat":       14.5995,
		"lng":       120.9842,
	}
}

func TestSubmitAndFeedRoundtrip(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.postJSON(t, "/api/posts", submitBody("trusted", "Fresh taho at the corner of Mabini"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "active", body["status"])
	assert.NotEmpty(t, body["id"])
	assert.NotEqual(t, 14.5995, body["lat"], "published coordinates must be fuzzed")

	resp, feed := f.getJSON(t, "/api/feed?lat=14.5995&lng=120.9842&radius_m=1000")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), feed["total"])
}

func TestSubmitValidationRejected(t *testing.T) {
	f := newAPIFixture(t)

	body := submitBody("trusted", "Fresh taho")
	body["lat"] = 91.0
	resp, out := f.postJSON(t, "/api/posts", body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", out["code"])
}

func TestSubmitDuplicateConflict(t *testing.T) {
	f := newAPIFixture(t)

	resp, first := f.postJSON(t, "/api/posts", submitBody("trusted", "Fresh taho at the corner of Mabini"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, out := f.postJSON(t, "/api/posts", submitBody("neighbor", "Fresh taho at the corner of Mabini"))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE_POST", out["code"])
	assert.Equal(t, first["id"], out["existing_post_id"])
}

func TestReactionEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	_, post := f.postJSON(t, "/api/posts", submitBody("trusted", "Fresh taho at the corner of Mabini"))
	id := post["id"].(string)

	resp, out := f.postJSON(t, fmt.Sprintf("/api/posts/%s/reactions", id), map[string]any{
		"user_id":  "neighbor",
		"reaction": "thanks",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	counts := out["reactions"].(map[string]any)
	assert.Equal(t, float64(1), counts["thanks"])

	// Authors cannot react to their own posts.
	resp, out = f.postJSON(t, fmt.Sprintf("/api/posts/%s/reactions", id), map[string]any{
		"user_id":  "trusted",
		"reaction": "confirm",
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "SELF_REACTION", out["code"])
}

func TestDeleteRequiresAuthor(t *testing.T) {
	f := newAPIFixture(t)

	_, post := f.postJSON(t, "/api/posts", submitBody("trusted", "Fresh taho at the corner of Mabini"))
	id := post["id"].(string)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/posts/%s?user_id=neighbor", f.srv.URL, id), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/posts/%s?user_id=trusted", f.srv.URL, id), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestModerationQueueFlow(t *testing.T) {
	f := newAPIFixture(t)

	resp, post := f.postJSON(t, "/api/posts", submitBody("newbie", "Bagyo warning sa kanto"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending_moderation", post["status"])

	resp, queue := f.getJSON(t, "/api/modqueue")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := queue["items"].([]any)
	require.Len(t, items, 1)
	itemID := items[0].(map[string]any)["id"].(string)

	resp, _ = f.postJSON(t, fmt.Sprintf("/api/modqueue/%s/resolve", itemID), map[string]any{
		"action":       "approve",
		"moderator_id": "mod",
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second resolution of the same item is rejected.
	resp, out := f.postJSON(t, fmt.Sprintf("/api/modqueue/%s/resolve", itemID), map[string]any{
		"action":       "remove",
		"moderator_id": "mod",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", out["code"])

	resp, logBody := f.getJSON(t, "/api/modqueue/log")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, logBody["entries"].([]any), 1)
}

func TestSearchEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	_, post := f.postJSON(t, "/api/posts", submitBody("trusted", "Fresh taho at the corner of Mabini"))
	require.Equal(t, "active", post["status"])

	resp, out := f.getJSON(t, "/api/search?q=taho&lat=14.5995&lng=120.9842&radius_m=2000")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), out["total"])

	resp, out = f.getJSON(t, "/api/search?q=x&lat=14.5995&lng=120.9842")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", out["code"])
}

func TestHeatmapEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	_, post := f.postJSON(t, "/api/posts", submitBody("trusted", "Fresh taho at the corner of Mabini"))
	require.Equal(t, "active", post["status"])

	resp, out := f.getJSON(t, "/api/heatmap?lat=14.5995&lng=120.9842&radius_m=2000&resolution=low")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["cells"])
}

func TestVendorLocationAccepted(t *testing.T) {
	f := newAPIFixture(t)

	resp, _ := f.postJSON(t, "/api/vendors/location", map[string]any{
		"vendor_id": "taho-cart",
		"lat":       14.6,
		"lng":       120.98,
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
