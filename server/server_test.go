package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italyre/casafeed/pkg/domain"
	"github.com/italyre/casafeed/pkg/repository"
)

// fakeAggregator returns canned aggregation results
type fakeAggregator struct {
	result     *domain.AggregationResult
	report     *domain.RefreshReport
	refreshErr error

	lastLimit    int
	lastCategory string
}

func (f *fakeAggregator) Collect(_ context.Context, limit int, category string) *domain.AggregationResult {
	f.lastLimit = limit
	f.lastCategory = category
	return f.result
}

func (f *fakeAggregator) Refresh(_ context.Context) (*domain.RefreshReport, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.report, nil
}

type fakeFeedStore struct {
	feeds []domain.FeedSource
	err   error
}

func (f *fakeFeedStore) GetFeeds(_ context.Context) ([]domain.FeedSource, error) {
	return f.feeds, f.err
}

func (f *fakeFeedStore) UpdateFeedStatus(_ context.Context, feedID int64, enabled bool) error {
	for i := range f.feeds {
		if f.feeds[i].ID == feedID {
			f.feeds[i].Enabled = enabled
			return nil
		}
	}
	return repository.ErrNotFound
}

// fakeBannerStore holds banners in memory, ids assigned sequentially
type fakeBannerStore struct {
	banners map[int64]*domain.Banner
	nextID  int64
	stats   []domain.BannerStats
	events  []string
}

func newFakeBannerStore() *fakeBannerStore {
	return &fakeBannerStore{banners: map[int64]*domain.Banner{}, nextID: 1}
}

func (f *fakeBannerStore) CreateBanner(_ context.Context, banner *domain.Banner) error {
	banner.ID = f.nextID
	f.nextID++
	cp := *banner
	f.banners[banner.ID] = &cp
	return nil
}

func (f *fakeBannerStore) GetBanner(_ context.Context, id int64) (*domain.Banner, error) {
	b, ok := f.banners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBannerStore) GetBanners(_ context.Context, position string, activeOnly bool) ([]domain.Banner, error) {
	var out []domain.Banner
	for _, b := range f.banners {
		if position != "" && b.Position != position {
			continue
		}
		if activeOnly && !b.Active {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBannerStore) UpdateBanner(_ context.Context, banner *domain.Banner) error {
	if _, ok := f.banners[banner.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *banner
	f.banners[banner.ID] = &cp
	return nil
}

func (f *fakeBannerStore) DeleteBanner(_ context.Context, id int64) error {
	if _, ok := f.banners[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.banners, id)
	return nil
}

func (f *fakeBannerStore) ReorderBanners(_ context.Context, ids []int64) error {
	for order, id := range ids {
		if b, ok := f.banners[id]; ok {
			b.DisplayOrder = order
		}
	}
	return nil
}

func (f *fakeBannerStore) TrackEvent(_ context.Context, bannerID int64, eventType string) error {
	if _, ok := f.banners[bannerID]; !ok {
		return repository.ErrNotFound
	}
	f.events = append(f.events, fmt.Sprintf("%d:%s", bannerID, eventType))
	return nil
}

func (f *fakeBannerStore) GetBannerStats(_ context.Context) ([]domain.BannerStats, error) {
	return f.stats, nil
}

type fakeResponder struct{}

func (fakeResponder) Reply(message string) string { return "echo: " + message }

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "test"
	}
	srv := httptest.NewServer(New(cfg).router)
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_Status(t *testing.T) {
	ts := newTestServer(t, Config{Chat: fakeResponder{}})

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestServer_News(t *testing.T) {
	agg := &fakeAggregator{result: &domain.AggregationResult{
		Items:       []domain.Item{{Title: "Villa a Como", Status: domain.StatusActive}},
		LastUpdated: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Sources:     []string{"Casa.it"},
		TotalItems:  1,
	}}
	ts := newTestServer(t, Config{Aggregator: agg, Chat: fakeResponder{}})

	t.Run("default request", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/news")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result domain.AggregationResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, 1, result.TotalItems)
		assert.Equal(t, []string{"Casa.it"}, result.Sources)
		assert.Equal(t, 0, agg.lastLimit, "no limit passes zero, aggregator applies its default")
	})

	t.Run("limit and category forwarded", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/news?limit=5&category=luxury")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 5, agg.lastLimit)
		assert.Equal(t, "luxury", agg.lastCategory)
	})

	t.Run("invalid limit rejected", func(t *testing.T) {
		for _, bad := range []string{"abc", "-1"} {
			resp, err := http.Get(ts.URL + "/api/v1/news?limit=" + bad)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", bad)
		}
	})
}

func TestServer_Refresh(t *testing.T) {
	agg := &fakeAggregator{report: &domain.RefreshReport{
		ProcessedFeeds: 2,
		Results: []domain.FeedOutcome{
			{FeedID: 1, FeedName: "A", ProcessedItems: 3, Status: "success"},
			{FeedID: 2, FeedName: "B", Status: "error", Error: "boom"},
		},
	}}
	ts := newTestServer(t, Config{Aggregator: agg, AdminSecret: "s3cret", Chat: fakeResponder{}})

	t.Run("requires admin secret", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/news/refresh", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("runs with secret", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/news/refresh", nil)
		require.NoError(t, err)
		req.Header.Set("X-Admin-Secret", "s3cret")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report domain.RefreshReport
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, 2, report.ProcessedFeeds)
		require.Len(t, report.Results, 2)
		assert.Equal(t, "error", report.Results[1].Status)
	})

	t.Run("refresh error reported", func(t *testing.T) {
		agg.refreshErr = fmt.Errorf("db gone")
		defer func() { agg.refreshErr = nil }()

		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/news/refresh", nil)
		require.NoError(t, err)
		req.Header.Set("X-Admin-Secret", "s3cret")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestServer_Feeds(t *testing.T) {
	ts := newTestServer(t, Config{Feeds: &fakeFeedStore{feeds: []domain.FeedSource{
		{ID: 1, Name: "Casa.it", URL: "https://example.com/rss", Category: "market", Enabled: true, LastError: "timeout"},
	}}, Chat: fakeResponder{}})

	resp, err := http.Get(ts.URL + "/api/v1/feeds")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var infos []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "Casa.it", infos[0]["name"])
	assert.Equal(t, "timeout", infos[0]["last_error"])
	_, hasLastSuccess := infos[0]["last_success"]
	assert.False(t, hasLastSuccess, "omitted when never fetched")
}

func TestServer_FeedStatus(t *testing.T) {
	store := &fakeFeedStore{feeds: []domain.FeedSource{
		{ID: 1, Name: "Casa.it", URL: "https://example.com/rss", Category: "market", Enabled: true},
	}}
	ts := newTestServer(t, Config{Feeds: store, AdminSecret: "s3cret", Chat: fakeResponder{}})

	statusReq := func(path, body string, withSecret bool) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPut, ts.URL+path, bytes.NewBufferString(body))
		require.NoError(t, err)
		if withSecret {
			req.Header.Set("X-Admin-Secret", "s3cret")
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("disable", func(t *testing.T) {
		resp := statusReq("/api/v1/feeds/1/status", `{"enabled":false}`, true)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, store.feeds[0].Enabled)
	})

	t.Run("re-enable", func(t *testing.T) {
		resp := statusReq("/api/v1/feeds/1/status", `{"enabled":true}`, true)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, store.feeds[0].Enabled)
	})

	t.Run("requires admin", func(t *testing.T) {
		resp := statusReq("/api/v1/feeds/1/status", `{"enabled":false}`, false)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.True(t, store.feeds[0].Enabled, "unchanged")
	})

	t.Run("missing enabled field", func(t *testing.T) {
		resp := statusReq("/api/v1/feeds/1/status", `{}`, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad id", func(t *testing.T) {
		resp := statusReq("/api/v1/feeds/abc/status", `{"enabled":true}`, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown feed", func(t *testing.T) {
		resp := statusReq("/api/v1/feeds/999/status", `{"enabled":true}`, true)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_Banners(t *testing.T) {
	banners := newFakeBannerStore()
	ts := newTestServer(t, Config{Banners: banners, AdminSecret: "s3cret", Chat: fakeResponder{}})

	adminReq := func(method, path string, body interface{}) *http.Response {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req, err := http.NewRequest(method, ts.URL+path, &buf)
		require.NoError(t, err)
		req.Header.Set("X-Admin-Secret", "s3cret")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("create", func(t *testing.T) {
		resp := adminReq(http.MethodPost, "/api/v1/banners", map[string]interface{}{
			"title": "Agenzia Rossi", "position": "sidebar",
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created domain.Banner
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		assert.NotZero(t, created.ID)
		assert.Equal(t, "sidebar", created.Position)
		assert.True(t, created.Active, "active by default")
	})

	t.Run("create validation", func(t *testing.T) {
		resp := adminReq(http.MethodPost, "/api/v1/banners", map[string]interface{}{"subtitle": "no title"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("create requires admin", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/banners", "application/json",
			bytes.NewBufferString(`{"title":"sneaky"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("public list shows active only", func(t *testing.T) {
		inactive := &domain.Banner{Title: "Nascosto", Position: "sidebar", Active: false}
		require.NoError(t, banners.CreateBanner(context.Background(), inactive))

		resp, err := http.Get(ts.URL + "/api/v1/banners?position=sidebar")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var listed []domain.Banner
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
		for _, b := range listed {
			assert.True(t, b.Active)
		}

		resp2, err := http.Get(ts.URL + "/api/v1/banners?position=sidebar&all=true")
		require.NoError(t, err)
		defer resp2.Body.Close()
		var all []domain.Banner
		require.NoError(t, json.NewDecoder(resp2.Body).Decode(&all))
		assert.Len(t, all, len(listed)+1)
	})

	t.Run("partial update", func(t *testing.T) {
		banner := &domain.Banner{Title: "Originale", Subtitle: "Sottotitolo", Position: "homepage", Active: true}
		require.NoError(t, banners.CreateBanner(context.Background(), banner))

		resp := adminReq(http.MethodPut, fmt.Sprintf("/api/v1/banners/%d", banner.ID),
			map[string]interface{}{"title": "Rinominato", "active": false})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var updated domain.Banner
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
		assert.Equal(t, "Rinominato", updated.Title)
		assert.Equal(t, "Sottotitolo", updated.Subtitle, "untouched field survives")
		assert.False(t, updated.Active)
	})

	t.Run("update missing banner", func(t *testing.T) {
		resp := adminReq(http.MethodPut, "/api/v1/banners/99999", map[string]interface{}{"title": "X"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("reorder", func(t *testing.T) {
		b1 := &domain.Banner{Title: "Primo", Position: "homepage", Active: true}
		b2 := &domain.Banner{Title: "Secondo", Position: "homepage", Active: true}
		require.NoError(t, banners.CreateBanner(context.Background(), b1))
		require.NoError(t, banners.CreateBanner(context.Background(), b2))

		resp := adminReq(http.MethodPut, "/api/v1/banners/reorder",
			map[string]interface{}{"ids": []int64{b2.ID, b1.ID}})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 0, banners.banners[b2.ID].DisplayOrder)
		assert.Equal(t, 1, banners.banners[b1.ID].DisplayOrder)

		empty := adminReq(http.MethodPut, "/api/v1/banners/reorder", map[string]interface{}{"ids": []int64{}})
		defer empty.Body.Close()
		assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
	})

	t.Run("track is public", func(t *testing.T) {
		banner := &domain.Banner{Title: "Tracciato", Position: "homepage", Active: true}
		require.NoError(t, banners.CreateBanner(context.Background(), banner))

		resp, err := http.Post(ts.URL+fmt.Sprintf("/api/v1/banners/%d/track", banner.ID),
			"application/json", bytes.NewBufferString(`{"event_type":"click"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, banners.events, fmt.Sprintf("%d:click", banner.ID))
	})

	t.Run("track validates event type", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/banners/1/track",
			"application/json", bytes.NewBufferString(`{"event_type":"hover"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("track missing banner", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/banners/99999/track",
			"application/json", bytes.NewBufferString(`{"event_type":"view"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		banner := &domain.Banner{Title: "Da Cancellare", Position: "homepage", Active: true}
		require.NoError(t, banners.CreateBanner(context.Background(), banner))

		resp := adminReq(http.MethodDelete, fmt.Sprintf("/api/v1/banners/%d", banner.ID), nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		gone := adminReq(http.MethodDelete, fmt.Sprintf("/api/v1/banners/%d", banner.ID), nil)
		defer gone.Body.Close()
		assert.Equal(t, http.StatusNotFound, gone.StatusCode)
	})
}

func TestServer_BannerStats(t *testing.T) {
	banners := newFakeBannerStore()
	banners.stats = []domain.BannerStats{
		{BannerID: 1, Title: "A", Views: 100, Clicks: 10, CTR: 0.1},
		{BannerID: 2, Title: "B", Views: 50, Clicks: 5, CTR: 0.1},
	}
	ts := newTestServer(t, Config{Banners: banners, AdminSecret: "s3cret", Chat: fakeResponder{}})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/analytics/banners", nil)
	require.NoError(t, err)
	req.Header.Set("X-Admin-Secret", "s3cret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Banners     []domain.BannerStats `json:"banners"`
		TotalViews  int64                `json:"total_views"`
		TotalClicks int64                `json:"total_clicks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Banners, 2)
	assert.Equal(t, int64(150), body.TotalViews)
	assert.Equal(t, int64(15), body.TotalClicks)
}

func TestServer_Chat(t *testing.T) {
	ts := newTestServer(t, Config{Chat: fakeResponder{}})

	t.Run("reply", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json",
			bytes.NewBufferString(`{"message":"ciao"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "echo: ciao", body["reply"])
	})

	t.Run("empty message rejected", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/v1/chat", "application/json",
			bytes.NewBufferString(`{"message":""}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_AdminGuardDisabledWithoutSecret(t *testing.T) {
	agg := &fakeAggregator{report: &domain.RefreshReport{}}
	ts := newTestServer(t, Config{Aggregator: agg, Chat: fakeResponder{}})

	resp, err := http.Post(ts.URL+"/api/v1/news/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
