package tube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "PT30S", want: 30 * time.Second},
		{in: "PT2M45S", want: 2*time.Minute + 45*time.Second},
		{in: "PT3M", want: 3 * time.Minute},
		{in: "PT1H", want: time.Hour},
		{in: "PT1H2M3S", want: time.Hour + 2*time.Minute + 3*time.Second},
		{in: "PT", wantErr: true},
		{in: "", wantErr: true},
		{in: "P1DT2H", wantErr: true},
		{in: "PT5X", wantErr: true},
		{in: "PTM", wantErr: true},
		{in: "PT5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseISODuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// apiFake serves the two endpoints discovery touches.
type apiFake struct {
	items     []map[string]any
	durations map[string]string

	// broken videos return a server error on the duration lookup
	broken map[string]bool
}

func (f *apiFake) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			json.NewEncoder(w).Encode(map[string]any{"items": f.items})
		case "/videos":
			id := r.URL.Query().Get("id")
			if f.broken[id] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			dur, ok := f.durations[id]
			if !ok {
				json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []any{
					map[string]any{"contentDetails": map[string]any{"duration": dur}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func searchItemJSON(id, title, published string) map[string]any {
	return map[string]any{
		"id":      map[string]any{"videoId": id},
		"snippet": map[string]any{"title": title, "publishedAt": published},
	}
}

func newTestClient(t *testing.T, fake *apiFake) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c := NewClient("test-key", 3*time.Minute)
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()
	return c
}

func TestRecentShortsFiltersByDuration(t *testing.T) {
	fake := &apiFake{
		items: []map[string]any{
			searchItemJSON("short1", "A short", "2024-05-01T10:00:00Z"),
			searchItemJSON("long1", "A long one", "2024-05-01T11:00:00Z"),
			searchItemJSON("short2", "Another short", "2024-05-01T12:00:00Z"),
		},
		durations: map[string]string{
			"short1": "PT1M30S",
			"long1":  "PT12M",
			"short2": "PT3M", // exactly at the ceiling
		},
		broken: map[string]bool{},
	}
	c := newTestClient(t, fake)

	videos, err := c.RecentShorts(context.Background(), "chan", time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)

	require.Len(t, videos, 2)
	assert.Equal(t, "short1", videos[0].ID)
	assert.Equal(t, "A short", videos[0].Title)
	assert.Equal(t, "https://youtube.com/watch?v=short1", videos[0].URL)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), videos[0].PublishedAt)
	assert.Equal(t, "short2", videos[1].ID)
}

func TestRecentShortsExcludesUnparseableDuration(t *testing.T) {
	fake := &apiFake{
		items: []map[string]any{
			searchItemJSON("weird", "Weird duration", "2024-05-01T10:00:00Z"),
		},
		durations: map[string]string{"weird": "P0D"},
		broken:    map[string]bool{},
	}
	c := newTestClient(t, fake)

	videos, err := c.RecentShorts(context.Background(), "chan", time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, videos, "unknown duration must not admit a possibly long video")
}

func TestRecentShortsExcludesOnDurationLookupFailure(t *testing.T) {
	fake := &apiFake{
		items: []map[string]any{
			searchItemJSON("ok", "Fine", "2024-05-01T10:00:00Z"),
			searchItemJSON("bad", "Lookup breaks", "2024-05-01T11:00:00Z"),
		},
		durations: map[string]string{"ok": "PT1M"},
		broken:    map[string]bool{"bad": true},
	}
	c := newTestClient(t, fake)

	videos, err := c.RecentShorts(context.Background(), "chan", time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "ok", videos[0].ID)
}

func TestRecentShortsMissingDurationItems(t *testing.T) {
	fake := &apiFake{
		items: []map[string]any{
			searchItemJSON("ghost", "No details", "2024-05-01T10:00:00Z"),
		},
		durations: map[string]string{},
		broken:    map[string]bool{},
	}
	c := newTestClient(t, fake)

	videos, err := c.RecentShorts(context.Background(), "chan", time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestRecentShortsSearchErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", 3*time.Minute)
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()

	_, err := c.RecentShorts(context.Background(), "chan", time.Now(), 10)
	assert.Error(t, err)
}

func TestQuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", 3*time.Minute)
	c.BaseURL = srv.URL
	c.HTTP = srv.Client()

	_, err := c.RecentShorts(context.Background(), "chan", time.Now(), 10)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}
