package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"offgate/internal/metrics"
	"offgate/internal/store"
	apperrors "offgate/pkg/errors"
)

// stubFetcher returns a canned response or error and records the last
// request it saw.
type stubFetcher struct {
	resp    *Response
	err     error
	lastReq *Request
}

func (f *stubFetcher) Do(ctx context.Context, req *Request) (*Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func okFetcher(body string) *stubFetcher {
	return &stubFetcher{resp: &Response{Status: http.StatusOK, Body: []byte(body)}}
}

func downFetcher() *stubFetcher {
	return &stubFetcher{err: apperrors.NewNetworkError("upstream unreachable")}
}

func newTestHandler(ep Endpoint, f Fetcher) (*Handler, *store.MemoryStore) {
	st := store.NewMemoryStore()
	h := NewHandler(ep, st, f, metrics.New(), zap.NewNop())
	return h, st
}

func readReq(path string, rawQuery string) *Request {
	q, _ := url.ParseQuery(rawQuery)
	return &Request{Method: http.MethodGet, Path: path, Query: q}
}

func TestHandles(t *testing.T) {
	tests := []struct {
		endpoint Endpoint
		path     string
		want     bool
	}{
		{IdentityEndpoint(), "/api/profile", true},
		{IdentityEndpoint(), "/api/profile/settings", true},
		{IdentityEndpoint(), "/api/bookmarks", false},
		{BookmarksEndpoint(), "/api/bookmarks", true},
		{BookmarksEndpoint(), "/api/bookmarks/export", true},
		{BookmarksEndpoint(), "/api/bookmark", false},
		{WatchEndpoint(), "/api/watch", true},
		{WatchEndpoint(), "/api/watchlist", true},
		{WatchEndpoint(), "/api/notifications", false},
		{NotificationsEndpoint(), "/api/notifications", true},
		{NotificationsEndpoint(), "/api/notifications/unread", true},
		{NotificationsEndpoint(), "/api/profile", false},
		{NotificationsEndpoint(), "/other/api/notifications", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint.Name+" "+tt.path, func(t *testing.T) {
			h, _ := newTestHandler(tt.endpoint, downFetcher())
			assert.Equal(t, tt.want, h.Handles(tt.path))
		})
	}
}

func TestOnReadSuccessCachesListItems(t *testing.T) {
	body := `{"bookmarks":[{"url":"https://a.example","title":"A"},{"url":"https://b.example","title":"B"}]}`
	h, st := newTestHandler(BookmarksEndpoint(), okFetcher(body))

	resp := h.OnRead(context.Background(), readReq("/api/bookmarks", ""))

	// The upstream response passes through unchanged.
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, body, string(resp.Body))

	got, err := st.Get(context.Background(), CollectionBookmarks, "https://a.example")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://a.example","title":"A"}`, string(got))

	got, err = st.Get(context.Background(), CollectionBookmarks, "https://b.example")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://b.example","title":"B"}`, string(got))
}

func TestOnReadSuccessCachesSingleItem(t *testing.T) {
	body := `{"bookmark":{"url":"https://a.example","title":"A"}}`
	h, st := newTestHandler(BookmarksEndpoint(), okFetcher(body))

	resp := h.OnRead(context.Background(), readReq("/api/bookmarks", "url=https%3A%2F%2Fa.example"))

	assert.Equal(t, body, string(resp.Body))

	got, err := st.Get(context.Background(), CollectionBookmarks, "https://a.example")
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://a.example","title":"A"}`, string(got))
}

func TestOnReadErrorStatusPassesThroughUncached(t *testing.T) {
	f := &stubFetcher{resp: &Response{Status: http.StatusBadGateway, Body: []byte(`{"message":"boom"}`)}}
	h, st := newTestHandler(BookmarksEndpoint(), f)

	resp := h.OnRead(context.Background(), readReq("/api/bookmarks", ""))

	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Equal(t, `{"message":"boom"}`, string(resp.Body))

	items, err := st.List(context.Background(), CollectionBookmarks)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIdentityReadCachesWholeBody(t *testing.T) {
	body := `{"username":"kit","plan":"pro"}`
	h, st := newTestHandler(IdentityEndpoint(), okFetcher(body))

	resp := h.OnRead(context.Background(), readReq("/api/profile", ""))
	assert.Equal(t, body, string(resp.Body))

	got, err := st.Get(context.Background(), CollectionProfile, ProfileKey)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(got))
}

func TestIdentityOfflineMergesStoredRecord(t *testing.T) {
	t.Run("record present", func(t *testing.T) {
		h, st := newTestHandler(IdentityEndpoint(), downFetcher())
		require.NoError(t, st.Put(context.Background(), CollectionProfile, ProfileKey,
			json.RawMessage(`{"username":"kit","plan":"pro"}`)))

		resp := h.OnRead(context.Background(), readReq("/api/profile", ""))

		assert.Equal(t, http.StatusOK, resp.Status)
		assert.JSONEq(t, `{"username":"kit","plan":"pro","offline":true}`, string(resp.Body))
	})

	t.Run("record absent yields marker alone", func(t *testing.T) {
		h, _ := newTestHandler(IdentityEndpoint(), downFetcher())

		resp := h.OnRead(context.Background(), readReq("/api/profile", ""))

		assert.JSONEq(t, `{"offline":true}`, string(resp.Body))
	})
}

func TestBookmarksOfflineSingleLookup(t *testing.T) {
	t.Run("stored key", func(t *testing.T) {
		h, st := newTestHandler(BookmarksEndpoint(), downFetcher())
		require.NoError(t, st.Put(context.Background(), CollectionBookmarks, "https://a.example",
			json.RawMessage(`{"url":"https://a.example","title":"A"}`)))

		resp := h.OnRead(context.Background(), readReq("/api/bookmarks", "url=https%3A%2F%2Fa.example"))

		assert.JSONEq(t, `{"bookmark":{"url":"https://a.example","title":"A"},"offline":true}`, string(resp.Body))
	})

	t.Run("missing key omits the item", func(t *testing.T) {
		h, _ := newTestHandler(BookmarksEndpoint(), downFetcher())

		resp := h.OnRead(context.Background(), readReq("/api/bookmarks", "url=https%3A%2F%2Fnope.example"))

		assert.JSONEq(t, `{"offline":true}`, string(resp.Body))
	})
}

func TestBookmarksOfflineFullList(t *testing.T) {
	h, st := newTestHandler(BookmarksEndpoint(), downFetcher())
	require.NoError(t, st.PutAll(context.Background(), CollectionBookmarks, []store.Entry{
		{Key: "https://a.example", Value: json.RawMessage(`{"url":"https://a.example"}`)},
		{Key: "https://b.example", Value: json.RawMessage(`{"url":"https://b.example"}`)},
	}))

	resp := h.OnRead(context.Background(), readReq("/api/bookmarks", ""))

	assert.JSONEq(t, `{
		"bookmarks": [{"url":"https://a.example"},{"url":"https://b.example"}],
		"offline": true
	}`, string(resp.Body))
}

func TestBookmarksOfflineEmptyCache(t *testing.T) {
	h, _ := newTestHandler(BookmarksEndpoint(), downFetcher())

	resp := h.OnRead(context.Background(), readReq("/api/bookmarks", ""))

	assert.JSONEq(t, `{"bookmarks":[],"offline":true}`, string(resp.Body))
}

func TestWatchOfflineSynthesizesStatus(t *testing.T) {
	t.Run("single lookup ignores stored status", func(t *testing.T) {
		h, st := newTestHandler(WatchEndpoint(), downFetcher())
		require.NoError(t, st.Put(context.Background(), CollectionWatch, "https://show.example/1",
			json.RawMessage(`{"url":"https://show.example/1","status":"watching"}`)))

		resp := h.OnRead(context.Background(), readReq("/api/watch", "url=https%3A%2F%2Fshow.example%2F1"))

		assert.JSONEq(t, fmt.Sprintf(
			`{"item":{"url":"https://show.example/1","status":%q},"offline":true}`,
			WatchPlaceholderStatus), string(resp.Body))
	})

	t.Run("lookup key is lower-cased", func(t *testing.T) {
		h, st := newTestHandler(WatchEndpoint(), downFetcher())
		require.NoError(t, st.Put(context.Background(), CollectionWatch, "https://show.example/1",
			json.RawMessage(`{"url":"https://show.example/1"}`)))

		resp := h.OnRead(context.Background(), readReq("/api/watch", "url=HTTPS%3A%2F%2FSHOW.EXAMPLE%2F1"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(resp.Body, &body))
		assert.Contains(t, body, "item")
	})

	t.Run("list entries carry the placeholder too", func(t *testing.T) {
		h, st := newTestHandler(WatchEndpoint(), downFetcher())
		require.NoError(t, st.Put(context.Background(), CollectionWatch, "https://show.example/1",
			json.RawMessage(`{"url":"https://show.example/1","status":"dropped"}`)))

		resp := h.OnRead(context.Background(), readReq("/api/watch", ""))

		var body struct {
			Items []struct {
				Status string `json:"status"`
			} `json:"items"`
		}
		require.NoError(t, json.Unmarshal(resp.Body, &body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, WatchPlaceholderStatus, body.Items[0].Status)
	})
}

func TestWatchOfflinePagination(t *testing.T) {
	h, st := newTestHandler(WatchEndpoint(), downFetcher())
	for i := 0; i < 6; i++ {
		key := fmt.Sprintf("https://show.example/%d", i)
		require.NoError(t, st.Put(context.Background(), CollectionWatch, key,
			json.RawMessage(fmt.Sprintf(`{"url":%q}`, key))))
	}

	resp := h.OnRead(context.Background(), readReq("/api/watch", "offset=2&limit=3"))

	var body struct {
		Items []struct {
			URL string `json:"url"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	require.Len(t, body.Items, 3)
	assert.Equal(t, "https://show.example/2", body.Items[0].URL)
	assert.Equal(t, "https://show.example/4", body.Items[2].URL)
}

func TestWatchWriteThroughSkipsUnwatched(t *testing.T) {
	body := `{"items":[
		{"url":"https://show.example/1","status":"watching"},
		{"url":"https://show.example/2","status":"unwatched"}
	]}`
	h, st := newTestHandler(WatchEndpoint(), okFetcher(`{"ok":true}`))

	resp := h.OnWrite(context.Background(), &Request{
		Method: http.MethodPut,
		Path:   "/api/watch",
		Query:  url.Values{},
		Body:   []byte(body),
	})
	assert.Equal(t, http.StatusOK, resp.Status)

	_, err := st.Get(context.Background(), CollectionWatch, "https://show.example/1")
	assert.NoError(t, err)

	_, err = st.Get(context.Background(), CollectionWatch, "https://show.example/2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWatchWriteThroughWholeBodyEntry(t *testing.T) {
	h, st := newTestHandler(WatchEndpoint(), okFetcher(`{"ok":true}`))

	resp := h.OnWrite(context.Background(), &Request{
		Method: http.MethodPut,
		Path:   "/api/watch",
		Query:  url.Values{},
		Body:   []byte(`{"url":"https://Show.example/3","status":"watching"}`),
	})
	assert.Equal(t, http.StatusOK, resp.Status)

	// Keys are lower-cased on the way in.
	_, err := st.Get(context.Background(), CollectionWatch, "https://show.example/3")
	assert.NoError(t, err)
}

func TestNotificationsOfflinePaginationLegacySlice(t *testing.T) {
	h, st := newTestHandler(NotificationsEndpoint(), downFetcher())
	for i := 0; i < 10; i++ {
		require.NoError(t, st.Put(context.Background(), CollectionNotifications, fmt.Sprintf("%d", i),
			json.RawMessage(fmt.Sprintf(`{"id":%d,"starred":true}`, i))))
	}

	// limit is the end index of the slice, not a count: offset=2&limit=5
	// yields elements 2..4 of the filtered list.
	resp := h.OnRead(context.Background(), readReq("/api/notifications", "starred=true&offset=2&limit=5"))

	var body struct {
		Notifications []struct {
			ID int `json:"id"`
		} `json:"notifications"`
		Offline bool `json:"offline"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	assert.True(t, body.Offline)
	require.Len(t, body.Notifications, 3)
	assert.Equal(t, 2, body.Notifications[0].ID)
	assert.Equal(t, 3, body.Notifications[1].ID)
	assert.Equal(t, 4, body.Notifications[2].ID)
}

func TestNotificationsOfflineStarredFilter(t *testing.T) {
	h, st := newTestHandler(NotificationsEndpoint(), downFetcher())
	require.NoError(t, st.PutAll(context.Background(), CollectionNotifications, []store.Entry{
		{Key: "1", Value: json.RawMessage(`{"id":1,"starred":true}`)},
		{Key: "2", Value: json.RawMessage(`{"id":2,"starred":false}`)},
		{Key: "3", Value: json.RawMessage(`{"id":3,"starred":true}`)},
	}))

	resp := h.OnRead(context.Background(), readReq("/api/notifications", "starred=true"))

	var body struct {
		Notifications []struct {
			ID int `json:"id"`
		} `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &body))
	require.Len(t, body.Notifications, 2)
	assert.Equal(t, 1, body.Notifications[0].ID)
	assert.Equal(t, 3, body.Notifications[1].ID)
}

func TestNotificationsOfflineLimitBelowOffsetYieldsEmpty(t *testing.T) {
	h, st := newTestHandler(NotificationsEndpoint(), downFetcher())
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Put(context.Background(), CollectionNotifications, fmt.Sprintf("%d", i),
			json.RawMessage(fmt.Sprintf(`{"id":%d}`, i))))
	}

	resp := h.OnRead(context.Background(), readReq("/api/notifications", "offset=4&limit=2"))

	assert.JSONEq(t, `{"notifications":[],"offline":true}`, string(resp.Body))
}

func TestOnWriteOfflineErrorBody(t *testing.T) {
	for _, ep := range []Endpoint{BookmarksEndpoint(), WatchEndpoint(), NotificationsEndpoint()} {
		t.Run(ep.Name, func(t *testing.T) {
			h, _ := newTestHandler(ep, downFetcher())

			resp := h.OnWrite(context.Background(), &Request{
				Method: http.MethodPost,
				Path:   ep.Prefix,
				Query:  url.Values{},
				Body:   []byte(`{}`),
			})

			assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
			assert.Equal(t, `{"error":"offline"}`, string(resp.Body))
		})
	}
}

func TestOfflineMalformedQueryDegradesToEmptyList(t *testing.T) {
	h, st := newTestHandler(NotificationsEndpoint(), downFetcher())
	require.NoError(t, st.Put(context.Background(), CollectionNotifications, "1",
		json.RawMessage(`{"id":1}`)))

	resp := h.OnRead(context.Background(), readReq("/api/notifications", "limit=abc"))

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"notifications":[],"offline":true}`, string(resp.Body))
}

func TestOnReadSkipsItemsWithoutKeys(t *testing.T) {
	body := `{"bookmarks":[{"title":"no url"},{"url":"https://a.example","title":"A"}]}`
	h, st := newTestHandler(BookmarksEndpoint(), okFetcher(body))

	h.OnRead(context.Background(), readReq("/api/bookmarks", ""))

	items, err := st.List(context.Background(), CollectionBookmarks)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
