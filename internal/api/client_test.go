package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dpeters/perch/internal/feed"
)

// newFakeService spins up an httptest server with the routes the client
// expects. Each handler can be swapped per test.
func newFakeService(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	for pattern, h := range routes {
		r.Get(pattern, h)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestTimelinePageAndCursor(t *testing.T) {
	var gotCookie, gotCursor string
	srv := newFakeService(t, map[string]http.HandlerFunc{
		"/api/v1/timeline": func(w http.ResponseWriter, r *http.Request) {
			gotCookie = r.Header.Get("Cookie")
			gotCursor = r.URL.Query().Get("cursor")
			writeJSON(t, w, map[string]any{
				"posts": []map[string]any{
					{"id": "p1", "author": "Ada", "handle": "ada", "text": "hello"},
					{"id": "p2", "author": "Ben", "handle": "ben", "text": "hi"},
				},
				"next_cursor": "c2",
			})
		},
	})

	c, err := New(srv.URL, "session=abc123", time.Second)
	require.NoError(t, err)

	page, err := c.Timeline(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "session=abc123", gotCookie)
	require.Empty(t, gotCursor, "first page sends no cursor")
	require.Len(t, page.Items, 2)
	require.Equal(t, "p1", page.Items[0].ID)
	require.Equal(t, "c2", page.NextCursor)

	_, err = c.Timeline(context.Background(), "c2")
	require.NoError(t, err)
	require.Equal(t, "c2", gotCursor)
}

func TestNotificationsCarryWatermark(t *testing.T) {
	srv := newFakeService(t, map[string]http.HandlerFunc{
		"/api/v1/notifications": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"notifications": []map[string]any{
					{"id": "n1", "kind": "like", "actor": "ada", "sort_index": 120},
					{"id": "n2", "kind": "reply", "actor": "ben", "sort_index": 90},
				},
				"unread_sort_index": 100,
			})
		},
	})

	c, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)

	page, err := c.Notifications(context.Background(), "")
	require.NoError(t, err)
	require.EqualValues(t, 100, page.Watermark)
	require.EqualValues(t, 120, page.Items[0].SortIndex)
}

func TestRepliesPathEscapesPostID(t *testing.T) {
	var gotParam, gotRequestURI string
	srv := newFakeService(t, map[string]http.HandlerFunc{
		"/api/v1/posts/{postID}/replies": func(w http.ResponseWriter, r *http.Request) {
			gotParam = chi.URLParam(r, "postID")
			gotRequestURI = r.RequestURI
			writeJSON(t, w, map[string]any{"posts": []map[string]any{}})
		},
	})

	c, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)

	_, err = c.Replies(context.Background(), "post-42", "")
	require.NoError(t, err)
	require.Equal(t, "post-42", gotParam)

	// IDs containing path separators must arrive escaped exactly once.
	_, err = c.Replies(context.Background(), "at://did:plc/42", "")
	require.NoError(t, err)
	id, err := url.PathUnescape(gotParam)
	require.NoError(t, err)
	require.Equal(t, "at://did:plc/42", id)
	require.NotContains(t, gotRequestURI, "%25", "post id must not be escaped twice")
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		headers    map[string]string
		body       string
		wantKind   feed.ErrorKind
		wantAfter  int
		wantInMsg  string
	}{
		{
			name:     "unauthorized is auth",
			status:   http.StatusUnauthorized,
			body:     `{"error":"session expired"}`,
			wantKind: feed.ErrAuth, wantInMsg: "session expired",
		},
		{
			name:     "forbidden is auth",
			status:   http.StatusForbidden,
			wantKind: feed.ErrAuth,
		},
		{
			name:      "429 with retry-after",
			status:    http.StatusTooManyRequests,
			headers:   map[string]string{"Retry-After": "42"},
			wantKind:  feed.ErrRateLimit,
			wantAfter: 42,
		},
		{
			name:     "429 with http-date retry-after is unknown wait",
			status:   http.StatusTooManyRequests,
			headers:  map[string]string{"Retry-After": "Wed, 21 Oct 2026 07:28:00 GMT"},
			wantKind: feed.ErrRateLimit, wantAfter: 0,
		},
		{
			name:     "server error is unknown",
			status:   http.StatusInternalServerError,
			body:     "boom",
			wantKind: feed.ErrUnknown, wantInMsg: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeService(t, map[string]http.HandlerFunc{
				"/api/v1/timeline": func(w http.ResponseWriter, r *http.Request) {
					for k, v := range tt.headers {
						w.Header().Set(k, v)
					}
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				},
			})
			c, err := New(srv.URL, "", time.Second)
			require.NoError(t, err)

			_, err = c.Timeline(context.Background(), "")
			require.Error(t, err)
			apiErr := feed.AsAPIError(err)
			require.Equal(t, tt.wantKind, apiErr.Kind)
			require.Equal(t, tt.wantAfter, apiErr.RetryAfter)
			if tt.wantInMsg != "" {
				require.Contains(t, apiErr.Message, tt.wantInMsg)
			}
		})
	}
}

func TestNetworkErrorKind(t *testing.T) {
	// A server that is immediately closed produces a connection error.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(addr, "", time.Second)
	require.NoError(t, err)
	_, err = c.Timeline(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, feed.ErrNetwork, feed.AsAPIError(err).Kind)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("not a url", "", time.Second)
	require.Error(t, err)
	_, err = New("/relative/only", "", time.Second)
	require.Error(t, err)
}

func TestTruncatesLongErrorBody(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	srv := newFakeService(t, map[string]http.HandlerFunc{
		"/api/v1/timeline": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write(long)
		},
	})
	c, err := New(srv.URL, "", time.Second)
	require.NoError(t, err)

	_, err = c.Timeline(context.Background(), "")
	require.Error(t, err)
	require.LessOrEqual(t, len(feed.AsAPIError(err).Message), maxErrorBody)
}
