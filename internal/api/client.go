// Package api implements the HTTP client for the remote feed service,
// authenticated with a browser session cookie.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dpeters/perch/internal/feed"
	"github.com/dpeters/perch/internal/model"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "perch/1.0"
	// maxErrorBody caps how much of an error response body is kept for
	// display.
	maxErrorBody = 200
)

// Client talks to the feed service. It is read-mostly and safe to share
// across every list view.
type Client struct {
	base   *url.URL
	cookie string
	http   *http.Client
}

// New creates a client for the service at baseURL. cookie is the raw
// Cookie header value lifted from a browser session.
func New(baseURL, cookie string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q missing scheme or host", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base:   u,
		cookie: cookie,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

type postJSON struct {
	ID          string    `json:"id"`
	Author      string    `json:"author"`
	Handle      string    `json:"handle"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	ReplyCount  int       `json:"reply_count"`
	RepostCount int       `json:"repost_count"`
	LikeCount   int       `json:"like_count"`
	Bookmarked  bool      `json:"bookmarked"`
	InReplyTo   string    `json:"in_reply_to,omitempty"`
}

type postPageJSON struct {
	Posts      []postJSON `json:"posts"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type notificationJSON struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Actor     string    `json:"actor"`
	Text      string    `json:"text"`
	SortIndex int64     `json:"sort_index"`
	CreatedAt time.Time `json:"created_at"`
}

type notificationPageJSON struct {
	Notifications []notificationJSON `json:"notifications"`
	NextCursor    string             `json:"next_cursor,omitempty"`
	// UnreadSortIndex is the server's last-seen watermark; only the
	// first page carries a meaningful value.
	UnreadSortIndex int64 `json:"unread_sort_index,omitempty"`
}

// Timeline fetches one page of the home timeline.
func (c *Client) Timeline(ctx context.Context, cursor string) (feed.Page[model.Post], error) {
	return c.postPage(ctx, "/api/v1/timeline", cursor)
}

// Bookmarks fetches one page of the user's bookmarks.
func (c *Client) Bookmarks(ctx context.Context, cursor string) (feed.Page[model.Post], error) {
	return c.postPage(ctx, "/api/v1/bookmarks", cursor)
}

// Replies fetches one page of replies to postID.
func (c *Client) Replies(ctx context.Context, postID, cursor string) (feed.Page[model.Post], error) {
	return c.postPage(ctx, "/api/v1/posts/"+url.PathEscape(postID)+"/replies", cursor)
}

// Notifications fetches one page of notifications. The page's Watermark
// carries the server's unread sort index on the first page.
func (c *Client) Notifications(ctx context.Context, cursor string) (feed.Page[model.Notification], error) {
	var body notificationPageJSON
	if err := c.get(ctx, "/api/v1/notifications", cursor, &body); err != nil {
		return feed.Page[model.Notification]{}, err
	}
	page := feed.Page[model.Notification]{
		NextCursor: body.NextCursor,
		Watermark:  body.UnreadSortIndex,
		Items:      make([]model.Notification, 0, len(body.Notifications)),
	}
	for _, n := range body.Notifications {
		page.Items = append(page.Items, model.Notification{
			ID:        n.ID,
			Kind:      n.Kind,
			Actor:     n.Actor,
			Text:      n.Text,
			SortIndex: n.SortIndex,
			CreatedAt: n.CreatedAt,
		})
	}
	return page, nil
}

func (c *Client) postPage(ctx context.Context, path, cursor string) (feed.Page[model.Post], error) {
	var body postPageJSON
	if err := c.get(ctx, path, cursor, &body); err != nil {
		return feed.Page[model.Post]{}, err
	}
	page := feed.Page[model.Post]{
		NextCursor: body.NextCursor,
		Items:      make([]model.Post, 0, len(body.Posts)),
	}
	for _, p := range body.Posts {
		page.Items = append(page.Items, model.Post{
			ID:          p.ID,
			Author:      p.Author,
			Handle:      p.Handle,
			Text:        p.Text,
			CreatedAt:   p.CreatedAt,
			ReplyCount:  p.ReplyCount,
			RepostCount: p.RepostCount,
			LikeCount:   p.LikeCount,
			Bookmarked:  p.Bookmarked,
			InReplyTo:   p.InReplyTo,
		})
	}
	return page, nil
}

// get issues an authenticated GET and decodes the JSON response into v.
// Every failure comes back as a *feed.APIError.
func (c *Client) get(ctx context.Context, path, cursor string, v any) error {
	u := *c.base
	// path arrives with its segments already percent-escaped. Setting
	// RawPath alongside the decoded Path keeps URL.String from escaping
	// the segments a second time.
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + path
	decoded, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return &feed.APIError{Kind: feed.ErrUnknown, Message: "build url: " + err.Error()}
	}
	u.Path = decoded
	if cursor != "" {
		q := u.Query()
		q.Set("cursor", cursor)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &feed.APIError{Kind: feed.ErrUnknown, Message: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &feed.APIError{Kind: feed.ErrNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &feed.APIError{Kind: feed.ErrUnknown, Message: "decode response: " + err.Error()}
	}
	return nil
}

// classifyStatus maps an HTTP error response onto the error taxonomy.
func classifyStatus(resp *http.Response) *feed.APIError {
	msg := readErrorBody(resp.Body)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if msg == "" {
			msg = "session cookie rejected"
		}
		return &feed.APIError{Kind: feed.ErrAuth, Message: msg}
	case http.StatusTooManyRequests:
		if msg == "" {
			msg = "rate limited"
		}
		return &feed.APIError{
			Kind:       feed.ErrRateLimit,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		if msg == "" {
			msg = resp.Status
		}
		return &feed.APIError{Kind: feed.ErrUnknown, Message: msg}
	}
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	// Error bodies are usually {"error": "..."} but sometimes plain text.
	var wrapper struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(b))
	if json.Unmarshal(b, &wrapper) == nil && wrapper.Error != "" {
		msg = wrapper.Error
	}
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}

// parseRetryAfter handles the delta-seconds form of Retry-After.
// HTTP-date values and garbage both come back as 0 (unknown wait).
func parseRetryAfter(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
