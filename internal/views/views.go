// Package views wires the generic fetch engine to the concrete feeds a
// user can browse: timeline, bookmarks, notifications, reply threads,
// and local RSS subscriptions.
package views

import (
	"context"

	"github.com/dpeters/perch/internal/feed"
	"github.com/dpeters/perch/internal/model"
)

// Client is the slice of the remote API the views depend on.
// *api.Client satisfies it; tests script it.
type Client interface {
	Timeline(ctx context.Context, cursor string) (feed.Page[model.Post], error)
	Bookmarks(ctx context.Context, cursor string) (feed.Page[model.Post], error)
	Notifications(ctx context.Context, cursor string) (feed.Page[model.Notification], error)
	Replies(ctx context.Context, postID, cursor string) (feed.Page[model.Post], error)
}

func postID(p model.Post) string          { return p.ID }
func notifID(n model.Notification) string { return n.ID }

// NewTimeline returns an engine over the home timeline.
func NewTimeline(c Client) *feed.Engine[model.Post] {
	return feed.NewEngine(c.Timeline, postID)
}

// NewBookmarks returns an engine over the user's bookmarks.
func NewBookmarks(c Client) *feed.Engine[model.Post] {
	return feed.NewEngine(c.Bookmarks, postID)
}

// PostSource is any local or remote producer of post pages, e.g. the
// RSS reader.
type PostSource interface {
	Fetch(ctx context.Context, cursor string) (feed.Page[model.Post], error)
}

// NewLocal returns an engine over a local post source.
func NewLocal(src PostSource) *feed.Engine[model.Post] {
	return feed.NewEngine(src.Fetch, postID)
}
