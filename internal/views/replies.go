package views

import (
	"context"
	"sync"

	"github.com/dpeters/perch/internal/feed"
	"github.com/dpeters/perch/internal/model"
)

// Replies is the thread view. Its subject post is the engine's
// dependency key: switching posts forces a full reset, so replies to
// the previous post can never bleed into the new thread, even if their
// fetch is still in flight.
type Replies struct {
	*feed.Engine[model.Post]

	mu     sync.Mutex
	postID string
}

// NewReplies builds a reply-thread view with no subject yet. SetPost
// must be called before the view shows anything.
func NewReplies(c Client) *Replies {
	r := &Replies{}
	fetch := func(ctx context.Context, cursor string) (feed.Page[model.Post], error) {
		r.mu.Lock()
		id := r.postID
		r.mu.Unlock()
		if id == "" {
			return feed.Page[model.Post]{}, nil
		}
		return c.Replies(ctx, id, cursor)
	}
	r.Engine = feed.NewEngine(fetch, postID)
	return r
}

// SetPost switches the thread subject and refreshes. A no-op when the
// subject is unchanged.
func (r *Replies) SetPost(ctx context.Context, id string) {
	r.mu.Lock()
	if id == r.postID {
		r.mu.Unlock()
		return
	}
	r.postID = id
	r.mu.Unlock()
	r.Engine.Rekey(id)
	r.Engine.Refresh(ctx)
}

// PostID returns the current thread subject, empty when unset.
func (r *Replies) PostID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.postID
}
