package views

import (
	"context"
	"sync"

	"github.com/dpeters/perch/internal/feed"
	"github.com/dpeters/perch/internal/model"
)

// Notifications wraps the engine with the unread-count watermark. The
// watermark is recorded from the first page of each refresh and never
// recomputed on later pages: counting against a moving watermark would
// undercount as older unread entries scroll past.
type Notifications struct {
	*feed.Engine[model.Notification]

	mu        sync.Mutex
	watermark int64
	unread    int
}

// NewNotifications builds the notifications view over c.
func NewNotifications(c Client) *Notifications {
	n := &Notifications{}
	fetch := func(ctx context.Context, cursor string) (feed.Page[model.Notification], error) {
		page, err := c.Notifications(ctx, cursor)
		if err != nil {
			return page, err
		}
		if cursor == "" {
			n.recordWatermark(page)
		}
		return page, nil
	}
	n.Engine = feed.NewEngine(fetch, notifID)
	return n
}

func (n *Notifications) recordWatermark(page feed.Page[model.Notification]) {
	unread := 0
	for _, item := range page.Items {
		if item.SortIndex > page.Watermark {
			unread++
		}
	}
	n.mu.Lock()
	n.watermark = page.Watermark
	n.unread = unread
	n.mu.Unlock()
}

// Unread returns the number of notifications above the session
// watermark, as counted on the first page.
func (n *Notifications) Unread() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}

// Watermark returns the sort index recorded for this session.
func (n *Notifications) Watermark() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.watermark
}
