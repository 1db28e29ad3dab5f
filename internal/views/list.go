package views

import (
	"context"

	"github.com/dpeters/perch/internal/feed"
)

// List erases an engine's item type so the terminal layer can hold
// every view behind one value. Lines returns one rendered row per item
// in list order; ItemID returns the id at a row for selection-driven
// actions (opening a thread, annotating).
type List struct {
	name     string
	refresh  func(ctx context.Context)
	loadMore func(ctx context.Context)
	close    func()
	status   func() feed.Status
	lines    func() []string
	itemID   func(i int) string
	sub      func(fn func())
	badge    func() string
}

// NewList wraps engine as a List named name, rendering each item with
// render and identifying rows with id.
func NewList[T any](name string, engine *feed.Engine[T], render func(T) string, id func(T) string) *List {
	return &List{
		name:     name,
		refresh:  engine.Refresh,
		loadMore: engine.LoadMore,
		close:    engine.Close,
		status:   engine.Status,
		sub:      engine.Subscribe,
		lines: func() []string {
			snap := engine.Snapshot()
			out := make([]string, len(snap.Items))
			for i, item := range snap.Items {
				out[i] = render(item)
			}
			return out
		},
		itemID: func(i int) string {
			snap := engine.Snapshot()
			if i < 0 || i >= len(snap.Items) {
				return ""
			}
			return id(snap.Items[i])
		},
		badge: func() string { return "" },
	}
}

// WithBadge sets a supplementary header fragment, e.g. an unread count.
func (l *List) WithBadge(fn func() string) *List {
	l.badge = fn
	return l
}

func (l *List) Name() string                 { return l.name }
func (l *List) Refresh(ctx context.Context)  { l.refresh(ctx) }
func (l *List) LoadMore(ctx context.Context) { l.loadMore(ctx) }
func (l *List) Close()                       { l.close() }
func (l *List) Status() feed.Status          { return l.status() }
func (l *List) Lines() []string              { return l.lines() }
func (l *List) ItemID(i int) string          { return l.itemID(i) }
func (l *List) Subscribe(fn func())          { l.sub(fn) }
func (l *List) Badge() string                { return l.badge() }
