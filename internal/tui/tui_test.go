package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/dpeters/perch/internal/feed"
	"github.com/dpeters/perch/internal/model"
	"github.com/dpeters/perch/internal/views"
)

func staticList(t *testing.T, name string, posts []model.Post) *views.List {
	t.Helper()
	e := feed.NewEngine(
		func(ctx context.Context, cursor string) (feed.Page[model.Post], error) {
			return feed.Page[model.Post]{Items: posts}, nil
		},
		func(p model.Post) string { return p.ID },
	)
	l := views.NewList(name, e,
		func(p model.Post) string { return "@" + p.Handle + " " + p.Text },
		func(p model.Post) string { return p.ID },
	)
	l.Refresh(context.Background())
	require.Eventually(t, func() bool { return l.Status().Count == len(posts) },
		2*time.Second, time.Millisecond)
	return l
}

func key(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCursorMovementAndViewSwitch(t *testing.T) {
	a := staticList(t, "timeline", []model.Post{
		{ID: "p1", Handle: "ada", Text: "one"},
		{ID: "p2", Handle: "ben", Text: "two"},
	})
	b := staticList(t, "bookmarks", []model.Post{{ID: "p9", Handle: "cy", Text: "saved"}})

	m := NewModel(Options{Lists: []*views.List{a, b}})

	next, _ := m.Update(key("j"))
	m = next.(Model)
	require.Equal(t, 1, m.cursor)
	next, _ = m.Update(key("j"))
	m = next.(Model)
	require.Equal(t, 1, m.cursor, "cursor stops at the last row")

	next, _ = m.Update(key("2"))
	m = next.(Model)
	require.Equal(t, 1, m.active)
	require.Equal(t, 0, m.cursor, "switching views resets the cursor")

	next, _ = m.Update(key("tab"))
	m = next.(Model)
	require.Equal(t, 0, m.active)
}

func TestViewShowsActiveListAndCursor(t *testing.T) {
	a := staticList(t, "timeline", []model.Post{
		{ID: "p1", Handle: "ada", Text: "one"},
		{ID: "p2", Handle: "ben", Text: "two"},
	})
	m := NewModel(Options{Lists: []*views.List{a}})
	m.height = 20

	out := m.View()
	require.Contains(t, out, "[timeline]")
	require.Contains(t, out, "> ")
	require.Contains(t, out, "@ada one")
	require.Contains(t, out, "@ben two")
	require.True(t, strings.Index(out, "@ada") < strings.Index(out, "@ben"))
}

func TestStatusLineVariants(t *testing.T) {
	m := Model{}
	require.Equal(t, "rate limited · retry in 7s",
		m.statusLine(feed.Status{RetryBlocked: true, RetryCountdown: 7}))
	require.Equal(t, "loading…", m.statusLine(feed.Status{Loading: true}))
	require.Contains(t,
		m.statusLine(feed.Status{Err: "boom", ErrKind: feed.ErrNetwork}), "press r to retry")
	require.Contains(t,
		m.statusLine(feed.Status{Err: "expired", ErrKind: feed.ErrAuth}), "session expired")
	require.Equal(t, "3 items · more available",
		m.statusLine(feed.Status{Count: 3, HasMore: true}))
	require.Equal(t, "2 items", m.statusLine(feed.Status{Count: 2}))
}

func TestWindowCentersCursor(t *testing.T) {
	m := Model{height: 16} // 10 visible rows
	m.cursor = 50
	top, bottom := m.window(100)
	require.Equal(t, 10, bottom-top)
	require.LessOrEqual(t, top, 50)
	require.Greater(t, bottom, 50)

	m.cursor = 0
	top, bottom = m.window(5)
	require.Equal(t, 0, top)
	require.Equal(t, 5, bottom)
}
