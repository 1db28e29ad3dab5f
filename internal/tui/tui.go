// Package tui renders the list views in the terminal. It stays thin on
// purpose: all fetching, pagination, and retry state lives in the feed
// engine; this layer only draws snapshots and translates keys into
// engine calls.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dpeters/perch/internal/feed"
	"github.com/dpeters/perch/internal/store"
	"github.com/dpeters/perch/internal/views"
)

// stateChangedMsg is sent whenever any engine's state changes.
type stateChangedMsg struct{}

// Options wires the model together.
type Options struct {
	Lists []*views.List
	// Replies, when non-nil, is the thread view opened by selecting a
	// post; RepliesIndex is its position in Lists.
	Replies      *views.Replies
	RepliesIndex int
	Store        *store.Store
}

// Model is the bubbletea model.
type Model struct {
	opts   Options
	active int
	cursor int
	width  int
	height int
}

// NewModel creates the model. The first list is active.
func NewModel(opts Options) Model {
	return Model{opts: opts}
}

func (m Model) Init() tea.Cmd {
	ctx := context.Background()
	for _, l := range m.opts.Lists {
		if m.opts.Replies == nil || l != m.opts.Lists[m.opts.RepliesIndex] {
			l.Refresh(ctx)
		}
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case stateChangedMsg:
		m.clampCursor()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()
	list := m.opts.Lists[m.active]

	switch key := msg.String(); key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.active = (m.active + 1) % len(m.opts.Lists)
		m.cursor = 0
		return m, nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		i := int(key[0] - '1')
		if i < len(m.opts.Lists) {
			m.active = i
			m.cursor = 0
		}
		return m, nil
	case "r":
		list.Refresh(ctx)
		return m, nil
	case "m":
		list.LoadMore(ctx)
		return m, nil
	case "down", "j":
		if m.cursor < list.Status().Count-1 {
			m.cursor++
		}
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "g":
		m.cursor = 0
		return m, nil
	case "G":
		if n := list.Status().Count; n > 0 {
			m.cursor = n - 1
		}
		return m, nil
	case "enter":
		id := list.ItemID(m.cursor)
		if id == "" || m.opts.Replies == nil {
			return m, nil
		}
		if m.opts.Store != nil {
			m.opts.Store.MarkRead(id)
		}
		m.opts.Replies.SetPost(ctx, id)
		m.active = m.opts.RepliesIndex
		m.cursor = 0
		return m, nil
	case "a":
		id := list.ItemID(m.cursor)
		if id == "" || m.opts.Store == nil {
			return m, nil
		}
		// Toggle a saved-for-later note on the selected item.
		if _, ok := m.opts.Store.Note(id); ok {
			m.opts.Store.SetNote(id, "")
		} else {
			lines := list.Lines()
			note := ""
			if m.cursor < len(lines) {
				note = lines[m.cursor]
			}
			m.opts.Store.SetNote(id, note)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) clampCursor() {
	count := m.opts.Lists[m.active].Status().Count
	if count == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= count {
		m.cursor = count - 1
	}
}

func (m Model) View() string {
	list := m.opts.Lists[m.active]
	st := list.Status()

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.statusLine(st))
	b.WriteString("\n\n")

	lines := list.Lines()
	top, bottom := m.window(len(lines))
	for i := top; i < bottom; i++ {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		prefix := m.itemPrefix(list.ItemID(i))
		b.WriteString(marker + prefix + lines[i] + "\n")
	}
	if len(lines) == 0 && !st.Loading {
		b.WriteString("  (nothing here)\n")
	}

	b.WriteString("\n")
	b.WriteString("q quit · tab/1-9 views · j/k move · enter thread · r refresh · m more · a save\n")
	return b.String()
}

func (m Model) header() string {
	parts := make([]string, 0, len(m.opts.Lists))
	for i, l := range m.opts.Lists {
		name := l.Name()
		if badge := l.Badge(); badge != "" {
			name += " " + badge
		}
		if i == m.active {
			name = "[" + name + "]"
		}
		parts = append(parts, name)
	}
	return "perch · " + strings.Join(parts, "  ")
}

func (m Model) statusLine(st feed.Status) string {
	switch {
	case st.RetryBlocked:
		return fmt.Sprintf("rate limited · retry in %ds", st.RetryCountdown)
	case st.Loading:
		return "loading…"
	case st.LoadingMore:
		return "loading more…"
	case st.ErrKind == feed.ErrAuth:
		return "session expired · " + st.Err
	case st.Err != "":
		return "error · " + st.Err + " · press r to retry"
	case st.HasMore:
		return fmt.Sprintf("%d items · more available", st.Count)
	default:
		return fmt.Sprintf("%d items", st.Count)
	}
}

// window returns the visible slice bounds around the cursor.
func (m Model) window(total int) (int, int) {
	visible := m.height - 6
	if visible < 1 {
		visible = 10
	}
	if total <= visible {
		return 0, total
	}
	top := m.cursor - visible/2
	if top < 0 {
		top = 0
	}
	if top+visible > total {
		top = total - visible
	}
	return top, top + visible
}

func (m Model) itemPrefix(id string) string {
	if m.opts.Store == nil || id == "" {
		return "  "
	}
	prefix := " "
	if _, ok := m.opts.Store.Note(id); ok {
		prefix = "*"
	}
	if m.opts.Store.IsRead(id) {
		return prefix + " "
	}
	return prefix + "•"
}

// Run starts the TUI and blocks until the user quits. Engine state
// changes repaint via program messages.
func Run(opts Options) error {
	model := NewModel(opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	for _, l := range opts.Lists {
		l.Subscribe(func() { p.Send(stateChangedMsg{}) })
	}
	_, err := p.Run()
	return err
}
