// Package feed implements the paginated-fetch engine every list view is
// built on: cursor pagination with cross-page deduplication, a
// rate-limit gate with countdown, and late-result suppression so a slow
// response can never overwrite state produced by a newer operation.
package feed

import (
	"context"
	"sync"
	"time"
)

// Page is the result of one fetch: the items in server order, an opaque
// continuation cursor (empty = no further page), and an optional
// high-watermark sort index that is only meaningful on the first page
// of a session (feeds that don't provide one leave it 0).
type Page[T any] struct {
	Items      []T
	NextCursor string
	Watermark  int64
}

// FetchFunc retrieves one page. An empty cursor requests the first
// page. Failures should be *APIError; anything else is classified as
// unknown.
type FetchFunc[T any] func(ctx context.Context, cursor string) (Page[T], error)

// Snapshot is the observable state of an engine at one point in time.
// Items is a copy; callers may retain it across further operations.
type Snapshot[T any] struct {
	Items          []T
	Loading        bool
	LoadingMore    bool
	HasMore        bool
	Err            string
	APIErr         *APIError
	RetryBlocked   bool
	RetryCountdown int
}

// Status is the non-generic part of a Snapshot, for consumers that
// render many engines of different item types behind one interface.
type Status struct {
	Count          int
	Loading        bool
	LoadingMore    bool
	HasMore        bool
	Err            string
	ErrKind        ErrorKind // empty when Err is empty
	RetryBlocked   bool
	RetryCountdown int
}

// Engine drives one paginated list. All exported methods are safe for
// concurrent use; state transitions are applied atomically under one
// mutex, so observers never see a half-applied page.
type Engine[T any] struct {
	mu    sync.Mutex
	fetch FetchFunc[T]
	id    func(T) string
	key   string

	items       []T
	seen        map[string]struct{}
	cursor      string
	hasMore     bool
	loading     bool
	loadingMore bool
	errMsg      string
	apiErr      *APIError

	// gen is the operation sequence number. Every Refresh, LoadMore,
	// Rekey, and Close bumps it; a fetch result is applied only if the
	// generation it was issued under is still current. This is what
	// keeps a late response from a superseded operation from
	// resurrecting stale data.
	gen    uint64
	closed bool

	gate *Gate
	subs []func()
}

// Option configures an Engine.
type Option[T any] func(*Engine[T])

// WithKey sets the engine's dependency key. Rekey with a different
// value forces a full reset (used by views whose subject can change,
// like a reply thread switching posts).
func WithKey[T any](key string) Option[T] {
	return func(e *Engine[T]) { e.key = key }
}

// WithTickInterval overrides the rate-limit countdown cadence.
// Production uses the one-second default; tests shorten it.
func WithTickInterval[T any](d time.Duration) Option[T] {
	return func(e *Engine[T]) { e.gate = NewGate(d, e.notify) }
}

// NewEngine creates an engine over fetch, using id to derive each
// item's stable identity for deduplication.
func NewEngine[T any](fetch FetchFunc[T], id func(T) string, opts ...Option[T]) *Engine[T] {
	e := &Engine[T]{
		fetch: fetch,
		id:    id,
		seen:  make(map[string]struct{}),
	}
	e.gate = NewGate(time.Second, e.notify)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers fn to run after every state change. fn is called
// without the engine lock held and may read Snapshot/Status freely.
func (e *Engine[T]) Subscribe(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.subs = append(e.subs, fn)
}

// Refresh discards the current list and fetches the first page. It is a
// no-op while the rate-limit gate is blocking, while another refresh is
// already in flight (the outstanding fetch serves both calls), or after
// Close. A refresh issued while a LoadMore is outstanding supersedes
// it: the load's late result is discarded.
func (e *Engine[T]) Refresh(ctx context.Context) {
	if e.gate.Blocked() {
		return
	}
	e.mu.Lock()
	if e.closed || e.loading {
		e.mu.Unlock()
		return
	}
	e.gen++
	gen := e.gen
	e.items = nil
	e.seen = make(map[string]struct{})
	e.cursor = ""
	e.hasMore = false
	e.loading = true
	e.loadingMore = false
	e.errMsg = ""
	e.apiErr = nil
	fetch := e.fetch
	e.mu.Unlock()
	e.notify()

	go func() {
		page, err := fetch(ctx, "")
		e.apply(gen, true, page, err)
	}()
}

// LoadMore fetches the next page and appends its unseen items. It is a
// no-op when there is no cursor, hasMore is false, any fetch is already
// in flight, the gate is blocking, or the engine is closed.
func (e *Engine[T]) LoadMore(ctx context.Context) {
	if e.gate.Blocked() {
		return
	}
	e.mu.Lock()
	if e.closed || e.loading || e.loadingMore || e.cursor == "" || !e.hasMore {
		e.mu.Unlock()
		return
	}
	e.gen++
	gen := e.gen
	e.loadingMore = true
	cursor := e.cursor
	fetch := e.fetch
	e.mu.Unlock()
	e.notify()

	go func() {
		page, err := fetch(ctx, cursor)
		e.apply(gen, false, page, err)
	}()
}

// apply installs a fetch result, unless the generation has moved on or
// the engine was closed while the request was outstanding.
func (e *Engine[T]) apply(gen uint64, isRefresh bool, page Page[T], err error) {
	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return
	}
	if isRefresh {
		e.loading = false
	} else {
		e.loadingMore = false
	}

	if err != nil {
		apiErr := AsAPIError(err)
		e.errMsg = apiErr.Message
		e.apiErr = apiErr
		// No further pages until the next explicit refresh. For a
		// failed refresh the list is already the empty reset state;
		// for a failed load the existing items stay untouched.
		e.hasMore = false
		arm := 0
		if apiErr.Kind == ErrRateLimit && apiErr.RetryAfter > 0 {
			arm = apiErr.RetryAfter
		}
		e.mu.Unlock()
		if arm > 0 {
			e.gate.Arm(arm)
		}
		e.notify()
		return
	}

	e.errMsg = ""
	e.apiErr = nil
	added := 0
	for _, item := range page.Items {
		id := e.id(item)
		if _, dup := e.seen[id]; dup {
			continue
		}
		e.seen[id] = struct{}{}
		e.items = append(e.items, item)
		added++
	}
	e.cursor = page.NextCursor
	e.hasMore = page.NextCursor != "" && added > 0
	e.mu.Unlock()
	e.gate.Clear()
	e.notify()
}

// Rekey resets the engine when key differs from the current dependency
// key: all state is cleared and any outstanding fetch result is
// discarded. Returns true if the key changed. The caller decides when
// to Refresh afterwards.
func (e *Engine[T]) Rekey(key string) bool {
	e.mu.Lock()
	if e.closed || key == e.key {
		e.mu.Unlock()
		return false
	}
	e.key = key
	e.gen++
	e.items = nil
	e.seen = make(map[string]struct{})
	e.cursor = ""
	e.hasMore = false
	e.loading = false
	e.loadingMore = false
	e.errMsg = ""
	e.apiErr = nil
	e.mu.Unlock()
	e.gate.Clear()
	e.notify()
	return true
}

// Close tears the engine down: pending fetch results are discarded on
// arrival, the countdown (if any) is stopped, and subscribers are
// released. Snapshot and Status remain callable.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen++
	e.loading = false
	e.loadingMore = false
	e.subs = nil
	e.mu.Unlock()
	e.gate.Clear()
}

// Snapshot returns a copy of the engine's observable state.
func (e *Engine[T]) Snapshot() Snapshot[T] {
	e.mu.Lock()
	snap := Snapshot[T]{
		Items:       append([]T(nil), e.items...),
		Loading:     e.loading,
		LoadingMore: e.loadingMore,
		HasMore:     e.hasMore,
		Err:         e.errMsg,
		APIErr:      e.apiErr,
	}
	e.mu.Unlock()
	snap.RetryBlocked = e.gate.Blocked()
	snap.RetryCountdown = e.gate.Remaining()
	return snap
}

// Status returns the non-generic view of the engine's state.
func (e *Engine[T]) Status() Status {
	e.mu.Lock()
	st := Status{
		Count:       len(e.items),
		Loading:     e.loading,
		LoadingMore: e.loadingMore,
		HasMore:     e.hasMore,
		Err:         e.errMsg,
	}
	if e.apiErr != nil {
		st.ErrKind = e.apiErr.Kind
	}
	e.mu.Unlock()
	st.RetryBlocked = e.gate.Blocked()
	st.RetryCountdown = e.gate.Remaining()
	return st
}

func (e *Engine[T]) notify() {
	e.mu.Lock()
	subs := make([]func(), len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
