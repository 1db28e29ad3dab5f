// Package rss adapts local RSS/Atom subscriptions into the same
// paginated page shape the remote feeds use, so one engine drives both.
package rss

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/dpeters/perch/internal/feed"
	"github.com/dpeters/perch/internal/model"
)

const (
	// PageSize is how many merged entries one page carries.
	PageSize = 30
	// maxConcurrentFetches bounds parallel feed downloads.
	maxConcurrentFetches = 5
)

// Source is a single subscribed feed.
type Source struct {
	Title string
	URL   string
}

// Reader fetches all subscribed feeds, merges their entries newest
// first, and serves the merged list as cursor pages. An empty cursor
// re-downloads everything; a numeric cursor pages through the merge
// built by the last refresh.
type Reader struct {
	parser  *gofeed.Parser
	sources []Source

	mu     sync.Mutex
	merged []model.Post
}

// NewReader creates a reader over sources.
func NewReader(sources []Source) *Reader {
	return &Reader{
		parser:  gofeed.NewParser(),
		sources: sources,
	}
}

// Fetch implements the engine's fetch contract.
func (r *Reader) Fetch(ctx context.Context, cursor string) (feed.Page[model.Post], error) {
	if cursor == "" {
		if err := r.refresh(ctx); err != nil {
			return feed.Page[model.Post]{}, err
		}
		return r.page(0), nil
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return feed.Page[model.Post]{}, &feed.APIError{
			Kind:    feed.ErrUnknown,
			Message: fmt.Sprintf("bad cursor %q", cursor),
		}
	}
	return r.page(offset), nil
}

// refresh downloads every source and rebuilds the merged list.
func (r *Reader) refresh(ctx context.Context) error {
	if len(r.sources) == 0 {
		r.mu.Lock()
		r.merged = nil
		r.mu.Unlock()
		return nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		entries []model.Post
		failed  int
	)
	sem := make(chan struct{}, maxConcurrentFetches)
	for _, src := range r.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			posts, err := r.fetchSource(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("rss: fetch %s: %v", src.URL, err)
				failed++
				return
			}
			entries = append(entries, posts...)
		}(src)
	}
	wg.Wait()

	if failed == len(r.sources) {
		return &feed.APIError{
			Kind:    feed.ErrNetwork,
			Message: fmt.Sprintf("all %d feeds failed to load", failed),
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	r.mu.Lock()
	r.merged = entries
	r.mu.Unlock()
	return nil
}

func (r *Reader) fetchSource(ctx context.Context, src Source) ([]model.Post, error) {
	parsed, err := r.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, err
	}
	title := src.Title
	if title == "" {
		title = parsed.Title
	}
	posts := make([]model.Post, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.GUID == "" && item.Link == "" {
			// Nothing usable as a stable identity.
			continue
		}
		posts = append(posts, itemToPost(title, item))
	}
	return posts, nil
}

func itemToPost(feedTitle string, item *gofeed.Item) model.Post {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	published := time.Time{}
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	}
	text := item.Title
	if text == "" {
		text = item.Description
	}
	return model.Post{
		ID:        id,
		Author:    feedTitle,
		Handle:    feedTitle,
		Text:      text,
		CreatedAt: published,
	}
}

// page slices the merged list at offset.
func (r *Reader) page(offset int) feed.Page[model.Post] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset >= len(r.merged) {
		return feed.Page[model.Post]{}
	}
	end := offset + PageSize
	if end > len(r.merged) {
		end = len(r.merged)
	}
	page := feed.Page[model.Post]{
		Items: append([]model.Post(nil), r.merged[offset:end]...),
	}
	if end < len(r.merged) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page
}
