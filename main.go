package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dpeters/perch/internal/api"
	"github.com/dpeters/perch/internal/config"
	"github.com/dpeters/perch/internal/model"
	"github.com/dpeters/perch/internal/opml"
	"github.com/dpeters/perch/internal/rss"
	"github.com/dpeters/perch/internal/store"
	"github.com/dpeters/perch/internal/tui"
	"github.com/dpeters/perch/internal/views"
)

func main() {
	exportPath := flag.String("export-opml", "", "write the RSS subscription list to this file and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	subs := loadSubscriptions(cfg.OPMLPath)
	if *exportPath != "" {
		if err := exportSubscriptions(*exportPath, subs); err != nil {
			log.Fatalf("export opml: %v", err)
		}
		fmt.Printf("wrote %d subscriptions to %s\n", len(subs), *exportPath)
		return
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	opts, err := buildViews(cfg, subs, db)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	defer func() {
		for _, l := range opts.Lists {
			l.Close()
		}
	}()

	if err := tui.Run(opts); err != nil {
		log.Fatalf("tui: %v", err)
	}
}

func buildViews(cfg config.Config, subs []opml.Subscription, db *store.Store) (tui.Options, error) {
	renderPost := func(p model.Post) string {
		return fmt.Sprintf("@%s · %s", p.Handle, p.Text)
	}
	renderNotif := func(n model.Notification) string {
		return fmt.Sprintf("%s from @%s · %s", n.Kind, n.Actor, n.Text)
	}
	idOfPost := func(p model.Post) string { return p.ID }
	idOfNotif := func(n model.Notification) string { return n.ID }

	opts := tui.Options{Store: db}

	if cfg.HasAccount() {
		client, err := api.New(cfg.BaseURL, cfg.Cookie, cfg.HTTPTimeout)
		if err != nil {
			return tui.Options{}, fmt.Errorf("api client: %w", err)
		}

		notifications := views.NewNotifications(client)
		replies := views.NewReplies(client)
		opts.Lists = append(opts.Lists,
			views.NewList("timeline", views.NewTimeline(client), renderPost, idOfPost),
			views.NewList("bookmarks", views.NewBookmarks(client), renderPost, idOfPost),
			views.NewList("notifications", notifications.Engine, renderNotif, idOfNotif).
				WithBadge(func() string {
					if n := notifications.Unread(); n > 0 {
						return fmt.Sprintf("(%d)", n)
					}
					return ""
				}),
			views.NewList("thread", replies.Engine, renderPost, idOfPost),
		)
		opts.Replies = replies
		opts.RepliesIndex = 3
	} else {
		log.Printf("no account configured (PERCH_BASE_URL / PERCH_COOKIE); remote views disabled")
	}

	if len(subs) > 0 {
		sources := make([]rss.Source, 0, len(subs))
		for _, s := range subs {
			sources = append(sources, rss.Source{Title: s.Title, URL: s.URL})
		}
		reader := rss.NewReader(sources)
		opts.Lists = append(opts.Lists,
			views.NewList("rss", views.NewLocal(reader), renderPost, idOfPost))
	}

	if len(opts.Lists) == 0 {
		return tui.Options{}, fmt.Errorf("nothing to show: configure an account or an OPML file")
	}
	return opts, nil
}

func loadSubscriptions(path string) []opml.Subscription {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		log.Printf("opml: %v", err)
		return nil
	}
	defer f.Close()
	subs, err := opml.Parse(f)
	if err != nil {
		log.Printf("opml: %v", err)
		return nil
	}
	return subs
}

func exportSubscriptions(path string, subs []opml.Subscription) error {
	out, err := opml.Export("perch subscriptions", subs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
