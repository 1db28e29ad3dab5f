// Package model defines shared data structures.
package model

import "time"

// Post represents a single post in a timeline, bookmark list, or thread.
type Post struct {
	ID          string
	Author      string
	Handle      string
	Text        string
	CreatedAt   time.Time
	ReplyCount  int
	RepostCount int
	LikeCount   int
	Bookmarked  bool
	InReplyTo   string // parent post ID, empty for top-level posts
}

// Notification represents a single entry in the notifications feed.
type Notification struct {
	ID        string
	Kind      string // "like", "repost", "reply", "follow", "mention"
	Actor     string
	Text      string
	SortIndex int64 // server-assigned ordering index, larger = newer
	CreatedAt time.Time
}

// Annotation is a locally-stored note attached to a post.
type Annotation struct {
	PostID    string
	Note      string
	UpdatedAt time.Time
}
