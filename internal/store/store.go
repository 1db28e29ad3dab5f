// Package store provides local SQLite persistence for per-post
// annotations and read state. Writes are debounced: rapid edits
// coalesce into one flush instead of hitting the database per
// keystroke.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dpeters/perch/internal/model"
)

// defaultFlushInterval is how often pending writes are committed.
const defaultFlushInterval = 5 * time.Second

// Store wraps the SQLite connection plus an in-memory working copy.
// Reads are served from memory; the flush loop writes dirty entries
// back in one transaction.
type Store struct {
	conn *sql.DB

	mu           sync.Mutex
	notes        map[string]model.Annotation
	read         map[string]time.Time
	dirtyNotes   map[string]struct{}
	dirtyRead    map[string]struct{}
	deletedNotes map[string]struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// New opens or creates the store at path.
func New(path string) (*Store, error) {
	return newStore(path, defaultFlushInterval)
}

func newStore(path string, flushEvery time.Duration) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	s := &Store{
		conn:         conn,
		notes:        make(map[string]model.Annotation),
		read:         make(map[string]time.Time),
		dirtyNotes:   make(map[string]struct{}),
		dirtyRead:    make(map[string]struct{}),
		deletedNotes: make(map[string]struct{}),
		stop:         make(chan struct{}),
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.load(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("load: %w", err)
	}
	s.wg.Add(1)
	go s.flushLoop(flushEvery)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS annotations (
		post_id TEXT PRIMARY KEY,
		note TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS read_state (
		item_id TEXT PRIMARY KEY,
		read_at DATETIME NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *Store) load() error {
	rows, err := s.conn.Query("SELECT post_id, note, updated_at FROM annotations")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a model.Annotation
		if err := rows.Scan(&a.PostID, &a.Note, &a.UpdatedAt); err != nil {
			return err
		}
		s.notes[a.PostID] = a
	}
	if err := rows.Err(); err != nil {
		return err
	}

	readRows, err := s.conn.Query("SELECT item_id, read_at FROM read_state")
	if err != nil {
		return err
	}
	defer readRows.Close()
	for readRows.Next() {
		var id string
		var at time.Time
		if err := readRows.Scan(&id, &at); err != nil {
			return err
		}
		s.read[id] = at
	}
	return readRows.Err()
}

// SetNote stores an annotation for postID, replacing any previous one.
// An empty note deletes the annotation.
func (s *Store) SetNote(postID, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if note == "" {
		delete(s.notes, postID)
		delete(s.dirtyNotes, postID)
		s.deletedNotes[postID] = struct{}{}
		return
	}
	s.notes[postID] = model.Annotation{PostID: postID, Note: note, UpdatedAt: time.Now()}
	s.dirtyNotes[postID] = struct{}{}
	delete(s.deletedNotes, postID)
}

// Note returns the annotation for postID.
func (s *Store) Note(postID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.notes[postID]
	return a.Note, ok
}

// Annotations returns all annotations, unordered.
func (s *Store) Annotations() []model.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Annotation, 0, len(s.notes))
	for _, a := range s.notes {
		out = append(out, a)
	}
	return out
}

// MarkRead records that the item was seen. Idempotent.
func (s *Store) MarkRead(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.read[itemID]; ok {
		return
	}
	s.read[itemID] = time.Now()
	s.dirtyRead[itemID] = struct{}{}
}

// IsRead reports whether the item was ever marked read.
func (s *Store) IsRead(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.read[itemID]
	return ok
}

func (s *Store) flushLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				log.Printf("store: flush: %v", err)
			}
		}
	}
}

// Flush writes all pending changes in one transaction. Safe to call at
// any time; a no-op when nothing is dirty.
func (s *Store) Flush() error {
	s.mu.Lock()
	if len(s.dirtyNotes) == 0 && len(s.dirtyRead) == 0 && len(s.deletedNotes) == 0 {
		s.mu.Unlock()
		return nil
	}
	notes := make([]model.Annotation, 0, len(s.dirtyNotes))
	for id := range s.dirtyNotes {
		notes = append(notes, s.notes[id])
	}
	deleted := make([]string, 0, len(s.deletedNotes))
	for id := range s.deletedNotes {
		deleted = append(deleted, id)
	}
	reads := make(map[string]time.Time, len(s.dirtyRead))
	for id := range s.dirtyRead {
		reads[id] = s.read[id]
	}
	s.dirtyNotes = make(map[string]struct{})
	s.dirtyRead = make(map[string]struct{})
	s.deletedNotes = make(map[string]struct{})
	s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		s.requeue(notes, deleted, reads)
		return err
	}
	for _, a := range notes {
		if _, err := tx.Exec(
			"INSERT INTO annotations (post_id, note, updated_at) VALUES (?, ?, ?) "+
				"ON CONFLICT(post_id) DO UPDATE SET note = excluded.note, updated_at = excluded.updated_at",
			a.PostID, a.Note, a.UpdatedAt,
		); err != nil {
			tx.Rollback()
			s.requeue(notes, deleted, reads)
			return err
		}
	}
	for _, id := range deleted {
		if _, err := tx.Exec("DELETE FROM annotations WHERE post_id = ?", id); err != nil {
			tx.Rollback()
			s.requeue(notes, deleted, reads)
			return err
		}
	}
	for id, at := range reads {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO read_state (item_id, read_at) VALUES (?, ?)", id, at,
		); err != nil {
			tx.Rollback()
			s.requeue(notes, deleted, reads)
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		s.requeue(notes, deleted, reads)
		return err
	}
	return nil
}

// requeue puts entries drained by a failed Flush back into the dirty
// sets so the next flush retries them. Entries the caller changed again
// in the meantime are already dirty and win over the stale copy.
func (s *Store) requeue(notes []model.Annotation, deleted []string, reads map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range notes {
		if _, gone := s.deletedNotes[a.PostID]; gone {
			continue
		}
		s.dirtyNotes[a.PostID] = struct{}{}
	}
	for _, id := range deleted {
		if _, rewritten := s.dirtyNotes[id]; rewritten {
			continue
		}
		s.deletedNotes[id] = struct{}{}
	}
	for id := range reads {
		s.dirtyRead[id] = struct{}{}
	}
}

// Close flushes pending writes, stops the flush loop, and closes the
// database.
func (s *Store) Close() error {
	close(s.stop)
	s.wg.Wait()
	flushErr := s.Flush()
	closeErr := s.conn.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
