package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dpeters/perch/internal/model"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "perch.db")
	s, err := newStore(path, time.Hour) // flush manually in tests
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestNoteRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	_, ok := s.Note("p1")
	require.False(t, ok)

	s.SetNote("p1", "interesting thread")
	note, ok := s.Note("p1")
	require.True(t, ok)
	require.Equal(t, "interesting thread", note)

	s.SetNote("p1", "changed my mind")
	note, _ = s.Note("p1")
	require.Equal(t, "changed my mind", note)

	s.SetNote("p1", "")
	_, ok = s.Note("p1")
	require.False(t, ok)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perch.db")
	s, err := newStore(path, time.Hour)
	require.NoError(t, err)

	s.SetNote("p1", "keep this")
	s.SetNote("p2", "drop this")
	s.SetNote("p2", "")
	s.MarkRead("n1")
	require.NoError(t, s.Close())

	s2, err := newStore(path, time.Hour)
	require.NoError(t, err)
	defer s2.Close()

	note, ok := s2.Note("p1")
	require.True(t, ok)
	require.Equal(t, "keep this", note)
	_, ok = s2.Note("p2")
	require.False(t, ok)
	require.True(t, s2.IsRead("n1"))
	require.False(t, s2.IsRead("n2"))
}

func TestFlushCoalescesEdits(t *testing.T) {
	s, _ := openTestStore(t)

	for i := 0; i < 50; i++ {
		s.SetNote("p1", "draft")
	}
	s.SetNote("p1", "final")
	require.NoError(t, s.Flush())

	var note string
	err := s.conn.QueryRow("SELECT note FROM annotations WHERE post_id = ?", "p1").Scan(&note)
	require.NoError(t, err)
	require.Equal(t, "final", note)

	// Nothing dirty: flush is a no-op.
	require.NoError(t, s.Flush())
}

func TestFlushFailureKeepsPendingWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perch.db")
	s, err := newStore(path, time.Hour)
	require.NoError(t, err)

	s.SetNote("p1", "retry me")
	s.MarkRead("n1")

	// Yank the connection out from under the flush.
	require.NoError(t, s.conn.Close())
	require.Error(t, s.Flush())

	s.mu.Lock()
	_, noteDirty := s.dirtyNotes["p1"]
	_, readDirty := s.dirtyRead["n1"]
	s.mu.Unlock()
	require.True(t, noteDirty, "failed flush must keep the note pending")
	require.True(t, readDirty, "failed flush must keep the read mark pending")

	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	s.conn = conn
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	s2, err := newStore(path, time.Hour)
	require.NoError(t, err)
	defer s2.Close()
	note, ok := s2.Note("p1")
	require.True(t, ok)
	require.Equal(t, "retry me", note)
	require.True(t, s2.IsRead("n1"))
}

func TestRequeueNeverRevivesNewerEdits(t *testing.T) {
	s, _ := openTestStore(t)

	s.SetNote("p1", "first draft")
	s.mu.Lock()
	s.dirtyNotes = make(map[string]struct{}) // drained as if a flush were in flight
	s.mu.Unlock()

	// The note was deleted while its drained copy was pending; the
	// requeue must not bring the write back.
	s.SetNote("p1", "")
	s.requeue([]model.Annotation{{PostID: "p1", Note: "first draft"}}, nil, nil)

	s.mu.Lock()
	_, dirty := s.dirtyNotes["p1"]
	_, deleted := s.deletedNotes["p1"]
	s.mu.Unlock()
	require.False(t, dirty, "deleted note must stay deleted")
	require.True(t, deleted)
}

func TestMarkReadIdempotent(t *testing.T) {
	s, _ := openTestStore(t)

	s.MarkRead("n1")
	first := s.read["n1"]
	s.MarkRead("n1")
	require.Equal(t, first, s.read["n1"], "second mark must not move the timestamp")
	require.NoError(t, s.Flush())

	var count int
	require.NoError(t, s.conn.QueryRow("SELECT COUNT(*) FROM read_state").Scan(&count))
	require.Equal(t, 1, count)
}

func TestAnnotationsListsAll(t *testing.T) {
	s, _ := openTestStore(t)
	s.SetNote("a", "one")
	s.SetNote("b", "two")

	all := s.Annotations()
	require.Len(t, all, 2)
	got := map[string]string{}
	for _, a := range all {
		got[a.PostID] = a.Note
	}
	require.Equal(t, map[string]string{"a": "one", "b": "two"}, got)
}
