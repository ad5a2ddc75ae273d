package store

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*SessionStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.json")
	return NewSessionStore(path, log.New(io.Discard, "", 0)), path
}

func TestCreateAssignsDefaultName(t *testing.T) {
	s, _ := newTestStore(t)

	id := s.Create("  ")
	sess, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, "会话-"+id[:8], sess.Name)

	named := s.Create("旅行咨询")
	sess, ok = s.Get(named)
	require.True(t, ok)
	assert.Equal(t, "旅行咨询", sess.Name)
}

func TestAppendTurnSlidingWindow(t *testing.T) {
	s, _ := newTestStore(t)

	for i := 1; i <= 35; i++ {
		s.AppendTurn("sess", "user", fmt.Sprintf("问题%d", i))
	}

	turns := s.History("sess")
	require.Len(t, turns, MaxTurns)
	assert.Equal(t, "问题6", turns[0].Content, "oldest turns are evicted first")
	assert.Equal(t, "问题35", turns[len(turns)-1].Content)
}

func TestAppendTurnLazilyProvisions(t *testing.T) {
	s, _ := newTestStore(t)

	s.AppendTurn("unseen-id", "user", "你好")

	sess, ok := s.Get("unseen-id")
	require.True(t, ok, "appending to an unknown id must create the session")
	assert.Equal(t, "会话-unseen-i", sess.Name)
	assert.Len(t, sess.Turns, 1)
}

func TestHistoryUnknownSessionIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Empty(t, s.History("missing"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	logger := log.New(io.Discard, "", 0)

	first := NewSessionStore(path, logger)
	id := first.Create("持久化测试")
	first.AppendTurn(id, "user", "问题")
	first.AppendTurn(id, "assistant", "回答")

	// A new store over the same path sees everything the first one wrote.
	second := NewSessionStore(path, logger)
	sess, ok := second.Get(id)
	require.True(t, ok)
	assert.Equal(t, "持久化测试", sess.Name)
	require.Len(t, sess.Turns, 2)
	assert.Equal(t, "assistant", sess.Turns[1].Role)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewSessionStore(path, log.New(io.Discard, "", 0))
	assert.Empty(t, s.List())

	// The store must still be writable after discarding the bad snapshot.
	id := s.Create("恢复")
	_, ok := s.Get(id)
	assert.True(t, ok)
}

func TestListOrdersByRecency(t *testing.T) {
	s, _ := newTestStore(t)

	older := s.Create("旧会话")
	time.Sleep(5 * time.Millisecond)
	newer := s.Create("新会话")

	summaries := s.List()
	require.Len(t, summaries, 2)
	assert.Equal(t, newer, summaries[0].SessionID)
	assert.Equal(t, older, summaries[1].SessionID)
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t)

	id := s.Create("")
	assert.True(t, s.Clear(id))
	assert.False(t, s.Clear(id), "second clear reports the session was gone")

	_, ok := s.Get(id)
	assert.False(t, ok)
}
