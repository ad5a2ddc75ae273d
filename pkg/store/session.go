package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxTurns is the sliding-window capacity of a conversation. Appending past
// it evicts the oldest turns first.
const MaxTurns = 30

// Turn is a single conversational exchange entry.
type Turn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// Session holds one conversation keyed by its id. Session objects are owned
// by the SessionStore; callers always receive copies.
type Session struct {
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
	Turns     []Turn    `json:"turns"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionStore is a concurrency-safe session table mirrored to a JSON
// snapshot on disk. Every mutation rewrites the snapshot under the same lock
// that guards the in-memory map, so readers never observe a torn state.
// A missing or corrupt snapshot means "start empty", never a failure.
type SessionStore struct {
	mu       sync.Mutex
	path     string
	sessions map[string]*Session
	logger   *log.Logger
}

// NewSessionStore loads the snapshot at path (if any) and returns a ready
// store.
func NewSessionStore(path string, logger *log.Logger) *SessionStore {
	s := &SessionStore{
		path:     path,
		sessions: make(map[string]*Session),
		logger:   logger,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.logger.Printf("[WARN] Failed to create session dir %s: %v", dir, err)
		}
	}
	s.loadSnapshot()
	return s
}

// Create stores a fresh session under a random id and returns the id.
// A blank name gets an auto-generated display name.
func (s *SessionStore) Create(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	sess := newDefaultSession(id)
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		sess.Name = trimmed
	}
	s.sessions[id] = sess
	s.persistLocked()
	return id
}

// AppendTurn appends one turn, lazily provisioning an unknown session, and
// truncates to the most recent MaxTurns entries.
func (s *SessionStore) AppendTurn(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = newDefaultSession(sessionID)
		s.sessions[sessionID] = sess
	}
	sess.Turns = append(sess.Turns, Turn{Role: role, Content: content})
	if len(sess.Turns) > MaxTurns {
		sess.Turns = append([]Turn(nil), sess.Turns[len(sess.Turns)-MaxTurns:]...)
	}
	sess.UpdatedAt = time.Now()
	s.persistLocked()
}

// History returns the turns of a session. Unknown ids yield an empty history;
// the read path never errors.
func (s *SessionStore) History(sessionID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []Turn{}
	}
	return append([]Turn(nil), sess.Turns...)
}

// Get returns a copy of the full session record, or false when unknown.
func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	copied := *sess
	copied.Turns = append([]Turn(nil), sess.Turns...)
	return &copied, true
}

// List returns session summaries sorted by UpdatedAt descending, zero
// timestamps last.
func (s *SessionStore) List() []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		summaries = append(summaries, SessionSummary{
			SessionID: sess.SessionID,
			Name:      sess.Name,
			Turns:     len(sess.Turns),
			UpdatedAt: sess.UpdatedAt,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].UpdatedAt, summaries[j].UpdatedAt
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.After(b)
	})
	return summaries
}

// Clear removes a session entirely. Returns true iff it existed.
func (s *SessionStore) Clear(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.persistLocked()
	return existed
}

func newDefaultSession(id string) *Session {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return &Session{
		SessionID: id,
		Name:      "会话-" + short,
		UpdatedAt: time.Now(),
		Turns:     []Turn{},
	}
}

// persistLocked writes the full snapshot. Persistence failure is logged, not
// fatal: in-memory state stays authoritative for this process lifetime.
func (s *SessionStore) persistLocked() {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		s.logger.Printf("[ERROR] Failed to marshal session snapshot: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		s.logger.Printf("[ERROR] Failed to write session snapshot: %v", err)
	}
}

func (s *SessionStore) loadSnapshot() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("[WARN] Failed to read session snapshot, starting empty: %v", err)
		}
		return
	}
	loaded := make(map[string]*Session)
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Printf("[WARN] Corrupt session snapshot, starting empty: %v", err)
		return
	}
	for id, sess := range loaded {
		if sess.Turns == nil {
			sess.Turns = []Turn{}
		}
		s.sessions[id] = sess
	}
}
