// Package session keeps per-conversation context between requests.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhenwang/tripflow/internal/db"
	"github.com/zhenwang/tripflow/internal/models"
)

// Message is one conversation turn.
type Message struct {
	Role    string    `json:"role"` // "user" or "assistant"
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session accumulates the conversation and extracted trip entities.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	History      []Message
	Entities     map[string]string // "destination", "days", "budget", ...
	LastPlan     models.PlanDocument
}

// Store is an in-memory session store with TTL-based cleanup.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	db *db.Client // nil when persistence is disabled
}

// SetPersistence enables best-effort session mirroring to the database.
func (s *Store) SetPersistence(client *db.Client) {
	s.db = client
}

// NewStore creates a session store. Sessions idle longer than ttl are
// removed by the sweeper.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create registers a new session and returns its id.
func (s *Store) Create() string {
	id := uuid.New().String()
	now := time.Now()

	s.mu.Lock()
	s.sessions[id] = &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		Entities:     make(map[string]string),
	}
	s.mu.Unlock()

	return id
}

// GetOrCreate returns the session for id, registering a fresh one when the
// id is unknown. Clients pick their own session ids, so the first request
// carrying an id starts its session.
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		now := time.Now()
		sess = &Session{
			ID:           id,
			CreatedAt:    now,
			LastActivity: now,
			Entities:     make(map[string]string),
		}
		s.sessions[id] = sess
	}
	return sess
}

// Get returns a copy-safe pointer to the session, or nil when unknown.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// AddMessage appends a conversation turn and refreshes activity.
func (s *Store) AddMessage(id, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	now := time.Now()
	sess.History = append(sess.History, Message{Role: role, Content: content, At: now})
	sess.LastActivity = now
}

// MergeEntities overwrites the stored entities with the given values,
// keeping any keys not present in the update.
func (s *Store) MergeEntities(id string, entities map[string]string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	for k, v := range entities {
		sess.Entities[k] = v
	}
	sess.LastActivity = time.Now()
	merged, plan := snapshotForPersist(sess)
	s.mu.Unlock()

	s.persist(id, merged, plan)
}

// SetLastPlan attaches the most recent generated plan to the session.
func (s *Store) SetLastPlan(id string, plan models.PlanDocument) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	sess.LastPlan = plan
	sess.LastActivity = time.Now()
	entities, lastPlan := snapshotForPersist(sess)
	s.mu.Unlock()

	s.persist(id, entities, lastPlan)
}

// snapshotForPersist copies the fields mirrored to the database. Caller
// holds the store lock.
func snapshotForPersist(sess *Session) (map[string]string, map[string]any) {
	entities := make(map[string]string, len(sess.Entities))
	for k, v := range sess.Entities {
		entities[k] = v
	}
	return entities, sess.LastPlan
}

// persist mirrors the session to the database. Best effort: the in-memory
// store stays authoritative.
func (s *Store) persist(id string, entities map[string]string, lastPlan map[string]any) {
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.db.SaveSession(ctx, id, entities, lastPlan); err != nil {
		slog.Warn("failed to persist session", "session_id", id, "error", err)
	}
}

// CleanupExpired removes sessions idle longer than the store TTL and
// returns how many were dropped.
func (s *Store) CleanupExpired() int {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the current session count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunSweeper periodically removes expired sessions until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.CleanupExpired(); removed > 0 {
				slog.Info("expired sessions removed", "count", removed)
			}
			if s.db != nil {
				if err := s.db.DeleteExpiredSessions(ctx, s.ttl); err != nil {
					slog.Warn("failed to clean persisted sessions", "error", err)
				}
			}
		}
	}
}
