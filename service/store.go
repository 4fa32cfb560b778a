package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/google/uuid"
)

// Session is one analysis workspace owned by a tenant.
type Session struct {
	ID        string
	Tenant    string
	Owner     string
	CreatedAt time.Time
	Lifecycle *Lifecycle

	mu        sync.Mutex
	objectKey string
	closed    bool
	pending   sync.WaitGroup
}

// NewSession creates a session with a fresh ID around lifecycle.
func NewSession(tenant, owner string, lifecycle *Lifecycle) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Tenant:    tenant,
		Owner:     owner,
		CreatedAt: time.Now(),
		Lifecycle: lifecycle,
	}
}

// SetObjectKey records where the current document was archived.
func (s *Session) SetObjectKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objectKey = key
}

func (s *Session) ObjectKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objectKey
}

// Go runs fn in the background unless the session has been closed. Close
// waits for every fn started this way.
func (s *Session) Go(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn()
	}()
	return true
}

// Close stops new background work and waits for the running work to finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
}

// SessionStore keeps sessions in memory. Sessions beyond maxSessions are
// evicted oldest first.
type SessionStore struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	maxSessions int // 0 = unlimited
}

func NewSessionStore(cfg *config.StoreConfig) *SessionStore {
	maxSessions := cfg.MaxSessions
	if maxSessions < 0 {
		maxSessions = 0
	}
	slog.Info("session store initialized", "max_sessions", maxSessions)
	return &SessionStore{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

func (s *SessionStore) Save(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	s.cleanupIfNeeded()
}

func (s *SessionStore) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// GetForTenant returns the session only if it belongs to tenant.
func (s *SessionStore) GetForTenant(id, tenant string) (*Session, error) {
	session := s.Get(id)
	if session == nil || session.Tenant != tenant {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// GetByTenant returns the tenant's sessions, newest first.
func (s *SessionStore) GetByTenant(tenant string) []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*Session{}
	for _, session := range s.sessions {
		if session.Tenant == tenant {
			result = append(result, session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Delete removes the session and discards any submission still running.
func (s *SessionStore) Delete(id string) *Session {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		session.Lifecycle.Reset()
	}
	return session
}

// Count returns the number of sessions in the store
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cleanupIfNeeded removes the oldest sessions if the store exceeds
// maxSessions. Must be called with lock held.
func (s *SessionStore) cleanupIfNeeded() {
	if s.maxSessions <= 0 || len(s.sessions) <= s.maxSessions {
		return
	}

	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	removeCount := len(sessions) - s.maxSessions
	for i := 0; i < removeCount; i++ {
		slog.Info("evicting old session",
			"session_id", sessions[i].ID,
			"tenant", sessions[i].Tenant,
			"created_at", sessions[i].CreatedAt,
		)
		sessions[i].Lifecycle.Reset()
		delete(s.sessions, sessions[i].ID)
	}
}
