package handlers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/intake"
	"rental-application-engine/internal/utils"
)

// DefaultSessionTTL is how long an idle wizard session is kept.
const DefaultSessionTTL = 2 * time.Hour

var ErrSessionNotFound = errors.New("session not found")

// SessionGauge receives the number of live sessions.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Session is one applicant's wizard. All access goes through Do.
type Session struct {
	ID         string
	PropertyID string
	CreatedAt  time.Time

	mu     sync.Mutex
	wizard *intake.Wizard
	record *models.ApplicationRecord

	lastUsed atomic.Int64 // unix nanoseconds
}

// Do runs fn with exclusive access to the session wizard.
func (s *Session) Do(fn func(w *intake.Wizard) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.wizard)
}

func (s *Session) touch(at time.Time) {
	s.lastUsed.Store(at.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// SessionStore keeps wizard sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	catalog  *intake.Catalog
	ttl      time.Duration
	gauge    SessionGauge
	now      func() time.Time
}

// NewSessionStore creates a store. A nil catalog uses the default steps.
func NewSessionStore(catalog *intake.Catalog, ttl time.Duration, gauge SessionGauge) *SessionStore {
	if catalog == nil {
		catalog = intake.DefaultCatalog()
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		catalog:  catalog,
		ttl:      ttl,
		gauge:    gauge,
		now:      time.Now,
	}
}

// Catalog returns the steps every session walks through.
func (s *SessionStore) Catalog() *intake.Catalog {
	return s.catalog
}

// Create starts a new session for propertyID.
func (s *SessionStore) Create(propertyID string) *Session {
	now := s.now()
	session := &Session{
		ID:         uuid.New().String(),
		PropertyID: propertyID,
		CreatedAt:  now,
		wizard:     intake.NewWizard(s.catalog),
	}
	session.touch(now)

	s.mu.Lock()
	s.sessions[session.ID] = session
	n := len(s.sessions)
	s.mu.Unlock()

	s.report(n)
	utils.GetLogger().Info("Session created",
		zap.String("session_id", session.ID),
		zap.String("property_id", propertyID),
	)
	return session
}

// Get returns the session and marks it used.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.touch(s.now())
	return session, nil
}

// Delete drops a session.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.report(n)
	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were dropped.
func (s *SessionStore) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	removed := 0
	for id, session := range s.sessions {
		if session.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.report(n)
		utils.GetLogger().Info("Expired sessions removed", zap.Int("removed", removed), zap.Int("active", n))
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (s *SessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *SessionStore) report(n int) {
	if s.gauge != nil {
		s.gauge.SetActiveSessions(n)
	}
}
