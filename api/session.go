/*
session.go - In-process session registry

PURPOSE:
  Every browser tab works on its own book of work orders and invoices.
  A session is created explicitly, addressed by the X-Session-ID header,
  and dropped on request or after sitting idle past the configured TTL.

LIMITS:
  MaxSessions caps the registry; creating one more fails with
  ErrTooManySessions until an old session is deleted or pruned.

SEE ALSO:
  - sweeper.go: Background pruning of idle sessions
  - contract/book.go: The per-session book
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/contract-admin/contract"
	"github.com/warp/contract-admin/contract/store"
	"github.com/warp/contract-admin/logger"
	"go.uber.org/zap"
)

// SessionHeader carries the session ID on every session-scoped request.
const SessionHeader = "X-Session-ID"

var (
	ErrTooManySessions = errors.New("session limit reached")
	ErrSessionNotFound = errors.New("session not found")
)

// Session is one user's isolated book.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	book     *contract.Book
	scenario string
	lastSeen time.Time
}

// Book returns the session's current book.
func (s *Session) Book() *contract.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book
}

func (s *Session) Scenario() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scenario
}

func (s *Session) reset(book *contract.Book, scenario string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.book = book
	s.scenario = scenario
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Sessions is the registry of live sessions.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewSessions creates a registry holding at most maxSessions sessions. A zero ttl
// disables idle pruning.
func NewSessions(maxSessions int, ttl time.Duration, log *zap.Logger) *Sessions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{
		sessions: make(map[string]*Session),
		max:      maxSessions,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// NewBook builds an empty book bound to a session's logger.
func (r *Sessions) NewBook(sessionID string) *contract.Book {
	return contract.NewBook(store.NewMemory(),
		contract.WithLogger(r.log.With(zap.String("session_id", sessionID))),
		contract.WithClock(r.now),
	)
}

// Create registers a new empty session.
func (r *Sessions) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.sessions) >= r.max {
		return nil, ErrTooManySessions
	}
	now := r.now()
	id := uuid.NewString()
	s := &Session{ID: id, CreatedAt: now, lastSeen: now, book: r.NewBook(id)}
	r.sessions[id] = s
	r.log.Info("session created", zap.String("session_id", id), zap.Int("sessions", len(r.sessions)))
	return s, nil
}

// Get returns the session and marks it used.
func (r *Sessions) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

func (r *Sessions) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.log.Info("session deleted", zap.String("session_id", id))
	return nil
}

// Prune drops sessions idle longer than the TTL and returns their IDs.
func (r *Sessions) Prune() []string {
	if r.ttl <= 0 {
		return nil
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped []string
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	if len(dropped) > 0 {
		r.log.Info("idle sessions pruned", zap.Strings("session_ids", dropped))
	}
	return dropped
}

func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type sessionKey struct{}

// RequireSession resolves X-Session-ID and attaches the session to the
// request context.
func (r *Sessions) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(SessionHeader)
		if id == "" {
			writeError(w, req, http.StatusBadRequest, "Missing "+SessionHeader+" header", nil)
			return
		}
		s, err := r.Get(id)
		if err != nil {
			writeError(w, req, http.StatusNotFound, "Session not found", err)
			return
		}
		ctx, _ := logger.WithSessionID(req.Context(), logger.FromContext(req.Context()), s.ID)
		ctx = context.WithValue(ctx, sessionKey{}, s)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}
