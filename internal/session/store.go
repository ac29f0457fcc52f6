// Package session keeps the shell state for each browser: its verification
// gate and its dark-mode flag.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"cybergrid/internal/services/gate"
)

// Session is owned by the shell. Gate is written only through its own
// methods; DarkMode only by the theme toggle handler.
type Session struct {
	ID        string
	VisitorID uuid.UUID
	Gate      *gate.Gate

	mu       sync.Mutex
	darkMode bool
	lastSeen time.Time
}

func (s *Session) DarkMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.darkMode
}

func (s *Session) SetDarkMode(dark bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.darkMode = dark
}

// GateFactory builds a fresh gate for a new session.
type GateFactory func() *gate.Gate

// OnExpire is called for every session the sweeper drops.
type OnExpire func(ctx context.Context, s *Session)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    clockwork.Clock
	newGate  GateFactory
	onExpire OnExpire
	log      logrus.FieldLogger
}

func NewStore(ttl time.Duration, clock clockwork.Clock, newGate GateFactory, onExpire OnExpire, log logrus.FieldLogger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clock,
		newGate:  newGate,
		onExpire: onExpire,
		log:      log,
	}
}

// Get returns the live session for id and marks it as seen.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.lastSeen = st.clock.Now()
	s.mu.Unlock()
	return s, true
}

// Create starts a session in the loading phase. The caller reads the theme
// preference and then calls Gate.Ready.
func (st *Store) Create(visitorID uuid.UUID) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		Gate:      st.newGate(),
		lastSeen:  st.clock.Now(),
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than the TTL.
func (st *Store) Sweep(ctx context.Context) int {
	cutoff := st.clock.Now().Add(-st.ttl)
	var expired []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.Gate.Close()
		if st.onExpire != nil {
			st.onExpire(ctx, s)
		}
	}
	if len(expired) > 0 {
		st.log.WithField("expired", len(expired)).Debug("sessions swept")
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is done.
func (st *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := st.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			st.Sweep(ctx)
		}
	}
}
