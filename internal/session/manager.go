package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CreateOptions select what a new session plays.
type CreateOptions struct {
	Script    string `json:"script"`
	Character string `json:"character,omitempty"`
	Profile   string `json:"profile,omitempty"`
}

// DepsFunc builds the collaborators for a new session.
type DepsFunc func(ctx context.Context, opts CreateOptions) (Deps, error)

type managed struct {
	session  *Session
	lastUsed time.Time
}

// Manager keeps the live sessions of a process. Sessions not looked up for
// longer than the idle TTL are closed by Sweep.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*managed
	build    DepsFunc
	idleTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type ManagerOption func(*Manager)

// WithIdleTTL sets how long an unused session survives. Zero keeps sessions
// until they are deleted.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTTL = d }
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewManager(build DepsFunc, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[uuid.UUID]*managed),
		build:    build,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	deps, err := m.build(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session: %w", err)
	}
	s, err := New(deps, uuid.New())
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = &managed{session: s, lastUsed: m.now()}
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = m.now()
	return e.session, true
}

// Delete closes and forgets a session. It reports whether it existed.
func (m *Manager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		e.session.Close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	var expired []*Session
	m.mu.Lock()
	for id, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.logger.Info("Session expired", "session_id", s.ID.String())
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Idle sessions swept", "count", n, "remaining", m.Len())
			}
		}
	}
}

// CloseAll stops every session's timers. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		e.session.Close()
		delete(m.sessions, id)
	}
}
