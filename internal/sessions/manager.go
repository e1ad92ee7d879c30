package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pe200012/llmq-horizon/internal/config"
	"github.com/pe200012/llmq-horizon/internal/observability"
)

// ErrBusy is returned by AcquireTurn when another turn already holds the
// session.
var ErrBusy = errors.New("session busy")

// Manager owns the session store. It creates sessions on demand, sweeps
// idle ones, and hands out turn slots.
type Manager struct {
	mu        sync.Mutex
	store     map[string]*Session
	lastSweep time.Time

	cfg           config.SessionConfig
	defaultSkills []string
	logger        *slog.Logger
	metrics       *observability.Metrics

	now func() time.Time
}

// NewManager creates a session manager. metrics may be nil.
func NewManager(cfg config.SessionConfig, defaultSkills []string, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:         make(map[string]*Session),
		cfg:           cfg,
		defaultSkills: defaultSkills,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// GetOrCreate returns the session for threadID, creating it if absent, and
// refreshes its last-access time. When a full sweep interval has elapsed
// since the last sweep, expired sessions are evicted first.
func (m *Manager) GetOrCreate(threadID string) *Session {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastSweep.IsZero() {
		m.lastSweep = now
	} else if now.Sub(m.lastSweep) > m.cfg.CleanupInterval {
		m.sweepLocked(now)
		m.lastSweep = now
	}

	s, ok := m.store[threadID]
	if !ok {
		s = newSession(threadID, m.defaultSkills, now)
		m.store[threadID] = s
		m.logger.Debug("session created", "thread_id", threadID)
		m.setGauge()
	}
	s.Refresh(now)
	return s
}

// Sweep evicts every session idle longer than the cleanup interval. It
// returns the number of sessions removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := m.sweepLocked(now)
	m.lastSweep = now
	return removed
}

func (m *Manager) sweepLocked(now time.Time) int {
	removed := 0
	for id, s := range m.store {
		if s.Expired(now, m.cfg.CleanupInterval) {
			delete(m.store, id)
			removed++
			m.countRemoval("expired")
		}
	}
	if removed > 0 {
		m.logger.Info("session sweep", "removed", removed, "remaining", len(m.store))
		m.setGauge()
	}
	return removed
}

// AcquireTurn claims the session's single turn slot. It returns ErrBusy
// when another turn holds the slot and has not exceeded the processing
// timeout. A holder past the timeout is presumed dead: its slot is
// reclaimed and the session generation advances so its late results get
// discarded.
func (m *Manager) AcquireTurn(ctx context.Context, s *Session) (*Turn, error) {
	now := m.now()

	started := s.processingSince()
	if s.reclaimIfTimedOut(now, m.cfg.ProcessingTimeout) {
		m.logger.Warn("reclaimed stuck turn",
			"thread_id", s.ThreadID,
			"held_for", now.Sub(started).Round(time.Second))
	}

	timer := time.NewTimer(m.cfg.LockTimeout)
	defer timer.Stop()

	select {
	case s.lock <- struct{}{}:
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	gen := s.beginProcessing(m.now())
	return &Turn{session: s, generation: gen, now: m.now}, nil
}

// Remove drops the session for threadID from the store.
func (m *Manager) Remove(threadID string, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.store[threadID]; !ok {
		return false
	}
	delete(m.store, threadID)
	m.logger.Debug("session removed", "thread_id", threadID, "reason", reason)
	m.countRemoval(reason)
	m.setGauge()
	return true
}

// Clear empties the whole store. It returns the number of sessions removed.
func (m *Manager) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.store)
	m.store = make(map[string]*Session)
	for i := 0; i < n; i++ {
		m.countRemoval("cleared")
	}
	m.setGauge()
	return n
}

// RemoveWhere drops every session whose thread id satisfies pred. Used when
// the group isolation mode flips and old-shape thread ids become orphans.
func (m *Manager) RemoveWhere(pred func(threadID string) bool, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id := range m.store {
		if pred(id) {
			delete(m.store, id)
			removed++
			m.countRemoval(reason)
		}
	}
	if removed > 0 {
		m.setGauge()
	}
	return removed
}

// Len returns the current session count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

func (m *Manager) setGauge() {
	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(len(m.store)))
	}
}

func (m *Manager) countRemoval(reason string) {
	if m.metrics != nil {
		m.metrics.SessionRemovals.WithLabelValues(reason).Inc()
	}
}

// Turn is a claimed turn slot. Callers must Release it on every path.
type Turn struct {
	session    *Session
	generation uint64
	now        func() time.Time
	once       sync.Once
}

// Session returns the session this turn runs against.
func (t *Turn) Session() *Session { return t.session }

// Stale reports whether the slot was reclaimed while this turn ran. A stale
// turn's results must not be committed or sent.
func (t *Turn) Stale() bool {
	return t.session.Generation() != t.generation
}

// Release frees the turn slot. It is idempotent, and a no-op when the slot
// was already reclaimed from a timed-out holder.
func (t *Turn) Release() {
	t.once.Do(func() {
		t.session.finishTurn(t.generation, t.now())
	})
}
