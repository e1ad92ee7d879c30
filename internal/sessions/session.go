package sessions

import (
	"sync"
	"time"
)

// Session is the per-thread conversation state. At most one turn may run
// against a session at a time; the 1-slot lock channel enforces that, and
// the processing flag lets the manager reclaim a slot whose holder never
// released it.
type Session struct {
	ThreadID string

	lock chan struct{}

	mu              sync.Mutex
	processing      bool
	processingStart time.Time
	lastAccessed    time.Time
	activeSkills    []string
	generation      uint64
}

func newSession(threadID string, defaultSkills []string, now time.Time) *Session {
	s := &Session{
		ThreadID:     threadID,
		lock:         make(chan struct{}, 1),
		lastAccessed: now,
	}
	for _, name := range defaultSkills {
		s.LoadSkill(name)
	}
	return s
}

// Refresh marks the session as recently used.
func (s *Session) Refresh(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = now
}

// Expired reports whether the session has been idle longer than ttl.
// A session with a turn in flight is never expired.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return false
	}
	return now.Sub(s.lastAccessed) > ttl
}

// Generation returns the session's current turn generation. It advances
// whenever a stuck turn is forcibly reclaimed; results produced under an
// older generation must be discarded.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) beginProcessing(now time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = true
	s.processingStart = now
	s.lastAccessed = now
	return s.generation
}

// finishTurn releases a turn taken at generation gen. If the slot was
// reclaimed in the meantime this is a no-op: the reclaim already freed it
// and a newer turn may hold it now.
func (s *Session) finishTurn(gen uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.processing = false
	s.lastAccessed = now
	select {
	case <-s.lock:
	default:
	}
}

// reclaimIfTimedOut frees the slot of a holder that has been processing
// longer than d and advances the generation, invalidating whatever that
// holder eventually produces. The timeout check and the reclaim share a
// single critical section: a second caller that raced the first observes
// either no processing turn or a fresh one, and no-ops. It reports whether
// a reclaim happened.
func (s *Session) reclaimIfTimedOut(now time.Time, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.processing || now.Sub(s.processingStart) <= d {
		return false
	}
	s.processing = false
	s.generation++
	select {
	case <-s.lock:
	default:
	}
	return true
}

// processingSince returns when the current turn claimed the slot.
func (s *Session) processingSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processingStart
}

// LoadSkill activates a skill for this conversation. It reports false if
// the skill was already active.
func (s *Session) LoadSkill(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, active := range s.activeSkills {
		if active == name {
			return false
		}
	}
	s.activeSkills = append(s.activeSkills, name)
	return true
}

// UnloadSkill deactivates a skill. It reports false if the skill was not
// active.
func (s *Session) UnloadSkill(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, active := range s.activeSkills {
		if active == name {
			s.activeSkills = append(s.activeSkills[:i], s.activeSkills[i+1:]...)
			return true
		}
	}
	return false
}

// ActiveSkills returns the skills active for this conversation, in
// activation order.
func (s *Session) ActiveSkills() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.activeSkills))
	copy(out, s.activeSkills)
	return out
}
