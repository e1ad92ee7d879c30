// Package sessions keeps per-conversation state: message history, the
// one-turn-at-a-time lock, skill activation, and idle expiry.
package sessions

import (
	"sync"

	"github.com/pe200012/llmq-horizon/pkg/models"
)

// History stores the message transcript for each thread.
type History interface {
	// Append adds msgs to the thread's transcript.
	Append(threadID string, msgs ...*models.Message) error
	// Messages returns the thread's transcript, oldest first.
	Messages(threadID string) ([]*models.Message, error)
	// Clear removes the thread's transcript.
	Clear(threadID string) error
}

// MemoryHistory is an in-memory History bounded to maxPerThread messages
// per thread. Older messages fall off the front.
type MemoryHistory struct {
	mu           sync.Mutex
	threads      map[string][]*models.Message
	maxPerThread int
}

// NewMemoryHistory creates a MemoryHistory keeping at most maxPerThread
// messages per thread. A non-positive cap keeps everything.
func NewMemoryHistory(maxPerThread int) *MemoryHistory {
	return &MemoryHistory{
		threads:      make(map[string][]*models.Message),
		maxPerThread: maxPerThread,
	}
}

func (h *MemoryHistory) Append(threadID string, msgs ...*models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.threads[threadID], msgs...)
	if h.maxPerThread > 0 && len(list) > h.maxPerThread {
		list = list[len(list)-h.maxPerThread:]
	}
	h.threads[threadID] = list
	return nil
}

func (h *MemoryHistory) Messages(threadID string) ([]*models.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.threads[threadID]
	out := make([]*models.Message, len(list))
	copy(out, list)
	return out, nil
}

func (h *MemoryHistory) Clear(threadID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.threads, threadID)
	return nil
}
