// Package channels defines the adapter interface for messaging platforms
// and the registry that manages adapter lifecycles.
package channels

import (
	"context"

	"github.com/pe200012/llmq-horizon/pkg/models"
)

// Adapter connects one messaging platform to the bot. Implementations
// normalize inbound traffic into models.Event and deliver models.Reply
// back to the originating conversation.
type Adapter interface {
	// Start connects to the platform and begins producing events.
	Start(ctx context.Context) error

	// Stop shuts the adapter down and closes the event channel.
	Stop(ctx context.Context) error

	// Send delivers a reply to the conversation ev came from.
	Send(ctx context.Context, ev *models.Event, r *models.Reply) error

	// Events returns the inbound event stream. The channel closes when
	// the adapter stops.
	Events() <-chan *models.Event

	// Type identifies the platform.
	Type() models.ChannelType
}

// Registry holds the configured adapters.
type Registry struct {
	adapters map[models.ChannelType]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.ChannelType]Adapter)}
}

// Register adds an adapter, replacing any existing one of the same type.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Type()] = a
}

// Get returns the adapter for a channel type.
func (r *Registry) Get(t models.ChannelType) (Adapter, bool) {
	a, ok := r.adapters[t]
	return a, ok
}

// All returns every registered adapter.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// StartAll starts every adapter, stopping on the first failure.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, a := range r.adapters {
		if err := a.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops every adapter and returns the last error seen.
func (r *Registry) StopAll(ctx context.Context) error {
	var lastErr error
	for _, a := range r.adapters {
		if err := a.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
