package testutil

import (
	"context"
	"sync"

	"github.com/freelanceflow/freelanceflow/internal/publisher"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/samber/lo"
)

// InMemoryEventPublisher records published billing events for assertions
type InMemoryEventPublisher struct {
	mu     sync.RWMutex
	events []*publisher.Event
}

var _ publisher.EventPublisher = (*InMemoryEventPublisher)(nil)

func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{
		events: make([]*publisher.Event, 0),
	}
}

func (p *InMemoryEventPublisher) Publish(_ context.Context, event *publisher.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns every event published so far, oldest first
func (p *InMemoryEventPublisher) Events() []*publisher.Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*publisher.Event(nil), p.events...)
}

// EventsNamed returns the published events with the given name
func (p *InMemoryEventPublisher) EventsNamed(name types.BillingEventName) []*publisher.Event {
	return lo.Filter(p.Events(), func(e *publisher.Event, _ int) bool {
		return e.EventName == name
	})
}

func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make([]*publisher.Event, 0)
}
