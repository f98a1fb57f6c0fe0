package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/battleship/internal/model"
)

// MockPublisher records published events
type MockPublisher struct {
	mu     sync.Mutex
	events []model.Event

	// Err is returned from Publish when set
	Err error
}

// NewMockPublisher creates a new MockPublisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the event
func (p *MockPublisher) Publish(ctx context.Context, event model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Events returns a copy of everything published so far
func (p *MockPublisher) Events() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsFor returns the events addressed to one player
func (p *MockPublisher) EventsFor(playerID model.PlayerID) []model.Event {
	var out []model.Event
	for _, e := range p.Events() {
		if e.Recipient == playerID {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets recorded events
func (p *MockPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
