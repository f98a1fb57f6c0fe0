// Package events delivers push notifications to players.
package events

import (
	"context"

	"github.com/mcoot/battleship/internal/model"
)

// Publisher delivers an event to its recipient. Delivery is best effort:
// recipients treat events as hints and re-read authoritative state.
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish does nothing
func (NopPublisher) Publish(ctx context.Context, event model.Event) error {
	return nil
}

var _ Publisher = NopPublisher{}
