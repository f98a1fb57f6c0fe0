package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mcoot/battleship/internal/events"
	"github.com/mcoot/battleship/internal/model"
)

// EventPayload is the JSON body of a pushed event
type EventPayload struct {
	Type        string    `json:"type"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	State       string    `json:"state,omitempty"`
	Version     int64     `json:"version,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// PayloadFromEvent converts a domain event to its wire form
func PayloadFromEvent(e model.Event) EventPayload {
	return EventPayload{
		Type:        string(e.Type),
		ChallengeID: string(e.ChallengeID),
		SessionID:   string(e.SessionID),
		State:       string(e.State),
		Version:     e.Version,
		Timestamp:   e.Timestamp,
	}
}

// Broadcaster delivers events to the push streams connected to this instance
type Broadcaster struct {
	hubManager *HubManager
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hubManager *HubManager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		hubManager: hubManager,
		logger:     logger.With(slog.String("component", "push-broadcaster")),
	}
}

// Publish sends the event to every stream of its recipient. A recipient with no
// open stream simply misses it.
func (b *Broadcaster) Publish(ctx context.Context, event model.Event) error {
	hub := b.hubManager.GetHub(event.Recipient)
	if hub == nil {
		return nil
	}

	data, err := json.Marshal(PayloadFromEvent(event))
	if err != nil {
		b.logger.Error("push failed to encode event",
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
		return err
	}
	hub.Broadcast(Frame{Event: string(event.Type), Data: data})
	return nil
}

var _ events.Publisher = (*Broadcaster)(nil)
