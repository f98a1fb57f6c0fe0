package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/battleship/internal/model"
)

// DefaultChannel is the redis channel events are relayed on
const DefaultChannel = "bship:events"

// RedisRelay fans events out across server instances.
// Publish sends to a redis channel; Run delivers everything received on it locally.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   Publisher
	logger  *slog.Logger
}

// NewRedisRelay creates a relay that forwards received events to local
func NewRedisRelay(client *redis.Client, channel string, local Publisher, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.With(slog.String("component", "event-relay"), slog.String("channel", channel)),
	}
}

// Publish sends the event to every subscribed instance, this one included
func (r *RedisRelay) Publish(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run subscribes and forwards events until ctx is cancelled
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()

	// Wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.Info("event relay subscribed")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event relay stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("event relay dropped malformed message", slog.Any("error", err))
				continue
			}
			if err := r.local.Publish(ctx, event); err != nil {
				r.logger.Warn("event relay local delivery failed",
					slog.String("type", string(event.Type)),
					slog.Any("error", err))
			}
		}
	}
}

var _ Publisher = (*RedisRelay)(nil)
