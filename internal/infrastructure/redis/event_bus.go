package redis

import (
	"context"
	"encoding/json"

	"collabflow/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Channel names for the real-time transport collaborator. Connected clients
// subscribe to these to render updates without a follow-up query.
const (
	channelSessionRestored      = "collab:events:session_restored"
	channelConflictDetected     = "collab:events:conflict_detected"
	channelConflictResolved     = "collab:events:conflict_resolved"
	channelCheckpointCreated    = "collab:events:checkpoint_created"
	channelDecisionVersionAdded = "collab:events:decision_version_added"
)

type RedisEventBus struct {
	client *redis.Client
}

func NewRedisEventBus(client *redis.Client) *RedisEventBus {
	return &RedisEventBus{client: client}
}

func (b *RedisEventBus) publish(ctx context.Context, channel string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisEventBus) PublishSessionRestored(ctx context.Context, ev domain.SessionRestoredEvent) error {
	return b.publish(ctx, channelSessionRestored, ev)
}

func (b *RedisEventBus) PublishConflictDetected(ctx context.Context, ev domain.ConflictDetectedEvent) error {
	return b.publish(ctx, channelConflictDetected, ev)
}

func (b *RedisEventBus) PublishConflictResolved(ctx context.Context, ev domain.ConflictResolvedEvent) error {
	return b.publish(ctx, channelConflictResolved, ev)
}

func (b *RedisEventBus) PublishCheckpointCreated(ctx context.Context, ev domain.CheckpointCreatedEvent) error {
	return b.publish(ctx, channelCheckpointCreated, ev)
}

func (b *RedisEventBus) PublishDecisionVersionAdded(ctx context.Context, ev domain.DecisionVersionAddedEvent) error {
	return b.publish(ctx, channelDecisionVersionAdded, ev)
}

// SubscribeConflictDetected opens a continuous stream of detection events,
// forwarded to a Go channel until ctx is cancelled. Used by transport-side
// consumers; the core only publishes.
func (b *RedisEventBus) SubscribeConflictDetected(ctx context.Context) (<-chan domain.ConflictDetectedEvent, error) {
	pubsub := b.client.Subscribe(ctx, channelConflictDetected)

	msgChan := make(chan domain.ConflictDetectedEvent)
	go func() {
		defer close(msgChan)
		defer pubsub.Close()
		for {
			msg, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			var event domain.ConflictDetectedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err == nil {
				select {
				case msgChan <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return msgChan, nil
}
