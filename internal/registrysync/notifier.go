package registrysync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// changeMessage is published whenever an instance persists a registration.
type changeMessage struct {
	Instance string `json:"instance"`
	Version  uint64 `json:"version"`
}

// RedisNotifier fans registry changes out to other instances sharing the
// same store.
type RedisNotifier struct {
	client   *redis.Client
	channel  string
	instance string
	logger   *slog.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:   client,
		channel:  channel,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// Instance identifies this process on the channel.
func (n *RedisNotifier) Instance() string {
	return n.instance
}

func (n *RedisNotifier) Publish(ctx context.Context, version uint64) error {
	payload, err := json.Marshal(changeMessage{Instance: n.instance, Version: version})
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish registry change: %w", err)
	}
	return nil
}

// Listen calls onChange for every message published by another instance
// until ctx is done.
func (n *RedisNotifier) Listen(ctx context.Context, onChange func(ctx context.Context)) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}

	n.logger.Info("registry change listener started", "channel", n.channel, "instance", n.instance)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("registry change listener stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if n.fromPeer(msg.Payload) {
				onChange(ctx)
			}
		}
	}
}

func (n *RedisNotifier) fromPeer(payload string) bool {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		n.logger.Warn("ignoring malformed registry change message", slog.Any("error", err))
		return false
	}
	if msg.Instance == n.instance {
		return false
	}
	n.logger.Debug("registry change from peer", "instance", msg.Instance, "version", msg.Version)
	return true
}
