package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "battle:room:"

func channelFor(roomID string) string { return channelPrefix + roomID }

// RedisPublisher publishes events on a per-room Redis channel so that
// every instance running a Relay sees them.
type RedisPublisher struct {
	rdb    *redis.Client
	local  *Broker
	logger *slog.Logger
}

func NewRedisPublisher(rdb *redis.Client, local *Broker, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, local: local, logger: logger}
}

// Publish sends the event to Redis. If Redis refuses it, the event is
// still delivered to this instance's subscribers.
func (p *RedisPublisher) Publish(ctx context.Context, roomID, typ string, payload any) {
	data, err := encode(roomID, typ, payload)
	if err != nil {
		p.logger.Error("encoding event", "room_id", roomID, "type", typ, "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, channelFor(roomID), data).Err(); err != nil {
		p.logger.Warn("publishing event to redis", "room_id", roomID, "type", typ, "error", err)
		p.local.Deliver(roomID, data)
	}
}

// Relay forwards every room event published on Redis into the local
// broker.
type Relay struct {
	rdb    *redis.Client
	broker *Broker
	logger *slog.Logger
	ready  chan struct{}
}

func NewRelay(rdb *redis.Client, broker *Broker, logger *slog.Logger) *Relay {
	return &Relay{rdb: rdb, broker: broker, logger: logger, ready: make(chan struct{})}
}

// Ready is closed once the pattern subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Run subscribes and forwards until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribing to room events: %w", err)
	}
	close(r.ready)
	r.logger.Info("relaying room events from redis")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			roomID := strings.TrimPrefix(msg.Channel, channelPrefix)
			r.broker.Deliver(roomID, []byte(msg.Payload))
		}
	}
}
