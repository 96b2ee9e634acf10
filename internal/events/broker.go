package events

import (
	"context"
	"log/slog"
	"sync"
)

// Broker is an in-process pub/sub for room events, keyed by room ID.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[chan []byte]struct{}),
		logger: logger,
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the room.
func (b *Broker) Subscribe(roomID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[chan []byte]struct{})
	}
	b.subs[roomID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the room's subscribers.
func (b *Broker) Unsubscribe(roomID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[roomID], ch)
	if len(b.subs[roomID]) == 0 {
		delete(b.subs, roomID)
	}
	b.mu.Unlock()
}

// Subscribers reports how many local subscribers the room has.
func (b *Broker) Subscribers(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[roomID])
}

// Publish encodes the event and delivers it to local subscribers.
func (b *Broker) Publish(_ context.Context, roomID, typ string, payload any) {
	data, err := encode(roomID, typ, payload)
	if err != nil {
		b.logger.Error("encoding event", "room_id", roomID, "type", typ, "error", err)
		return
	}
	b.Deliver(roomID, data)
}

// Deliver sends an already encoded event to all subscribers of the room.
func (b *Broker) Deliver(roomID string, data []byte) {
	b.mu.RLock()
	for ch := range b.subs[roomID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
