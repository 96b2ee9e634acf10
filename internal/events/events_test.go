package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func receive(t *testing.T, ch chan []byte) Event {
	t.Helper()
	select {
	case data := <-ch:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBrokerFanOutByRoom(t *testing.T) {
	b := NewBroker(slog.Default())
	a1 := b.Subscribe("room-a")
	a2 := b.Subscribe("room-a")
	other := b.Subscribe("room-b")

	b.Publish(context.Background(), "room-a", RoundRevealed, map[string]int{"roundNumber": 1})

	for _, ch := range []chan []byte{a1, a2} {
		ev := receive(t, ch)
		if ev.Type != RoundRevealed || ev.RoomID != "room-a" {
			t.Errorf("unexpected event %+v", ev)
		}
	}
	select {
	case <-other:
		t.Error("room-b subscriber received room-a event")
	default:
	}

	b.Unsubscribe("room-a", a1)
	b.Unsubscribe("room-a", a2)
	if n := b.Subscribers("room-a"); n != 0 {
		t.Errorf("expected no subscribers, got %d", n)
	}
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker(slog.Default())
	ch := b.Subscribe("r")
	for i := 0; i < 40; i++ {
		b.Publish(context.Background(), "r", AnswerSubmitted, nil)
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected buffer to be full at %d, got %d", cap(ch), len(ch))
	}
}

func TestRedisRelay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := NewBroker(slog.Default())
	relay := NewRelay(rdb, broker, slog.Default())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case <-relay.Ready():
	case err := <-done:
		t.Fatalf("relay stopped early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}

	sub := broker.Subscribe("room-1")
	pub := NewRedisPublisher(rdb, broker, slog.Default())
	pub.Publish(ctx, "room-1", MatchFinished, map[string]string{"winner": "ana"})

	ev := receive(t, sub)
	if ev.Type != MatchFinished || ev.RoomID != "room-1" {
		t.Fatalf("unexpected event %+v", ev)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("relay returned %v", err)
	}
}

func TestRedisPublisherFallsBackToLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	broker := NewBroker(slog.Default())
	sub := broker.Subscribe("room-1")
	NewRedisPublisher(rdb, broker, slog.Default()).Publish(context.Background(), "room-1", ParticipantJoined, nil)

	if ev := receive(t, sub); ev.Type != ParticipantJoined {
		t.Fatalf("unexpected event %+v", ev)
	}
}
