package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTrackers(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		make func(t *testing.T, c *clock) Tracker
	}{
		{
			name: "memory",
			make: func(_ *testing.T, c *clock) Tracker {
				tr := NewMemoryTracker(time.Minute)
				tr.now = c.now
				return tr
			},
		},
		{
			name: "redis",
			make: func(t *testing.T, c *clock) Tracker {
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { rdb.Close() })
				tr := NewRedisTracker(rdb, time.Minute)
				tr.now = c.now
				return tr
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: start}
			tr := tt.make(t, c)

			for _, s := range []string{"s1", "s2", "s1"} {
				if err := tr.Touch(ctx, "room", s); err != nil {
					t.Fatalf("touch %s: %v", s, err)
				}
			}
			if n, _ := tr.Count(ctx, "room"); n != 2 {
				t.Fatalf("expected 2 recent connections, got %d", n)
			}
			if n, _ := tr.Count(ctx, "other"); n != 0 {
				t.Fatalf("expected empty room, got %d", n)
			}

			c.t = start.Add(40 * time.Second)
			tr.Touch(ctx, "room", "s2")
			c.t = start.Add(90 * time.Second)
			if n, _ := tr.Count(ctx, "room"); n != 1 {
				t.Fatalf("expected s1 to expire, got %d", n)
			}

			tr.Forget(ctx, "room", "s2")
			if n, _ := tr.Count(ctx, "room"); n != 0 {
				t.Fatalf("expected 0 after forget, got %d", n)
			}
		})
	}
}
