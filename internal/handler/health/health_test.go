package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/playperu/triviabattle/internal/handler/health"
	"github.com/playperu/triviabattle/internal/store/storetest"
)

func failing(msg string) health.Checker {
	return health.CheckFunc(func(context.Context) error { return errors.New(msg) })
}

func serve(t *testing.T, checks map[string]health.Checker) (int, map[string]string) {
	t.Helper()
	h := health.NewHandler(slog.Default(), checks)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	var body map[string]struct{ Status string }
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	got := make(map[string]string, len(body))
	for name, r := range body {
		got[name] = r.Status
	}
	return rec.Code, got
}

func TestHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	redisUp := health.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

	db := storetest.New(t)
	dbUp := health.CheckFunc(db.Ping)

	tests := []struct {
		name       string
		checks     map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]health.Checker{"database": dbUp, "redis": redisUp},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name:       "redis not configured",
			checks:     map[string]health.Checker{"database": dbUp, "redis": nil},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"database": "ok", "redis": "disabled"},
		},
		{
			name:       "database down",
			checks:     map[string]health.Checker{"database": failing("locked"), "redis": redisUp},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"database": "error", "redis": "ok"},
		},
		{
			name:       "both down",
			checks:     map[string]health.Checker{"database": failing("db"), "redis": failing("cache")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"database": "error", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serve(t, tt.checks)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			for name, want := range tt.wantBody {
				if got := body[name]; got != want {
					t.Errorf("%s status = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestHandlerReportsRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	checks := map[string]health.Checker{
		"redis": health.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}

	if status, _ := serve(t, checks); status != http.StatusOK {
		t.Fatalf("status before outage = %d", status)
	}
	mr.Close()
	if status, body := serve(t, checks); status != http.StatusServiceUnavailable || body["redis"] != "error" {
		t.Fatalf("after outage: status %d body %v", status, body)
	}
}
