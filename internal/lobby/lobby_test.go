package lobby

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/events"
	"github.com/playperu/triviabattle/internal/presence"
	"github.com/playperu/triviabattle/internal/store"
	"github.com/playperu/triviabattle/internal/store/storetest"
)

type fixture struct {
	store    *store.SQLStore
	broker   *events.Broker
	registry *Registry
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := storetest.New(t)
	broker := events.NewBroker(slog.Default())
	reg := NewRegistry(s, broker, presence.NewMemoryTracker(time.Minute), slog.Default())
	return fixture{store: s, broker: broker, registry: reg}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if !battle.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreateRoomDefaultsAndHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := storetest.Session(t, f.store, "Ana")

	room, p, err := f.registry.CreateRoom(ctx, CreateParams{HostSessionID: host.ID, Mode: battle.ModeTeam})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(room.Code) != codeLength || room.Status != battle.RoomWaiting {
		t.Errorf("unexpected room %+v", room)
	}
	if room.Language != "en" || room.QuestionType != battle.OpenEnded || room.Capacity != 8 {
		t.Errorf("defaults not applied: %+v", room)
	}
	if !p.IsHost || p.DisplayName != "Ana" || p.TeamID == nil {
		t.Errorf("unexpected host participant %+v", p)
	}

	byCode, err := f.registry.Resolve(ctx, " "+strings.ToLower(room.Code)+" ")
	if err != nil || byCode.ID != room.ID {
		t.Fatalf("resolve by code: %v, %+v", err, byCode)
	}
	_, err = f.registry.Resolve(ctx, "nope")
	wantCode(t, err, "ROOM_NOT_FOUND")
}

func TestCreateRoomRetriesCodeCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := storetest.Session(t, f.store, "Ana")

	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	f.registry.newCode = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, _, err := f.registry.CreateRoom(ctx, CreateParams{HostSessionID: host.ID})
	if err != nil || first.Code != "AAAAAA" {
		t.Fatalf("first room: %v %q", err, first.Code)
	}
	second, _, err := f.registry.CreateRoom(ctx, CreateParams{HostSessionID: host.ID})
	if err != nil || second.Code != "BBBBBB" {
		t.Fatalf("second room should retry with a new code: %v %q", err, second.Code)
	}
}

func TestCreateRoomRequiresSession(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.registry.CreateRoom(context.Background(), CreateParams{})
	wantCode(t, err, "MISSING_SESSION")
	_, _, err = f.registry.CreateRoom(context.Background(), CreateParams{HostSessionID: "ghost"})
	wantCode(t, err, "INVALID_SESSION")
}

func TestJoinIsIdempotentAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := storetest.Session(t, f.store, "Ana")
	guest := storetest.Session(t, f.store, "Luis")
	room, _, _ := f.registry.CreateRoom(ctx, CreateParams{HostSessionID: host.ID, Capacity: 2})

	sub := f.broker.Subscribe(room.ID)
	defer f.broker.Unsubscribe(room.ID, sub)

	first, created, err := f.registry.Join(ctx, room.Code, guest.ID, "", "")
	if err != nil || !created {
		t.Fatalf("first join: created=%v err=%v", created, err)
	}
	if first.DisplayName != "Luis" {
		t.Errorf("expected session name, got %q", first.DisplayName)
	}
	second, created, err := f.registry.Join(ctx, room.ID, guest.ID, "Lucho", "")
	if err != nil || created {
		t.Fatalf("second join: created=%v err=%v", created, err)
	}
	if second.ID != first.ID || second.DisplayName != "Lucho" {
		t.Errorf("expected same participant renamed, got %+v", second)
	}

	var ev events.Event
	for i := 0; i < 2; i++ {
		select {
		case data := <-sub:
			json.Unmarshal(data, &ev)
		case <-time.After(time.Second):
			t.Fatal("missing participant_joined event")
		}
		if ev.Type != events.ParticipantJoined {
			t.Errorf("unexpected event %q", ev.Type)
		}
	}

	late := storetest.Session(t, f.store, "Rosa")
	_, _, err = f.registry.Join(ctx, room.ID, late.ID, "", "")
	wantCode(t, err, "ROOM_FULL")

	a, err := f.registry.Availability(ctx, room.Code)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if a.Joinable || a.Reason != "ROOM_FULL" || a.Participants != 2 || a.RecentConnections != 2 {
		t.Errorf("unexpected availability %+v", a)
	}
}

func TestJoinAfterStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := storetest.Session(t, f.store, "Ana")
	guest := storetest.Session(t, f.store, "Luis")
	room, _, _ := f.registry.CreateRoom(ctx, CreateParams{HostSessionID: host.ID})

	if ok, err := f.store.ActivateRoom(ctx, room.ID, 3, time.Now()); err != nil || !ok {
		t.Fatalf("activate: %v", err)
	}
	_, _, err := f.registry.Join(ctx, room.ID, guest.ID, "", "")
	wantCode(t, err, "ROOM_ALREADY_STARTED")

	a, _ := f.registry.Availability(ctx, room.ID)
	if a.Joinable || a.Reason != "ROOM_ALREADY_STARTED" {
		t.Errorf("unexpected availability %+v", a)
	}

	// The host can still reconnect.
	if _, created, err := f.registry.Join(ctx, room.ID, host.ID, "", ""); err != nil || created {
		t.Fatalf("host rejoin: created=%v err=%v", created, err)
	}

	_, err = f.registry.SetReady(ctx, room.ID, host.ID, true)
	wantCode(t, err, "ROOM_ALREADY_STARTED")
}

func TestReadyAndLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := storetest.Session(t, f.store, "Ana")
	guest := storetest.Session(t, f.store, "Luis")
	outsider := storetest.Session(t, f.store, "Eve")
	room, _, _ := f.registry.CreateRoom(ctx, CreateParams{HostSessionID: host.ID})
	f.registry.Join(ctx, room.ID, guest.ID, "", "")

	p, err := f.registry.SetReady(ctx, room.ID, guest.ID, true)
	if err != nil || !p.Ready {
		t.Fatalf("set ready: %v %+v", err, p)
	}
	_, err = f.registry.SetReady(ctx, room.ID, outsider.ID, true)
	wantCode(t, err, "NOT_PARTICIPANT")

	if err := f.registry.Leave(ctx, room.ID, guest.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got, _ := f.store.GetParticipant(ctx, room.ID, guest.ID)
	if got.ConnectionStatus != battle.Offline {
		t.Errorf("expected offline, got %s", got.ConnectionStatus)
	}
	wantCode(t, f.registry.Leave(ctx, room.ID, outsider.ID), "NOT_PARTICIPANT")
}

func TestCreateRoomBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	host := storetest.Session(t, f.store, "Ana")

	tests := []struct {
		name    string
		params  CreateParams
		wantErr string
	}{
		{"capacity one", CreateParams{Capacity: 1}, ""},
		{"capacity max", CreateParams{Capacity: MaxCapacity}, ""},
		{"capacity over", CreateParams{Capacity: MaxCapacity + 1}, "capacity"},
		{"capacity negative", CreateParams{Capacity: -1}, "capacity"},
		{"questions max", CreateParams{NumQuestions: MaxQuestions}, ""},
		{"questions over", CreateParams{NumQuestions: MaxQuestions + 1}, "numQuestions"},
		{"round time min", CreateParams{RoundTimeSec: MinRoundTimeSec}, ""},
		{"round time under", CreateParams{RoundTimeSec: MinRoundTimeSec - 1}, "roundTimeSec"},
		{"round time max", CreateParams{RoundTimeSec: MaxRoundTimeSec}, ""},
		{"round time over", CreateParams{RoundTimeSec: MaxRoundTimeSec + 1}, "roundTimeSec"},
		{"unknown type", CreateParams{QuestionType: "essay"}, "questionType"},
		{"unknown difficulty", CreateParams{Difficulty: "brutal"}, "difficulty"},
		{"unknown mode", CreateParams{Mode: "duel"}, "battleMode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.HostSessionID = host.ID
			room, _, err := f.registry.CreateRoom(ctx, tt.params)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if room.ID == "" {
					t.Fatal("room not created")
				}
				return
			}
			wantCode(t, err, "VALIDATION_ERROR")
			e, _ := battle.AsError(err)
			if _, ok := e.Details[tt.wantErr]; !ok {
				t.Errorf("details %v missing %q", e.Details, tt.wantErr)
			}
		})
	}
}
