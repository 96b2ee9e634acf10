package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/database"
	"github.com/playperu/triviabattle/internal/migrations"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "battle.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s, err := New(db, database.DriverSQLite)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustSession(t *testing.T, s *SQLStore, name string) battle.Session {
	t.Helper()
	sess, err := s.UpsertSession(context.Background(), "fp-"+name, name)
	if err != nil {
		t.Fatalf("upsert session %s: %v", name, err)
	}
	return sess
}

func mustRoom(t *testing.T, s *SQLStore, host battle.Session, mode battle.BattleMode, capacity int) battle.Room {
	t.Helper()
	room := battle.Room{
		ID:            newID(),
		Code:          newID()[:6],
		HostSessionID: host.ID,
		Capacity:      capacity,
		Language:      "en",
		Topic:         "geography",
		NumQuestions:  3,
		RoundTimeSec:  20,
		QuestionType:  battle.OpenEnded,
		Difficulty:    "easy",
		Mode:          mode,
	}
	room, err := s.CreateRoom(context.Background(), room, battle.Participant{
		ID: newID(), SessionID: host.ID, DisplayName: host.DisplayName,
	})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return room
}

func mustJoin(t *testing.T, s *SQLStore, room battle.Room, sess battle.Session) battle.Participant {
	t.Helper()
	p, _, err := s.JoinRoom(context.Background(), JoinParams{
		ID: newID(), RoomID: room.ID, SessionID: sess.ID, DisplayName: sess.DisplayName,
	}, room.Capacity)
	if err != nil {
		t.Fatalf("join %s: %v", sess.DisplayName, err)
	}
	return p
}

func openQuestion(prompt, answer string) battle.Question {
	return &battle.OpenEndedQuestion{
		QuestionBase: battle.QuestionBase{Prompt: prompt, Difficulty: 1, Language: "en"},
		Answer:       answer,
	}
}

func mustRounds(t *testing.T, s *SQLStore, room battle.Room, n int) {
	t.Helper()
	rounds := make([]battle.Round, n)
	for i := range rounds {
		rounds[i] = battle.Round{
			ID:       newID(),
			RoomID:   room.ID,
			Number:   i + 1,
			Question: openQuestion(fmt.Sprintf("Q%d", i+1), "lima"),
		}
	}
	if err := s.CreateRounds(context.Background(), rounds); err != nil {
		t.Fatalf("create rounds: %v", err)
	}
}

func TestRebind(t *testing.T) {
	got := postgresDialect.rebind(`SELECT a FROM t WHERE x = ? AND y IN (?, ?)`)
	want := `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	if q := sqliteDialect.rebind(`x = ?`); q != `x = ?` {
		t.Errorf("sqlite rebind changed query: %q", q)
	}
}

func TestUpsertSessionRefreshesName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertSession(ctx, "hash-1", "Ana")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := s.UpsertSession(ctx, "hash-1", "Ana Maria")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected same session id, got %s and %s", first.ID, second.ID)
	}
	got, err := s.GetSession(ctx, first.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.DisplayName != "Ana Maria" {
		t.Errorf("expected refreshed name, got %q", got.DisplayName)
	}
	if _, err := s.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinRoomIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	host := mustSession(t, s, "host")
	guest := mustSession(t, s, "guest")
	room := mustRoom(t, s, host, battle.ModeIndividual, 4)

	first, created, err := s.JoinRoom(ctx, JoinParams{ID: newID(), RoomID: room.ID, SessionID: guest.ID, DisplayName: "Guest"}, 4)
	if err != nil || !created {
		t.Fatalf("first join: created=%v err=%v", created, err)
	}
	if err := s.SetConnectionStatus(ctx, room.ID, guest.ID, battle.Offline); err != nil {
		t.Fatalf("set offline: %v", err)
	}

	second, created, err := s.JoinRoom(ctx, JoinParams{ID: newID(), RoomID: room.ID, SessionID: guest.ID, DisplayName: "Guest 2"}, 4)
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if created {
		t.Error("expected second join to update, not create")
	}
	if second.ID != first.ID {
		t.Errorf("expected same participant id %s, got %s", first.ID, second.ID)
	}
	if second.DisplayName != "Guest 2" || second.ConnectionStatus != battle.Online {
		t.Errorf("expected refreshed name and online status, got %+v", second)
	}

	participants, err := s.ListParticipants(ctx, room.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(participants))
	}
	if !participants[0].IsHost || participants[1].IsHost {
		t.Errorf("expected only the creator to be host: %+v", participants)
	}
}

func TestJoinRoomCapacityAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	host := mustSession(t, s, "host")
	room := mustRoom(t, s, host, battle.ModeIndividual, 2)
	mustJoin(t, s, room, mustSession(t, s, "g1"))

	late := mustSession(t, s, "g2")
	_, _, err := s.JoinRoom(ctx, JoinParams{ID: newID(), RoomID: room.ID, SessionID: late.ID, DisplayName: "g2"}, room.Capacity)
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}

	// Existing members may still rejoin a full room.
	if _, created, err := s.JoinRoom(ctx, JoinParams{ID: newID(), RoomID: room.ID, SessionID: host.ID, DisplayName: "host"}, room.Capacity); err != nil || created {
		t.Fatalf("host rejoin: created=%v err=%v", created, err)
	}

	room2 := mustRoom(t, s, host, battle.ModeIndividual, 4)
	if ok, err := s.ActivateRoom(ctx, room2.ID, 3, time.Now()); err != nil || !ok {
		t.Fatalf("activate: ok=%v err=%v", ok, err)
	}
	_, _, err = s.JoinRoom(ctx, JoinParams{ID: newID(), RoomID: room2.ID, SessionID: late.ID, DisplayName: "g2"}, room2.Capacity)
	if !errors.Is(err, ErrNotJoinable) {
		t.Fatalf("expected ErrNotJoinable, got %v", err)
	}

	_, _, err = s.JoinRoom(ctx, JoinParams{ID: newID(), RoomID: "nope", SessionID: late.ID, DisplayName: "g2"}, 4)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinRoomBalancesTeams(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	host := mustSession(t, s, "host")
	room := mustRoom(t, s, host, battle.ModeTeam, 6)

	teams, err := s.ListTeams(ctx, room.ID)
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(teams) != 2 || teams[0].Name != battle.TeamRed || teams[1].Name != battle.TeamBlue {
		t.Fatalf("expected red and blue teams, got %+v", teams)
	}
	teamName := map[string]string{teams[0].ID: teams[0].Name, teams[1].ID: teams[1].Name}

	hostP, err := s.GetParticipant(ctx, room.ID, host.ID)
	if err != nil {
		t.Fatalf("get host: %v", err)
	}
	if hostP.TeamID == nil || teamName[*hostP.TeamID] != battle.TeamRed {
		t.Fatalf("expected host on red, got %v", hostP.TeamID)
	}

	g1 := mustJoin(t, s, room, mustSession(t, s, "g1"))
	if g1.TeamID == nil || teamName[*g1.TeamID] != battle.TeamBlue {
		t.Errorf("expected g1 on blue, got %v", g1.TeamID)
	}

	g2sess := mustSession(t, s, "g2")
	g2, _, err := s.JoinRoom(ctx, JoinParams{ID: newID(), RoomID: room.ID, SessionID: g2sess.ID, DisplayName: "g2", PreferredTeam: battle.TeamBlue}, 6)
	if err != nil {
		t.Fatalf("join g2: %v", err)
	}
	if teamName[*g2.TeamID] != battle.TeamBlue {
		t.Errorf("expected preferred team blue, got %s", teamName[*g2.TeamID])
	}
}

func TestRevealRoundAllowsOneActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	host := mustSession(t, s, "host")
	room := mustRoom(t, s, host, battle.ModeIndividual, 4)
	mustRounds(t, s, room, 3)

	now := time.Now()
	ok, err := s.RevealRound(ctx, room.ID, 1, now, now.Add(20*time.Second))
	if err != nil || !ok {
		t.Fatalf("reveal 1: ok=%v err=%v", ok, err)
	}
	ok, err = s.RevealRound(ctx, room.ID, 2, now, now.Add(20*time.Second))
	if err != nil {
		t.Fatalf("reveal 2: %v", err)
	}
	if ok {
		t.Fatal("expected reveal of round 2 to be refused while round 1 is active")
	}
	ok, _ = s.RevealRound(ctx, room.ID, 1, now, now.Add(time.Minute))
	if ok {
		t.Fatal("expected re-reveal of an active round to be refused")
	}

	r1, err := s.GetRound(ctx, room.ID, 1)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if r1.Status != battle.RoundActive || r1.DeadlineAt == nil || r1.RevealedAt == nil {
		t.Fatalf("unexpected round 1: %+v", r1)
	}
	if got := r1.DeadlineAt.Sub(*r1.RevealedAt); got != 20*time.Second {
		t.Errorf("expected 20s window, got %v", got)
	}

	counts, err := s.CountRoundsByStatus(ctx, room.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[battle.RoundActive] != 1 || counts[battle.RoundPending] != 2 {
		t.Errorf("unexpected counts %v", counts)
	}

	if err := s.CreateRounds(ctx, []battle.Round{{ID: newID(), RoomID: room.ID, Number: 1, Question: openQuestion("dup", "x")}}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate round number, got %v", err)
	}
}

func TestCloseRoundCreditsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	host := mustSession(t, s, "host")
	guest := mustSession(t, s, "guest")
	room := mustRoom(t, s, host, battle.ModeTeam, 4)
	mustJoin(t, s, room, guest)
	mustRounds(t, s, room, 2)

	now := time.Now()
	if ok, err := s.RevealRound(ctx, room.ID, 1, now, now.Add(20*time.Second)); err != nil || !ok {
		t.Fatalf("reveal: ok=%v err=%v", ok, err)
	}
	r1, _ := s.GetRound(ctx, room.ID, 1)
	for sess, score := range map[string]int{host.ID: 180, guest.ID: 120} {
		err := s.InsertAnswer(ctx, battle.Answer{
			ID: newID(), RoundID: r1.ID, RoomID: room.ID, SessionID: sess,
			Text: "lima", IsCorrect: true, ElapsedMS: 1000, ScoreFinal: score, CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("insert answer: %v", err)
		}
	}
	dup := battle.Answer{ID: newID(), RoundID: r1.ID, RoomID: room.ID, SessionID: guest.ID, CreatedAt: now}
	if err := s.InsertAnswer(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second answer, got %v", err)
	}

	ok, err := s.CloseRoundAtomic(ctx, room.ID, 1, now)
	if err != nil || !ok {
		t.Fatalf("first close: ok=%v err=%v", ok, err)
	}
	ok, err = s.CloseRoundAtomic(ctx, room.ID, 1, now)
	if err != nil || ok {
		t.Fatalf("second close should be a no-op: ok=%v err=%v", ok, err)
	}
	ok, err = s.CloseRoundGuarded(ctx, room.ID, 1, now)
	if err != nil || ok {
		t.Fatalf("fallback after close should be a no-op: ok=%v err=%v", ok, err)
	}

	participants, _ := s.ListParticipants(ctx, room.ID)
	want := map[string]int{host.ID: 180, guest.ID: 120}
	for _, p := range participants {
		if p.TotalScore != want[p.SessionID] {
			t.Errorf("%s: expected total %d, got %d", p.DisplayName, want[p.SessionID], p.TotalScore)
		}
	}
	teams, _ := s.ListTeams(ctx, room.ID)
	sum := 0
	for _, tm := range teams {
		sum += tm.TotalScore
	}
	if sum != 300 {
		t.Errorf("expected team totals to sum to 300, got %d", sum)
	}

	if ok, err := s.MarkRoundClosed(ctx, room.ID, 1); err != nil || !ok {
		t.Fatalf("mark closed: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.MarkRoundClosed(ctx, room.ID, 1); ok {
		t.Error("expected second mark closed to be a no-op")
	}
}

func TestCloseRoundGuardedRollsBackFailedCredit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	host := mustSession(t, s, "host")
	room := mustRoom(t, s, host, battle.ModeIndividual, 4)
	mustRounds(t, s, room, 1)

	now := time.Now()
	if ok, err := s.RevealRound(ctx, room.ID, 1, now, now.Add(time.Minute)); err != nil || !ok {
		t.Fatalf("reveal: ok=%v err=%v", ok, err)
	}
	r1, _ := s.GetRound(ctx, room.ID, 1)
	err := s.InsertAnswer(ctx, battle.Answer{ID: newID(), RoundID: r1.ID, RoomID: room.ID, SessionID: host.ID, ScoreFinal: 150, CreatedAt: now})
	if err != nil {
		t.Fatalf("insert answer: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TRIGGER refuse_credit BEFORE UPDATE OF total_score ON participants
		BEGIN SELECT RAISE(ABORT, 'credit refused'); END
	`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if ok, err := s.CloseRoundGuarded(ctx, room.ID, 1, now); err == nil || ok {
		t.Fatalf("expected failed credit to fail the close: ok=%v err=%v", ok, err)
	}
	r1, _ = s.GetRound(ctx, room.ID, 1)
	if r1.Status != battle.RoundActive {
		t.Fatalf("expected round to stay active after rollback, got %s", r1.Status)
	}

	if _, err := s.db.ExecContext(ctx, `DROP TRIGGER refuse_credit`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	if ok, err := s.CloseRoundGuarded(ctx, room.ID, 1, now); err != nil || !ok {
		t.Fatalf("retry close: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.CloseRoundAtomic(ctx, room.ID, 1, now); ok {
		t.Fatal("expected atomic close to be a no-op after the guarded close")
	}

	p, _ := s.GetParticipant(ctx, room.ID, host.ID)
	if p.TotalScore != 150 {
		t.Errorf("expected 150, got %d", p.TotalScore)
	}
}

func TestRoomTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	host := mustSession(t, s, "host")
	room := mustRoom(t, s, host, battle.ModeIndividual, 4)

	if ok, _ := s.FinishRoom(ctx, room.ID, time.Now()); ok {
		t.Error("expected waiting room not to finish")
	}
	if ok, err := s.ActivateRoom(ctx, room.ID, 2, time.Now()); err != nil || !ok {
		t.Fatalf("activate: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.ActivateRoom(ctx, room.ID, 2, time.Now()); ok {
		t.Error("expected second activation to be a no-op")
	}
	got, err := s.GetRoomByCode(ctx, room.Code)
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got.Status != battle.RoomActive || got.NumQuestions != 2 || got.StartedAt == nil {
		t.Errorf("unexpected room after activation: %+v", got)
	}
	if ok, err := s.FinishRoom(ctx, room.ID, time.Now()); err != nil || !ok {
		t.Fatalf("finish: ok=%v err=%v", ok, err)
	}
}

func TestBankQuestionsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []BankQuestion{
		{Language: "en", Difficulty: 1, Prompt: "a", Answer: "a", Active: true, CreatedAt: base.Add(3 * time.Minute)},
		{Language: "en", Difficulty: 1, Prompt: "b", Answer: "b", Active: true, CreatedAt: base.Add(1 * time.Minute)},
		{Language: "en", Difficulty: 2, Prompt: "c", Answer: "c", Active: true, CreatedAt: base.Add(2 * time.Minute)},
		{Language: "en", Difficulty: 1, Prompt: "d", Answer: "d", Active: false, CreatedAt: base},
		{Language: "es", Difficulty: 1, Prompt: "e", Answer: "e", Active: true, CreatedAt: base, AcceptedAnswers: []string{"E"}},
	}
	for _, q := range seed {
		if _, err := s.CreateBankQuestion(ctx, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := s.BankQuestions(ctx, BankFilter{Language: "en", Difficulty: 1, Limit: 5})
	if err != nil {
		t.Fatalf("bank questions: %v", err)
	}
	if len(got) != 2 || got[0].Prompt != "b" || got[1].Prompt != "a" {
		t.Fatalf("expected [b a], got %+v", got)
	}

	got, _ = s.BankQuestions(ctx, BankFilter{Language: "en", Limit: 2})
	if len(got) != 2 || got[0].Prompt != "b" || got[1].Prompt != "c" {
		t.Fatalf("expected [b c] without difficulty filter, got %+v", got)
	}

	got, _ = s.BankQuestions(ctx, BankFilter{Language: "es", Limit: 5})
	if len(got) != 1 || len(got[0].AcceptedAnswers) != 1 || got[0].AcceptedAnswers[0] != "E" {
		t.Fatalf("expected accepted answers to round-trip, got %+v", got)
	}
}
