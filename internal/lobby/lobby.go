// Package lobby manages rooms before and around a battle: creation, joins,
// leaves, ready flags and availability checks.
package lobby

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/events"
	"github.com/playperu/triviabattle/internal/presence"
	"github.com/playperu/triviabattle/internal/store"
)

const (
	codeLength   = 6
	codeAttempts = 5
	// Ambiguous characters (0/O, 1/I) are left out so codes can be read aloud.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type Registry struct {
	store    store.Store
	events   events.Publisher
	presence presence.Tracker
	logger   *slog.Logger
	newCode  func() (string, error)
}

func NewRegistry(s store.Store, pub events.Publisher, tr presence.Tracker, logger *slog.Logger) *Registry {
	return &Registry{store: s, events: pub, presence: tr, logger: logger, newCode: newRoomCode}
}

func newRoomCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

// Room setting bounds.
const (
	MinCapacity     = 1
	MaxCapacity     = 20
	MinQuestions    = 1
	MaxQuestions    = 20
	MinRoundTimeSec = 10
	MaxRoundTimeSec = 300
)

// CreateParams are the room settings chosen by the host. Zero values fall
// back to defaults.
type CreateParams struct {
	HostSessionID string
	Capacity      int
	Language      string
	Topic         string
	NumQuestions  int
	RoundTimeSec  int
	QuestionType  battle.QuestionType
	Difficulty    string
	Mode          battle.BattleMode
}

func (p *CreateParams) applyDefaults() {
	if p.Capacity == 0 {
		p.Capacity = 8
	}
	if p.Language == "" {
		p.Language = "en"
	}
	if p.NumQuestions == 0 {
		p.NumQuestions = 5
	}
	if p.RoundTimeSec == 0 {
		p.RoundTimeSec = 30
	}
	if p.QuestionType == "" {
		p.QuestionType = battle.OpenEnded
	}
	if p.Difficulty == "" {
		p.Difficulty = "medium"
	}
	if p.Mode == "" {
		p.Mode = battle.ModeIndividual
	}
}

// validate checks defaulted params and reports every offending field.
func (p *CreateParams) validate() error {
	details := map[string]any{}
	if p.Capacity < MinCapacity || p.Capacity > MaxCapacity {
		details["capacity"] = fmt.Sprintf("must be between %d and %d", MinCapacity, MaxCapacity)
	}
	if p.NumQuestions < MinQuestions || p.NumQuestions > MaxQuestions {
		details["numQuestions"] = fmt.Sprintf("must be between %d and %d", MinQuestions, MaxQuestions)
	}
	if p.RoundTimeSec < MinRoundTimeSec || p.RoundTimeSec > MaxRoundTimeSec {
		details["roundTimeSec"] = fmt.Sprintf("must be between %d and %d", MinRoundTimeSec, MaxRoundTimeSec)
	}
	if p.QuestionType != battle.OpenEnded && p.QuestionType != battle.MultipleChoice {
		details["questionType"] = "must be open-ended or multiple-choice"
	}
	switch p.Difficulty {
	case "easy", "medium", "hard":
	default:
		details["difficulty"] = "must be easy, medium or hard"
	}
	if p.Mode != battle.ModeIndividual && p.Mode != battle.ModeTeam {
		details["battleMode"] = "must be individual or team"
	}
	if len(details) > 0 {
		return battle.ErrValidation("invalid room settings", details)
	}
	return nil
}

// CreateRoom creates a waiting room hosted by the session, with red and
// blue teams in team mode. The host joins immediately.
func (r *Registry) CreateRoom(ctx context.Context, p CreateParams) (battle.Room, battle.Participant, error) {
	p.applyDefaults()
	if err := p.validate(); err != nil {
		return battle.Room{}, battle.Participant{}, err
	}

	sess, err := r.session(ctx, p.HostSessionID)
	if err != nil {
		return battle.Room{}, battle.Participant{}, err
	}

	room := battle.Room{
		ID:            uuid.NewString(),
		HostSessionID: sess.ID,
		Capacity:      p.Capacity,
		Language:      p.Language,
		Topic:         strings.TrimSpace(p.Topic),
		NumQuestions:  p.NumQuestions,
		RoundTimeSec:  p.RoundTimeSec,
		QuestionType:  p.QuestionType,
		Difficulty:    p.Difficulty,
		Mode:          p.Mode,
	}
	host := battle.Participant{ID: uuid.NewString(), SessionID: sess.ID, DisplayName: sess.DisplayName}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		if room.Code, err = r.newCode(); err != nil {
			return battle.Room{}, battle.Participant{}, fmt.Errorf("generating room code: %w", err)
		}
		created, err := r.store.CreateRoom(ctx, room, host)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return battle.Room{}, battle.Participant{}, fmt.Errorf("creating room: %w", err)
		}

		participant, err := r.store.GetParticipant(ctx, created.ID, sess.ID)
		if err != nil {
			return battle.Room{}, battle.Participant{}, fmt.Errorf("loading host participant: %w", err)
		}
		r.touch(ctx, created.ID, sess.ID)
		r.logger.Info("room created", "room_id", created.ID, "code", created.Code, "mode", created.Mode)
		return created, participant, nil
	}
	return battle.Room{}, battle.Participant{}, battle.ErrInternal("could not allocate a unique room code")
}

// Resolve finds a room by id or by its shareable code.
func (r *Registry) Resolve(ctx context.Context, idOrCode string) (battle.Room, error) {
	room, err := r.store.GetRoom(ctx, idOrCode)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return battle.Room{}, fmt.Errorf("loading room: %w", err)
	}
	room, err = r.store.GetRoomByCode(ctx, strings.ToUpper(strings.TrimSpace(idOrCode)))
	if errors.Is(err, store.ErrNotFound) {
		return battle.Room{}, battle.ErrRoomNotFound()
	}
	if err != nil {
		return battle.Room{}, fmt.Errorf("loading room by code: %w", err)
	}
	return room, nil
}

// Join adds the session to the room, or refreshes its existing membership.
// The bool result reports whether a new participant was created.
func (r *Registry) Join(ctx context.Context, roomID, sessionID, displayName, preferredTeam string) (battle.Participant, bool, error) {
	sess, err := r.session(ctx, sessionID)
	if err != nil {
		return battle.Participant{}, false, err
	}
	room, err := r.Resolve(ctx, roomID)
	if err != nil {
		return battle.Participant{}, false, err
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = sess.DisplayName
	}

	p, created, err := r.store.JoinRoom(ctx, store.JoinParams{
		ID:            uuid.NewString(),
		RoomID:        room.ID,
		SessionID:     sess.ID,
		DisplayName:   name,
		PreferredTeam: preferredTeam,
	}, room.Capacity)
	switch {
	case errors.Is(err, store.ErrRoomFull):
		return battle.Participant{}, false, battle.ErrRoomFull()
	case errors.Is(err, store.ErrNotJoinable):
		if room.Status == battle.RoomFinished {
			return battle.Participant{}, false, battle.ErrRoomFinished()
		}
		return battle.Participant{}, false, battle.ErrRoomAlreadyStarted()
	case errors.Is(err, store.ErrNotFound):
		return battle.Participant{}, false, battle.ErrRoomNotFound()
	case err != nil:
		return battle.Participant{}, false, fmt.Errorf("joining room: %w", err)
	}

	r.touch(ctx, room.ID, sess.ID)
	r.events.Publish(ctx, room.ID, events.ParticipantJoined, map[string]any{
		"participantId": p.ID,
		"displayName":   p.DisplayName,
		"teamId":        p.TeamID,
		"rejoined":      !created,
	})
	return p, created, nil
}

// Leave marks the participant offline. Membership and score are kept so a
// later join restores them.
func (r *Registry) Leave(ctx context.Context, roomID, sessionID string) error {
	p, err := r.Participant(ctx, roomID, sessionID)
	if err != nil {
		return err
	}
	if err := r.store.SetConnectionStatus(ctx, roomID, sessionID, battle.Offline); err != nil {
		return fmt.Errorf("marking participant offline: %w", err)
	}
	if err := r.presence.Forget(ctx, roomID, sessionID); err != nil {
		r.logger.Warn("forgetting presence", "room_id", roomID, "error", err)
	}
	r.events.Publish(ctx, roomID, events.ParticipantLeft, map[string]any{
		"participantId": p.ID,
		"displayName":   p.DisplayName,
	})
	return nil
}

// SetReady sets the participant's ready flag while the room is waiting.
func (r *Registry) SetReady(ctx context.Context, roomID, sessionID string, ready bool) (battle.Participant, error) {
	room, err := r.Resolve(ctx, roomID)
	if err != nil {
		return battle.Participant{}, err
	}
	if room.Status != battle.RoomWaiting {
		return battle.Participant{}, battle.ErrRoomAlreadyStarted()
	}
	if _, err := r.Participant(ctx, room.ID, sessionID); err != nil {
		return battle.Participant{}, err
	}
	if err := r.store.SetReady(ctx, room.ID, sessionID, ready); err != nil {
		return battle.Participant{}, fmt.Errorf("setting ready: %w", err)
	}
	p, err := r.store.GetParticipant(ctx, room.ID, sessionID)
	if err != nil {
		return battle.Participant{}, fmt.Errorf("reloading participant: %w", err)
	}

	r.touch(ctx, room.ID, sessionID)
	r.events.Publish(ctx, room.ID, events.ParticipantReady, map[string]any{
		"participantId": p.ID,
		"displayName":   p.DisplayName,
		"ready":         p.Ready,
	})
	return p, nil
}

// Participant returns the session's membership or NOT_PARTICIPANT.
func (r *Registry) Participant(ctx context.Context, roomID, sessionID string) (battle.Participant, error) {
	p, err := r.store.GetParticipant(ctx, roomID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return battle.Participant{}, battle.ErrNotParticipant()
	}
	if err != nil {
		return battle.Participant{}, fmt.Errorf("loading participant: %w", err)
	}
	return p, nil
}

// Availability summarizes whether a new session could join the room.
type Availability struct {
	RoomID            string            `json:"roomId"`
	Code              string            `json:"code"`
	Status            battle.RoomStatus `json:"status"`
	Mode              battle.BattleMode `json:"battleMode"`
	Capacity          int               `json:"capacity"`
	Participants      int               `json:"participants"`
	Joinable          bool              `json:"joinable"`
	Reason            string            `json:"reason,omitempty"`
	RecentConnections int               `json:"recentConnections"`
}

func (r *Registry) Availability(ctx context.Context, idOrCode string) (Availability, error) {
	room, err := r.Resolve(ctx, idOrCode)
	if err != nil {
		return Availability{}, err
	}
	participants, err := r.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return Availability{}, fmt.Errorf("listing participants: %w", err)
	}

	a := Availability{
		RoomID:       room.ID,
		Code:         room.Code,
		Status:       room.Status,
		Mode:         room.Mode,
		Capacity:     room.Capacity,
		Participants: len(participants),
		Joinable:     true,
	}
	switch {
	case room.Status == battle.RoomFinished:
		a.Joinable, a.Reason = false, "ROOM_FINISHED"
	case room.Status != battle.RoomWaiting:
		a.Joinable, a.Reason = false, "ROOM_ALREADY_STARTED"
	case len(participants) >= room.Capacity:
		a.Joinable, a.Reason = false, "ROOM_FULL"
	}

	if n, err := r.presence.Count(ctx, room.ID); err != nil {
		r.logger.Warn("counting recent connections", "room_id", room.ID, "error", err)
	} else {
		a.RecentConnections = n
	}
	return a, nil
}

// Seen records activity from the session for presence diagnostics.
func (r *Registry) Seen(ctx context.Context, roomID, sessionID string) {
	r.touch(ctx, roomID, sessionID)
}

func (r *Registry) touch(ctx context.Context, roomID, sessionID string) {
	if err := r.presence.Touch(ctx, roomID, sessionID); err != nil {
		r.logger.Warn("recording presence", "room_id", roomID, "error", err)
	}
}

func (r *Registry) session(ctx context.Context, id string) (battle.Session, error) {
	if id == "" {
		return battle.Session{}, battle.ErrMissingSession()
	}
	sess, err := r.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return battle.Session{}, battle.ErrInvalidSession()
	}
	if err != nil {
		return battle.Session{}, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}
