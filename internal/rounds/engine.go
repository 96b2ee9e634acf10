// Package rounds drives a room through its battle: start, reveal, answers,
// close, advance and finish. Every transition for a room runs under that
// room's lock; conditional store updates guard against other instances.
package rounds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/events"
	"github.com/playperu/triviabattle/internal/questions"
	"github.com/playperu/triviabattle/internal/store"
)

// Reveal reasons carried by round_revealed events.
const (
	ReasonStart         = "start"
	ReasonManualReveal  = "manual_reveal"
	ReasonManualAdvance = "manual_advance"
)

type Engine struct {
	store  store.Store
	source questions.Source
	events events.Publisher
	logger *slog.Logger
	locks  *roomLocks
	grace  time.Duration
	now    func() time.Time
}

// NewEngine returns an engine that accepts answers up to grace after a
// round's deadline.
func NewEngine(s store.Store, src questions.Source, pub events.Publisher, logger *slog.Logger, grace time.Duration) *Engine {
	return &Engine{
		store:  s,
		source: src,
		events: pub,
		logger: logger,
		locks:  newRoomLocks(),
		grace:  grace,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) room(ctx context.Context, roomID string) (battle.Room, error) {
	room, err := e.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return battle.Room{}, battle.ErrRoomNotFound()
	}
	if err != nil {
		return battle.Room{}, fmt.Errorf("loading room: %w", err)
	}
	return room, nil
}

func (e *Engine) hostRoom(ctx context.Context, roomID, sessionID string) (battle.Room, error) {
	if sessionID == "" {
		return battle.Room{}, battle.ErrMissingSession()
	}
	room, err := e.room(ctx, roomID)
	if err != nil {
		return battle.Room{}, err
	}
	if room.HostSessionID != sessionID {
		return battle.Room{}, battle.ErrNotHost()
	}
	return room, nil
}

func (e *Engine) round(ctx context.Context, roomID string, n int) (battle.Round, error) {
	r, err := e.store.GetRound(ctx, roomID, n)
	if errors.Is(err, store.ErrNotFound) {
		return battle.Round{}, battle.ErrRoundNotFound()
	}
	if err != nil {
		return battle.Round{}, fmt.Errorf("loading round %d: %w", n, err)
	}
	return r, nil
}

// Start generates the room's questions, creates its rounds, activates the
// room and reveals round 1. A failed reveal of round 1 is logged and left
// for the host to retry with Reveal.
func (e *Engine) Start(ctx context.Context, roomID, sessionID string) (StartResult, error) {
	defer e.locks.lock(roomID)()

	room, err := e.hostRoom(ctx, roomID, sessionID)
	if err != nil {
		return StartResult{}, err
	}
	if room.Status != battle.RoomWaiting {
		return StartResult{}, battle.ErrRoomAlreadyStarted()
	}

	participants, err := e.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return StartResult{}, fmt.Errorf("listing participants: %w", err)
	}
	if err := checkStartable(room, participants); err != nil {
		return StartResult{}, err
	}

	generated, err := e.source.Generate(ctx, questions.Params{
		Count:      room.NumQuestions,
		Type:       room.QuestionType,
		Language:   room.Language,
		Topic:      room.Topic,
		Difficulty: battle.Difficulty(room.Difficulty),
	})
	if err != nil {
		if _, ok := battle.AsError(err); ok {
			return StartResult{}, err
		}
		e.logger.Error("generating questions", "room_id", room.ID, "error", err)
		return StartResult{}, battle.ErrQuestionGeneration("could not prepare questions, try again", true)
	}
	if len(generated) == 0 {
		return StartResult{}, battle.ErrQuestionGeneration("no questions available for this room", true)
	}
	if len(generated) > room.NumQuestions {
		generated = generated[:room.NumQuestions]
	}

	rounds := make([]battle.Round, len(generated))
	for i, g := range generated {
		rounds[i] = battle.Round{
			ID:             uuid.NewString(),
			RoomID:         room.ID,
			Number:         i + 1,
			Status:         battle.RoundPending,
			BankQuestionID: g.BankQuestionID,
			Question:       g.Question,
		}
	}
	if err := e.store.CreateRounds(ctx, rounds); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return StartResult{}, battle.ErrRoomAlreadyStarted()
		}
		return StartResult{}, fmt.Errorf("creating rounds: %w", err)
	}

	now := e.now()
	ok, err := e.store.ActivateRoom(ctx, room.ID, len(rounds), now)
	if err != nil {
		return StartResult{}, fmt.Errorf("activating room: %w", err)
	}
	if !ok {
		return StartResult{}, battle.ErrRoomAlreadyStarted()
	}
	room.Status = battle.RoomActive
	room.NumQuestions = len(rounds)
	room.StartedAt = &now

	if err := e.store.ClearReady(ctx, room.ID); err != nil {
		e.logger.Warn("clearing ready flags", "room_id", room.ID, "error", err)
	}

	e.events.Publish(ctx, room.ID, events.RoomStarted, map[string]any{
		"numQuestions": room.NumQuestions,
		"roundTimeSec": room.RoundTimeSec,
		"questionType": room.QuestionType,
		"battleMode":   room.Mode,
	})
	e.logger.Info("room started", "room_id", room.ID, "rounds", len(rounds))

	res := StartResult{Room: room, RoundsCreated: len(rounds)}
	first, err := e.reveal(ctx, room, 1, ReasonStart)
	if err != nil {
		e.logger.Warn("auto reveal of round 1 failed", "room_id", room.ID, "error", err)
		return res, nil
	}
	view := newRoundView(first)
	res.RoundRevealed = true
	res.Round = &view
	return res, nil
}

// checkStartable enforces the participant preconditions for Start.
func checkStartable(room battle.Room, participants []battle.Participant) error {
	var (
		online   int
		notReady []string
	)
	for _, p := range participants {
		if p.ConnectionStatus != battle.Online {
			continue
		}
		online++
		if !p.IsHost && !p.Ready {
			notReady = append(notReady, p.DisplayName)
		}
	}
	need := min(2, room.Capacity)
	if online < need {
		return battle.ErrInsufficientParticipants(online, need)
	}
	if len(notReady) > 0 {
		return battle.ErrParticipantsNotReady(notReady)
	}
	return nil
}

// reveal performs the conditional pending -> active move for round n and
// emits round_revealed. Callers hold the room lock.
func (e *Engine) reveal(ctx context.Context, room battle.Room, n int, reason string) (battle.Round, error) {
	now := e.now()
	ok, err := e.store.RevealRound(ctx, room.ID, n, now, now.Add(room.RoundDuration()))
	if err != nil {
		return battle.Round{}, err
	}
	if !ok {
		return battle.Round{}, fmt.Errorf("round %d was not revealable", n)
	}
	r, err := e.round(ctx, room.ID, n)
	if err != nil {
		return battle.Round{}, err
	}
	e.events.Publish(ctx, room.ID, events.RoundRevealed, map[string]any{
		"roundNumber": n,
		"reason":      reason,
		"revealedAt":  r.RevealedAt,
		"deadlineAt":  r.DeadlineAt,
		"question":    newQuestionView(r.Question, false),
	})
	return r, nil
}

// Reveal activates round n. Revealing the round that is already active
// returns it unchanged, without moving its deadline.
func (e *Engine) Reveal(ctx context.Context, roomID, sessionID string, n int) (RevealResult, error) {
	defer e.locks.lock(roomID)()

	room, err := e.hostRoom(ctx, roomID, sessionID)
	if err != nil {
		return RevealResult{}, err
	}
	if room.Status != battle.RoomActive {
		return RevealResult{}, battle.ErrRoomNotActive()
	}
	r, err := e.round(ctx, room.ID, n)
	if err != nil {
		return RevealResult{}, err
	}

	switch r.Status {
	case battle.RoundActive:
		return RevealResult{Round: newRoundView(r)}, nil
	case battle.RoundScoreboard, battle.RoundClosed:
		return RevealResult{}, battle.ErrInvalidRoundState(r.Status)
	}

	if _, err := e.store.FindRoundByStatus(ctx, room.ID, battle.RoundActive); err == nil {
		return RevealResult{}, battle.ErrRoundAlreadyActive()
	} else if !errors.Is(err, store.ErrNotFound) {
		return RevealResult{}, fmt.Errorf("checking active round: %w", err)
	}

	revealed, err := e.reveal(ctx, room, n, ReasonManualReveal)
	if err != nil {
		// Another instance may have won the race; report what it did.
		current, lerr := e.round(ctx, room.ID, n)
		if lerr == nil && current.Status == battle.RoundActive {
			return RevealResult{Round: newRoundView(current)}, nil
		}
		if lerr == nil && current.Status == battle.RoundPending {
			return RevealResult{}, battle.ErrRoundAlreadyActive()
		}
		return RevealResult{}, fmt.Errorf("revealing round %d: %w", n, err)
	}
	return RevealResult{Round: newRoundView(revealed), Revealed: true}, nil
}

// SubmitAnswer grades and records the session's answer to round n.
func (e *Engine) SubmitAnswer(ctx context.Context, roomID, sessionID string, n int, sub battle.Submission) (AnswerResult, error) {
	if sessionID == "" {
		return AnswerResult{}, battle.ErrMissingSession()
	}
	defer e.locks.lock(roomID)()

	room, err := e.room(ctx, roomID)
	if err != nil {
		return AnswerResult{}, err
	}
	if room.Status != battle.RoomActive {
		return AnswerResult{}, battle.ErrRoomNotActive()
	}
	p, err := e.store.GetParticipant(ctx, room.ID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return AnswerResult{}, battle.ErrNotParticipant()
	}
	if err != nil {
		return AnswerResult{}, fmt.Errorf("loading participant: %w", err)
	}
	r, err := e.round(ctx, room.ID, n)
	if err != nil {
		return AnswerResult{}, err
	}
	if r.Status != battle.RoundActive {
		return AnswerResult{}, battle.ErrRoundNotActive()
	}

	now := e.now()
	if !r.AcceptsAnswersAt(now, e.grace) {
		return AnswerResult{}, battle.ErrDeadlinePassed()
	}

	sub.Text = strings.TrimSpace(sub.Text)
	sub.ChoiceID = strings.TrimSpace(sub.ChoiceID)
	if err := validateSubmission(r.Question, sub); err != nil {
		return AnswerResult{}, err
	}

	correct, feedback := battle.Grade(r.Question, sub)
	elapsed := battle.Elapsed(r.RevealedAt, now, room.RoundDuration())
	a := battle.Answer{
		ID:         uuid.NewString(),
		RoundID:    r.ID,
		RoomID:     room.ID,
		SessionID:  sessionID,
		Text:       sub.Text,
		ChoiceID:   sub.ChoiceID,
		IsCorrect:  correct,
		ElapsedMS:  elapsed.Milliseconds(),
		ScoreFinal: battle.ScoreAnswer(correct, elapsed, room.RoundDuration()),
		Feedback:   feedback,
		CreatedAt:  now,
	}
	if err := e.store.InsertAnswer(ctx, a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return AnswerResult{}, battle.ErrAnswerAlreadySubmitted()
		}
		return AnswerResult{}, fmt.Errorf("recording answer: %w", err)
	}

	answered, total := 0, 0
	if answers, err := e.store.ListRoundAnswers(ctx, r.ID); err == nil {
		answered = len(answers)
	}
	if participants, err := e.store.ListParticipants(ctx, room.ID); err == nil {
		total = len(participants)
	}
	e.events.Publish(ctx, room.ID, events.AnswerSubmitted, map[string]any{
		"roundNumber":   n,
		"participantId": p.ID,
		"displayName":   p.DisplayName,
		"answeredCount": answered,
		"total":         total,
	})

	return AnswerResult{
		RoundNumber: n,
		IsCorrect:   correct,
		Score:       a.ScoreFinal,
		ElapsedMS:   a.ElapsedMS,
		Feedback:    feedback,
	}, nil
}

func validateSubmission(q battle.Question, sub battle.Submission) error {
	switch q := q.(type) {
	case *battle.MultipleChoiceQuestion:
		if sub.ChoiceID == "" {
			return battle.ErrValidation("choiceId is required", map[string]any{"choiceId": "required"})
		}
		for _, c := range q.Choices {
			if c.ID == sub.ChoiceID {
				return nil
			}
		}
		return battle.ErrValidation("unknown choice", map[string]any{"choiceId": "unknown"})
	default:
		if sub.Text == "" {
			return battle.ErrValidation("answer is required", map[string]any{"answer": "required"})
		}
	}
	return nil
}

// Close moves round n to the scoreboard and credits its scores exactly
// once. Closing a round that is already past active only recomputes the
// scoreboard.
func (e *Engine) Close(ctx context.Context, roomID, sessionID string, n int) (CloseResult, error) {
	defer e.locks.lock(roomID)()

	room, err := e.hostRoom(ctx, roomID, sessionID)
	if err != nil {
		return CloseResult{}, err
	}
	r, err := e.round(ctx, room.ID, n)
	if err != nil {
		return CloseResult{}, err
	}

	var transitioned bool
	switch r.Status {
	case battle.RoundPending:
		return CloseResult{}, battle.ErrRoundNotActive()
	case battle.RoundActive:
		if transitioned, err = e.closeRound(ctx, room.ID, r); err != nil {
			return CloseResult{}, err
		}
		if r, err = e.round(ctx, room.ID, n); err != nil {
			return CloseResult{}, err
		}
	}

	participants, err := e.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return CloseResult{}, fmt.Errorf("listing participants: %w", err)
	}
	answers, err := e.store.ListRoundAnswers(ctx, r.ID)
	if err != nil {
		return CloseResult{}, fmt.Errorf("listing round answers: %w", err)
	}
	counts, err := e.store.CountRoundsByStatus(ctx, room.ID)
	if err != nil {
		return CloseResult{}, fmt.Errorf("counting rounds: %w", err)
	}

	res := CloseResult{
		Round:           newRoundView(r),
		Scoreboard:      battle.ScoreRound(participants, answers),
		RemainingRounds: counts[battle.RoundPending],
		Transitioned:    transitioned,
	}
	res.HasMoreRounds = res.RemainingRounds > 0
	if room.Mode == battle.ModeTeam {
		if res.Teams, err = e.teamStandings(ctx, room.ID, participants); err != nil {
			return CloseResult{}, err
		}
	}

	if transitioned {
		e.events.Publish(ctx, room.ID, events.RoundClosed, map[string]any{
			"roundNumber":     n,
			"scoreboard":      res.Scoreboard,
			"teams":           res.Teams,
			"question":        res.Round.Question,
			"answers":         answerDetails(participants, answers),
			"hasMoreRounds":   res.HasMoreRounds,
			"remainingRounds": res.RemainingRounds,
		})
	}
	return res, nil
}

// closeRound tries the atomic close-and-tally first and falls back to the
// transactional status update plus credit when that path errors.
func (e *Engine) closeRound(ctx context.Context, roomID string, r battle.Round) (bool, error) {
	now := e.now()
	ok, err := e.store.CloseRoundAtomic(ctx, roomID, r.Number, now)
	if err == nil {
		return ok, nil
	}
	e.logger.Warn("atomic round close failed, falling back", "room_id", roomID, "round", r.Number, "error", err)

	moved, err := e.store.CloseRoundGuarded(ctx, roomID, r.Number, now)
	if err != nil {
		return false, fmt.Errorf("closing round %d: %w", r.Number, err)
	}
	return moved, nil
}

// Advance closes the round waiting on the scoreboard and reveals the next
// one, or finishes the room after the last round.
func (e *Engine) Advance(ctx context.Context, roomID, sessionID string) (AdvanceResult, error) {
	defer e.locks.lock(roomID)()

	room, err := e.hostRoom(ctx, roomID, sessionID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if room.Status != battle.RoomActive {
		return AdvanceResult{}, battle.ErrRoomNotActive()
	}
	current, err := e.store.FindRoundByStatus(ctx, room.ID, battle.RoundScoreboard)
	if errors.Is(err, store.ErrNotFound) {
		return AdvanceResult{}, battle.ErrNoScoreboardRound()
	}
	if err != nil {
		return AdvanceResult{}, fmt.Errorf("finding scoreboard round: %w", err)
	}

	if _, err := e.store.MarkRoundClosed(ctx, room.ID, current.Number); err != nil {
		return AdvanceResult{}, fmt.Errorf("closing round %d: %w", current.Number, err)
	}

	next := current.Number + 1
	if next > room.NumQuestions {
		standings, err := e.finish(ctx, room)
		if err != nil {
			return AdvanceResult{}, err
		}
		return AdvanceResult{Action: ActionFinished, ClosedRound: current.Number, Standings: standings}, nil
	}

	revealed, err := e.reveal(ctx, room, next, ReasonManualAdvance)
	if err != nil {
		e.logger.Error("revealing next round", "room_id", room.ID, "round", next, "error", err)
		return AdvanceResult{}, battle.ErrInternal(fmt.Sprintf("could not reveal round %d", next))
	}
	view := newRoundView(revealed)
	return AdvanceResult{Action: ActionAdvanced, ClosedRound: current.Number, Round: &view}, nil
}

// Finish ends a room whose rounds are all closed. Finishing a finished
// room returns its standings again without emitting anything.
func (e *Engine) Finish(ctx context.Context, roomID, sessionID string) (FinishResult, error) {
	defer e.locks.lock(roomID)()

	room, err := e.hostRoom(ctx, roomID, sessionID)
	if err != nil {
		return FinishResult{}, err
	}

	switch room.Status {
	case battle.RoomWaiting:
		return FinishResult{}, battle.ErrRoomNotActive()
	case battle.RoomActive:
		counts, err := e.store.CountRoundsByStatus(ctx, room.ID)
		if err != nil {
			return FinishResult{}, fmt.Errorf("counting rounds: %w", err)
		}
		for status, n := range counts {
			if status != battle.RoundClosed && n > 0 {
				return FinishResult{}, battle.ErrRoundsStillActive()
			}
		}
		if _, err := e.finish(ctx, room); err != nil {
			return FinishResult{}, err
		}
	}

	room, err = e.room(ctx, room.ID)
	if err != nil {
		return FinishResult{}, err
	}
	participants, err := e.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return FinishResult{}, fmt.Errorf("listing participants: %w", err)
	}
	res := FinishResult{Room: room, Standings: battle.FinalStandings(participants)}
	if room.Mode == battle.ModeTeam {
		if res.Teams, err = e.teamStandings(ctx, room.ID, participants); err != nil {
			return FinishResult{}, err
		}
	}
	return res, nil
}

// finish flips the room to finished and emits match_finished when this
// call made the change. Callers hold the room lock.
func (e *Engine) finish(ctx context.Context, room battle.Room) ([]battle.Standing, error) {
	participants, err := e.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("listing participants: %w", err)
	}
	standings := battle.FinalStandings(participants)

	ok, err := e.store.FinishRoom(ctx, room.ID, e.now())
	if err != nil {
		return nil, fmt.Errorf("finishing room: %w", err)
	}
	if !ok {
		return standings, nil
	}

	payload := map[string]any{"standings": standings}
	if room.Mode == battle.ModeTeam {
		teams, err := e.teamStandings(ctx, room.ID, participants)
		if err != nil {
			e.logger.Warn("computing team standings", "room_id", room.ID, "error", err)
		}
		payload["teams"] = teams
	}
	e.events.Publish(ctx, room.ID, events.MatchFinished, payload)
	e.logger.Info("room finished", "room_id", room.ID)
	return standings, nil
}

func (e *Engine) teamStandings(ctx context.Context, roomID string, participants []battle.Participant) ([]battle.TeamStanding, error) {
	teams, err := e.store.ListTeams(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}
	answers, err := e.store.ListRoomAnswers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("listing room answers: %w", err)
	}
	return battle.TeamStandings(teams, participants, answers), nil
}
