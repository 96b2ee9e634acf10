package rounds

import (
	"context"
	"errors"
	"fmt"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/store"
)

// viewer loads the room and checks that sessionID is its host or one of
// its participants.
func (e *Engine) viewer(ctx context.Context, roomID, sessionID string) (battle.Room, *battle.Participant, error) {
	if sessionID == "" {
		return battle.Room{}, nil, battle.ErrMissingSession()
	}
	room, err := e.room(ctx, roomID)
	if err != nil {
		return battle.Room{}, nil, err
	}
	p, err := e.store.GetParticipant(ctx, room.ID, sessionID)
	switch {
	case err == nil:
		return room, &p, nil
	case !errors.Is(err, store.ErrNotFound):
		return battle.Room{}, nil, fmt.Errorf("loading participant: %w", err)
	case room.HostSessionID == sessionID:
		return room, nil, nil
	}
	return battle.Room{}, nil, battle.ErrNotParticipant()
}

// current picks the round the room is on: the active one, else the one on
// the scoreboard.
func current(rounds []battle.Round) *battle.Round {
	var board *battle.Round
	for i := range rounds {
		switch rounds[i].Status {
		case battle.RoundActive:
			return &rounds[i]
		case battle.RoundScoreboard:
			board = &rounds[i]
		}
	}
	return board
}

// State returns a snapshot of the room for a participant or its host.
func (e *Engine) State(ctx context.Context, roomID, sessionID string) (StateView, error) {
	room, p, err := e.viewer(ctx, roomID, sessionID)
	if err != nil {
		return StateView{}, err
	}
	participants, err := e.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return StateView{}, fmt.Errorf("listing participants: %w", err)
	}
	rounds, err := e.store.ListRounds(ctx, room.ID)
	if err != nil {
		return StateView{}, fmt.Errorf("listing rounds: %w", err)
	}

	v := StateView{
		Room:         room,
		Participants: participants,
		Rounds:       make([]RoundView, 0, len(rounds)),
		Me:           Me{IsHost: room.HostSessionID == sessionID},
		ServerTime:   e.now(),
	}
	for _, r := range rounds {
		v.Rounds = append(v.Rounds, newRoundView(r))
	}
	if room.Mode == battle.ModeTeam {
		if v.Teams, err = e.store.ListTeams(ctx, room.ID); err != nil {
			return StateView{}, fmt.Errorf("listing teams: %w", err)
		}
	}
	if p != nil {
		v.Me.ParticipantID = p.ID
		v.Me.TeamID = p.TeamID
	}

	if cur := current(rounds); cur != nil {
		view := newRoundView(*cur)
		v.CurrentRound = &view
		if p != nil {
			answers, err := e.store.ListRoundAnswers(ctx, cur.ID)
			if err != nil {
				return StateView{}, fmt.Errorf("listing round answers: %w", err)
			}
			for _, a := range answers {
				if a.SessionID == sessionID {
					v.Me.Answered = true
					break
				}
			}
		}
	}
	return v, nil
}

// AnswerStatus reports who has answered the room's current round.
func (e *Engine) AnswerStatus(ctx context.Context, roomID, sessionID string) (AnswerStatus, error) {
	room, _, err := e.viewer(ctx, roomID, sessionID)
	if err != nil {
		return AnswerStatus{}, err
	}
	participants, err := e.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return AnswerStatus{}, fmt.Errorf("listing participants: %w", err)
	}
	rounds, err := e.store.ListRounds(ctx, room.ID)
	if err != nil {
		return AnswerStatus{}, fmt.Errorf("listing rounds: %w", err)
	}

	st := AnswerStatus{
		Total:        len(participants),
		Participants: make([]AnswerStatusEntry, 0, len(participants)),
	}
	answered := map[string]bool{}
	if cur := current(rounds); cur != nil {
		st.RoundNumber = cur.Number
		st.RoundStatus = cur.Status
		st.DeadlineAt = cur.DeadlineAt
		answers, err := e.store.ListRoundAnswers(ctx, cur.ID)
		if err != nil {
			return AnswerStatus{}, fmt.Errorf("listing round answers: %w", err)
		}
		for _, a := range answers {
			answered[a.SessionID] = true
		}
	}
	for _, p := range participants {
		st.Participants = append(st.Participants, AnswerStatusEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Answered:      answered[p.SessionID],
		})
		if answered[p.SessionID] {
			st.Answered++
		}
	}
	st.AllAnswered = st.RoundNumber > 0 && st.Total > 0 && st.Answered == st.Total
	return st, nil
}

// Scoreboard returns the cumulative standings. It needs no session.
func (e *Engine) Scoreboard(ctx context.Context, roomID string) (ScoreboardView, error) {
	room, err := e.room(ctx, roomID)
	if err != nil {
		return ScoreboardView{}, err
	}
	participants, err := e.store.ListParticipants(ctx, room.ID)
	if err != nil {
		return ScoreboardView{}, fmt.Errorf("listing participants: %w", err)
	}
	answers, err := e.store.ListRoomAnswers(ctx, room.ID)
	if err != nil {
		return ScoreboardView{}, fmt.Errorf("listing room answers: %w", err)
	}
	v := ScoreboardView{
		RoomID:    room.ID,
		Status:    room.Status,
		Standings: battle.Standings(participants, answers),
	}
	if room.Mode == battle.ModeTeam {
		teams, err := e.store.ListTeams(ctx, room.ID)
		if err != nil {
			return ScoreboardView{}, fmt.Errorf("listing teams: %w", err)
		}
		v.Teams = battle.TeamStandings(teams, participants, answers)
	}
	return v, nil
}

// MyAnswers lists every revealed round with the session's answer to it.
// Correct answers appear only once a round reaches the scoreboard.
func (e *Engine) MyAnswers(ctx context.Context, roomID, sessionID string) ([]AnswerReview, error) {
	if sessionID == "" {
		return nil, battle.ErrMissingSession()
	}
	room, err := e.room(ctx, roomID)
	if err != nil {
		return nil, err
	}
	rounds, err := e.store.ListRounds(ctx, room.ID)
	if err != nil {
		return nil, fmt.Errorf("listing rounds: %w", err)
	}
	answers, err := e.store.ListSessionAnswers(ctx, room.ID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}
	byRound := make(map[string]battle.Answer, len(answers))
	for _, a := range answers {
		byRound[a.RoundID] = a
	}

	out := []AnswerReview{}
	for _, r := range rounds {
		if r.Status == battle.RoundPending {
			continue
		}
		rv := newRoundView(r)
		review := AnswerReview{
			RoundNumber: r.Number,
			RoundStatus: r.Status,
			Question:    rv.Question,
		}
		if a, ok := byRound[r.ID]; ok {
			review.Answered = true
			review.AnswerText = a.Text
			review.ChoiceID = a.ChoiceID
			review.IsCorrect = a.IsCorrect
			review.Score = a.ScoreFinal
			review.ElapsedMS = a.ElapsedMS
			review.Feedback = a.Feedback
		}
		out = append(out, review)
	}
	return out, nil
}
