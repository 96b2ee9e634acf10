package rounds

import (
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

// QuestionView is the client-facing question. Answer fields stay empty
// until the round reaches the scoreboard.
type QuestionView struct {
	Type            battle.QuestionType `json:"type"`
	Prompt          string              `json:"prompt"`
	Difficulty      int                 `json:"difficulty"`
	Language        string              `json:"language"`
	Category        string              `json:"category,omitempty"`
	Choices         []battle.Choice     `json:"choices,omitempty"`
	Answer          string              `json:"answer,omitempty"`
	AcceptedAnswers []string            `json:"acceptedAnswers,omitempty"`
	CorrectChoiceID string              `json:"correctChoiceId,omitempty"`
}

func newQuestionView(q battle.Question, withAnswer bool) *QuestionView {
	if q == nil {
		return nil
	}
	b := q.Base()
	v := &QuestionView{
		Type:       q.Type(),
		Prompt:     b.Prompt,
		Difficulty: b.Difficulty,
		Language:   b.Language,
		Category:   b.Category,
	}
	switch q := q.(type) {
	case *battle.OpenEndedQuestion:
		if withAnswer {
			v.Answer = q.Answer
			v.AcceptedAnswers = q.AcceptedAnswers
		}
	case *battle.MultipleChoiceQuestion:
		v.Choices = q.Choices
		if withAnswer {
			v.CorrectChoiceID = q.CorrectChoiceID
			v.Answer = q.CorrectText()
		}
	}
	return v
}

type RoundView struct {
	Number     int                `json:"roundNumber"`
	Status     battle.RoundStatus `json:"status"`
	RevealedAt *time.Time         `json:"revealedAt,omitempty"`
	DeadlineAt *time.Time         `json:"deadlineAt,omitempty"`
	ClosedAt   *time.Time         `json:"closedAt,omitempty"`
	Question   *QuestionView      `json:"question,omitempty"`
}

// newRoundView hides pending questions entirely and active answers.
func newRoundView(r battle.Round) RoundView {
	v := RoundView{
		Number:     r.Number,
		Status:     r.Status,
		RevealedAt: r.RevealedAt,
		DeadlineAt: r.DeadlineAt,
		ClosedAt:   r.ClosedAt,
	}
	switch r.Status {
	case battle.RoundActive:
		v.Question = newQuestionView(r.Question, false)
	case battle.RoundScoreboard, battle.RoundClosed:
		v.Question = newQuestionView(r.Question, true)
	}
	return v
}

// AnswerDetail is one participant's answer as shown after a round closes.
type AnswerDetail struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	AnswerText    string `json:"answerText,omitempty"`
	ChoiceID      string `json:"choiceId,omitempty"`
	IsCorrect     bool   `json:"isCorrect"`
	Score         int    `json:"score"`
	ElapsedMS     int64  `json:"elapsedMs"`
}

func answerDetails(participants []battle.Participant, answers []battle.Answer) []AnswerDetail {
	bySession := make(map[string]battle.Participant, len(participants))
	for _, p := range participants {
		bySession[p.SessionID] = p
	}
	out := make([]AnswerDetail, 0, len(answers))
	for _, a := range answers {
		p := bySession[a.SessionID]
		out = append(out, AnswerDetail{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			AnswerText:    a.Text,
			ChoiceID:      a.ChoiceID,
			IsCorrect:     a.IsCorrect,
			Score:         a.ScoreFinal,
			ElapsedMS:     a.ElapsedMS,
		})
	}
	return out
}

type StartResult struct {
	Room          battle.Room `json:"room"`
	RoundsCreated int         `json:"roundsCreated"`
	RoundRevealed bool        `json:"roundRevealed"`
	Round         *RoundView  `json:"round,omitempty"`
}

type RevealResult struct {
	Round RoundView `json:"round"`
	// Revealed is false when the round was already active.
	Revealed bool `json:"revealed"`
}

type AnswerResult struct {
	RoundNumber int    `json:"roundNumber"`
	IsCorrect   bool   `json:"isCorrect"`
	Score       int    `json:"score"`
	ElapsedMS   int64  `json:"elapsedMs"`
	Feedback    string `json:"feedback"`
}

type CloseResult struct {
	Round           RoundView             `json:"round"`
	Scoreboard      []battle.RoundEntry   `json:"scoreboard"`
	Teams           []battle.TeamStanding `json:"teams,omitempty"`
	HasMoreRounds   bool                  `json:"hasMoreRounds"`
	RemainingRounds int                   `json:"remainingRounds"`
	Transitioned    bool                  `json:"transitioned"`
}

const (
	ActionAdvanced = "advanced"
	ActionFinished = "finished"
)

type AdvanceResult struct {
	Action      string            `json:"action"`
	ClosedRound int               `json:"closedRound"`
	Round       *RoundView        `json:"round,omitempty"`
	Standings   []battle.Standing `json:"standings,omitempty"`
}

type FinishResult struct {
	Room      battle.Room           `json:"room"`
	Standings []battle.Standing     `json:"standings"`
	Teams     []battle.TeamStanding `json:"teams,omitempty"`
}

// Me describes the caller within a room snapshot. Session ids never
// appear in room payloads; the cookie is the only carrier.
type Me struct {
	ParticipantID string  `json:"participantId,omitempty"`
	IsHost        bool    `json:"isHost"`
	TeamID        *string `json:"teamId,omitempty"`
	Answered      bool    `json:"answeredCurrentRound"`
}

type StateView struct {
	Room         battle.Room          `json:"room"`
	Participants []battle.Participant `json:"participants"`
	Teams        []battle.Team        `json:"teams,omitempty"`
	Rounds       []RoundView          `json:"rounds"`
	CurrentRound *RoundView           `json:"currentRound,omitempty"`
	Me           Me                   `json:"me"`
	ServerTime   time.Time            `json:"serverTime"`
}

type AnswerStatusEntry struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Answered      bool   `json:"answered"`
}

type AnswerStatus struct {
	RoundNumber  int                 `json:"roundNumber"`
	RoundStatus  battle.RoundStatus  `json:"roundStatus,omitempty"`
	Answered     int                 `json:"answered"`
	Total        int                 `json:"total"`
	Participants []AnswerStatusEntry `json:"participants"`
	DeadlineAt   *time.Time          `json:"deadlineAt,omitempty"`
	AllAnswered  bool                `json:"allAnswered"`
}

type ScoreboardView struct {
	RoomID    string                `json:"roomId"`
	Status    battle.RoomStatus     `json:"status"`
	Standings []battle.Standing     `json:"standings"`
	Teams     []battle.TeamStanding `json:"teams,omitempty"`
}

// AnswerReview is one round of a session's answer history.
type AnswerReview struct {
	RoundNumber int                `json:"roundNumber"`
	RoundStatus battle.RoundStatus `json:"roundStatus"`
	Question    *QuestionView      `json:"question,omitempty"`
	Answered    bool               `json:"answered"`
	AnswerText  string             `json:"answerText,omitempty"`
	ChoiceID    string             `json:"choiceId,omitempty"`
	IsCorrect   bool               `json:"isCorrect"`
	Score       int                `json:"score"`
	ElapsedMS   int64              `json:"elapsedMs"`
	Feedback    string             `json:"feedback,omitempty"`
}
