// Package battle defines the core domain types for trivia battles and the
// pure scoring and standings logic. It has no external dependencies.
package battle

import "time"

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomActive   RoomStatus = "active"
	RoomFinished RoomStatus = "finished"
)

type RoundStatus string

const (
	RoundPending    RoundStatus = "pending"
	RoundActive     RoundStatus = "active"
	RoundScoreboard RoundStatus = "scoreboard"
	RoundClosed     RoundStatus = "closed"
)

// Next reports the only status a round may move to from s.
func (s RoundStatus) Next() (RoundStatus, bool) {
	switch s {
	case RoundPending:
		return RoundActive, true
	case RoundActive:
		return RoundScoreboard, true
	case RoundScoreboard:
		return RoundClosed, true
	}
	return "", false
}

type QuestionType string

const (
	OpenEnded      QuestionType = "open-ended"
	MultipleChoice QuestionType = "multiple-choice"
)

type BattleMode string

const (
	ModeIndividual BattleMode = "individual"
	ModeTeam       BattleMode = "team"
)

type ConnectionStatus string

const (
	Online  ConnectionStatus = "online"
	Offline ConnectionStatus = "offline"
)

// Team names are fixed: every team-mode room gets exactly these two.
const (
	TeamRed  = "red"
	TeamBlue = "blue"
)

var TeamNames = []string{TeamRed, TeamBlue}

// Difficulty maps the room's difficulty label to the 1-3 scale used by
// questions. Unknown labels map to medium.
func Difficulty(label string) int {
	switch label {
	case "easy":
		return 1
	case "hard":
		return 3
	}
	return 2
}

type Session struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"displayName"`
	FingerprintHash string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Room struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	HostSessionID string       `json:"-"`
	Capacity      int          `json:"capacity"`
	Language      string       `json:"language"`
	Topic         string       `json:"topic"`
	NumQuestions  int          `json:"numQuestions"`
	RoundTimeSec  int          `json:"roundTimeSec"`
	QuestionType  QuestionType `json:"questionType"`
	Difficulty    string       `json:"difficulty"`
	Mode          BattleMode   `json:"battleMode"`
	Status        RoomStatus   `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
	StartedAt     *time.Time   `json:"startedAt,omitempty"`
	FinishedAt    *time.Time   `json:"finishedAt,omitempty"`
}

// RoundDuration is the per-round answer window.
func (r Room) RoundDuration() time.Duration {
	return time.Duration(r.RoundTimeSec) * time.Second
}

type Participant struct {
	ID               string           `json:"id"`
	RoomID           string           `json:"roomId"`
	SessionID        string           `json:"-"`
	DisplayName      string           `json:"displayName"`
	IsHost           bool             `json:"isHost"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	Ready            bool             `json:"ready"`
	TotalScore       int              `json:"totalScore"`
	TeamID           *string          `json:"teamId,omitempty"`
	JoinedAt         time.Time        `json:"joinedAt"`
	LastSeenAt       time.Time        `json:"lastSeenAt"`
}

type Team struct {
	ID         string `json:"id"`
	RoomID     string `json:"roomId"`
	Name       string `json:"name"`
	TotalScore int    `json:"totalScore"`
}

type Round struct {
	ID             string
	RoomID         string
	Number         int
	Status         RoundStatus
	BankQuestionID *string
	Question       Question
	RevealedAt     *time.Time
	DeadlineAt     *time.Time
	ClosedAt       *time.Time
}

// AcceptsAnswersAt reports whether an answer arriving at t is inside the
// round's window, allowing grace past the deadline.
func (r Round) AcceptsAnswersAt(t time.Time, grace time.Duration) bool {
	if r.Status != RoundActive {
		return false
	}
	if r.DeadlineAt == nil {
		return true
	}
	return !t.After(r.DeadlineAt.Add(grace))
}

type Answer struct {
	ID         string    `json:"id"`
	RoundID    string    `json:"roundId"`
	RoomID     string    `json:"roomId"`
	SessionID  string    `json:"-"`
	Text       string    `json:"answerText,omitempty"`
	ChoiceID   string    `json:"choiceId,omitempty"`
	IsCorrect  bool      `json:"isCorrect"`
	ElapsedMS  int64     `json:"elapsedMs"`
	ScoreFinal int       `json:"scoreFinal"`
	Feedback   string    `json:"feedback,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Submission is what a participant sends for a round: free text for
// open-ended questions or a choice id for multiple choice.
type Submission struct {
	Text     string
	ChoiceID string
}
