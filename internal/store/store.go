// Package store persists battles in a relational database. One SQL
// implementation serves both SQLite (libSQL) and Postgres (pgx).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRoomFull    = errors.New("room is full")
	ErrNotJoinable = errors.New("room is not accepting new participants")
)

// JoinParams describes a join attempt. ID is used only when a new
// participant row is created.
type JoinParams struct {
	ID            string
	RoomID        string
	SessionID     string
	DisplayName   string
	PreferredTeam string
}

type BankFilter struct {
	Language   string
	Difficulty int // 0 means any
	Limit      int
}

type BankQuestion struct {
	ID              string
	Language        string
	Difficulty      int
	Category        string
	Prompt          string
	Answer          string
	AcceptedAnswers []string
	Active          bool
	CreatedAt       time.Time
}

// Question converts the row into the open-ended variant used by rounds.
func (b BankQuestion) Question() *battle.OpenEndedQuestion {
	return &battle.OpenEndedQuestion{
		QuestionBase: battle.QuestionBase{
			Prompt:     b.Prompt,
			Difficulty: b.Difficulty,
			Language:   b.Language,
			Category:   b.Category,
		},
		Answer:          b.Answer,
		AcceptedAnswers: b.AcceptedAnswers,
	}
}

type Admin struct {
	ID    string
	Email string
}

type Store interface {
	Ping(ctx context.Context) error

	UpsertSession(ctx context.Context, fingerprintHash, displayName string) (battle.Session, error)
	GetSession(ctx context.Context, id string) (battle.Session, error)

	CreateRoom(ctx context.Context, room battle.Room, host battle.Participant) (battle.Room, error)
	GetRoom(ctx context.Context, id string) (battle.Room, error)
	GetRoomByCode(ctx context.Context, code string) (battle.Room, error)
	ActivateRoom(ctx context.Context, roomID string, numQuestions int, at time.Time) (bool, error)
	FinishRoom(ctx context.Context, roomID string, at time.Time) (bool, error)
	ListTeams(ctx context.Context, roomID string) ([]battle.Team, error)

	JoinRoom(ctx context.Context, p JoinParams, capacity int) (battle.Participant, bool, error)
	GetParticipant(ctx context.Context, roomID, sessionID string) (battle.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]battle.Participant, error)
	SetReady(ctx context.Context, roomID, sessionID string, ready bool) error
	ClearReady(ctx context.Context, roomID string) error
	SetConnectionStatus(ctx context.Context, roomID, sessionID string, status battle.ConnectionStatus) error

	CreateRounds(ctx context.Context, rounds []battle.Round) error
	ListRounds(ctx context.Context, roomID string) ([]battle.Round, error)
	GetRound(ctx context.Context, roomID string, number int) (battle.Round, error)
	FindRoundByStatus(ctx context.Context, roomID string, status battle.RoundStatus) (battle.Round, error)
	CountRoundsByStatus(ctx context.Context, roomID string) (map[battle.RoundStatus]int, error)
	RevealRound(ctx context.Context, roomID string, number int, revealedAt, deadlineAt time.Time) (bool, error)
	CloseRoundAtomic(ctx context.Context, roomID string, number int, at time.Time) (bool, error)
	CloseRoundGuarded(ctx context.Context, roomID string, number int, at time.Time) (bool, error)
	MarkRoundClosed(ctx context.Context, roomID string, number int) (bool, error)

	InsertAnswer(ctx context.Context, a battle.Answer) error
	ListRoundAnswers(ctx context.Context, roundID string) ([]battle.Answer, error)
	ListRoomAnswers(ctx context.Context, roomID string) ([]battle.Answer, error)
	ListSessionAnswers(ctx context.Context, roomID, sessionID string) ([]battle.Answer, error)

	BankQuestions(ctx context.Context, f BankFilter) ([]BankQuestion, error)
	ListBankQuestions(ctx context.Context) ([]BankQuestion, error)
	GetBankQuestion(ctx context.Context, id string) (BankQuestion, error)
	CreateBankQuestion(ctx context.Context, q BankQuestion) (BankQuestion, error)
	UpdateBankQuestion(ctx context.Context, q BankQuestion) (BankQuestion, error)
	DeleteBankQuestion(ctx context.Context, id string) error

	CreateAdmin(ctx context.Context, email, passwordHash string) error
	AdminCredentials(ctx context.Context, email string) (id, passwordHash string, err error)
	CreateAdminSession(ctx context.Context, adminID string) (string, error)
	AdminFromSession(ctx context.Context, sessionID string) (Admin, error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
}
