package battle

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a client should react to them. The HTTP
// layer maps each kind to a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
	KindState
	KindValidation
	KindUnavailable
)

// Error is a domain error with a stable machine-readable code.
type Error struct {
	Code      string
	Message   string
	Kind      Kind
	Retryable bool
	Details   map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

func newErr(kind Kind, code, msg string, retryable bool) *Error {
	return &Error{Code: code, Message: msg, Kind: kind, Retryable: retryable}
}

// Auth and session.
func ErrMissingSession() *Error {
	return newErr(KindAuth, "MISSING_SESSION", "a session is required; create one first", false)
}

func ErrInvalidSession() *Error {
	return newErr(KindAuth, "INVALID_SESSION", "session not found or expired", false)
}

func ErrNotParticipant() *Error {
	return newErr(KindForbidden, "NOT_PARTICIPANT", "you have not joined this room", false)
}

// Authorization.
func ErrNotHost() *Error {
	return newErr(KindForbidden, "NOT_HOST", "only the host can do that", false)
}

// State conflicts.
func ErrRoomNotActive() *Error {
	return newErr(KindState, "ROOM_NOT_ACTIVE", "room is not active", false)
}

func ErrRoomAlreadyStarted() *Error {
	return newErr(KindState, "ROOM_ALREADY_STARTED", "room has already started", false)
}

func ErrRoomFinished() *Error {
	return newErr(KindState, "ROOM_FINISHED", "room has finished", false)
}

func ErrRoundsStillActive() *Error {
	return newErr(KindState, "ROUNDS_STILL_ACTIVE", "all rounds must be closed before finishing", false)
}

func ErrNoScoreboardRound() *Error {
	return newErr(KindState, "NO_SCOREBOARD_ROUND", "no round is waiting on the scoreboard", false)
}

func ErrRoundNotActive() *Error {
	return newErr(KindState, "ROUND_NOT_ACTIVE", "round is not accepting answers", false)
}

func ErrRoundAlreadyActive() *Error {
	return newErr(KindState, "ROUND_ALREADY_ACTIVE", "another round is still active", false)
}

func ErrInvalidRoundState(status RoundStatus) *Error {
	return newErr(KindState, "INVALID_ROUND_STATE", fmt.Sprintf("round is %s", status), false)
}

func ErrDeadlinePassed() *Error {
	return newErr(KindState, "DEADLINE_PASSED", "the round deadline has passed", false)
}

// Capacity and validation.
func ErrInsufficientParticipants(have, need int) *Error {
	return newErr(KindValidation, "INSUFFICIENT_PARTICIPANTS",
		fmt.Sprintf("need at least %d participants, have %d", need, have), false).
		WithDetails(map[string]any{"have": have, "need": need})
}

func ErrParticipantsNotReady(names []string) *Error {
	return newErr(KindValidation, "PARTICIPANTS_NOT_READY", "some participants are not ready", false).
		WithDetails(map[string]any{"participants": names})
}

func ErrRoomFull() *Error {
	return newErr(KindConflict, "ROOM_FULL", "room is full", false)
}

func ErrValidation(msg string, details map[string]any) *Error {
	return newErr(KindValidation, "VALIDATION_ERROR", msg, false).WithDetails(details)
}

func ErrAnswerAlreadySubmitted() *Error {
	return newErr(KindConflict, "ANSWER_ALREADY_SUBMITTED", "you already answered this round", false)
}

// Resource absence.
func ErrRoomNotFound() *Error {
	return newErr(KindNotFound, "ROOM_NOT_FOUND", "room not found", false)
}

func ErrRoundNotFound() *Error {
	return newErr(KindNotFound, "ROUND_NOT_FOUND", "round not found", false)
}

func ErrNotFound(msg string) *Error {
	return newErr(KindNotFound, "NOT_FOUND", msg, false)
}

// Upstream and transient.
func ErrQuestionGeneration(msg string, retryable bool) *Error {
	return newErr(KindUnavailable, "QUESTION_GENERATION_FAILED", msg, retryable)
}

func ErrInternal(msg string) *Error {
	return newErr(KindInternal, "INTERNAL_ERROR", msg, true)
}
