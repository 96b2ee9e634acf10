// Package questions produces the question sequence for a battle, from the
// curated bank or from an OpenAI-compatible model.
package questions

import (
	"context"
	"errors"

	"github.com/playperu/triviabattle/internal/battle"
)

// ErrDisabled is returned by sources that are not configured.
var ErrDisabled = errors.New("question source disabled")

// Params describes the questions a room needs.
type Params struct {
	Count      int
	Type       battle.QuestionType
	Language   string
	Topic      string
	Difficulty int
}

// Generated is one question ready to be stored as a round. BankQuestionID
// is set when the question came from the bank.
type Generated struct {
	Question       battle.Question
	BankQuestionID *string
}

// Source yields up to p.Count questions. Fewer questions than asked is not
// an error; no questions at all is.
type Source interface {
	Generate(ctx context.Context, p Params) ([]Generated, error)
}
