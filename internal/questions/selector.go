package questions

import (
	"context"
	"log/slog"

	"github.com/playperu/triviabattle/internal/battle"
)

// Selector applies the room's question policy: multiple choice needs the
// model, open-ended prefers it and falls back to the bank.
type Selector struct {
	ai     Source
	bank   Source
	logger *slog.Logger
}

// NewSelector wires the policy. A nil ai means generation is disabled.
func NewSelector(logger *slog.Logger, ai, bank Source) *Selector {
	return &Selector{ai: ai, bank: bank, logger: logger}
}

// Generate returns *battle.Error values with code QUESTION_GENERATION_FAILED
// when no questions could be produced.
func (s *Selector) Generate(ctx context.Context, p Params) ([]Generated, error) {
	if p.Type == battle.MultipleChoice {
		if s.ai == nil {
			return nil, battle.ErrQuestionGeneration("multiple-choice questions require AI generation, which is disabled", false)
		}
		qs, err := s.ai.Generate(ctx, p)
		if err != nil {
			s.logger.Warn("ai question generation failed", "type", p.Type, "error", err)
			return nil, battle.ErrQuestionGeneration("could not generate questions, try again", true)
		}
		return qs, nil
	}

	if s.ai != nil {
		qs, err := s.ai.Generate(ctx, p)
		if err == nil && len(qs) > 0 {
			return qs, nil
		}
		s.logger.Warn("ai question generation failed, using bank", "error", err)
	}

	qs, err := s.bank.Generate(ctx, p)
	if err != nil {
		s.logger.Warn("bank question lookup failed", "language", p.Language, "error", err)
		return nil, battle.ErrQuestionGeneration("no questions available for this room", true)
	}
	return qs, nil
}
