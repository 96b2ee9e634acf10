package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/store"
)

// ErrBankEmpty means no active bank question matched the language.
var ErrBankEmpty = errors.New("no bank questions available")

// BankStore is the slice of store.Store the bank provider reads.
type BankStore interface {
	BankQuestions(ctx context.Context, f store.BankFilter) ([]store.BankQuestion, error)
}

// BankProvider serves open-ended questions from the curated bank.
type BankProvider struct {
	store BankStore
}

func NewBankProvider(s BankStore) *BankProvider {
	return &BankProvider{store: s}
}

// Generate picks the oldest active questions matching the language and
// difficulty. When the difficulty has no questions it retries once across
// all difficulties.
func (b *BankProvider) Generate(ctx context.Context, p Params) ([]Generated, error) {
	if p.Type == battle.MultipleChoice {
		return nil, fmt.Errorf("bank holds open-ended questions only")
	}

	filter := store.BankFilter{Language: p.Language, Difficulty: p.Difficulty, Limit: p.Count}
	rows, err := b.store.BankQuestions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("querying bank: %w", err)
	}
	if len(rows) == 0 && filter.Difficulty != 0 {
		filter.Difficulty = 0
		if rows, err = b.store.BankQuestions(ctx, filter); err != nil {
			return nil, fmt.Errorf("querying bank without difficulty: %w", err)
		}
	}
	if len(rows) == 0 {
		return nil, ErrBankEmpty
	}

	out := make([]Generated, 0, len(rows))
	for _, row := range rows {
		id := row.ID
		out = append(out, Generated{Question: row.Question(), BankQuestionID: &id})
	}
	return out, nil
}
