package battle

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Question is either an *OpenEndedQuestion or a *MultipleChoiceQuestion.
// Consumers switch on the concrete type.
type Question interface {
	Type() QuestionType
	Base() QuestionBase
}

type QuestionBase struct {
	Prompt     string `json:"prompt"`
	Difficulty int    `json:"difficulty"`
	Language   string `json:"language"`
	Category   string `json:"category,omitempty"`
}

type OpenEndedQuestion struct {
	QuestionBase
	Answer          string   `json:"answer"`
	AcceptedAnswers []string `json:"acceptedAnswers,omitempty"`
}

func (*OpenEndedQuestion) Type() QuestionType {
	return OpenEnded
}

func (q *OpenEndedQuestion) Base() QuestionBase {
	return q.QuestionBase
}

type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MultipleChoiceQuestion struct {
	QuestionBase
	Choices         []Choice `json:"choices"`
	CorrectChoiceID string   `json:"correctChoiceId"`
}

func (*MultipleChoiceQuestion) Type() QuestionType {
	return MultipleChoice
}

func (q *MultipleChoiceQuestion) Base() QuestionBase {
	return q.QuestionBase
}

// CorrectText returns the text of the correct choice.
func (q *MultipleChoiceQuestion) CorrectText() string {
	for _, c := range q.Choices {
		if c.ID == q.CorrectChoiceID {
			return c.Text
		}
	}
	return ""
}

const (
	MinChoices = 3
	MaxChoices = 6
)

// NormalizeChoices trims and deduplicates choices by id and by normalized
// text, caps them at MaxChoices and guarantees the correct id refers to a
// surviving choice, falling back to the first one.
func (q *MultipleChoiceQuestion) NormalizeChoices() error {
	seenID := make(map[string]bool, len(q.Choices))
	seenText := make(map[string]bool, len(q.Choices))
	out := make([]Choice, 0, len(q.Choices))
	for _, c := range q.Choices {
		c.ID = strings.TrimSpace(c.ID)
		c.Text = strings.TrimSpace(c.Text)
		key := NormalizeAnswer(c.Text)
		if c.ID == "" || key == "" || seenID[c.ID] || seenText[key] {
			continue
		}
		seenID[c.ID] = true
		seenText[key] = true
		out = append(out, c)
		if len(out) == MaxChoices {
			break
		}
	}
	if len(out) < MinChoices {
		return fmt.Errorf("multiple-choice question needs at least %d distinct choices, got %d", MinChoices, len(out))
	}
	q.Choices = out
	if !seenID[strings.TrimSpace(q.CorrectChoiceID)] {
		q.CorrectChoiceID = out[0].ID
	} else {
		q.CorrectChoiceID = strings.TrimSpace(q.CorrectChoiceID)
	}
	return nil
}

// ClampDifficulty forces d into the 1-3 range.
func ClampDifficulty(d int) int {
	switch {
	case d < 1:
		return 1
	case d > 3:
		return 3
	}
	return d
}

// Grade judges a submission against q. Feedback is a short sentence for
// the answer review screen.
func Grade(q Question, sub Submission) (correct bool, feedback string) {
	switch q := q.(type) {
	case *OpenEndedQuestion:
		given := NormalizeAnswer(sub.Text)
		if given == "" {
			return false, "No answer given. The answer was " + q.Answer + "."
		}
		if given == NormalizeAnswer(q.Answer) {
			return true, "Correct!"
		}
		for _, alt := range q.AcceptedAnswers {
			if given == NormalizeAnswer(alt) {
				return true, "Correct!"
			}
		}
		return false, "The answer was " + q.Answer + "."
	case *MultipleChoiceQuestion:
		if sub.ChoiceID != "" && sub.ChoiceID == q.CorrectChoiceID {
			return true, "Correct!"
		}
		return false, "The answer was " + q.CorrectText() + "."
	}
	return false, ""
}

// NormalizeAnswer lowercases s, strips accents and punctuation and
// collapses whitespace so that "  Perú!" and "peru" compare equal.
func NormalizeAnswer(s string) string {
	folded, _, err := transform.String(stripMarks(), strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}

	var b strings.Builder
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

// stripMarks decomposes runes and drops combining marks. Transformers
// hold state, so each call gets its own chain.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

type questionEnvelope struct {
	Type QuestionType `json:"type"`
}

// MarshalQuestion encodes q with a "type" tag.
func MarshalQuestion(q Question) ([]byte, error) {
	switch q := q.(type) {
	case *OpenEndedQuestion:
		return json.Marshal(struct {
			Type QuestionType `json:"type"`
			*OpenEndedQuestion
		}{OpenEnded, q})
	case *MultipleChoiceQuestion:
		return json.Marshal(struct {
			Type QuestionType `json:"type"`
			*MultipleChoiceQuestion
		}{MultipleChoice, q})
	}
	return nil, fmt.Errorf("unknown question type %T", q)
}

// UnmarshalQuestion decodes data written by MarshalQuestion.
func UnmarshalQuestion(data []byte) (Question, error) {
	var env questionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding question type: %w", err)
	}
	switch env.Type {
	case OpenEnded:
		var q OpenEndedQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("decoding open-ended question: %w", err)
		}
		return &q, nil
	case MultipleChoice:
		var q MultipleChoiceQuestion
		if err := json.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("decoding multiple-choice question: %w", err)
		}
		return &q, nil
	}
	return nil, fmt.Errorf("unknown question type %q", env.Type)
}
