package battle_test

import (
	"testing"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

func TestNormalizeChoices(t *testing.T) {
	tests := []struct {
		name        string
		choices     []battle.Choice
		correct     string
		wantIDs     []string
		wantCorrect string
		wantErr     bool
	}{
		{
			name: "duplicates by text and id dropped",
			choices: []battle.Choice{
				{ID: "a", Text: "Lima"},
				{ID: "b", Text: " lima! "},
				{ID: "a", Text: "Cusco"},
				{ID: "c", Text: "Arequipa"},
				{ID: "d", Text: "Trujillo"},
			},
			correct:     "c",
			wantIDs:     []string{"a", "c", "d"},
			wantCorrect: "c",
		},
		{
			name: "missing correct id falls back to first",
			choices: []battle.Choice{
				{ID: "a", Text: "Lima"},
				{ID: "b", Text: "Cusco"},
				{ID: "c", Text: "Puno"},
			},
			correct:     "z",
			wantIDs:     []string{"a", "b", "c"},
			wantCorrect: "a",
		},
		{
			name: "correct choice removed as duplicate falls back",
			choices: []battle.Choice{
				{ID: "a", Text: "Perú"},
				{ID: "b", Text: "peru"},
				{ID: "c", Text: "Chile"},
				{ID: "d", Text: "Bolivia"},
			},
			correct:     "b",
			wantIDs:     []string{"a", "c", "d"},
			wantCorrect: "a",
		},
		{
			name: "capped at six",
			choices: []battle.Choice{
				{ID: "1", Text: "one"}, {ID: "2", Text: "two"}, {ID: "3", Text: "three"},
				{ID: "4", Text: "four"}, {ID: "5", Text: "five"}, {ID: "6", Text: "six"},
				{ID: "7", Text: "seven"},
			},
			correct:     "7",
			wantIDs:     []string{"1", "2", "3", "4", "5", "6"},
			wantCorrect: "1",
		},
		{
			name: "too few distinct choices",
			choices: []battle.Choice{
				{ID: "a", Text: "yes"},
				{ID: "b", Text: "YES"},
				{ID: "c", Text: "no"},
			},
			correct: "a",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &battle.MultipleChoiceQuestion{Choices: tt.choices, CorrectChoiceID: tt.correct}
			err := q.NormalizeChoices()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(q.Choices) != len(tt.wantIDs) {
				t.Fatalf("expected %d choices, got %d: %+v", len(tt.wantIDs), len(q.Choices), q.Choices)
			}
			for i, id := range tt.wantIDs {
				if q.Choices[i].ID != id {
					t.Errorf("choice %d: expected id %q, got %q", i, id, q.Choices[i].ID)
				}
			}
			if q.CorrectChoiceID != tt.wantCorrect {
				t.Errorf("expected correct id %q, got %q", tt.wantCorrect, q.CorrectChoiceID)
			}
		})
	}
}

func TestGrade(t *testing.T) {
	open := &battle.OpenEndedQuestion{Answer: "Machu Picchu", AcceptedAnswers: []string{"Machupicchu"}}
	mcq := &battle.MultipleChoiceQuestion{
		Choices:         []battle.Choice{{ID: "a", Text: "Lima"}, {ID: "b", Text: "Quito"}, {ID: "c", Text: "La Paz"}},
		CorrectChoiceID: "a",
	}

	tests := []struct {
		name string
		q    battle.Question
		sub  battle.Submission
		want bool
	}{
		{"open exact", open, battle.Submission{Text: "Machu Picchu"}, true},
		{"open case and punctuation", open, battle.Submission{Text: "  machu   picchu!! "}, true},
		{"open accepted alias", open, battle.Submission{Text: "MACHUPICCHU"}, true},
		{"open wrong", open, battle.Submission{Text: "Cusco"}, false},
		{"open empty", open, battle.Submission{}, false},
		{"mcq right", mcq, battle.Submission{ChoiceID: "a"}, true},
		{"mcq wrong", mcq, battle.Submission{ChoiceID: "b"}, false},
		{"mcq text ignored", mcq, battle.Submission{Text: "Lima"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, feedback := battle.Grade(tt.q, tt.sub)
			if got != tt.want {
				t.Errorf("expected correct=%v, got %v (%s)", tt.want, got, feedback)
			}
			if feedback == "" {
				t.Error("expected feedback text")
			}
		})
	}
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Perú!", "peru"},
		{"Ñandú", "nandu"},
		{"São  Paulo", "sao paulo"},
		{"Zürich, CH", "zurich ch"},
		{"¿Qué?", "que"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := battle.NormalizeAnswer(tt.in); got != tt.want {
			t.Errorf("NormalizeAnswer(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestQuestionSnapshotKeepsVariant(t *testing.T) {
	in := &battle.MultipleChoiceQuestion{
		QuestionBase:    battle.QuestionBase{Prompt: "Capital of Peru?", Difficulty: 1, Language: "en"},
		Choices:         []battle.Choice{{ID: "a", Text: "Lima"}, {ID: "b", Text: "Cusco"}, {ID: "c", Text: "Ica"}},
		CorrectChoiceID: "a",
	}
	data, err := battle.MarshalQuestion(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := battle.UnmarshalQuestion(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	mcq, ok := out.(*battle.MultipleChoiceQuestion)
	if !ok {
		t.Fatalf("expected *MultipleChoiceQuestion, got %T", out)
	}
	if mcq.Prompt != in.Prompt || mcq.CorrectChoiceID != "a" || len(mcq.Choices) != 3 {
		t.Errorf("snapshot lost data: %+v", mcq)
	}

	if _, err := battle.UnmarshalQuestion([]byte(`{"type":"essay"}`)); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestScoreAnswer(t *testing.T) {
	limit := 20 * time.Second
	tests := []struct {
		name    string
		correct bool
		elapsed time.Duration
		want    int
	}{
		{"wrong", false, time.Second, 0},
		{"instant", true, 0, 200},
		{"half time", true, 10 * time.Second, 150},
		{"at deadline", true, 20 * time.Second, 100},
		{"late", true, 25 * time.Second, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := battle.ScoreAnswer(tt.correct, tt.elapsed, limit); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRoundAcceptsAnswersAt(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := battle.Round{Status: battle.RoundActive, DeadlineAt: &deadline}

	if !r.AcceptsAnswersAt(deadline.Add(time.Second), 2*time.Second) {
		t.Error("expected answer within grace to be accepted")
	}
	if r.AcceptsAnswersAt(deadline.Add(3*time.Second), 2*time.Second) {
		t.Error("expected answer past grace to be rejected")
	}
	r.Status = battle.RoundScoreboard
	if r.AcceptsAnswersAt(deadline.Add(-time.Second), 0) {
		t.Error("expected closed round to reject answers")
	}
}
