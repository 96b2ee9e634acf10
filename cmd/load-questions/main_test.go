package main

import (
	"context"
	"strings"
	"testing"

	"github.com/playperu/triviabattle/internal/store/storetest"
)

const sample = `language,difficulty,category,prompt,answer,accepted
es,easy,geografía,¿Capital del Perú?,Lima,Ciudad de los Reyes
en,3,science,"Symbol for gold?",Au,
en,medium,history,Who painted the Mona Lisa?,Leonardo da Vinci,Da Vinci | Leonardo
`

func TestReadQuestions(t *testing.T) {
	rows, err := readQuestions(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Difficulty != 1 || rows[0].Language != "es" || len(rows[0].AcceptedAnswers) != 1 {
		t.Errorf("row 1 = %+v", rows[0])
	}
	if rows[1].Difficulty != 3 || rows[1].AcceptedAnswers != nil {
		t.Errorf("row 2 = %+v", rows[1])
	}
	if got := rows[2].AcceptedAnswers; len(got) != 2 || got[0] != "Da Vinci" || got[1] != "Leonardo" {
		t.Errorf("row 3 accepted = %q", got)
	}
	for _, q := range rows {
		if !q.Active {
			t.Errorf("%q should be active", q.Prompt)
		}
	}
}

func TestReadQuestionsRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"wrong header", "lang,difficulty,category,prompt,answer,accepted\n"},
		{"bad difficulty", "language,difficulty,category,prompt,answer,accepted\nen,7,x,Q?,A,\n"},
		{"missing answer", "language,difficulty,category,prompt,answer,accepted\nen,1,x,Q?,,\n"},
		{"short row", "language,difficulty,category,prompt,answer,accepted\nen,1,x,Q?\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readQuestions(strings.NewReader(tt.input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadSkipsDuplicates(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	rows, err := readQuestions(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	inserted, skipped, err := load(ctx, s, rows)
	if err != nil || inserted != 3 || skipped != 0 {
		t.Fatalf("first load: inserted=%d skipped=%d err=%v", inserted, skipped, err)
	}

	rows[1].Prompt = "  SYMBOL FOR GOLD?  "
	inserted, skipped, err = load(ctx, s, rows)
	if err != nil || inserted != 0 || skipped != 3 {
		t.Fatalf("second load: inserted=%d skipped=%d err=%v", inserted, skipped, err)
	}

	all, err := s.ListBankQuestions(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("bank has %d questions, err %v", len(all), err)
	}
}
