// Command load-questions imports open-ended bank questions from a CSV file
// with the header language,difficulty,category,prompt,answer,accepted.
// accepted holds alternative answers separated by "|". Rows whose prompt
// already exists for the language are skipped.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/playperu/triviabattle/internal/config"
	"github.com/playperu/triviabattle/internal/database"
	"github.com/playperu/triviabattle/internal/migrations"
	"github.com/playperu/triviabattle/internal/store"
)

var header = []string{"language", "difficulty", "category", "prompt", "answer", "accepted"}

func main() {
	file := flag.String("file", "questions.csv", "path to questions csv")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(context.Background(), logger, *file, *dryRun); err != nil {
		logger.Error("loading questions failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := readQuestions(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if dryRun {
		logger.Info("dry run", "file", path, "questions", len(rows))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.DBDriver, err)
	}
	defer db.Close()
	if err := migrations.Run(db, cfg.DBDriver); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	st, err := store.New(db, cfg.DBDriver)
	if err != nil {
		return fmt.Errorf("preparing store: %w", err)
	}

	inserted, skipped, err := load(ctx, st, rows)
	if err != nil {
		return err
	}
	logger.Info("loaded questions", "inserted", inserted, "skipped", skipped)
	return nil
}

// bankWriter is the slice of store.Store the importer uses.
type bankWriter interface {
	ListBankQuestions(ctx context.Context) ([]store.BankQuestion, error)
	CreateBankQuestion(ctx context.Context, q store.BankQuestion) (store.BankQuestion, error)
}

func load(ctx context.Context, st bankWriter, rows []store.BankQuestion) (inserted, skipped int, err error) {
	existing, err := st.ListBankQuestions(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing bank: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, q := range existing {
		seen[dedupKey(q)] = true
	}

	for _, q := range rows {
		key := dedupKey(q)
		if seen[key] {
			skipped++
			continue
		}
		if _, err := st.CreateBankQuestion(ctx, q); err != nil {
			return inserted, skipped, fmt.Errorf("inserting %q: %w", q.Prompt, err)
		}
		seen[key] = true
		inserted++
	}
	return inserted, skipped, nil
}

func dedupKey(q store.BankQuestion) string {
	return q.Language + "\x00" + strings.ToLower(strings.TrimSpace(q.Prompt))
}

func readQuestions(r io.Reader) ([]store.BankQuestion, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = len(header)

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i, name := range header {
		if strings.ToLower(strings.TrimSpace(first[i])) != name {
			return nil, fmt.Errorf("header column %d is %q, want %q", i+1, first[i], name)
		}
	}

	var out []store.BankQuestion
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		q, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, q)
	}
}

func parseRow(row []string) (store.BankQuestion, error) {
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	q := store.BankQuestion{
		Language: strings.ToLower(row[0]),
		Category: row[2],
		Prompt:   row[3],
		Answer:   row[4],
		Active:   true,
	}
	if q.Language == "" || q.Prompt == "" || q.Answer == "" {
		return q, errors.New("language, prompt and answer are required")
	}
	d, err := parseDifficulty(row[1])
	if err != nil {
		return q, err
	}
	q.Difficulty = d
	for _, alt := range strings.Split(row[5], "|") {
		if alt = strings.TrimSpace(alt); alt != "" {
			q.AcceptedAnswers = append(q.AcceptedAnswers, alt)
		}
	}
	return q, nil
}

// parseDifficulty accepts the 1-3 scale or the room labels.
func parseDifficulty(s string) (int, error) {
	switch strings.ToLower(s) {
	case "easy":
		return 1, nil
	case "medium", "":
		return 2, nil
	case "hard":
		return 3, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 3 {
		return 0, fmt.Errorf("difficulty %q must be 1-3 or easy, medium, hard", s)
	}
	return n, nil
}
