package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// AIProvider generates questions with an OpenAI-compatible chat
// completions endpoint using a JSON schema response format.
type AIProvider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

func NewAIProvider(cfg AIConfig) *AIProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AIProvider{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
	}
}

func (a *AIProvider) Enabled() bool {
	return a != nil && a.apiKey != ""
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type aiPayload struct {
	Questions []aiQuestion `json:"questions"`
}

type aiQuestion struct {
	Prompt          string          `json:"prompt"`
	Difficulty      int             `json:"difficulty"`
	Language        string          `json:"language"`
	Category        string          `json:"category"`
	Answer          string          `json:"answer"`
	AcceptedAnswers []string        `json:"acceptedAnswers"`
	Choices         []battle.Choice `json:"choices"`
	CorrectChoiceID string          `json:"correctChoiceId"`
}

func questionSchema(t battle.QuestionType) map[string]any {
	str := map[string]any{"type": "string"}
	props := map[string]any{
		"prompt":     str,
		"difficulty": map[string]any{"type": "integer", "minimum": 1, "maximum": 3},
		"language":   str,
		"category":   str,
	}
	required := []string{"prompt", "difficulty", "language", "category"}

	if t == battle.MultipleChoice {
		props["choices"] = map[string]any{
			"type":     "array",
			"minItems": battle.MinChoices,
			"maxItems": battle.MaxChoices,
			"items": map[string]any{
				"type":                 "object",
				"properties":           map[string]any{"id": str, "text": str},
				"required":             []string{"id", "text"},
				"additionalProperties": false,
			},
		}
		props["correctChoiceId"] = str
		required = append(required, "choices", "correctChoiceId")
	} else {
		props["answer"] = str
		props["acceptedAnswers"] = map[string]any{"type": "array", "items": str}
		required = append(required, "answer", "acceptedAnswers")
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"properties":           props,
					"required":             required,
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	}
}

const systemPrompt = `You write trivia questions for a live multiplayer quiz.
Questions must be factually accurate, unambiguous and answerable in a few words.
Respond only with JSON matching the provided schema.`

func userPrompt(p Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s trivia questions", p.Count, p.Type)
	if p.Topic != "" {
		fmt.Fprintf(&b, " about %q", p.Topic)
	}
	fmt.Fprintf(&b, " in language %q at difficulty %d on a 1 (easy) to 3 (hard) scale.", p.Language, p.Difficulty)
	if p.Type == battle.MultipleChoice {
		fmt.Fprintf(&b, " Give each question %d to %d distinct choices with short ids and mark the correct one.",
			battle.MinChoices, battle.MaxChoices)
	} else {
		b.WriteString(" List common alternative spellings of the answer in acceptedAnswers.")
	}
	return b.String()
}

func (a *AIProvider) Generate(ctx context.Context, p Params) ([]Generated, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(p)},
		},
		ResponseFormat: responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchema{Name: "trivia_questions", Schema: questionSchema(p.Type)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var chat chatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("chat API error: %s", chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, errors.New("chat API returned no choices")
	}

	return parseQuestions(chat.Choices[0].Message.Content, p)
}

// parseQuestions decodes the model output and keeps only questions that
// survive validation, at most p.Count of them.
func parseQuestions(content string, p Params) ([]Generated, error) {
	var payload aiPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}

	out := make([]Generated, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if len(out) == p.Count {
			break
		}
		if gq, ok := toQuestion(q, p); ok {
			out = append(out, Generated{Question: gq})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("model returned no usable questions")
	}
	return out, nil
}

func toQuestion(q aiQuestion, p Params) (battle.Question, bool) {
	base := battle.QuestionBase{
		Prompt:     strings.TrimSpace(q.Prompt),
		Difficulty: battle.ClampDifficulty(q.Difficulty),
		Language:   strings.TrimSpace(q.Language),
		Category:   strings.TrimSpace(q.Category),
	}
	if base.Prompt == "" {
		return nil, false
	}
	if base.Language == "" {
		base.Language = p.Language
	}
	if base.Category == "" {
		base.Category = p.Topic
	}

	if p.Type == battle.MultipleChoice {
		mc := &battle.MultipleChoiceQuestion{
			QuestionBase:    base,
			Choices:         q.Choices,
			CorrectChoiceID: q.CorrectChoiceID,
		}
		if err := mc.NormalizeChoices(); err != nil {
			return nil, false
		}
		return mc, true
	}

	answer := strings.TrimSpace(q.Answer)
	if answer == "" {
		return nil, false
	}
	accepted := make([]string, 0, len(q.AcceptedAnswers))
	for _, alt := range q.AcceptedAnswers {
		if alt = strings.TrimSpace(alt); alt != "" {
			accepted = append(accepted, alt)
		}
	}
	return &battle.OpenEndedQuestion{QuestionBase: base, Answer: answer, AcceptedAnswers: accepted}, true
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
