package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/playperu/triviabattle/internal/battle"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable"`
	Timestamp time.Time      `json:"timestamp"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// readJSON decodes the body into v and runs its validate tags. An empty
// body leaves v untouched.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return battle.ErrValidation("invalid request body", nil)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return battle.ErrValidation("invalid request body", nil)
		}
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[lowerFirst(fe.Field())] = fe.Tag()
		}
		return battle.ErrValidation("request validation failed", fields)
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func statusFor(kind battle.Kind) int {
	switch kind {
	case battle.KindAuth:
		return http.StatusUnauthorized
	case battle.KindForbidden:
		return http.StatusForbidden
	case battle.KindNotFound:
		return http.StatusNotFound
	case battle.KindConflict:
		return http.StatusConflict
	case battle.KindState, battle.KindValidation:
		return http.StatusBadRequest
	case battle.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as the error envelope. Errors outside the domain
// taxonomy are logged and reported as INTERNAL_ERROR; their text reaches
// the client only in development.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, dev bool) {
	e, ok := battle.AsError(err)
	if !ok {
		logger.Error("unhandled error", "error", err)
		msg := "internal server error"
		if dev {
			msg = err.Error()
		}
		e = battle.ErrInternal(msg)
	} else if e.Kind == battle.KindInternal {
		logger.Error("internal error", "code", e.Code, "error", err)
	}

	writeJSON(w, statusFor(e.Kind), ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		Retryable: e.Retryable,
		Timestamp: time.Now().UTC(),
	}})
}

// WriteError renders err as the error envelope for handlers mounted
// outside the API router.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	writeError(w, logger, err, false)
}
