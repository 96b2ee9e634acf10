package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/store"
)

var errBadCredentials = &battle.Error{Code: "INVALID_CREDENTIALS", Message: "invalid credentials", Kind: battle.KindAuth}

// AdminLoginRequest is the request body for POST /api/admin/login.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminMeResponse is the response for GET /api/admin/me.
type AdminMeResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// BankQuestionRequest creates or replaces a bank question.
type BankQuestionRequest struct {
	Language        string   `json:"language" validate:"required,min=2,max=8"`
	Difficulty      int      `json:"difficulty" validate:"required,min=1,max=3"`
	Category        string   `json:"category" validate:"max=60"`
	Prompt          string   `json:"prompt" validate:"required,max=500"`
	Answer          string   `json:"answer" validate:"required,max=200"`
	AcceptedAnswers []string `json:"acceptedAnswers" validate:"max=20,dive,max=200"`
	Active          *bool    `json:"active"`
}

// BankQuestionItem is a bank question as shown to admins.
type BankQuestionItem struct {
	ID              string    `json:"id"`
	Language        string    `json:"language"`
	Difficulty      int       `json:"difficulty"`
	Category        string    `json:"category"`
	Prompt          string    `json:"prompt"`
	Answer          string    `json:"answer"`
	AcceptedAnswers []string  `json:"acceptedAnswers"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
}

func bankItem(q store.BankQuestion) BankQuestionItem {
	accepted := q.AcceptedAnswers
	if accepted == nil {
		accepted = []string{}
	}
	return BankQuestionItem{
		ID:              q.ID,
		Language:        q.Language,
		Difficulty:      q.Difficulty,
		Category:        q.Category,
		Prompt:          q.Prompt,
		Answer:          q.Answer,
		AcceptedAnswers: accepted,
		Active:          q.Active,
		CreatedAt:       q.CreatedAt,
	}
}

func (req BankQuestionRequest) toBank(id string) store.BankQuestion {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	var accepted []string
	for _, s := range req.AcceptedAnswers {
		if s = strings.TrimSpace(s); s != "" {
			accepted = append(accepted, s)
		}
	}
	return store.BankQuestion{
		ID:              id,
		Language:        strings.ToLower(strings.TrimSpace(req.Language)),
		Difficulty:      req.Difficulty,
		Category:        strings.TrimSpace(req.Category),
		Prompt:          strings.TrimSpace(req.Prompt),
		Answer:          strings.TrimSpace(req.Answer),
		AcceptedAnswers: accepted,
		Active:          active,
	}
}

func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	adminID, hash, err := a.store.AdminCredentials(r.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		a.fail(w, errBadCredentials)
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		a.fail(w, errBadCredentials)
		return
	}

	sid, err := a.store.CreateAdminSession(r.Context(), adminID)
	if err != nil {
		a.fail(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(7 * 24 * time.Hour / time.Second),
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, AdminMeResponse{ID: adminID, Email: email})
}

func (a *API) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(adminCookieName); err == nil && cookie.Value != "" {
		if err := a.store.DeleteAdminSession(r.Context(), cookie.Value); err != nil {
			a.logger.Warn("deleting admin session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleAdminMe(w http.ResponseWriter, r *http.Request) {
	admin := adminFrom(r)
	writeJSON(w, http.StatusOK, AdminMeResponse{ID: admin.ID, Email: admin.Email})
}

func (a *API) handleListBank(w http.ResponseWriter, r *http.Request) {
	qs, err := a.store.ListBankQuestions(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	items := make([]BankQuestionItem, len(qs))
	for i, q := range qs {
		items[i] = bankItem(q)
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleCreateBank(w http.ResponseWriter, r *http.Request) {
	var req BankQuestionRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	q, err := a.store.CreateBankQuestion(r.Context(), req.toBank(""))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.logger.Info("bank question created", "id", q.ID, "admin", adminFrom(r).Email)
	writeJSON(w, http.StatusCreated, bankItem(q))
}

func (a *API) handleUpdateBank(w http.ResponseWriter, r *http.Request) {
	var req BankQuestionRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	q, err := a.store.UpdateBankQuestion(r.Context(), req.toBank(chi.URLParam(r, "qid")))
	if errors.Is(err, store.ErrNotFound) {
		a.fail(w, battle.ErrNotFound("question not found"))
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bankItem(q))
}

func (a *API) handleDeleteBank(w http.ResponseWriter, r *http.Request) {
	err := a.store.DeleteBankQuestion(r.Context(), chi.URLParam(r, "qid"))
	if errors.Is(err, store.ErrNotFound) {
		a.fail(w, battle.ErrNotFound("question not found"))
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SeedAdmin creates the configured admin account if it does not exist yet.
func SeedAdmin(ctx context.Context, logger *slog.Logger, s store.Store, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	err = s.CreateAdmin(ctx, email, string(hash))
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("admin account created", "email", email)
	return nil
}
