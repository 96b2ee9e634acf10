package server

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/store"
)

const sessionMaxAge = 30 * 24 * time.Hour

// SessionRequest is the request body for POST /api/sessions.
type SessionRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,max=512"`
	DisplayName string `json:"displayName" validate:"required,max=40"`
}

// hashFingerprint keeps raw device fingerprints out of the database.
func hashFingerprint(fp string) string {
	sum := blake2b.Sum256([]byte(fp))
	return hex.EncodeToString(sum[:])
}

func (a *API) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HttpOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		a.fail(w, battle.ErrValidation("displayName is required", map[string]any{"displayName": "required"}))
		return
	}

	sess, err := a.store.UpsertSession(r.Context(), hashFingerprint(strings.TrimSpace(req.Fingerprint)), name)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.setSessionCookie(w, sess.ID)
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) handleSessionMe(w http.ResponseWriter, r *http.Request) {
	id := SessionID(r)
	if id == "" {
		a.fail(w, battle.ErrMissingSession())
		return
	}
	sess, err := a.store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		a.fail(w, battle.ErrInvalidSession())
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
