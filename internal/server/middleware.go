package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/store"
)

type ctxKey int

const (
	ctxKeyRoom ctxKey = iota
	ctxKeyAdmin
)

const (
	sessionCookieName = "battle_session_id"
	adminCookieName   = "admin_session"
)

var (
	errRouteNotFound = battle.ErrNotFound("route not found")
	errNotAdmin      = &battle.Error{Code: "UNAUTHORIZED", Message: "not authenticated", Kind: battle.KindAuth}
)

// roomMiddleware resolves {id}, which may be a room id or its code.
func (a *API) roomMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		room, err := a.registry.Resolve(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			a.fail(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyRoom, room)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err != nil || cookie.Value == "" {
			a.fail(w, errNotAdmin)
			return
		}
		admin, err := a.store.AdminFromSession(r.Context(), cookie.Value)
		if errors.Is(err, store.ErrNotFound) {
			a.fail(w, errNotAdmin)
			return
		}
		if err != nil {
			a.fail(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyAdmin, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func roomFrom(r *http.Request) battle.Room {
	return r.Context().Value(ctxKeyRoom).(battle.Room)
}

func adminFrom(r *http.Request) store.Admin {
	return r.Context().Value(ctxKeyAdmin).(store.Admin)
}

// SessionID returns the caller's session cookie value, or "" when absent.
func SessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func roundNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 {
		return 0, battle.ErrValidation("round number must be a positive integer", map[string]any{"n": "min"})
	}
	return n, nil
}
