package server

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/triviabattle/internal/events"
	"github.com/playperu/triviabattle/internal/lobby"
	"github.com/playperu/triviabattle/internal/rounds"
	"github.com/playperu/triviabattle/internal/store"
)

// Options tune behavior that differs between deployments.
type Options struct {
	// Dev exposes unexpected error text to clients.
	Dev           bool
	CookieSecure  bool
	PublicBaseURL string
}

// API serves everything under /api.
type API struct {
	store    store.Store
	registry *lobby.Registry
	engine   *rounds.Engine
	broker   *events.Broker
	logger   *slog.Logger
	opts     Options
}

func NewAPI(s store.Store, reg *lobby.Registry, eng *rounds.Engine, broker *events.Broker, logger *slog.Logger, opts Options) *API {
	return &API{store: s, registry: reg, engine: eng, broker: broker, logger: logger, opts: opts}
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/sessions", a.handleCreateSession)
	r.Get("/sessions/me", a.handleSessionMe)

	r.Post("/rooms", a.handleCreateRoom)
	r.Route("/rooms/{id}", func(r chi.Router) {
		r.Use(a.roomMiddleware)

		r.Get("/availability", a.handleAvailability)
		r.Get("/qr.png", a.handleQR)
		r.Post("/join", a.handleJoin)
		r.Post("/leave", a.handleLeave)
		r.Post("/ready", a.handleReady)

		r.Post("/start", a.handleStart)
		r.Post("/rounds/{n}/reveal", a.handleReveal)
		r.Post("/rounds/{n}/answers", a.handleAnswer)
		r.Post("/rounds/{n}/close", a.handleClose)
		r.Post("/advance", a.handleAdvance)
		r.Post("/finish", a.handleFinish)

		r.Get("/state", a.handleState)
		r.Get("/answer-status", a.handleAnswerStatus)
		r.Get("/scoreboard", a.handleScoreboard)
		r.Get("/my-answers", a.handleMyAnswers)
		r.Get("/events", a.handleEvents)
	})

	r.Post("/admin/login", a.handleAdminLogin)
	r.Post("/admin/logout", a.handleAdminLogout)
	r.Group(func(r chi.Router) {
		r.Use(a.adminAuthMiddleware)
		r.Get("/admin/me", a.handleAdminMe)
		r.Get("/admin/questions", a.handleListBank)
		r.Post("/admin/questions", a.handleCreateBank)
		r.Put("/admin/questions/{qid}", a.handleUpdateBank)
		r.Delete("/admin/questions/{qid}", a.handleDeleteBank)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, a.logger, errRouteNotFound, a.opts.Dev)
	})
	return r
}

func (a *API) fail(w http.ResponseWriter, err error) {
	writeError(w, a.logger, err, a.opts.Dev)
}

// MountSPA serves the built frontend from dir for every unmatched path.
// It does nothing when dir is empty or missing.
func MountSPA(r chi.Router, logger *slog.Logger, dir string) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Warn("SPA directory not found", "dir", dir)
		return
	}
	logger.Info("serving SPA", "dir", dir)
	r.NotFound(handleSPA(dir))
}
