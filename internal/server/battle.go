package server

import (
	"net/http"

	"github.com/playperu/triviabattle/internal/battle"
)

// AnswerRequest is the request body for POST /api/rooms/{id}/rounds/{n}/answers.
// Open-ended rounds take answer; multiple-choice rounds take choiceId.
type AnswerRequest struct {
	Answer   string `json:"answer" validate:"max=500"`
	ChoiceID string `json:"choiceId" validate:"max=64"`
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.Start(r.Context(), roomFrom(r).ID, SessionID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleReveal(w http.ResponseWriter, r *http.Request) {
	n, err := roundNumber(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	res, err := a.engine.Reveal(r.Context(), roomFrom(r).ID, SessionID(r), n)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleAnswer(w http.ResponseWriter, r *http.Request) {
	n, err := roundNumber(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req AnswerRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	room := roomFrom(r)
	res, err := a.engine.SubmitAnswer(r.Context(), room.ID, SessionID(r), n, battle.Submission{
		Text:     req.Answer,
		ChoiceID: req.ChoiceID,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	a.registry.Seen(r.Context(), room.ID, SessionID(r))
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleClose(w http.ResponseWriter, r *http.Request) {
	n, err := roundNumber(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	res, err := a.engine.Close(r.Context(), roomFrom(r).ID, SessionID(r), n)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleAdvance(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.Advance(r.Context(), roomFrom(r).ID, SessionID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleFinish(w http.ResponseWriter, r *http.Request) {
	res, err := a.engine.Finish(r.Context(), roomFrom(r).ID, SessionID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	room := roomFrom(r)
	st, err := a.engine.State(r.Context(), room.ID, SessionID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.registry.Seen(r.Context(), room.ID, SessionID(r))
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleAnswerStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.engine.AnswerStatus(r.Context(), roomFrom(r).ID, SessionID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	sb, err := a.engine.Scoreboard(r.Context(), roomFrom(r).ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sb)
}

func (a *API) handleMyAnswers(w http.ResponseWriter, r *http.Request) {
	reviews, err := a.engine.MyAnswers(r.Context(), roomFrom(r).ID, SessionID(r))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": reviews})
}
