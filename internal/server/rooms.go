package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/lobby"
)

const qrSize = 320

// CreateRoomRequest is the request body for POST /api/rooms. Omitted
// fields take the room defaults.
type CreateRoomRequest struct {
	Capacity     int    `json:"capacity" validate:"omitempty,min=1,max=20"`
	Language     string `json:"language" validate:"omitempty,min=2,max=8"`
	Topic        string `json:"topic" validate:"max=120"`
	NumQuestions int    `json:"numQuestions" validate:"omitempty,min=1,max=20"`
	RoundTimeSec int    `json:"roundTimeSec" validate:"omitempty,min=10,max=300"`
	QuestionType string `json:"questionType" validate:"omitempty,oneof=open-ended multiple-choice"`
	Difficulty   string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	BattleMode   string `json:"battleMode" validate:"omitempty,oneof=individual team"`
}

// RoomResponse is returned when a room is created or joined.
type RoomResponse struct {
	Room        battle.Room        `json:"room"`
	Participant battle.Participant `json:"participant"`
	Created     bool               `json:"created"`
}

// JoinRequest is the request body for POST /api/rooms/{id}/join.
type JoinRequest struct {
	DisplayName string `json:"displayName" validate:"max=40"`
	Team        string `json:"team" validate:"omitempty,oneof=red blue"`
}

// ReadyRequest is the request body for POST /api/rooms/{id}/ready.
type ReadyRequest struct {
	Ready bool `json:"ready"`
}

func (a *API) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	room, host, err := a.registry.CreateRoom(r.Context(), lobby.CreateParams{
		HostSessionID: SessionID(r),
		Capacity:      req.Capacity,
		Language:      req.Language,
		Topic:         req.Topic,
		NumQuestions:  req.NumQuestions,
		RoundTimeSec:  req.RoundTimeSec,
		QuestionType:  battle.QuestionType(req.QuestionType),
		Difficulty:    req.Difficulty,
		Mode:          battle.BattleMode(req.BattleMode),
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RoomResponse{Room: room, Participant: host, Created: true})
}

func (a *API) handleAvailability(w http.ResponseWriter, r *http.Request) {
	av, err := a.registry.Availability(r.Context(), roomFrom(r).ID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	room := roomFrom(r)
	p, created, err := a.registry.Join(r.Context(), room.ID, SessionID(r), req.DisplayName, req.Team)
	if err != nil {
		a.fail(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, RoomResponse{Room: room, Participant: p, Created: created})
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := a.registry.Leave(r.Context(), roomFrom(r).ID, SessionID(r)); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	var req ReadyRequest
	if err := readJSON(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	p, err := a.registry.SetReady(r.Context(), roomFrom(r).ID, SessionID(r), req.Ready)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// joinURL is the link players scan to join the room.
func (a *API) joinURL(code string) string {
	return strings.TrimSuffix(a.opts.PublicBaseURL, "/") + "/join/" + url.PathEscape(code)
}

func (a *API) handleQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(a.joinURL(roomFrom(r).Code), qrcode.Medium, qrSize)
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}
