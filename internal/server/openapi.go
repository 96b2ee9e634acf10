package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/lobby"
	"github.com/playperu/triviabattle/internal/rounds"
)

// HealthStatus is one dependency's entry in the /healthz response.
type HealthStatus struct {
	Status    string `json:"status" enum:"ok,error,disabled"`
	LatencyMS int64  `json:"latencyMs,omitempty"`
}

type roomPath struct {
	ID string `path:"id" description:"Room id or room code"`
}

type roundPath struct {
	ID     string `path:"id" description:"Room id or room code"`
	Number int    `path:"n" description:"Round number, starting at 1"`
}

type bankPath struct {
	ID string `path:"qid"`
}

type myAnswersResponse struct {
	Answers []rounds.AnswerReview `json:"answers"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Trivia Battle API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Real-time multiplayer trivia rooms. Player identity travels in the battle_session_id cookie.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(map[string]HealthStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]HealthStatus{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws/rooms/{id}
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws/rooms/{id}")
	getWS.SetSummary("Room event WebSocket")
	getWS.SetDescription("Upgrades to a WebSocket that pushes every room event as a JSON text message.")
	getWS.AddReqStructure(roomPath{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/sessions
	postSession, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	postSession.SetSummary("Create or refresh session")
	postSession.SetDescription("Maps a device fingerprint to a session and sets the session cookie.")
	postSession.AddReqStructure(SessionRequest{})
	postSession.AddRespStructure(battle.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	postSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postSession)

	// GET /api/sessions/me
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/me")
	getSession.SetSummary("Current session")
	getSession.AddRespStructure(battle.Session{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getSession)

	// POST /api/rooms
	postRoom, _ := r.NewOperationContext(http.MethodPost, "/api/rooms")
	postRoom.SetSummary("Create room")
	postRoom.SetDescription("Creates a waiting room hosted by the caller. Team rooms get red and blue teams.")
	postRoom.AddReqStructure(CreateRoomRequest{})
	postRoom.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postRoom)

	// GET /api/rooms/{id}/availability
	getAvail, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{id}/availability")
	getAvail.SetSummary("Room availability")
	getAvail.SetDescription("Reports whether a new player could join, with capacity and recent connections.")
	getAvail.AddReqStructure(roomPath{})
	getAvail.AddRespStructure(lobby.Availability{}, openapi.WithHTTPStatus(http.StatusOK))
	getAvail.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getAvail)

	// GET /api/rooms/{id}/qr.png
	getQR, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{id}/qr.png")
	getQR.SetSummary("Join QR code")
	getQR.AddReqStructure(roomPath{})
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("image/png"))
	_ = r.AddOperation(getQR)

	// POST /api/rooms/{id}/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/join")
	postJoin.SetSummary("Join room")
	postJoin.SetDescription("Adds the caller to the room. Rejoining returns the existing participant.")
	postJoin.AddReqStructure(struct {
		roomPath
		JoinRequest
	}{})
	postJoin.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postJoin.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// POST /api/rooms/{id}/leave
	postLeave, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/leave")
	postLeave.SetSummary("Leave room")
	postLeave.AddReqStructure(roomPath{})
	postLeave.AddRespStructure(statusResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLeave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postLeave)

	// POST /api/rooms/{id}/ready
	postReady, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/ready")
	postReady.SetSummary("Set ready flag")
	postReady.AddReqStructure(struct {
		roomPath
		ReadyRequest
	}{})
	postReady.AddRespStructure(battle.Participant{}, openapi.WithHTTPStatus(http.StatusOK))
	postReady.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postReady)

	// POST /api/rooms/{id}/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/start")
	postStart.SetSummary("Start battle")
	postStart.SetDescription("Host only. Generates questions, creates rounds and reveals round 1.")
	postStart.AddReqStructure(roomPath{})
	postStart.AddRespStructure(rounds.StartResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postStart)

	// POST /api/rooms/{id}/rounds/{n}/reveal
	postReveal, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/rounds/{n}/reveal")
	postReveal.SetSummary("Reveal round")
	postReveal.SetDescription("Host only. Activates a pending round. Revealing the active round is a no-op.")
	postReveal.AddReqStructure(roundPath{})
	postReveal.AddRespStructure(rounds.RevealResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postReveal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postReveal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postReveal)

	// POST /api/rooms/{id}/rounds/{n}/answers
	postAnswer, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/rounds/{n}/answers")
	postAnswer.SetSummary("Submit answer")
	postAnswer.SetDescription("Participant only. One answer per round, accepted until the deadline plus grace.")
	postAnswer.AddReqStructure(struct {
		roundPath
		AnswerRequest
	}{})
	postAnswer.AddRespStructure(rounds.AnswerResult{}, openapi.WithHTTPStatus(http.StatusCreated))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postAnswer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postAnswer)

	// POST /api/rooms/{id}/rounds/{n}/close
	postClose, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/rounds/{n}/close")
	postClose.SetSummary("Close round")
	postClose.SetDescription("Host only. Moves the round to the scoreboard and credits scores once.")
	postClose.AddReqStructure(roundPath{})
	postClose.AddRespStructure(rounds.CloseResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postClose.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postClose.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postClose)

	// POST /api/rooms/{id}/advance
	postAdvance, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/advance")
	postAdvance.SetSummary("Advance")
	postAdvance.SetDescription("Host only. Closes the scoreboard round, then reveals the next round or finishes the room.")
	postAdvance.AddReqStructure(roomPath{})
	postAdvance.AddRespStructure(rounds.AdvanceResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postAdvance.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postAdvance)

	// POST /api/rooms/{id}/finish
	postFinish, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{id}/finish")
	postFinish.SetSummary("Finish battle")
	postFinish.AddReqStructure(roomPath{})
	postFinish.AddRespStructure(rounds.FinishResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postFinish.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postFinish)

	// GET /api/rooms/{id}/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{id}/state")
	getState.SetSummary("Room snapshot")
	getState.SetDescription("Participant or host. Correct answers stay hidden until a round reaches the scoreboard.")
	getState.AddReqStructure(roomPath{})
	getState.AddRespStructure(rounds.StateView{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(getState)

	// GET /api/rooms/{id}/answer-status
	getStatus, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{id}/answer-status")
	getStatus.SetSummary("Answer status")
	getStatus.AddReqStructure(roomPath{})
	getStatus.AddRespStructure(rounds.AnswerStatus{}, openapi.WithHTTPStatus(http.StatusOK))
	getStatus.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(getStatus)

	// GET /api/rooms/{id}/scoreboard
	getBoard, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{id}/scoreboard")
	getBoard.SetSummary("Scoreboard")
	getBoard.AddReqStructure(roomPath{})
	getBoard.AddRespStructure(rounds.ScoreboardView{}, openapi.WithHTTPStatus(http.StatusOK))
	getBoard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getBoard)

	// GET /api/rooms/{id}/my-answers
	getMine, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{id}/my-answers")
	getMine.SetSummary("My answers")
	getMine.AddReqStructure(roomPath{})
	getMine.AddRespStructure(myAnswersResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMine.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMine)

	// GET /api/rooms/{id}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{id}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of room events for participants.")
	getEvents.AddReqStructure(roomPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.AddRespStructure(statusResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/questions
	listBank, _ := r.NewOperationContext(http.MethodGet, "/api/admin/questions")
	listBank.SetSummary("List bank questions")
	listBank.AddRespStructure([]BankQuestionItem{}, openapi.WithHTTPStatus(http.StatusOK))
	listBank.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listBank)

	// POST /api/admin/questions
	createBank, _ := r.NewOperationContext(http.MethodPost, "/api/admin/questions")
	createBank.SetSummary("Create bank question")
	createBank.AddReqStructure(BankQuestionRequest{})
	createBank.AddRespStructure(BankQuestionItem{}, openapi.WithHTTPStatus(http.StatusCreated))
	createBank.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createBank.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(createBank)

	// PUT /api/admin/questions/{qid}
	updateBank, _ := r.NewOperationContext(http.MethodPut, "/api/admin/questions/{qid}")
	updateBank.SetSummary("Update bank question")
	updateBank.AddReqStructure(struct {
		bankPath
		BankQuestionRequest
	}{})
	updateBank.AddRespStructure(BankQuestionItem{}, openapi.WithHTTPStatus(http.StatusOK))
	updateBank.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	updateBank.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(updateBank)

	// DELETE /api/admin/questions/{qid}
	deleteBank, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/questions/{qid}")
	deleteBank.SetSummary("Delete bank question")
	deleteBank.AddReqStructure(bankPath{})
	deleteBank.AddRespStructure(statusResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	deleteBank.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	deleteBank.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(deleteBank)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
