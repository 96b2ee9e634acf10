// Package roomws pushes room events to WebSocket clients.
package roomws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/playperu/triviabattle/internal/battle"
	"github.com/playperu/triviabattle/internal/server"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Rooms is the part of the lobby the stream needs.
type Rooms interface {
	Resolve(ctx context.Context, idOrCode string) (battle.Room, error)
	Participant(ctx context.Context, roomID, sessionID string) (battle.Participant, error)
	Seen(ctx context.Context, roomID, sessionID string)
}

// Subscriber hands out per-room event channels.
type Subscriber interface {
	Subscribe(roomID string) chan []byte
	Unsubscribe(roomID string, ch chan []byte)
}

type Handler struct {
	rooms  Rooms
	events Subscriber
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, rooms Rooms, events Subscriber) *Handler {
	return &Handler{rooms: rooms, events: events, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/rooms/{id}", h.stream)
	return r
}

// stream is server push only. Client frames are discarded; a close from
// the client ends the stream.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	sid := server.SessionID(r)
	if sid == "" {
		server.WriteError(w, h.logger, battle.ErrMissingSession())
		return
	}
	if _, err := h.rooms.Participant(r.Context(), room.ID, sid); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}

	ch := h.events.Subscribe(room.ID)
	defer h.events.Unsubscribe(room.ID, ch)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	h.rooms.Seen(ctx, room.ID, sid)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("websocket stream ended", "room_id", room.ID, "error", ctx.Err())
			return
		case data := <-ch:
			if err := write(ctx, conn, data); err != nil {
				h.logger.Debug("websocket write failed", "room_id", room.ID, "error", err)
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				h.logger.Debug("websocket ping failed", "room_id", room.ID, "error", err)
				return
			}
			h.rooms.Seen(ctx, room.ID, sid)
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
