package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/playperu/triviabattle/internal/battle"
)

const ssePingInterval = 30 * time.Second

// handleEvents streams the room's events to a participant as SSE. Each
// event is one data line holding the JSON envelope.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	room := roomFrom(r)
	sid := SessionID(r)
	if sid == "" {
		a.fail(w, battle.ErrMissingSession())
		return
	}
	if _, err := a.registry.Participant(r.Context(), room.ID, sid); err != nil {
		a.fail(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.fail(w, battle.ErrInternal("streaming not supported"))
		return
	}

	ch := a.broker.Subscribe(room.ID)
	defer a.broker.Unsubscribe(room.ID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	a.registry.Seen(r.Context(), room.ID, sid)

	ping := time.NewTicker(ssePingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
			a.registry.Seen(r.Context(), room.ID, sid)
		}
	}
}
