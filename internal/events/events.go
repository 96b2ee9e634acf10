// Package events fans room events out to live subscribers, in process and
// across instances through Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ParticipantJoined = "participant_joined"
	ParticipantLeft   = "participant_left"
	ParticipantReady  = "participant_ready"
	RoomStarted       = "room_started"
	RoundRevealed     = "round_revealed"
	AnswerSubmitted   = "answer_submitted"
	RoundClosed       = "round_closed"
	MatchFinished     = "match_finished"
)

// Event is the JSON document delivered to subscribers.
type Event struct {
	Type    string    `json:"type"`
	RoomID  string    `json:"roomId"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher emits room events. Delivery is best effort: failures are
// logged by the implementation, never returned to the transition that
// caused the event.
type Publisher interface {
	Publish(ctx context.Context, roomID, typ string, payload any)
}

func encode(roomID, typ string, payload any) ([]byte, error) {
	return json.Marshal(Event{Type: typ, RoomID: roomID, Payload: payload, At: time.Now().UTC()})
}
