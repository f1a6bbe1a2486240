package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef records who triggered the event. Store-scoped operations always
// carry a store id; background jobs emit without an actor.
type ActorRef struct {
	UserID  uuid.UUID  `json:"user_id"`
	StoreID *uuid.UUID `json:"store_id,omitempty"`
	Role    string     `json:"role,omitempty"`
}

// PayloadEnvelope is what gets persisted in outbox_events.payload and
// relayed verbatim by the publisher. Consumers dispatch on the row's
// event_type and unmarshal Data into the matching payload struct.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
