package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the envelope layout Emit writes. Decode rejects anything
// newer so an old consumer never half-reads a future event.
const SchemaVersion = 1

// ErrMalformed marks envelopes that can never be processed. Consumers ack
// them instead of retrying.
var ErrMalformed = errors.New("malformed event envelope")

// Actor is the member whose request produced the event.
type Actor struct {
	UserID uuid.UUID  `json:"user_id"`
	OrgID  *uuid.UUID `json:"org_id,omitempty"`
	Role   string     `json:"role,omitempty"`
}

// Envelope is stored in outbox_events.payload and published verbatim as the
// Pub/Sub message body.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Decode parses and checks an envelope. Every failure wraps ErrMalformed.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch {
	case env.Version < 1 || env.Version > SchemaVersion:
		return Envelope{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, env.Version)
	case env.EventID == uuid.Nil:
		return Envelope{}, fmt.Errorf("%w: missing event id", ErrMalformed)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	return env, nil
}

// Bind decodes the event data into dst.
func (e Envelope) Bind(dst any) error {
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	return nil
}
