// Package outbox implements the transactional outbox: services record domain
// events in the same transaction as the state change, and the publisher
// relay ships them to Pub/Sub afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/logger"
)

// Event is what a service hands to Emit.
type Event struct {
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *Actor
	Data          any
	// OccurredAt defaults to the emit time.
	OccurredAt time.Time
}

func (e Event) validate() error {
	switch {
	case !e.Type.IsValid():
		return fmt.Errorf("outbox: unknown event type %q", e.Type)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("outbox: unknown aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("outbox: %s has no aggregate id", e.Type)
	case e.Data == nil:
		return fmt.Errorf("outbox: %s has no data", e.Type)
	}
	return nil
}

// Emitter records events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event Event) error
}

type Writer struct {
	repo  *Repository
	logg  *logger.Logger
	clock func() time.Time
	newID func() uuid.UUID
}

func NewWriter(repo *Repository, logg *logger.Logger) *Writer {
	return &Writer{repo: repo, logg: logg, clock: time.Now, newID: uuid.New}
}

// Emit serialises event into an Envelope and inserts it with tx, so the row
// exists exactly when the surrounding transaction commits.
func (w *Writer) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("outbox: encode %s: %w", event.Type, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = w.clock()
	}
	env := Envelope{
		Version:    SchemaVersion,
		EventID:    w.newID(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("outbox: encode envelope: %w", err)
	}
	row := models.OutboxEvent{
		EventType:     event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}
	if err := w.repo.Insert(tx, row); err != nil {
		return err
	}
	if w.logg != nil {
		w.logg.Debug(w.logg.WithFields(ctx, map[string]any{
			"event_id":     env.EventID.String(),
			"event_type":   event.Type,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event recorded")
	}
	return nil
}
