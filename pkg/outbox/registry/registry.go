// Package registry knows every domain event the outbox may carry: which
// aggregate emits it, which topic it goes to and what its data decodes into.
package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

type schema struct {
	aggregate enums.OutboxAggregateType
	newData   func() any
}

func data[T any]() any { return new(T) }

var schemas = map[enums.OutboxEventType]schema{
	enums.EventOrgCreated:     {enums.AggregateOrg, data[payloads.OrgCreatedEvent]},
	enums.EventProductCreated: {enums.AggregateProduct, data[payloads.ProductEvent]},
	enums.EventProductDeleted: {enums.AggregateProduct, data[payloads.ProductEvent]},
	enums.EventTxnApplied:     {enums.AggregateTxn, data[payloads.TxnAppliedEvent]},
	enums.EventLowStock:       {enums.AggregateProduct, data[payloads.LowStockEvent]},
	enums.EventOfferCreated:   {enums.AggregateOffer, data[payloads.OfferEvent]},
	enums.EventOfferSent:      {enums.AggregateOffer, data[payloads.OfferEvent]},
	enums.EventOfferConverted: {enums.AggregateOffer, data[payloads.OfferEvent]},
}

// Resolved is a decoded outbox row ready to publish.
type Resolved struct {
	Topic    string
	Envelope outbox.Envelope
	// Data points at the typed payload, e.g. *payloads.OfferEvent.
	Data any
}

// EventRegistry routes every event type to the domain topic. Subscribers
// filter on the event_type attribute.
type EventRegistry struct {
	topic string
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, errors.New("domain topic is required")
	}
	return &EventRegistry{topic: cfg.DomainTopic}, nil
}

// Knows reports whether t has a registered schema.
func (r *EventRegistry) Knows(t enums.OutboxEventType) bool {
	_, ok := schemas[t]
	return ok
}

// Resolve checks the row against its schema and decodes the payload. Every
// error is permanent: the same row will fail the same way next time.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	s, ok := schemas[row.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unsupported event type %q", row.EventType))
	case s.aggregate != row.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s aggregates, row says %s", row.EventType, s.aggregate, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, Permanent(fmt.Errorf("%s row has no aggregate id", row.EventType))
	}
	env, err := outbox.Decode(row.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload := s.newData()
	if err := env.Bind(payload); err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", row.EventType, err))
	}
	return &Resolved{Topic: r.topic, Envelope: env, Data: payload}, nil
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
