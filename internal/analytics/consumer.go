// Package analytics streams domain events into BigQuery for reporting on
// stock movement and offer throughput.
package analytics

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

const consumerName = "analytics"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type ledger interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

type rowWriter interface {
	Insert(ctx context.Context, rows ...EventRow) error
}

type Consumer struct {
	subscription receiver
	writer       rowWriter
	processed    ledger
	logg         *logger.Logger
}

func NewConsumer(subscription receiver, writer rowWriter, processed ledger, logg *logger.Logger) (*Consumer, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case writer == nil:
		return nil, errors.New("analytics writer is required")
	case processed == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Consumer{subscription: subscription, writer: writer, processed: processed, logg: logg}, nil
}

func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	enrich, ok := enrichers[eventType]
	if !ok {
		return true
	}

	env, err := outbox.Decode(msg.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping malformed event")
		return true
	}
	eventID := env.EventID

	row := EventRow{
		EventID:    eventID.String(),
		EventType:  eventType,
		OccurredAt: env.OccurredAt,
	}
	if env.Actor != nil {
		row.ActorUserID = env.Actor.UserID
	}
	if err := enrich(env, &row); err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return true
	}

	inserted, err := c.processed.Once(ctx, consumerName, eventID, func(ctx context.Context) error {
		return c.writer.Insert(ctx, row)
	})
	if err != nil {
		c.logg.Error(logCtx, "failed to insert analytics row", err)
		return false
	}
	if !inserted {
		c.logg.Debug(logCtx, "event already processed")
	}
	return true
}

type enricher func(env outbox.Envelope, row *EventRow) error

var enrichers = map[enums.OutboxEventType]enricher{
	enums.EventProductCreated: productRow,
	enums.EventProductDeleted: productRow,
	enums.EventTxnApplied:     txnRow,
	enums.EventLowStock:       lowStockRow,
	enums.EventOfferCreated:   offerRow,
	enums.EventOfferSent:      offerRow,
	enums.EventOfferConverted: offerRow,
}

func productRow(env outbox.Envelope, row *EventRow) error {
	var p payloads.ProductEvent
	if err := bind(env, &p, &p.OrgID); err != nil {
		return err
	}
	row.OrgID = p.OrgID
	row.ProductID = p.ProductID
	row.ProductCode = p.Code
	return nil
}

func txnRow(env outbox.Envelope, row *EventRow) error {
	var p payloads.TxnAppliedEvent
	if err := bind(env, &p, &p.OrgID); err != nil {
		return err
	}
	row.OrgID = p.OrgID
	row.ProductID = p.ProductID
	row.ProductCode = p.ProductCode
	row.TxnType = p.Type
	row.Qty = &p.Qty
	row.StockAfter = &p.StockAfter
	row.AvgCost = &p.AvgCostAfter
	return nil
}

func lowStockRow(env outbox.Envelope, row *EventRow) error {
	var p payloads.LowStockEvent
	if err := bind(env, &p, &p.OrgID); err != nil {
		return err
	}
	row.OrgID = p.OrgID
	row.ProductID = p.ProductID
	row.ProductCode = p.ProductCode
	row.StockAfter = &p.Stock
	return nil
}

func offerRow(env outbox.Envelope, row *EventRow) error {
	var p payloads.OfferEvent
	if err := bind(env, &p, &p.OrgID); err != nil {
		return err
	}
	row.OrgID = p.OrgID
	row.OfferID = p.OfferID
	row.OfferCode = p.Code
	row.Amount = &p.GrandTotal
	return nil
}

// bind decodes the payload into dest; orgID must point into dest and be set.
func bind(env outbox.Envelope, dest any, orgID *uuid.UUID) error {
	if err := env.Bind(dest); err != nil {
		return err
	}
	if *orgID == uuid.Nil {
		return errors.New("org id missing")
	}
	return nil
}
