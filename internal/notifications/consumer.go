package notifications

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

const consumerName = "org-notifications"

var errOrgMissing = errors.New("org id missing")

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// ledger is satisfied by *idempotency.Ledger.
type ledger interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

type writer interface {
	Create(ctx context.Context, n *models.Notification) (bool, error)
}

// Consumer turns domain events from the outbox topic into notifications.
type Consumer struct {
	repo         writer
	subscription receiver
	processed    ledger
	logg         *logger.Logger
}

func NewConsumer(repo writer, subscription receiver, processed ledger, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("notifications repository required")
	case subscription == nil:
		return nil, fmt.Errorf("domain subscription required")
	case processed == nil:
		return nil, fmt.Errorf("idempotency manager required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{repo: repo, subscription: subscription, processed: processed, logg: logg}, nil
}

// Run blocks until ctx ends or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether msg should be acked. Malformed messages are acked
// so they do not redeliver forever; storage failures are nacked.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	build, ok := builders[eventType]
	if !ok {
		return true
	}

	env, err := outbox.Decode(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "dropping malformed event", err)
		return true
	}
	eventID := env.EventID
	notification, err := build(env)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return true
	}
	notification.EventID = eventID

	stored, err := c.processed.Once(ctx, consumerName, eventID, func(ctx context.Context) error {
		_, err := c.repo.Create(ctx, notification)
		return err
	})
	if err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		return false
	}
	if stored {
		c.logg.Info(c.logg.WithField(logCtx, "org_id", notification.OrgID.String()), "notification stored")
	}
	return true
}

type builder func(env outbox.Envelope) (*models.Notification, error)

var builders = map[enums.OutboxEventType]builder{
	enums.EventLowStock:       lowStockNotification,
	enums.EventOfferSent:      offerSentNotification,
	enums.EventOfferConverted: offerConvertedNotification,
}

func lowStockNotification(env outbox.Envelope) (*models.Notification, error) {
	var p payloads.LowStockEvent
	if err := env.Bind(&p); err != nil {
		return nil, err
	}
	if p.OrgID == uuid.Nil {
		return nil, errOrgMissing
	}
	return &models.Notification{
		OrgID:   p.OrgID,
		Kind:    enums.NotificationLowStock,
		Title:   "Low stock: " + p.ProductCode,
		Message: fmt.Sprintf("Stock of %s is %s, at or below the threshold of %s.", p.ProductCode, p.Stock.String(), p.LowStock.String()),
		Link:    link("/products/%s", p.ProductID),
	}, nil
}

func offerSentNotification(env outbox.Envelope) (*models.Notification, error) {
	var p payloads.OfferEvent
	if err := env.Bind(&p); err != nil {
		return nil, err
	}
	if p.OrgID == uuid.Nil {
		return nil, errOrgMissing
	}
	msg := fmt.Sprintf("Offer %s was emailed.", p.Code)
	if p.Recipient != "" {
		msg = fmt.Sprintf("Offer %s was emailed to %s.", p.Code, p.Recipient)
	}
	return &models.Notification{
		OrgID:   p.OrgID,
		Kind:    enums.NotificationOfferSent,
		Title:   "Offer sent: " + p.Code,
		Message: msg,
		Link:    link("/offers/%s", p.OfferID),
	}, nil
}

func offerConvertedNotification(env outbox.Envelope) (*models.Notification, error) {
	var p payloads.OfferEvent
	if err := env.Bind(&p); err != nil {
		return nil, err
	}
	if p.OrgID == uuid.Nil {
		return nil, errOrgMissing
	}
	return &models.Notification{
		OrgID:   p.OrgID,
		Kind:    enums.NotificationOfferConverted,
		Title:   "Offer converted: " + p.Code,
		Message: fmt.Sprintf("Offer %s was converted into %d sale transactions totalling %s.", p.Code, len(p.TxnIDs), p.GrandTotal.StringFixed(2)),
		Link:    link("/offers/%s", p.OfferID),
	}, nil
}

func link(format string, id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	v := fmt.Sprintf(format, id)
	return &v
}
