package media

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type objectRemover interface {
	DeleteObject(ctx context.Context, object string) error
	ObjectFromURL(publicURL string) (string, bool)
}

// ImageCleanup removes the stored image of a deleted product. Deleting an
// object that is already gone succeeds, so redeliveries are harmless.
type ImageCleanup struct {
	subscription receiver
	store        objectRemover
	logg         *logger.Logger
}

func NewImageCleanup(subscription receiver, store objectRemover, logg *logger.Logger) (*ImageCleanup, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("media subscription is required")
	case store == nil:
		return nil, errors.New("object store is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &ImageCleanup{subscription: subscription, store: store, logg: logg}, nil
}

func (c *ImageCleanup) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *ImageCleanup) process(ctx context.Context, msg *pubsub.Message) bool {
	if enums.OutboxEventType(msg.Attributes["event_type"]) != enums.EventProductDeleted {
		return true
	}
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	var event payloads.ProductEvent
	env, err := outbox.Decode(msg.Data)
	if err == nil {
		err = env.Bind(&event)
	}
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping malformed product deleted event")
		return true
	}
	if event.ImageURL == "" {
		return true
	}
	object, ok := c.store.ObjectFromURL(event.ImageURL)
	if !ok {
		c.logg.Debug(c.logg.WithField(logCtx, "image_url", event.ImageURL), "image is not in the product bucket")
		return true
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"org_id":     event.OrgID.String(),
		"product_id": event.ProductID.String(),
		"object":     object,
	})
	if err := c.store.DeleteObject(ctx, object); err != nil {
		c.logg.Error(logCtx, "failed to delete product image", err)
		return false
	}
	c.logg.Info(logCtx, "product image deleted")
	return true
}
