package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

type fakeWriter struct {
	rows []models.Notification
	err  error
}

func (f *fakeWriter) Create(_ context.Context, n *models.Notification) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.rows = append(f.rows, *n)
	return true, nil
}

type fakeTracker struct {
	seen    map[uuid.UUID]bool
	deleted []uuid.UUID
	err     error
}

func (f *fakeTracker) Once(ctx context.Context, _ string, id uuid.UUID, fn func(context.Context) error) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[id] {
		return false, nil
	}
	f.seen[id] = true
	if err := fn(ctx); err != nil {
		delete(f.seen, id)
		f.deleted = append(f.deleted, id)
		return false, err
	}
	return true, nil
}

type nopReceiver struct{}

func (nopReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error { return nil }

func newConsumer(t *testing.T, w *fakeWriter, tr *fakeTracker) *Consumer {
	t.Helper()
	c, err := NewConsumer(w, nopReceiver{}, tr, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return c
}

func message(t *testing.T, eventType enums.OutboxEventType, eventID string, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(map[string]any{"version": outbox.SchemaVersion, "event_id": eventID, "occurred_at": time.Now(), "data": json.RawMessage(raw)})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "m-1",
		Data:       env,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestConsumerStoresLowStockOnce(t *testing.T) {
	w := &fakeWriter{}
	tr := &fakeTracker{seen: map[uuid.UUID]bool{}}
	c := newConsumer(t, w, tr)
	orgID, productID, eventID := uuid.New(), uuid.New(), uuid.New()
	msg := message(t, enums.EventLowStock, eventID.String(), payloads.LowStockEvent{
		OrgID:       orgID,
		ProductID:   productID,
		ProductCode: "003-0001",
		Stock:       decimal.NewFromInt(2),
		LowStock:    decimal.NewFromInt(5),
	})

	require.True(t, c.process(context.Background(), msg))
	require.True(t, c.process(context.Background(), msg))

	require.Len(t, w.rows, 1)
	row := w.rows[0]
	require.Equal(t, orgID, row.OrgID)
	require.Equal(t, eventID, row.EventID)
	require.Equal(t, enums.NotificationLowStock, row.Kind)
	require.Equal(t, "Low stock: 003-0001", row.Title)
	require.Contains(t, row.Message, "threshold of 5")
	require.Equal(t, "/products/"+productID.String(), *row.Link)
}

func TestConsumerOfferConverted(t *testing.T) {
	w := &fakeWriter{}
	c := newConsumer(t, w, &fakeTracker{seen: map[uuid.UUID]bool{}})
	msg := message(t, enums.EventOfferConverted, uuid.NewString(), payloads.OfferEvent{
		OrgID:      uuid.New(),
		OfferID:    uuid.New(),
		Code:       "PRO0007",
		GrandTotal: decimal.RequireFromString("123.4"),
		TxnIDs:     []uuid.UUID{uuid.New(), uuid.New()},
	})

	require.True(t, c.process(context.Background(), msg))
	require.Len(t, w.rows, 1)
	require.Equal(t, "Offer PRO0007 was converted into 2 sale transactions totalling 123.40.", w.rows[0].Message)
}

func TestConsumerAcksIgnoredAndMalformed(t *testing.T) {
	w := &fakeWriter{}
	c := newConsumer(t, w, &fakeTracker{seen: map[uuid.UUID]bool{}})
	ctx := context.Background()

	require.True(t, c.process(ctx, message(t, enums.EventProductCreated, uuid.NewString(), payloads.ProductEvent{})))
	require.True(t, c.process(ctx, message(t, enums.EventOfferSent, "not-a-uuid", payloads.OfferEvent{OrgID: uuid.New()})))
	require.True(t, c.process(ctx, message(t, enums.EventOfferSent, uuid.NewString(), payloads.OfferEvent{})))
	require.True(t, c.process(ctx, &pubsub.Message{Data: []byte("{"), Attributes: map[string]string{"event_type": string(enums.EventLowStock)}}))
	require.Empty(t, w.rows)
}

func TestConsumerNacksStorageFailureAndClearsMarker(t *testing.T) {
	w := &fakeWriter{err: errors.New("db down")}
	tr := &fakeTracker{seen: map[uuid.UUID]bool{}}
	c := newConsumer(t, w, tr)
	eventID := uuid.New()

	ok := c.process(context.Background(), message(t, enums.EventOfferSent, eventID.String(), payloads.OfferEvent{OrgID: uuid.New(), Code: "PRO0001"}))
	require.False(t, ok)
	require.Equal(t, []uuid.UUID{eventID}, tr.deleted)
	require.False(t, tr.seen[eventID])
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	c := newConsumer(t, &fakeWriter{}, &fakeTracker{seen: map[uuid.UUID]bool{}, err: errors.New("redis down")})
	ok := c.process(context.Background(), message(t, enums.EventOfferSent, uuid.NewString(), payloads.OfferEvent{OrgID: uuid.New()}))
	require.False(t, ok)
}
