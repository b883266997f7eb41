package media

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

const bucketBase = "https://cdn.test/product-images/"

type fakeRemover struct {
	deleted []string
	err     error
}

func (f *fakeRemover) DeleteObject(_ context.Context, object string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, object)
	return nil
}

func (f *fakeRemover) ObjectFromURL(u string) (string, bool) {
	return strings.CutPrefix(u, bucketBase)
}

type nopReceiver struct{}

func (nopReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error { return nil }

func deletedMessage(t *testing.T, eventType enums.OutboxEventType, imageURL string) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payloads.ProductEvent{OrgID: uuid.New(), ProductID: uuid.New(), Code: "001-0001", ImageURL: imageURL})
	require.NoError(t, err)
	env, err := json.Marshal(outbox.Envelope{Version: outbox.SchemaVersion, EventID: uuid.New(), OccurredAt: time.Now(), Data: data})
	require.NoError(t, err)
	return &pubsub.Message{ID: "m-1", Data: env, Attributes: map[string]string{"event_type": string(eventType)}}
}

func newCleanup(t *testing.T, store *fakeRemover) *ImageCleanup {
	t.Helper()
	c, err := NewImageCleanup(nopReceiver{}, store, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return c
}

func TestImageCleanupDeletesBucketObject(t *testing.T) {
	store := &fakeRemover{}
	c := newCleanup(t, store)

	require.True(t, c.process(context.Background(), deletedMessage(t, enums.EventProductDeleted, bucketBase+"org/001-0001-1700000000.png")))
	require.Equal(t, []string{"org/001-0001-1700000000.png"}, store.deleted)
}

func TestImageCleanupIgnoresOtherEventsAndForeignImages(t *testing.T) {
	store := &fakeRemover{}
	c := newCleanup(t, store)

	require.True(t, c.process(context.Background(), deletedMessage(t, enums.EventProductCreated, bucketBase+"org/a.png")))
	require.True(t, c.process(context.Background(), deletedMessage(t, enums.EventProductDeleted, "https://elsewhere.test/a.png")))
	require.True(t, c.process(context.Background(), deletedMessage(t, enums.EventProductDeleted, "")))
	require.Empty(t, store.deleted)
}

func TestImageCleanupNacksStorageFailure(t *testing.T) {
	c := newCleanup(t, &fakeRemover{err: errors.New("gcs unavailable")})

	require.False(t, c.process(context.Background(), deletedMessage(t, enums.EventProductDeleted, bucketBase+"org/a.png")))
}
