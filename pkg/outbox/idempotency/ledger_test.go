package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMarkers struct {
	ttls   map[string]time.Duration
	setErr error
	delErr error
}

func newMemMarkers() *memMarkers { return &memMarkers{ttls: map[string]time.Duration{}} }

func (m *memMarkers) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.setErr != nil {
		return false, m.setErr
	}
	if _, ok := m.ttls[key]; ok {
		return false, nil
	}
	m.ttls[key] = ttl
	return true, nil
}

func (m *memMarkers) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	m.ttls[key] = ttl
	return nil
}

func (m *memMarkers) Del(_ context.Context, keys ...string) error {
	if m.delErr != nil {
		return m.delErr
	}
	for _, k := range keys {
		delete(m.ttls, k)
	}
	return nil
}

func (m *memMarkers) IdempotencyKey(scope, id string) string { return "il:idem:" + scope + ":" + id }

func count(n *int) func(context.Context) error {
	return func(context.Context) error { *n++; return nil }
}

func TestOnceRunsOncePerConsumer(t *testing.T) {
	store := newMemMarkers()
	l, err := NewLedger(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.New()
	runs := 0

	ran, err := l.Once(ctx, "org-notifications", id, count(&runs))
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, time.Hour, store.ttls["il:idem:evt:org-notifications:"+id.String()])

	ran, err = l.Once(ctx, "org-notifications", id, count(&runs))
	require.NoError(t, err)
	assert.False(t, ran)

	ran, err = l.Once(ctx, "analytics", id, count(&runs))
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, runs)
}

func TestOnceReleasesMarkerWhenHandlerFails(t *testing.T) {
	store := newMemMarkers()
	l, err := NewLedger(store, 0)
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.New()
	boom := errors.New("bigquery unavailable")

	ran, err := l.Once(ctx, "analytics", id, func(context.Context) error { return boom })
	assert.False(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.ttls)

	runs := 0
	ran, err = l.Once(ctx, "analytics", id, count(&runs))
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, DefaultTTL, store.ttls["il:idem:evt:analytics:"+id.String()])
}

func TestOnceHoldsOnlyAShortLeaseWhileRunning(t *testing.T) {
	store := newMemMarkers()
	l, err := NewLedger(store, DefaultTTL)
	require.NoError(t, err)
	id := uuid.New()
	key := "il:idem:evt:notifications:" + id.String()

	var during time.Duration
	ran, err := l.Once(context.Background(), "notifications", id, func(context.Context) error {
		during = store.ttls[key]
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, PendingLease, during, "a crash inside fn must not block redelivery for the full TTL")
	assert.Equal(t, DefaultTTL, store.ttls[key])
}

func TestLeaseNeverExceedsTTL(t *testing.T) {
	l, err := NewLedger(newMemMarkers(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, l.lease)
}

func TestOnceReportsReleaseFailure(t *testing.T) {
	store := newMemMarkers()
	store.delErr = errors.New("redis gone")
	l, err := NewLedger(store, time.Hour)
	require.NoError(t, err)

	_, err = l.Once(context.Background(), "c", uuid.New(), func(context.Context) error { return errors.New("insert failed") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")
	assert.Contains(t, err.Error(), "redis gone")
}

func TestLedgerRejectsBadInput(t *testing.T) {
	_, err := NewLedger(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewLedger(newMemMarkers(), -time.Second)
	assert.Error(t, err)

	store := newMemMarkers()
	store.setErr = errors.New("boom")
	l, err := NewLedger(store, time.Hour)
	require.NoError(t, err)
	noop := func(context.Context) error { return nil }

	_, err = l.Once(context.Background(), "", uuid.New(), noop)
	assert.Error(t, err)
	_, err = l.Once(context.Background(), "c", uuid.Nil, noop)
	assert.Error(t, err)
	_, err = l.Once(context.Background(), "c", uuid.New(), noop)
	assert.ErrorContains(t, err, "boom")
}
