// Package idempotency records which domain events each consumer has handled.
// Pub/Sub delivers at least once; the ledger turns that into effectively once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	// DefaultTTL outlives the Pub/Sub redelivery window.
	DefaultTTL = 7 * 24 * time.Hour
	// PendingLease bounds how long an unconfirmed reservation blocks
	// redeliveries, e.g. after the process died inside fn.
	PendingLease = 2 * time.Minute
)

const (
	markerPending = "pending"
	markerDone    = "done"
)

// markerStore is satisfied by *redis.Client.
type markerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Ledger struct {
	store markerStore
	ttl   time.Duration
	lease time.Duration
}

func NewLedger(store markerStore, ttl time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("marker store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Ledger{store: store, ttl: ttl, lease: min(PendingLease, ttl)}, nil
}

// Once runs fn unless consumer already handled eventID. It reports whether
// fn ran. The reservation is a short lease until fn succeeds and only then
// holds for the full TTL; a failing fn releases it so the next delivery
// retries.
func (l *Ledger) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := l.store.SetNX(ctx, key, markerPending, l.lease)
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", key, err)
	}
	if !fresh {
		return false, nil
	}
	if runErr := fn(ctx); runErr != nil {
		if delErr := l.store.Del(context.WithoutCancel(ctx), key); delErr != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("release %s: %w", key, delErr))
		}
		return false, runErr
	}
	// fn is committed and the message gets acked either way; a lost confirm
	// only lets the lease expire early.
	_ = l.store.Set(context.WithoutCancel(ctx), key, markerDone, l.ttl)
	return true, nil
}

func (l *Ledger) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
