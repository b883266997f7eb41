package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	errorBackoffCeiling = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

type txRunner interface {
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	Claim(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID, at time.Time) error
	RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetter(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error, maxAttempts int, at time.Time) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// sink delivers one message and waits for the broker ack.
type sink interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

// recorder is satisfied by metrics.PublisherMetrics.
type recorder interface {
	ObserveBatch(time.Duration)
	IncEvent(eventType, outcome string)
}

type discardRecorder struct{}

func (discardRecorder) ObserveBatch(time.Duration) {}
func (discardRecorder) IncEvent(string, string)    {}

// verdict is what happened to a single row in a batch.
type verdict string

const (
	verdictPublished verdict = "published"
	verdictRetry     verdict = "retry"
	verdictDead      verdict = "dead_letter"
)

type RelayDeps struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Store    eventStore
	Registry resolver
	Sink     sink
	Metrics  recorder
}

// Relay moves committed outbox rows onto Pub/Sub. Each batch runs in one
// transaction, so a crash mid-batch leaves every row for the next pass.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	store       eventStore
	registry    resolver
	sink        sink
	metrics     recorder
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

func NewRelay(deps RelayDeps) (*Relay, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.DB == nil:
		return nil, errors.New("database is required")
	case deps.Store == nil:
		return nil, errors.New("outbox store is required")
	case deps.Registry == nil:
		return nil, errors.New("event registry is required")
	case deps.Sink == nil:
		return nil, errors.New("sink is required")
	}

	r := &Relay{
		logg:        deps.Logger,
		db:          deps.DB,
		store:       deps.Store,
		registry:    deps.Registry,
		sink:        deps.Sink,
		metrics:     deps.Metrics,
		batchSize:   orDefault(deps.Config.BatchSize, fallbackBatchSize),
		maxAttempts: orDefault(deps.Config.MaxAttempts, fallbackMaxAttempts),
		poll:        time.Duration(deps.Config.PollIntervalMS) * time.Millisecond,
		now:         time.Now,
		sleep:       pause,
	}
	if r.metrics == nil {
		r.metrics = discardRecorder{}
	}
	if r.poll <= 0 {
		r.poll = fallbackPoll
	}
	return r, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run drains until ctx ends. A fully published batch is followed
// immediately by the next one; an empty batch waits one poll interval. A
// failing batch, or one with rows left for retry, backs off exponentially
// up to errorBackoffCeiling so an outage does not burn through attempts.
func (r *Relay) Run(ctx context.Context) error {
	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait = min(wait*2, errorBackoffCeiling)
		case b.retried > 0:
			wait = min(wait*2, errorBackoffCeiling)
		case b.claimed > 0:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		if err := r.sleep(ctx, wait+rand.N(maxJitter)); err != nil {
			return err
		}
	}
}

// batch counts the rows one drain claimed and the ones left for retry.
type batch struct {
	claimed int
	retried int
}

// drain handles one batch.
func (r *Relay) drain(ctx context.Context) (batch, error) {
	start := r.now()
	var b batch
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.Claim(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		b.claimed = len(rows)
		for _, row := range rows {
			v, err := r.dispatch(ctx, tx, row)
			if err != nil {
				return err
			}
			if v == verdictRetry {
				b.retried++
			}
			r.metrics.IncEvent(string(row.EventType), string(v))
		}
		return nil
	})
	if b.claimed > 0 {
		r.metrics.ObserveBatch(time.Since(start))
	}
	return b, err
}

// dispatch publishes one row and records the outcome. A returned error is a
// bookkeeping failure and aborts the batch transaction.
func (r *Relay) dispatch(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (verdict, error) {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	}

	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return r.bury(ctx, tx, row, enums.DeadLetterUnroutable, err, fields)
	}
	fields["event_id"] = resolved.Envelope.EventID.String()
	fields["topic"] = resolved.Topic

	sendErr := r.sink.Send(ctx, resolved.Topic, message(row, resolved))
	if sendErr == nil {
		if err := r.store.MarkPublished(tx, row.ID, r.now()); err != nil {
			return "", fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.logg.Debug(r.logg.WithFields(ctx, fields), "outbox event published")
		return verdictPublished, nil
	}

	if registry.IsPermanent(sendErr) {
		return r.bury(ctx, tx, row, enums.DeadLetterRejected, sendErr, fields)
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return r.bury(ctx, tx, row, enums.DeadLetterExhausted, fmt.Errorf("attempt %d: %w", row.AttemptCount+1, sendErr), fields)
	}

	if err := r.store.RecordFailure(tx, row.ID, sendErr); err != nil {
		return "", fmt.Errorf("record failure for %s: %w", row.ID, err)
	}
	fields["error"] = sendErr.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox publish failed, will retry")
	return verdictRetry, nil
}

func (r *Relay) bury(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.DeadLetterReason, cause error, fields map[string]any) (verdict, error) {
	if err := r.store.DeadLetter(tx, row, reason, cause, r.maxAttempts, r.now()); err != nil {
		return "", fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	fields["dead_letter_reason"] = reason
	fields["error"] = cause.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox event dead-lettered")
	return verdictDead, nil
}

// message carries the stored envelope verbatim. Consumers filter and dedupe
// on the attributes without decoding the body.
func message(row models.OutboxEvent, resolved *registry.Resolved) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID.String(),
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
