// Package relay publishes committed audit entries from the outbox table to
// Kafka. Delivery is at-least-once: rows are marked published only after the
// broker acknowledges the batch.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docverify/internal/audit"
	"docverify/internal/platform/kafka"
	"docverify/internal/platform/redis"
	"docverify/pkg/platform/tx"
)

const (
	lockKey = "docverify:audit:outbox-relay"
	lockTTL = 30 * time.Second

	defaultBatchSize = 100
	defaultInterval  = 2 * time.Second
)

type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Locker elects a single relaying replica. Optional.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (redis.Lock, error)
}

type Relay struct {
	outbox    Outbox
	publisher Publisher
	topic     string
	locker    Locker
	runner    tx.Runner
	logger    *slog.Logger
	metrics   *audit.Metrics
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

type Option func(*Relay)

func WithLocker(l Locker) Option            { return func(r *Relay) { r.locker = l } }
func WithLogger(l *slog.Logger) Option      { return func(r *Relay) { r.logger = l } }
func WithMetrics(m *audit.Metrics) Option   { return func(r *Relay) { r.metrics = m } }
func WithInterval(d time.Duration) Option   { return func(r *Relay) { r.interval = d } }
func WithClock(now func() time.Time) Option { return func(r *Relay) { r.now = now } }

// WithTx runs each batch in one unit of work so the claimed rows stay locked
// until they are marked published.
func WithTx(runner tx.Runner) Option { return func(r *Relay) { r.runner = runner } }

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func New(outbox Outbox, publisher Publisher, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		topic:     topic,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 {
		r.interval = defaultInterval
	}
	return r
}

// Run relays until ctx is cancelled. Batch failures are logged and retried
// on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// RunOnce relays at most one batch and returns how many rows were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	if r.locker != nil {
		lock, err := r.locker.Obtain(ctx, lockKey, lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("obtain relay lock: %w", err)
		}
		defer func() {
			// Release on a fresh context so shutdown still frees the lease.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			_ = lock.Release(releaseCtx)
		}()
	}

	if r.runner == nil {
		return r.relayBatch(ctx)
	}
	var n int
	err := r.runner.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		n, err = r.relayBatch(txCtx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	batch, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox: %w", err)
	}
	if len(batch) == 0 {
		r.metrics.SetBacklogAge(0)
		return 0, nil
	}
	r.metrics.SetBacklogAge(r.now().Sub(batch[0].CreatedAt))

	msgs := make([]kafka.Message, len(batch))
	ids := make([]uuid.UUID, len(batch))
	for i, m := range batch {
		msgs[i] = kafka.Message{
			Topic: r.topic,
			Key:   []byte(m.AggregateID),
			Value: m.Payload,
			Headers: map[string]string{
				"event_type": m.EventType,
				"outbox_id":  m.ID.String(),
			},
		}
		ids[i] = m.ID
	}

	if err := r.publisher.Publish(ctx, msgs...); err != nil {
		r.metrics.IncRelayFailures()
		return 0, err
	}
	if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
		// Already delivered; the next tick republishes this batch.
		r.metrics.IncRelayFailures()
		return 0, err
	}
	r.metrics.AddPublished(len(batch))
	return len(batch), nil
}
