// Package audit delivers the transactional outbox to the audit topic.
//
// Services write audit events into the outbox in the same transaction as the
// change they describe. The relay publishes pending rows and stamps them
// published, holding the row locks until the broker acknowledges, so two
// relays never deliver the same batch. Delivery is at least once: a crash
// after the acknowledgement and before the commit republishes the batch.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"findthem/internal/audit/metrics"
	"findthem/internal/platform/kafka"
	auditstore "findthem/pkg/platform/audit/store/postgres"
)

const (
	defaultInterval = 2 * time.Second
	defaultBatch    = 100
)

type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]auditstore.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
	CountPending(ctx context.Context) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, msgs []kafka.Message) error
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Relay moves outbox entries to a topic on a fixed interval.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	tx        StoreTx
	topic     string
	interval  time.Duration
	batch     int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatch(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(outbox Outbox, publisher Publisher, tx StoreTx, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		tx:        tx,
		topic:     topic,
		interval:  defaultInterval,
		batch:     defaultBatch,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another pass; failures wait for the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.logFailure(ctx, err)
					}
					break
				}
				if n < r.batch {
					break
				}
			}
			r.reportPending(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// RelayOnce publishes one batch and returns how many entries it delivered.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	delivered := 0
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.FetchPending(ctx, r.batch)
		if err != nil || len(entries) == 0 {
			return err
		}

		msgs := make([]kafka.Message, 0, len(entries))
		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, kafka.Message{
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: map[string]string{
					"event_type":     e.EventType,
					"aggregate_type": e.AggregateType,
				},
			})
			ids = append(ids, e.ID)
		}
		if err := r.publisher.Publish(ctx, r.topic, msgs); err != nil {
			return err
		}
		if err := r.outbox.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
			return err
		}
		delivered = len(entries)
		return nil
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncFailure()
		}
		return 0, err
	}
	if r.metrics != nil && delivered > 0 {
		r.metrics.AddPublished(delivered)
	}
	return delivered, nil
}

func (r *Relay) reportPending(ctx context.Context) {
	if r.metrics == nil {
		return
	}
	n, err := r.outbox.CountPending(ctx)
	if err != nil {
		return
	}
	r.metrics.SetPending(n)
}

func (r *Relay) logFailure(ctx context.Context, err error) {
	if r.logger != nil {
		r.logger.ErrorContext(ctx, "audit outbox relay failed",
			"topic", r.topic,
			"error", err,
		)
	}
}
