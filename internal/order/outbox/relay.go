// Package outbox turns durable outbox rows into broker messages. Together
// with the insert transaction in the db package it gives the saga its
// "persist and publish as one unit" property without a broker-specific
// transactional-message primitive.
package outbox

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/order/db"
)

type Repo interface {
	PendingOutboxEvents(ctx context.Context, limit int) ([]db.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id int64) error
	MarkOutboxAborted(ctx context.Context, id int64) error
	OrderExists(ctx context.Context, id int64) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, orderID int64, payload []byte) error
}

// Relay drains pending outbox events into the broker. An event is marked
// sent only after the broker acknowledges it; a crash in between redelivers
// on the next pass, so consumers must tolerate duplicates (they do: the
// Compensator is idempotent).
type Relay struct {
	Repo      Repo
	Publisher Publisher
	Logger    *logger.Logger
	Interval  time.Duration
	BatchSize int
}

func NewRelay(repo Repo, publisher Publisher, log *logger.Logger) *Relay {
	return &Relay{
		Repo:      repo,
		Publisher: publisher,
		Logger:    log,
		Interval:  time.Second,
		BatchSize: 100,
	}
}

// Run drains the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.Logger.Error("OUTBOX", fmt.Sprintf("flush: %v", err))
			}
		}
	}
}

// Flush publishes one batch of pending events. Before each publish it
// re-checks that the order row exists: this is the reconciliation step that
// resolves events whose insert transaction outcome was ambiguous (for
// example a crash between the insert and the commit becoming visible).
func (r *Relay) Flush(ctx context.Context) error {
	events, err := r.Repo.PendingOutboxEvents(ctx, r.BatchSize)
	if err != nil {
		return fmt.Errorf("load pending events: %w", err)
	}

	for _, event := range events {
		exists, err := r.Repo.OrderExists(ctx, event.OrderID)
		if err != nil {
			return fmt.Errorf("reconcile event %d: %w", event.ID, err)
		}
		if !exists {
			// No order row means the local transaction never committed;
			// the half-open event must never reach consumers.
			r.Logger.Warn("OUTBOX", fmt.Sprintf("aborting event %d: order %d not found", event.ID, event.OrderID))
			if err := r.Repo.MarkOutboxAborted(ctx, event.ID); err != nil {
				return fmt.Errorf("abort event %d: %w", event.ID, err)
			}
			continue
		}

		if err := r.Publisher.Publish(ctx, event.OrderID, event.Payload); err != nil {
			// Leave the event pending; the next pass retries.
			return fmt.Errorf("publish event %d: %w", event.ID, err)
		}

		if err := r.Repo.MarkOutboxSent(ctx, event.ID); err != nil {
			return fmt.Errorf("confirm event %d: %w", event.ID, err)
		}
		r.Logger.LogKafka("PUBLISH", "order-created", fmt.Sprintf("order=%d event=%d", event.OrderID, event.ID))
	}
	return nil
}
