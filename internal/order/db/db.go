package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// CreateOrderWithEvent inserts the order row and its outbox event in one
// transaction. Either both become durable or neither does; this is the local
// half of the transactional-publish handshake.
func (d *DB) CreateOrderWithEvent(ctx context.Context, order *Order, event *OutboxEvent) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		event.OrderID = order.ID
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
}

func (d *DB) GetOrderByID(ctx context.Context, id int64) (*Order, error) {
	var order Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (d *DB) GetOrdersByUser(ctx context.Context, userID int64) ([]Order, error) {
	var orders []Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("create_time DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus moves an order from one status to another. The WHERE
// guard on the current status makes terminal states sticky even when two
// transitions race: only one of them sees a row to update.
func (d *DB) UpdateOrderStatus(ctx context.Context, id int64, from, to int) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*Order)(nil)).
		Set("status = ?", to).
		Set("update_time = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update order %d status: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// OrderExists is the reconciliation query: the relay asks it before
// publishing to resolve events whose transaction outcome is ambiguous.
func (d *DB) OrderExists(ctx context.Context, id int64) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*Order)(nil)).
		Where("id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("order exists %d: %w", id, err)
	}
	return exists, nil
}

// ---------------- OUTBOX ----------------

func (d *DB) PendingOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	var events []OutboxEvent
	err := d.Bun.NewSelect().
		Model(&events).
		Where("status = ?", OutboxPending).
		Order("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := d.Bun.NewUpdate().
		Model((*OutboxEvent)(nil)).
		Set("status = ?", OutboxSent).
		Set("sent_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark outbox event %d sent: %w", id, err)
	}
	return nil
}

func (d *DB) MarkOutboxAborted(ctx context.Context, id int64) error {
	_, err := d.Bun.NewUpdate().
		Model((*OutboxEvent)(nil)).
		Set("status = ?", OutboxAborted).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark outbox event %d aborted: %w", id, err)
	}
	return nil
}
