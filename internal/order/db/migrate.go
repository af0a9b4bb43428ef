package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Migrate creates the orders and outbox tables when they do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*Order)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*OutboxEvent)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create outbox_events table: %w", err)
	}
	return nil
}
