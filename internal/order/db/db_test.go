package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"cinema-ticketing/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	// A second connection would see a different empty in-memory database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, Migrate(context.Background(), bunDB))

	return &DB{Bun: bunDB}
}

func sampleOrder(id int64) *Order {
	o := &Order{
		ID:            id,
		UserID:        7,
		ScheduleID:    100,
		Status:        models.OrderCreated,
		TotalPrice:    models.PriceCentsPerSeat * 2,
		TransactionID: "tx-abc",
		CreateTime:    time.Now(),
		UpdateTime:    time.Now(),
		ExpireTime:    time.Now().Add(15 * time.Minute),
	}
	_ = o.SetSeats([]models.SeatPos{{Row: 1, Col: 1}, {Row: 1, Col: 2}})
	return o
}

func TestCreateOrderWithEvent_BothRowsVisible(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	event := &OutboxEvent{
		Payload:   []byte(`{"order_id":1}`),
		Status:    OutboxPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, d.CreateOrderWithEvent(ctx, sampleOrder(1), event))

	got, err := d.GetOrderByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, 2, got.SeatCount)

	seatList, err := got.Seats()
	require.NoError(t, err)
	assert.Equal(t, []models.SeatPos{{Row: 1, Col: 1}, {Row: 1, Col: 2}}, seatList)

	pending, err := d.PendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].OrderID)
}

func TestCreateOrderWithEvent_RollsBackTogether(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.CreateOrderWithEvent(ctx, sampleOrder(2), &OutboxEvent{
		Payload: []byte(`{}`), Status: OutboxPending, CreatedAt: time.Now(),
	}))

	// Duplicate primary key fails the order insert; the event insert must
	// not survive on its own.
	err := d.CreateOrderWithEvent(ctx, sampleOrder(2), &OutboxEvent{
		Payload: []byte(`{}`), Status: OutboxPending, CreatedAt: time.Now(),
	})
	require.Error(t, err)

	pending, err := d.PendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed transaction must not leave an extra outbox row")
}

func TestGetOrderByID_NotFound(t *testing.T) {
	d := setupTestDB(t)

	_, err := d.GetOrderByID(context.Background(), 999)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestUpdateOrderStatus_GuardsCurrentStatus(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.CreateOrderWithEvent(ctx, sampleOrder(3), &OutboxEvent{
		Payload: []byte(`{}`), Status: OutboxPending, CreatedAt: time.Now(),
	}))

	ok, err := d.UpdateOrderStatus(ctx, 3, models.OrderCreated, models.OrderPaid)
	require.NoError(t, err)
	assert.True(t, ok)

	// A racing cancel loses: the row is no longer CREATED.
	ok, err = d.UpdateOrderStatus(ctx, 3, models.OrderCreated, models.OrderCancelled)
	require.NoError(t, err)
	assert.False(t, ok, "terminal status must be sticky")

	got, err := d.GetOrderByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
}

func TestOutboxLifecycle(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.CreateOrderWithEvent(ctx, sampleOrder(4), &OutboxEvent{
		Payload: []byte(`{"order_id":4}`), Status: OutboxPending, CreatedAt: time.Now(),
	}))

	pending, err := d.PendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, d.MarkOutboxSent(ctx, pending[0].ID))

	pending, err = d.PendingOutboxEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOrderExists(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	exists, err := d.OrderExists(ctx, 5)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.CreateOrderWithEvent(ctx, sampleOrder(5), &OutboxEvent{
		Payload: []byte(`{}`), Status: OutboxPending, CreatedAt: time.Now(),
	}))

	exists, err = d.OrderExists(ctx, 5)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetOrdersByUser_NewestFirst(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	older := sampleOrder(10)
	older.CreateTime = time.Now().Add(-time.Hour)
	newer := sampleOrder(11)

	require.NoError(t, d.CreateOrderWithEvent(ctx, older, &OutboxEvent{
		Payload: []byte(`{}`), Status: OutboxPending, CreatedAt: time.Now(),
	}))
	require.NoError(t, d.CreateOrderWithEvent(ctx, newer, &OutboxEvent{
		Payload: []byte(`{}`), Status: OutboxPending, CreatedAt: time.Now(),
	}))

	orders, err := d.GetOrdersByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(11), orders[0].ID)
	assert.Equal(t, int64(10), orders[1].ID)
}
