package db

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"cinema-ticketing/internal/models"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            int64     `bun:"id,pk" json:"id"`
	UserID        int64     `bun:"user_id,notnull" json:"user_id"`
	ScheduleID    int64     `bun:"schedule_id,notnull" json:"schedule_id"`
	SeatInfo      string    `bun:"seat_info,notnull" json:"seat_info"`
	SeatCount     int       `bun:"seat_count,notnull" json:"seat_count"`
	Status        int       `bun:"status,notnull" json:"status"`
	TotalPrice    int64     `bun:"total_price_cents,notnull" json:"total_price_cents"`
	TransactionID string    `bun:"transaction_id,notnull" json:"transaction_id"`
	CreateTime    time.Time `bun:"create_time,notnull" json:"create_time"`
	UpdateTime    time.Time `bun:"update_time,notnull" json:"update_time"`
	ExpireTime    time.Time `bun:"expire_time,notnull" json:"expire_time"`
}

// Seats decodes the serialized seat list. The list is immutable once the
// order row exists.
func (o *Order) Seats() ([]models.SeatPos, error) {
	var seats []models.SeatPos
	if err := json.Unmarshal([]byte(o.SeatInfo), &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

func (o *Order) SetSeats(seats []models.SeatPos) error {
	raw, err := json.Marshal(seats)
	if err != nil {
		return err
	}
	o.SeatInfo = string(raw)
	o.SeatCount = len(seats)
	return nil
}

// Outbox event statuses. A pending event becomes sent once the broker
// acknowledges it, or aborted if reconciliation finds no matching order row.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxAborted = "aborted"
)

// OutboxEvent is the half-open publication written in the same transaction
// as its order row. The relay turns pending rows into broker messages.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	OrderID   int64     `bun:"order_id,notnull" json:"order_id"`
	Payload   []byte    `bun:"payload,notnull" json:"payload"`
	Status    string    `bun:"status,notnull" json:"status"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	SentAt    time.Time `bun:"sent_at,nullzero" json:"sent_at,omitempty"`
}
