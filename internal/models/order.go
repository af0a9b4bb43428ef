package models

import "time"

// Order statuses. PAID and CANCELLED are terminal.
const (
	OrderCreated   = 0
	OrderPaid      = 1
	OrderCancelled = 3
)

// PriceCentsPerSeat is the flat ticket price. A pricing service would replace
// this for tiered halls.
const PriceCentsPerSeat int64 = 5000

// CreateOrderRequest is the order-service boundary payload.
type CreateOrderRequest struct {
	ScheduleID int64     `json:"schedule_id"`
	Seats      []SeatPos `json:"seats"`
}

// ReservationEvent is published on the broker when an order row becomes
// durable, and is also the payload of the delayed expire task. It carries just
// enough to drive compensation downstream.
type ReservationEvent struct {
	OrderID    int64     `json:"order_id"`
	ScheduleID int64     `json:"schedule_id"`
	Seats      []SeatPos `json:"seats"`
}

// OrderResponse is what the order boundary returns to callers.
type OrderResponse struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	ScheduleID    int64     `json:"schedule_id"`
	Seats         []SeatPos `json:"seats"`
	Status        int       `json:"status"`
	TotalPrice    int64     `json:"total_price_cents"`
	TransactionID string    `json:"transaction_id"`
	CreateTime    time.Time `json:"create_time"`
	ExpireTime    time.Time `json:"expire_time"`
}
