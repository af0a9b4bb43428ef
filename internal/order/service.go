// Package order orchestrates the reservation saga: lock seats, persist the
// order with its outbox event, and arm the delayed expire task. Every
// failure after the seat lock compensates by releasing the seats, so the
// seat map never keeps locks for orders that do not exist.
package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cinema-ticketing/internal/apperr"
	"cinema-ticketing/internal/idgen"
	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/models"
	"cinema-ticketing/internal/order/db"
)

type Repo interface {
	CreateOrderWithEvent(ctx context.Context, order *db.Order, event *db.OutboxEvent) error
	GetOrderByID(ctx context.Context, id int64) (*db.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]db.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, from, to int) (bool, error)
}

type SeatClient interface {
	LockSeats(ctx context.Context, scheduleID int64, seats []models.SeatPos) ([]models.SeatPos, error)
	ReleaseSeats(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error)
	MarkSeatsSold(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error)
}

type ExpiryScheduler interface {
	ScheduleExpire(ctx context.Context, event models.ReservationEvent, delay time.Duration) error
}

type Service struct {
	Repo   Repo
	Seats  SeatClient
	Expiry ExpiryScheduler
	IDs    idgen.Generator
	Logger *logger.Logger

	// ExpireWindow is both the seat lock TTL and the order payment window.
	// Keeping them equal means a lock never outlives its order or vice versa.
	ExpireWindow time.Duration

	Now func() time.Time
}

func NewService(repo Repo, seats SeatClient, expiry ExpiryScheduler, ids idgen.Generator, window time.Duration, log *logger.Logger) *Service {
	return &Service{
		Repo:         repo,
		Seats:        seats,
		Expiry:       expiry,
		IDs:          ids,
		Logger:       log,
		ExpireWindow: window,
		Now:          time.Now,
	}
}

// CreateOrder runs the reservation saga. The seat lock is synchronous and
// decides admission; everything after it either succeeds or compensates.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req models.CreateOrderRequest) (*models.OrderResponse, error) {
	if userID <= 0 {
		return nil, apperr.ErrUnauthorized
	}
	if req.ScheduleID <= 0 || len(req.Seats) == 0 {
		return nil, apperr.ErrParamInvalid
	}

	locked, err := s.Seats.LockSeats(ctx, req.ScheduleID, req.Seats)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	order := &db.Order{
		ID:            s.IDs.NextID(),
		UserID:        userID,
		ScheduleID:    req.ScheduleID,
		Status:        models.OrderCreated,
		TotalPrice:    models.PriceCentsPerSeat * int64(len(locked)),
		TransactionID: uuid.NewString(),
		CreateTime:    now,
		UpdateTime:    now,
		ExpireTime:    now.Add(s.ExpireWindow),
	}
	if err := order.SetSeats(locked); err != nil {
		s.releaseSeats(ctx, req.ScheduleID, locked)
		return nil, apperr.Wrap(apperr.ErrOrderCreateFailed, err)
	}

	event := models.ReservationEvent{
		OrderID:    order.ID,
		ScheduleID: req.ScheduleID,
		Seats:      locked,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.releaseSeats(ctx, req.ScheduleID, locked)
		return nil, apperr.Wrap(apperr.ErrOrderCreateFailed, err)
	}

	if err := s.Repo.CreateOrderWithEvent(ctx, order, &db.OutboxEvent{
		Payload:   payload,
		Status:    db.OutboxPending,
		CreatedAt: now,
	}); err != nil {
		s.Logger.LogOrder("CREATE", order.ID, fmt.Sprintf("persist failed, releasing seats: %v", err))
		s.releaseSeats(ctx, req.ScheduleID, locked)
		return nil, apperr.Wrap(apperr.ErrOrderCreateFailed, err)
	}

	if err := s.Expiry.ScheduleExpire(ctx, event, s.ExpireWindow); err != nil {
		// Without the expire task the order would hold its seats forever,
		// so unwind the whole reservation.
		s.Logger.LogOrder("CREATE", order.ID, fmt.Sprintf("schedule expire failed, cancelling: %v", err))
		if _, cancelErr := s.Repo.UpdateOrderStatus(ctx, order.ID, models.OrderCreated, models.OrderCancelled); cancelErr != nil {
			s.Logger.LogOrder("CREATE", order.ID, fmt.Sprintf("cancel after schedule failure: %v", cancelErr))
		}
		s.releaseSeats(ctx, req.ScheduleID, locked)
		return nil, apperr.Wrap(apperr.ErrOrderCreateFailed, err)
	}

	s.Logger.LogOrder("CREATE", order.ID, fmt.Sprintf("user=%d schedule=%d seats=%d", userID, req.ScheduleID, len(locked)))
	return toResponse(order)
}

// CancelOrder moves a CREATED order to CANCELLED and releases its seats.
// Terminal orders reject the transition.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID int64) error {
	order, err := s.getOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}

	ok, err := s.Repo.UpdateOrderStatus(ctx, orderID, models.OrderCreated, models.OrderCancelled)
	if err != nil {
		return apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	if !ok {
		return apperr.ErrOrderStatusBad
	}

	seats, err := order.Seats()
	if err != nil {
		s.Logger.LogOrder("CANCEL", orderID, fmt.Sprintf("decode seats: %v", err))
		return nil
	}
	s.releaseSeats(ctx, order.ScheduleID, seats)
	s.Logger.LogOrder("CANCEL", orderID, "cancelled by user")
	return nil
}

// MarkOrderPaid finalizes a CREATED order after payment confirmation and
// promotes its seats to SOLD. Duplicate notifications are no-ops, but a
// duplicate still retries the seat promotion in case the first attempt died
// between the status flip and the seat call.
func (s *Service) MarkOrderPaid(ctx context.Context, orderID int64) error {
	order, err := s.Repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrOrderNotFound
		}
		return apperr.Wrap(apperr.ErrSystemBusy, err)
	}

	ok, err := s.Repo.UpdateOrderStatus(ctx, orderID, models.OrderCreated, models.OrderPaid)
	if err != nil {
		return apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	if !ok {
		// The status changed between the read above and the guarded
		// update; re-read rather than trust the stale snapshot, so a
		// concurrent duplicate of this very payment still no-ops.
		order, err = s.Repo.GetOrderByID(ctx, orderID)
		if err != nil {
			return apperr.Wrap(apperr.ErrSystemBusy, err)
		}
		if order.Status != models.OrderPaid {
			// Lost the race to a cancel or expiry; payment must be
			// refunded out of band.
			return apperr.ErrOrderStatusBad
		}
	}

	seats, err := order.Seats()
	if err != nil {
		return apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	if _, err := s.Seats.MarkSeatsSold(ctx, order.ScheduleID, seats); err != nil {
		s.Logger.LogOrder("PAID", orderID, fmt.Sprintf("mark sold failed: %v", err))
		return err
	}

	s.Logger.LogOrder("PAID", orderID, "payment confirmed, seats sold")
	return nil
}

// ExpireOrder is the compensation path driven by the delayed expire task.
// It only acts on orders still CREATED; paid or cancelled orders, and
// orders whose transaction never committed, are left alone.
func (s *Service) ExpireOrder(ctx context.Context, event models.ReservationEvent) error {
	order, err := s.Repo.GetOrderByID(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The insert never committed; the seat locks lapse on their own.
			return nil
		}
		return err
	}
	if order.Status != models.OrderCreated {
		return nil
	}

	ok, err := s.Repo.UpdateOrderStatus(ctx, event.OrderID, models.OrderCreated, models.OrderCancelled)
	if err != nil {
		return err
	}
	if !ok {
		// Payment won the race between our read and the update.
		return nil
	}

	if _, err := s.Seats.ReleaseSeats(ctx, event.ScheduleID, event.Seats); err != nil {
		// Redelivery retries the release; the cancel above is already
		// durable and the retry no-ops past it.
		return err
	}
	s.Logger.LogOrder("EXPIRE", event.OrderID, "unpaid order cancelled, seats released")
	return nil
}

func (s *Service) GetOrderDetail(ctx context.Context, userID, orderID int64) (*models.OrderResponse, error) {
	order, err := s.getOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return toResponse(order)
}

func (s *Service) GetUserOrders(ctx context.Context, userID int64) ([]models.OrderResponse, error) {
	if userID <= 0 {
		return nil, apperr.ErrUnauthorized
	}
	orders, err := s.Repo.GetOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrSystemBusy, err)
	}

	out := make([]models.OrderResponse, 0, len(orders))
	for i := range orders {
		resp, err := toResponse(&orders[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

func (s *Service) getOwnedOrder(ctx context.Context, userID, orderID int64) (*db.Order, error) {
	if userID <= 0 {
		return nil, apperr.ErrUnauthorized
	}
	order, err := s.Repo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	if order.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return order, nil
}

// releaseSeats is best-effort compensation. A failed release only logs:
// the seat store's lazy lock expiry reclaims the seats regardless.
func (s *Service) releaseSeats(ctx context.Context, scheduleID int64, seats []models.SeatPos) {
	if _, err := s.Seats.ReleaseSeats(ctx, scheduleID, seats); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("release seats schedule=%d: %v", scheduleID, err))
	}
}

func toResponse(order *db.Order) (*models.OrderResponse, error) {
	seats, err := order.Seats()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	return &models.OrderResponse{
		ID:            order.ID,
		UserID:        order.UserID,
		ScheduleID:    order.ScheduleID,
		Seats:         seats,
		Status:        order.Status,
		TotalPrice:    order.TotalPrice,
		TransactionID: order.TransactionID,
		CreateTime:    order.CreateTime,
		ExpireTime:    order.ExpireTime,
	}, nil
}
