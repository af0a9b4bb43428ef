package seatmap

import (
	"context"
	"fmt"
	"time"

	"cinema-ticketing/internal/apperr"
	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/models"
)

// SeatStore is the atomic transition protocol the service drives. The Redis
// implementation lives in this package; tests may substitute their own.
type SeatStore interface {
	Lock(ctx context.Context, scheduleID int64, seats []models.SeatPos, lockTimeout time.Duration, now time.Time) (*models.LockResult, error)
	Release(ctx context.Context, scheduleID int64, seats []models.SeatPos, lockTimeout time.Duration, now time.Time) (int, error)
	MarkSold(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error)
	Status(ctx context.Context, scheduleID int64, rowStart, rowEnd, colStart, colEnd int, lockTimeout time.Duration, now time.Time) (models.SeatStatusMap, error)
	Init(ctx context.Context, scheduleID int64, totalRows, totalCols int) error
	Exists(ctx context.Context, scheduleID int64) (bool, error)
}

// Service validates requests, translates them into store operations and maps
// store failure reasons to business errors. It owns no seat state itself.
type Service struct {
	Store      SeatStore
	LockExpire time.Duration
	Logger     *logger.Logger

	// Now is swappable for tests.
	Now func() time.Time
}

func NewService(store SeatStore, lockExpire time.Duration, log *logger.Logger) *Service {
	return &Service{
		Store:      store,
		LockExpire: lockExpire,
		Logger:     log,
		Now:        time.Now,
	}
}

func validateSeats(seats []models.SeatPos) error {
	if len(seats) == 0 {
		return apperr.ErrParamInvalid
	}
	for _, s := range seats {
		if s.Row < models.MinRow || s.Row > models.MaxRow {
			return apperr.ErrSeatInvalidRow
		}
		if s.Col < models.MinCol || s.Col > models.MaxCol {
			return apperr.ErrSeatInvalidCol
		}
	}
	return nil
}

// requireShowing rejects operations on showings whose map was never
// initialized. An absent map is an unknown showing, not an empty one.
func (s *Service) requireShowing(ctx context.Context, scheduleID int64) error {
	exists, err := s.Store.Exists(ctx, scheduleID)
	if err != nil {
		return apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	if !exists {
		return apperr.ErrScheduleNotFound
	}
	return nil
}

// LockSeats takes the whole batch or nothing. Contention surfaces as
// SEAT_ALREADY_LOCKED or SEAT_SOLD_OUT and is never retried here: retrying a
// lost race is the caller's decision.
func (s *Service) LockSeats(ctx context.Context, scheduleID int64, seats []models.SeatPos) ([]models.SeatPos, error) {
	if scheduleID <= 0 {
		return nil, apperr.ErrScheduleNotFound
	}
	if err := validateSeats(seats); err != nil {
		return nil, err
	}
	if err := s.requireShowing(ctx, scheduleID); err != nil {
		return nil, err
	}

	result, err := s.Store.Lock(ctx, scheduleID, seats, s.LockExpire, s.Now())
	if err != nil {
		s.Logger.Error("SEAT", fmt.Sprintf("lock failed: schedule=%d: %v", scheduleID, err))
		return nil, apperr.Wrap(apperr.ErrSystemBusy, err)
	}

	if !result.Success {
		for _, f := range result.FailedSeats {
			if f.Reason == "sold_out" {
				return nil, apperr.ErrSeatSoldOut
			}
		}
		return nil, apperr.ErrSeatAlreadyLocked
	}

	s.Logger.LogSeat("LOCK", scheduleID, fmt.Sprintf("locked %d seats", len(result.LockedSeats)))
	return result.LockedSeats, nil
}

// ReleaseSeats is idempotent; the count reflects only seats that actually
// transitioned from LOCKED to FREE.
func (s *Service) ReleaseSeats(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error) {
	if scheduleID <= 0 {
		return 0, apperr.ErrScheduleNotFound
	}
	if err := validateSeats(seats); err != nil {
		return 0, err
	}
	if err := s.requireShowing(ctx, scheduleID); err != nil {
		return 0, err
	}

	released, err := s.Store.Release(ctx, scheduleID, seats, s.LockExpire, s.Now())
	if err != nil {
		s.Logger.Error("SEAT", fmt.Sprintf("release failed: schedule=%d: %v", scheduleID, err))
		return 0, apperr.Wrap(apperr.ErrSystemBusy, err)
	}

	s.Logger.LogSeat("RELEASE", scheduleID, fmt.Sprintf("released %d seats", released))
	return released, nil
}

// MarkSeatsSold is invoked when payment completes. Idempotent.
func (s *Service) MarkSeatsSold(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error) {
	if scheduleID <= 0 {
		return 0, apperr.ErrScheduleNotFound
	}
	if err := validateSeats(seats); err != nil {
		return 0, err
	}
	if err := s.requireShowing(ctx, scheduleID); err != nil {
		return 0, err
	}

	sold, err := s.Store.MarkSold(ctx, scheduleID, seats)
	if err != nil {
		s.Logger.Error("SEAT", fmt.Sprintf("mark sold failed: schedule=%d: %v", scheduleID, err))
		return 0, apperr.Wrap(apperr.ErrSystemBusy, err)
	}

	s.Logger.LogSeat("SOLD", scheduleID, fmt.Sprintf("sold %d seats", sold))
	return sold, nil
}

// GetSeatStatus returns row → col → state for the requested rectangle, with
// expired locks already resolved to free.
func (s *Service) GetSeatStatus(ctx context.Context, scheduleID int64, rowStart, rowEnd, colStart, colEnd int) (models.SeatStatusMap, error) {
	if scheduleID <= 0 {
		return nil, apperr.ErrScheduleNotFound
	}
	if rowStart < models.MinRow || rowStart > models.MaxRow ||
		rowEnd < rowStart || rowEnd > models.MaxRow ||
		colStart < models.MinCol || colStart > models.MaxCol ||
		colEnd < colStart || colEnd > models.MaxCol {
		return nil, apperr.ErrParamInvalid
	}
	if err := s.requireShowing(ctx, scheduleID); err != nil {
		return nil, err
	}

	status, err := s.Store.Status(ctx, scheduleID, rowStart, rowEnd, colStart, colEnd, s.LockExpire, s.Now())
	if err != nil {
		s.Logger.Error("SEAT", fmt.Sprintf("status failed: schedule=%d: %v", scheduleID, err))
		return nil, apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	return status, nil
}

// InitSeatMap registers a showing. Lazy: no cells are written, absence of a
// cell still means free.
func (s *Service) InitSeatMap(ctx context.Context, scheduleID int64, totalRows, totalCols int) error {
	if scheduleID <= 0 {
		return apperr.ErrScheduleNotFound
	}
	if totalRows < models.MinRow || totalRows > models.MaxRow ||
		totalCols < models.MinCol || totalCols > models.MaxCol {
		return apperr.ErrParamInvalid
	}

	if err := s.Store.Init(ctx, scheduleID, totalRows, totalCols); err != nil {
		s.Logger.Error("SEAT", fmt.Sprintf("init failed: schedule=%d: %v", scheduleID, err))
		return apperr.Wrap(apperr.ErrSystemBusy, err)
	}

	s.Logger.LogSeat("INIT", scheduleID, fmt.Sprintf("seat map %dx%d", totalRows, totalCols))
	return nil
}
