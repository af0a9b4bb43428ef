// Package seatmap holds per-showing seat state in Redis and executes all
// state transitions as atomic server-side scripts.
package seatmap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"cinema-ticketing/internal/models"
)

const seatMapKeyPrefix = "seat:map:"

// dimsField marks a showing as initialized. It can never collide with a seat
// field because seat fields are always "<row>:<col>".
const dimsField = "dims"

type Store struct {
	Client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{Client: client}
}

func seatMapKey(scheduleID int64) string {
	return fmt.Sprintf("%s%d", seatMapKeyPrefix, scheduleID)
}

func seatArgs(seats []models.SeatPos) []interface{} {
	args := make([]interface{}, 0, len(seats)*2)
	for _, s := range seats {
		args = append(args, s.Row, s.Col)
	}
	return args
}

// Lock attempts to take every seat in the batch. All-or-nothing: on any
// conflict no seat is mutated and the result lists the conflicting seats.
func (s *Store) Lock(ctx context.Context, scheduleID int64, seats []models.SeatPos, lockTimeout time.Duration, now time.Time) (*models.LockResult, error) {
	args := append([]interface{}{
		int64(lockTimeout.Seconds()),
		now.Unix(),
		len(seats),
	}, seatArgs(seats)...)

	raw, err := lockScript.Run(ctx, s.Client, []string{seatMapKey(scheduleID)}, args...).Text()
	if err != nil {
		return nil, fmt.Errorf("lock script: %w", err)
	}

	var result models.LockResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("lock script result decode: %w", err)
	}
	return &result, nil
}

// Release frees LOCKED seats and returns how many actually transitioned.
// FREE, SOLD and already-expired seats are not counted, which makes the call
// safe to repeat.
func (s *Store) Release(ctx context.Context, scheduleID int64, seats []models.SeatPos, lockTimeout time.Duration, now time.Time) (int, error) {
	args := append([]interface{}{
		int64(lockTimeout.Seconds()),
		now.Unix(),
		len(seats),
	}, seatArgs(seats)...)

	n, err := releaseScript.Run(ctx, s.Client, []string{seatMapKey(scheduleID)}, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("release script: %w", err)
	}
	return n, nil
}

// MarkSold transitions seats to SOLD. Idempotent: repeated calls count zero.
func (s *Store) MarkSold(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error) {
	args := append([]interface{}{len(seats)}, seatArgs(seats)...)

	n, err := soldScript.Run(ctx, s.Client, []string{seatMapKey(scheduleID)}, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("sold script: %w", err)
	}
	return n, nil
}

// Status reads a rectangle of seat states, resolving lock expiry at read
// time so no background sweep is needed.
func (s *Store) Status(ctx context.Context, scheduleID int64, rowStart, rowEnd, colStart, colEnd int, lockTimeout time.Duration, now time.Time) (models.SeatStatusMap, error) {
	raw, err := statusScript.Run(ctx, s.Client, []string{seatMapKey(scheduleID)},
		rowStart, rowEnd, colStart, colEnd,
		int64(lockTimeout.Seconds()), now.Unix(),
	).Text()
	if err != nil {
		return nil, fmt.Errorf("status script: %w", err)
	}

	var status models.SeatStatusMap
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("status script result decode: %w", err)
	}
	return status, nil
}

// Init marks a showing as present without pre-writing any cells: absence of
// a seat field still means free.
func (s *Store) Init(ctx context.Context, scheduleID int64, totalRows, totalCols int) error {
	dims := fmt.Sprintf("%d:%d", totalRows, totalCols)
	if err := s.Client.HSet(ctx, seatMapKey(scheduleID), dimsField, dims).Err(); err != nil {
		return fmt.Errorf("init seat map %d: %w", scheduleID, err)
	}
	return nil
}

// Exists reports whether a showing's seat map has been initialized.
func (s *Store) Exists(ctx context.Context, scheduleID int64) (bool, error) {
	n, err := s.Client.Exists(ctx, seatMapKey(scheduleID)).Result()
	if err != nil {
		return false, fmt.Errorf("seat map exists %d: %w", scheduleID, err)
	}
	return n > 0, nil
}
