// Package seatclient is the order service's HTTP client for the seat
// service. Seat errors travel as wire codes and are rehydrated into the
// shared sentinels, so the saga can branch on them the same way the seat
// service itself does.
package seatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cinema-ticketing/internal/apperr"
	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/models"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *logger.Logger
}

func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Logger:  log,
	}
}

type batchRequest struct {
	ScheduleID int64            `json:"schedule_id"`
	Seats      []models.SeatPos `json:"seats"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// LockSeats locks the whole batch or nothing. Contention comes back as
// ErrSeatAlreadyLocked or ErrSeatSoldOut.
func (c *Client) LockSeats(ctx context.Context, scheduleID int64, seats []models.SeatPos) ([]models.SeatPos, error) {
	var data struct {
		LockedSeats []models.SeatPos `json:"locked_seats"`
	}
	if err := c.post(ctx, "/api/v1/seats/lock", batchRequest{ScheduleID: scheduleID, Seats: seats}, &data); err != nil {
		return nil, err
	}
	return data.LockedSeats, nil
}

func (c *Client) ReleaseSeats(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error) {
	var data struct {
		Released int `json:"released"`
	}
	if err := c.post(ctx, "/api/v1/seats/release", batchRequest{ScheduleID: scheduleID, Seats: seats}, &data); err != nil {
		return 0, err
	}
	return data.Released, nil
}

func (c *Client) MarkSeatsSold(ctx context.Context, scheduleID int64, seats []models.SeatPos) (int, error) {
	var data struct {
		Sold int `json:"sold"`
	}
	if err := c.post(ctx, "/api/v1/seats/sold", batchRequest{ScheduleID: scheduleID, Seats: seats}, &data); err != nil {
		return 0, err
	}
	return data.Sold, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	c.Logger.Debug("SEAT_CLIENT", fmt.Sprintf("POST %s", path))

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Logger.Error("SEAT_CLIENT", fmt.Sprintf("POST %s: %v", path, err))
		return apperr.Wrap(apperr.ErrSystemBusy, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apperr.Wrap(apperr.ErrSystemBusy, fmt.Errorf("decode response: %w", err))
	}
	if !env.Success {
		return apperr.FromCode(env.Code)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperr.Wrap(apperr.ErrSystemBusy, fmt.Errorf("decode data: %w", err))
		}
	}
	return nil
}
