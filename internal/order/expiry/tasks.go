// Package expiry schedules and consumes the delayed order-expire task. The
// task is the order-layer half of the timeout contract; the seat store's
// lazy lock expiry is the safety net when a task is lost.
package expiry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"cinema-ticketing/internal/models"
)

const TypeOrderExpire = "order:expire"

// AsynqScheduler enqueues expire tasks for delayed processing. Delivery is
// fire-and-forget from the orchestrator's perspective: a lost task only
// delays cleanup, it cannot corrupt seat state.
type AsynqScheduler struct {
	Client *asynq.Client
}

func NewAsynqScheduler(client *asynq.Client) *AsynqScheduler {
	return &AsynqScheduler{Client: client}
}

func (s *AsynqScheduler) ScheduleExpire(ctx context.Context, event models.ReservationEvent, delay time.Duration) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal expire payload: %w", err)
	}

	task := asynq.NewTask(TypeOrderExpire, payload)
	if _, err := s.Client.EnqueueContext(ctx, task, asynq.ProcessIn(delay), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue expire task order %d: %w", event.OrderID, err)
	}
	return nil
}
