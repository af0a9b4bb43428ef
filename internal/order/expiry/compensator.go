package expiry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"cinema-ticketing/internal/logger"
	"cinema-ticketing/internal/models"
)

type OrderExpirer interface {
	ExpireOrder(ctx context.Context, event models.ReservationEvent) error
}

// Compensator consumes expire tasks when their delay elapses. Delivery is
// at-least-once, so the handler delegates to an idempotent ExpireOrder: a
// duplicate or late task observes a terminal order and does nothing.
type Compensator struct {
	Orders OrderExpirer
	Logger *logger.Logger
}

func NewCompensator(orders OrderExpirer, log *logger.Logger) *Compensator {
	return &Compensator{Orders: orders, Logger: log}
}

func (c *Compensator) HandleOrderExpire(ctx context.Context, t *asynq.Task) error {
	var event models.ReservationEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		// A malformed payload never becomes valid; retrying is pointless.
		c.Logger.Error("EXPIRY", fmt.Sprintf("bad expire payload: %v", err))
		return fmt.Errorf("unmarshal expire payload: %v: %w", err, asynq.SkipRetry)
	}

	c.Logger.LogOrder("EXPIRE", event.OrderID, "timeout reached, checking order state")
	if err := c.Orders.ExpireOrder(ctx, event); err != nil {
		// Returning the error lets asynq redeliver the task.
		return fmt.Errorf("expire order %d: %w", event.OrderID, err)
	}
	return nil
}

// Mux wires the compensator's task handlers for an asynq server.
func (c *Compensator) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOrderExpire, c.HandleOrderExpire)
	return mux
}

// NewServer builds the asynq worker that runs the compensator.
func NewServer(redisOpt asynq.RedisClientOpt) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})
}
