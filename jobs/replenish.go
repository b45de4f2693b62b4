package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/ss-chris/shield-field/internal/inventory"
)

// NewReplenishmentHandler returns the Asynq handler for planner runs. A run
// that finds the account lease held is treated as success; the planner itself
// guarantees at most one concurrent pass per account.
func NewReplenishmentHandler(logger *slog.Logger, planner *inventory.Planner) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReplenishmentPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		summary, err := planner.Run(ctx)
		if err != nil {
			logger.Error("replenishment task failed",
				slog.String("account", payload.AccountID),
				slog.Any("error", err))
			return err
		}
		if summary.Skipped {
			logger.Info("replenishment task skipped", slog.String("account", payload.AccountID))
			return nil
		}
		logger.Info("replenishment task done",
			slog.String("account", payload.AccountID),
			slog.Int("orders", summary.Orders),
			slog.Int("line_items", summary.LineItems))
		return nil
	}
}
