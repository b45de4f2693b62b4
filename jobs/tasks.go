package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReplenishmentRun triggers one replenishment planner pass.
	TaskReplenishmentRun = "replenishment:run"
)

// ReplenishmentPayload scopes a planner run to one account.
type ReplenishmentPayload struct {
	AccountID string `json:"account_id"`
}

// NewReplenishmentTask constructs an Asynq task for a planner run.
func NewReplenishmentTask(payload ReplenishmentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReplenishmentRun, data), nil
}
