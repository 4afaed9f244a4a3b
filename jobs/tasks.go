package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBackorderResolve re-runs allocation for a variant after a
	// goods receipt made new stock available.
	TaskTypeBackorderResolve = "backorder:resolve"
)

// BackorderResolvePayload names the stock that became available.
type BackorderResolvePayload struct {
	VariantID int64  `json:"variant_id"`
	Warehouse string `json:"warehouse"`
}

// NewBackorderResolveTask constructs an Asynq task.
func NewBackorderResolveTask(payload BackorderResolvePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBackorderResolve, data), nil
}
