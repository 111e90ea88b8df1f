package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAllocationReconcile verifies that packaged units stay within
	// each batch's roasted output.
	TaskAllocationReconcile = "inventory:reconcile_allocations"
	// TaskExpiryScan flags packaged stock approaching expiry.
	TaskExpiryScan = "inventory:expiry_scan"
	// TaskReportsWarmup preloads the report cache after invalidation.
	TaskReportsWarmup = "reports:warmup"
)

// AllocationReconcilePayload carries scheduling metadata.
type AllocationReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAllocationReconcileTask constructs an Asynq task for the nightly
// allocation reconciliation.
func NewAllocationReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(AllocationReconcilePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAllocationReconcile, body, asynq.Queue(QueueDefault)), nil
}

// ExpiryScanPayload bounds the scan horizon.
type ExpiryScanPayload struct {
	WithinDays int `json:"within_days"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry scan.
func NewExpiryScanTask(withinDays int) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{WithinDays: withinDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// ReportsWarmupPayload selects which locations to warm.
type ReportsWarmupPayload struct {
	LocationIDs []string `json:"location_ids"`
}

// NewReportsWarmupTask constructs an Asynq task for report cache warmup.
func NewReportsWarmupTask(locationIDs []string) (*asynq.Task, error) {
	body, err := json.Marshal(ReportsWarmupPayload{LocationIDs: locationIDs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, body, asynq.Queue(QueueDefault)), nil
}
