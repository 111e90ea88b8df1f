package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/doha-roastery/roastery/internal/jobs"
	"github.com/doha-roastery/roastery/internal/reports"
)

// ReportsWarmupJob repopulates the report cache so the first dashboard
// request after an invalidation does not eat the aggregate query cost.
type ReportsWarmupJob struct {
	Service *reports.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportsWarmupJob initialises the warmup handler.
func NewReportsWarmupJob(service *reports.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the warmup.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	locations := payload.LocationIDs
	if len(locations) == 0 {
		locations = []string{""}
	}
	for _, locationID := range locations {
		if _, err := j.Service.SalesSummary(ctx, time.Time{}, time.Time{}, locationID); err != nil {
			resultErr = err
			j.logger().Error("warm sales summary", slog.String("location_id", locationID), slog.Any("error", err))
			return resultErr
		}
		if _, err := j.Service.InventoryValuation(ctx, locationID); err != nil {
			resultErr = err
			j.logger().Error("warm valuation", slog.String("location_id", locationID), slog.Any("error", err))
			return resultErr
		}
	}
	if _, err := j.Service.BatchYields(ctx, time.Time{}, time.Time{}); err != nil {
		resultErr = err
		j.logger().Error("warm batch yields", slog.Any("error", err))
		return resultErr
	}

	j.logger().Info("completed report warmup",
		slog.Int("locations", len(locations)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
