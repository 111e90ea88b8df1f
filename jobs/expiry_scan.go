package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/doha-roastery/roastery/internal/jobs"
	"github.com/doha-roastery/roastery/internal/reports"
	"github.com/doha-roastery/roastery/internal/shared"
)

// AuditPort abstracts audit logging for jobs.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ExpiryScanJob surfaces packaged stock approaching its expiry date so
// cafes can discount or pull it before it goes stale on the shelf.
// Every flagged lot leaves an audit entry.
type ExpiryScanJob struct {
	Service *reports.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Audit   AuditPort
}

// NewExpiryScanJob initialises the expiry scan handler.
func NewExpiryScanJob(service *reports.Service, logger *slog.Logger, metrics *jobmetrics.Metrics, audit AuditPort) *ExpiryScanJob {
	return &ExpiryScanJob{Service: service, Logger: logger, Metrics: metrics, Audit: audit}
}

// Handle executes the expiry scan.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskExpiryScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	lots, err := j.Service.ExpiringLots(ctx, payload.WithinDays)
	if err != nil {
		resultErr = err
		j.logger().Error("expiry scan failed", slog.Any("error", err))
		return resultErr
	}

	logger := j.logger()
	for _, lot := range lots {
		logger.Warn("lot approaching expiry",
			slog.String("sku", lot.SKU),
			slog.String("location_id", lot.LocationID),
			slog.Int("quantity", lot.Quantity),
			slog.Int("days_left", lot.DaysLeft),
		)
		if j.Audit != nil {
			if err := j.Audit.Record(ctx, shared.AuditLog{
				ActorID:  "system",
				Action:   "jobs.expiry_scan.flag",
				Entity:   "inventory",
				EntityID: lot.ItemID,
				Meta: map[string]any{
					"sku":         lot.SKU,
					"location_id": lot.LocationID,
					"quantity":    lot.Quantity,
					"days_left":   lot.DaysLeft,
				},
			}); err != nil {
				logger.Warn("expiry audit record", slog.Any("error", err))
			}
		}
	}
	logger.Info("completed expiry scan", slog.Int("lots", len(lots)))
	return resultErr
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j == nil {
		return nil
	}
	return j.Metrics
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
