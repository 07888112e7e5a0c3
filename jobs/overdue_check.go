package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gatepass-erp/gatepass-erp/internal/jobs"
)

// OverdueMarker transitions in-transit vouchers past their estimated
// return date. Implemented by the vouchers service.
type OverdueMarker interface {
	CheckAndMarkOverdue(ctx context.Context, systemUserID int64) (int, error)
}

// OverdueCheckJob runs the daily overdue sweep over returnable
// vouchers still in transit.
type OverdueCheckJob struct {
	Vouchers OverdueMarker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewOverdueCheckJob wires dependencies for the overdue check handler.
func NewOverdueCheckJob(vouchers OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueCheckJob {
	return &OverdueCheckJob{Vouchers: vouchers, Logger: logger, Metrics: metrics}
}

// Handle processes overdue check tasks.
func (j *OverdueCheckJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Vouchers == nil {
		return errors.New("overdue check: handler not configured")
	}
	var payload OverdueCheckPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskVouchersOverdueCheck)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("system_user_id", payload.SystemUserID))
	logger.Info("starting overdue check")

	start := time.Now()
	marked, err := j.Vouchers.CheckAndMarkOverdue(ctx, payload.SystemUserID)
	if err != nil {
		resultErr = err
		logger.Error("overdue check failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddOverdueVouchers(marked)

	logger.Info("completed overdue check",
		slog.Int("marked", marked),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OverdueCheckJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskVouchersOverdueCheck))
	}
	return slog.Default().With(slog.String("job", TaskVouchersOverdueCheck))
}

func (j *OverdueCheckJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
