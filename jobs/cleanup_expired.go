package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gatepass-erp/gatepass-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// OverrideSweeper deactivates overrides whose expiry has passed.
// Implemented by the authz override service.
type OverrideSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupExpiredJob retires temporal permission overrides past their
// expiry so the resolver falls back to the role template.
type CleanupExpiredJob struct {
	Overrides OverrideSweeper
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewCleanupExpiredJob wires dependencies for the cleanup handler.
func NewCleanupExpiredJob(overrides OverrideSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CleanupExpiredJob {
	return &CleanupExpiredJob{Overrides: overrides, Logger: logger, Metrics: metrics}
}

// Handle processes override cleanup tasks.
func (j *CleanupExpiredJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Overrides == nil {
		return errors.New("cleanup expired: handler not configured")
	}

	tracker := j.metrics().Track(TaskAuthzCleanupExpired)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting override cleanup")

	start := time.Now()
	expired, err := j.Overrides.CleanupExpired(ctx)
	if err != nil {
		resultErr = err
		logger.Error("cleanup failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddExpiredOverrides(expired)

	logger.Info("completed override cleanup",
		slog.Int64("expired", expired),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *CleanupExpiredJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuthzCleanupExpired))
	}
	return slog.Default().With(slog.String("job", TaskAuthzCleanupExpired))
}

func (j *CleanupExpiredJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
