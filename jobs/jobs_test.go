package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/gatepass-erp/gatepass-erp/internal/jobs"
)

type stubSweeper struct {
	expired int64
	err     error
	calls   int
}

func (s *stubSweeper) CleanupExpired(context.Context) (int64, error) {
	s.calls++
	return s.expired, s.err
}

type stubMarker struct {
	marked int
	err    error
	lastID int64
}

func (s *stubMarker) CheckAndMarkOverdue(_ context.Context, systemUserID int64) (int, error) {
	s.lastID = systemUserID
	return s.marked, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics(t *testing.T) *jobmetrics.Metrics {
	t.Helper()
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestCleanupExpiredJobSweeps(t *testing.T) {
	sweeper := &stubSweeper{expired: 3}
	job := NewCleanupExpiredJob(sweeper, testLogger(), testMetrics(t))

	err := job.Handle(context.Background(), NewCleanupExpiredTask())
	require.NoError(t, err)
	require.Equal(t, 1, sweeper.calls)
}

func TestCleanupExpiredJobPropagatesError(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("db down")}
	job := NewCleanupExpiredJob(sweeper, testLogger(), testMetrics(t))

	err := job.Handle(context.Background(), NewCleanupExpiredTask())
	require.Error(t, err)
}

func TestOverdueCheckJobPassesSystemUser(t *testing.T) {
	marker := &stubMarker{marked: 2}
	job := NewOverdueCheckJob(marker, testLogger(), testMetrics(t))

	task, err := NewOverdueCheckTask(OverdueCheckPayload{SystemUserID: 42})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, int64(42), marker.lastID)
}

func TestOverdueCheckJobEmptyPayload(t *testing.T) {
	marker := &stubMarker{}
	job := NewOverdueCheckJob(marker, testLogger(), testMetrics(t))

	task := asynq.NewTask(TaskVouchersOverdueCheck, nil)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, int64(0), marker.lastID)
}

func TestOverdueCheckJobBadPayloadSkipsRetry(t *testing.T) {
	marker := &stubMarker{}
	job := NewOverdueCheckJob(marker, testLogger(), testMetrics(t))

	task := asynq.NewTask(TaskVouchersOverdueCheck, []byte("not-json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
