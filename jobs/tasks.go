package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzCleanupExpired deactivates permission overrides past
	// their expiry.
	TaskAuthzCleanupExpired = "authz:cleanup_expired"
	// TaskVouchersOverdueCheck marks in-transit returnable vouchers
	// past their estimated return date as overdue.
	TaskVouchersOverdueCheck = "vouchers:overdue_check"
)

// OverdueCheckPayload parameterises the overdue voucher check.
type OverdueCheckPayload struct {
	// SystemUserID is recorded as the updating actor on transitioned
	// vouchers. Zero means the implicit system account.
	SystemUserID int64 `json:"system_user_id"`
}

// NewCleanupExpiredTask constructs the override cleanup task. The
// sweep takes no parameters.
func NewCleanupExpiredTask() *asynq.Task {
	return asynq.NewTask(TaskAuthzCleanupExpired, nil)
}

// NewOverdueCheckTask constructs the overdue voucher check task.
func NewOverdueCheckTask(payload OverdueCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVouchersOverdueCheck, data), nil
}
