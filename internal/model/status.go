package model

// TaskState represents the lifecycle state of the coordinator's task
type TaskState string

const (
	// TaskStateIdle means no task is running
	TaskStateIdle TaskState = "Idle"

	// TaskStateRunning means a download is in progress
	TaskStateRunning TaskState = "Running"

	// TaskStateCompleted means the task finished successfully
	TaskStateCompleted TaskState = "Completed"

	// TaskStateCancelled means the task was stopped by user
	TaskStateCancelled TaskState = "Cancelled"

	// TaskStateFailed means the task failed with an error
	TaskStateFailed TaskState = "Failed"
)

// String returns the string representation of TaskState
func (ts TaskState) String() string {
	return string(ts)
}

// IsActive returns true if the task is in an active state
func (ts TaskState) IsActive() bool {
	return ts == TaskStateRunning
}

// IsFinished returns true if the state is a terminal outcome (completed, cancelled, or failed)
func (ts TaskState) IsFinished() bool {
	return ts == TaskStateCompleted || ts == TaskStateCancelled || ts == TaskStateFailed
}
