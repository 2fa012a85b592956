package crew

import "fmt"

// TaskStatus is the lifecycle state of a task within one run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

var validTransitions = map[TaskStatus][]TaskStatus{
	TaskPending: {TaskRunning},
	TaskRunning: {TaskCompleted, TaskFailed},
}

// Transition returns nil if from -> to is legal. Completed and failed are
// terminal.
func Transition(from, to TaskStatus) error {
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("no transitions from %q", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid transition %q -> %q", from, to)
}
