package tasks

import "fmt"

// ValidationError reports caller input rejected before any provider call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "tasks: " + e.Reason
}

// SubmissionError reports a provider that refused or failed a submission.
type SubmissionError struct {
	Provider string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("tasks: %s submission failed: %v", e.Provider, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollError reports a transient failure while checking task status. The task
// itself may still be running; callers should retry.
type PollError struct {
	Provider string
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("tasks: %s poll failed: %v", e.Provider, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// NotFoundError reports a task id the provider does not recognize. Unlike
// PollError it is terminal: retrying the same id cannot succeed.
type NotFoundError struct {
	Provider string
	TaskID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tasks: %s task %s not found", e.Provider, e.TaskID)
}
