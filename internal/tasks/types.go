package tasks

import (
	"context"
	"encoding/json"
)

// State is the normalized lifecycle of an asynchronous provider job.
// Succeeded and Failed are terminal.
type State string

const (
	StateSubmitted  State = "submitted"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether the state can no longer change.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Result carries normalized artifact locators extracted from a succeeded
// provider payload. Either URL may be empty when the provider omitted it.
type Result struct {
	PrimaryURL string `json:"primary_url,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// Status is the normalized view of one poll. Result is set only in the
// Succeeded state. Raw preserves the provider payload for callers that want
// more than the normalized fields.
type Status struct {
	TaskID  string          `json:"task_id"`
	State   State           `json:"status"`
	Message string          `json:"message,omitempty"`
	Result  *Result         `json:"result,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Handle is the opaque reference returned by Submit. The id is
// provider-assigned.
type Handle struct {
	ID   string `json:"task_id"`
	Kind string `json:"kind"`
}

// SubmitInput is the caller payload for an asynchronous job.
type SubmitInput struct {
	Prompt    string
	ImageData []byte
	Filename  string
}

// ProviderStatus is the un-normalized outcome of one provider poll: the
// provider's own status word plus the raw payload it came in.
type ProviderStatus struct {
	Code    string
	Message string
	Raw     json.RawMessage
}

// Provider is the asynchronous-job capability implemented by each generation
// backend.
type Provider interface {
	Submit(ctx context.Context, in SubmitInput) (string, error)
	Poll(ctx context.Context, taskID string) (ProviderStatus, error)
}
