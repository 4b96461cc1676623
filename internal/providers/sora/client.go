package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"formu/internal/infra"
	"formu/internal/tasks"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("sora: api key is required")

const (
	providerName = "sora"
	defaultModel = "sora_image"
	defaultSize  = "1024x1024"
)

// Options configures the Sora image edit client.
type Options struct {
	BaseURL        string
	APIKey         string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to the Sora-compatible image edits API. It implements
// tasks.Provider: Submit opens an asynchronous edit job, Poll reads it back.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 300 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	model := opts.Model
	if model == "" {
		model = defaultModel
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.baseURL != ""
}

type editRequest struct {
	Model    string  `json:"model"`
	Prompt   string  `json:"prompt"`
	Image    string  `json:"image"`
	N        int     `json:"n"`
	Size     string  `json:"size"`
	Strength float64 `json:"strength"`
}

type editResponse struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Submit opens an asynchronous prompt-guided edit of the given image and
// returns the provider task id.
func (c *Client) Submit(ctx context.Context, in tasks.SubmitInput) (string, error) {
	if !c.HasCredentials() {
		return "", &tasks.SubmissionError{Provider: providerName, Err: ErrMissingAPIKey}
	}
	payload := editRequest{
		Model:    c.model,
		Prompt:   in.Prompt,
		Image:    EncodeBytes(in.ImageData),
		N:        1,
		Size:     defaultSize,
		Strength: 0.8,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: fmt.Errorf("encode edit request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images/edits?async=true", bytes.NewReader(body))
	if err != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: err}
	}
	if resp.StatusCode >= 300 {
		return "", &tasks.SubmissionError{
			Provider: providerName,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}
	var decoded editResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: fmt.Errorf("decode edit response: %w", err)}
	}
	if decoded.Error != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: errors.New(decoded.Error.Message)}
	}
	id := decoded.TaskID
	if id == "" {
		id = decoded.ID
	}
	if id == "" {
		return "", &tasks.SubmissionError{Provider: providerName, Err: errors.New("edit response missing task id")}
	}
	c.logger.Info().Str("task_id", id).Msg("sora: edit task created")
	return id, nil
}

// Poll fetches the current job record from the tasks endpoint.
func (c *Client) Poll(ctx context.Context, taskID string) (tasks.ProviderStatus, error) {
	if !c.HasCredentials() {
		return tasks.ProviderStatus{}, &tasks.PollError{Provider: providerName, Err: ErrMissingAPIKey}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/images/tasks/"+taskID, nil)
	if err != nil {
		return tasks.ProviderStatus{}, &tasks.PollError{Provider: providerName, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tasks.ProviderStatus{}, &tasks.PollError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return tasks.ProviderStatus{}, &tasks.PollError{Provider: providerName, Err: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		return tasks.ProviderStatus{}, &tasks.NotFoundError{Provider: providerName, TaskID: taskID}
	}
	if resp.StatusCode >= 300 {
		return tasks.ProviderStatus{}, &tasks.PollError{
			Provider: providerName,
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}
	var decoded struct {
		Status   string `json:"status"`
		Progress string `json:"progress"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return tasks.ProviderStatus{}, &tasks.PollError{Provider: providerName, Err: fmt.Errorf("decode task response: %w", err)}
	}
	return tasks.ProviderStatus{Code: decoded.Status, Message: decoded.Progress, Raw: raw}, nil
}
