package tripo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"formu/internal/infra"
	"formu/internal/tasks"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("tripo: api key is required")

const providerName = "tripo"

// Options configures the Tripo 3D generation client.
type Options struct {
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client talks to the Tripo image-to-model API. It implements tasks.Provider:
// Submit uploads the source image and opens a generation task, Poll reads the
// task back.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.tripo3d.ai"
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
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

type uploadResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"message"`
	Data struct {
		ImageToken string `json:"image_token"`
	} `json:"data"`
}

type createTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"message"`
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type taskResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"message"`
	Data json.RawMessage `json:"data"`
}

// Submit uploads the image, exchanges it for an image token and opens an
// image_to_model task. It returns the provider task id.
func (c *Client) Submit(ctx context.Context, in tasks.SubmitInput) (string, error) {
	if !c.HasCredentials() {
		return "", &tasks.SubmissionError{Provider: providerName, Err: ErrMissingAPIKey}
	}
	token, err := c.uploadImage(ctx, in.ImageData, in.Filename)
	if err != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: err}
	}
	taskID, err := c.createTask(ctx, token, fileType(in.Filename))
	if err != nil {
		return "", &tasks.SubmissionError{Provider: providerName, Err: err}
	}
	c.logger.Info().Str("task_id", taskID).Msg("tripo: task created")
	return taskID, nil
}

func (c *Client) uploadImage(ctx context.Context, data []byte, filename string) (string, error) {
	if filename == "" {
		filename = "image.png"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/openapi/upload/sts", &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded uploadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if decoded.Data.ImageToken == "" {
		return "", fmt.Errorf("upload response missing image_token: %s", firstNonEmptyString(decoded.Msg, string(raw)))
	}
	return decoded.Data.ImageToken, nil
}

func (c *Client) createTask(ctx context.Context, imageToken, imageType string) (string, error) {
	payload := map[string]any{
		"type": "image_to_model",
		"file": map[string]string{
			"type":       imageType,
			"file_token": imageToken,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode task request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/openapi/task", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build task request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("task request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read task response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("task status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded createTaskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode task response: %w", err)
	}
	if decoded.Data.TaskID == "" {
		return "", fmt.Errorf("task response missing task_id: %s", firstNonEmptyString(decoded.Msg, string(raw)))
	}
	return decoded.Data.TaskID, nil
}

// Poll fetches the current task record. The returned status carries the
// provider's own status word and the raw data object.
func (c *Client) Poll(ctx context.Context, taskID string) (tasks.ProviderStatus, error) {
	if !c.HasCredentials() {
		return tasks.ProviderStatus{}, &tasks.PollError{Provider: providerName, Err: ErrMissingAPIKey}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/openapi/task/"+taskID, nil)
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
	var decoded taskResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return tasks.ProviderStatus{}, &tasks.PollError{Provider: providerName, Err: fmt.Errorf("decode task response: %w", err)}
	}
	var data struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(decoded.Data, &data)
	return tasks.ProviderStatus{Code: data.Status, Message: decoded.Msg, Raw: decoded.Data}, nil
}

func fileType(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "jpg", "jpeg":
		return "jpeg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

func firstNonEmptyString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
