package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"formu/internal/infra"
)

// ErrMissingToken indicates that the client was configured without credentials.
var ErrMissingToken = errors.New("coze: authorization token is required")

// Options configures the Coze chat client.
type Options struct {
	BaseURL        string
	Token          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Coze chat API. One client serves every
// bot; the bot id is supplied per stream call.
type Client struct {
	baseURL    string
	token      string
	userID     string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			// Streams stay open for the life of a generation, so no
			// overall timeout; cancellation comes from the request ctx.
			timeout = 0
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coze.cn"
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
		token:      strings.TrimSpace(opts.Token),
		userID:     uuid.NewString(),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.token != ""
}

// MessagePart is one typed element of a user message: plain text, an uploaded
// file reference, or a remote image URL.
type MessagePart struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	FileID  string `json:"file_id,omitempty"`
	FileURL string `json:"file_url,omitempty"`
}

// TextPart builds a text message part.
func TextPart(text string) MessagePart {
	return MessagePart{Type: "text", Text: text}
}

// ImageFilePart builds an image part referencing a previously uploaded file.
func ImageFilePart(fileID string) MessagePart {
	return MessagePart{Type: "image", FileID: fileID}
}

// ImageURLPart builds an image part referencing a remote URL.
func ImageURLPart(url string) MessagePart {
	return MessagePart{Type: "image", FileURL: url}
}

// Usage carries token accounting reported on stream completion.
type Usage struct {
	TokenCount int `json:"token_count"`
}

// DeltaType discriminates stream events.
type DeltaType int

const (
	// DeltaContent carries one incremental text fragment.
	DeltaContent DeltaType = iota
	// DeltaCompleted marks the end of the answer and carries usage metadata.
	DeltaCompleted
)

// Delta is one event of a chat stream.
type Delta struct {
	Type    DeltaType
	Content string
	Usage   Usage
}

// APIError is a provider-reported failure delivered in-band on the stream or
// as a non-2xx chat response.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coze: %s (%d)", e.Message, e.Code)
}

type uploadResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// UploadFile uploads raw image bytes and returns the provider file id used to
// reference the image in chat messages.
func (c *Client) UploadFile(ctx context.Context, data []byte, filename string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingToken
	}
	if len(data) == 0 {
		return "", errors.New("coze: empty file")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("coze: build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("coze: write upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("coze: close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("coze: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("coze: upload request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("coze: read upload response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("coze: upload status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var decoded uploadResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("coze: decode upload response: %w", err)
	}
	if decoded.Code != 0 {
		return "", &APIError{Code: decoded.Code, Message: decoded.Msg}
	}
	if decoded.Data.ID == "" {
		return "", errors.New("coze: upload response missing file id")
	}
	c.logger.Debug().Str("file_id", decoded.Data.ID).Msg("coze: uploaded file")
	return decoded.Data.ID, nil
}

type chatRequest struct {
	BotID              string        `json:"bot_id"`
	UserID             string        `json:"user_id"`
	Stream             bool          `json:"stream"`
	AdditionalMessages []chatMessage `json:"additional_messages"`
}

type chatMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// Stream opens a streaming chat with the given bot. The returned stream is
// single-pass: the caller must drain it with Recv or abandon it with Close,
// which releases the underlying connection.
func (c *Client) Stream(ctx context.Context, botID string, parts []MessagePart) (*Stream, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingToken
	}
	if strings.TrimSpace(botID) == "" {
		return nil, errors.New("coze: bot id is required")
	}
	content, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("coze: encode message parts: %w", err)
	}
	payload := chatRequest{
		BotID:  botID,
		UserID: c.userID,
		Stream: true,
		AdditionalMessages: []chatMessage{{
			Role:        "user",
			Content:     string(content),
			ContentType: "object_string",
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("coze: encode chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("coze: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coze: chat request: %w", err)
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var detail struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Msg != "" {
			return nil, &APIError{Code: detail.Code, Message: detail.Msg}
		}
		return nil, fmt.Errorf("coze: chat status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	c.logger.Debug().Str("bot_id", botID).Msg("coze: chat stream opened")
	return newStream(resp.Body), nil
}
