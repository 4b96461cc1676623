package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"

	"formu/internal/infra"
)

// Orchestrator wraps one asynchronous provider with input validation, status
// vocabulary normalization, and artifact extraction. One orchestrator serves
// one provider kind.
type Orchestrator struct {
	kind          string
	provider      Provider
	vocab         map[string]State
	extract       func(raw json.RawMessage) Result
	requirePrompt bool
	logger        *infra.Logger
}

func ensureLogger(logger *infra.Logger) *infra.Logger {
	if logger != nil {
		return logger
	}
	discard := zerolog.New(io.Discard)
	l := infra.Logger(discard)
	return &l
}

// NewTripo builds the orchestrator for image-to-3D jobs.
func NewTripo(p Provider, logger *infra.Logger) *Orchestrator {
	return &Orchestrator{
		kind:     "tripo",
		provider: p,
		vocab: map[string]State{
			"queued":    StateSubmitted,
			"pending":   StateSubmitted,
			"running":   StateProcessing,
			"success":   StateSucceeded,
			"failed":    StateFailed,
			"cancelled": StateFailed,
			"banned":    StateFailed,
			"expired":   StateFailed,
			"unknown":   StateFailed,
		},
		extract: extractTripoResult,
		logger:  ensureLogger(logger),
	}
}

// NewSora builds the orchestrator for prompt-guided image edit jobs.
func NewSora(p Provider, logger *infra.Logger) *Orchestrator {
	return &Orchestrator{
		kind:     "sora",
		provider: p,
		vocab: map[string]State{
			"queued":      StateSubmitted,
			"pending":     StateSubmitted,
			"submitted":   StateSubmitted,
			"processing":  StateProcessing,
			"running":     StateProcessing,
			"in_progress": StateProcessing,
			"generating":  StateProcessing,
			"succeeded":   StateSucceeded,
			"success":     StateSucceeded,
			"completed":   StateSucceeded,
			"failed":      StateFailed,
			"error":       StateFailed,
			"cancelled":   StateFailed,
		},
		extract:       extractSoraResult,
		requirePrompt: true,
		logger:        ensureLogger(logger),
	}
}

// Kind names the provider this orchestrator fronts.
func (o *Orchestrator) Kind() string { return o.kind }

// Submit validates the input and hands it to the provider. Invalid input is
// rejected with a *ValidationError before any remote call happens.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput) (Handle, error) {
	if len(in.ImageData) == 0 {
		return Handle{}, &ValidationError{Reason: "image payload is empty"}
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(in.ImageData)); err != nil {
		return Handle{}, &ValidationError{Reason: "payload is not a decodable image"}
	}
	if o.requirePrompt && strings.TrimSpace(in.Prompt) == "" {
		return Handle{}, &ValidationError{Reason: "prompt is required"}
	}
	id, err := o.provider.Submit(ctx, in)
	if err != nil {
		return Handle{}, err
	}
	o.logger.Info().Str("provider", o.kind).Str("task_id", id).Msg("task submitted")
	return Handle{ID: id, Kind: o.kind}, nil
}

// Status polls the provider and maps its status word onto the normalized
// state model. Status words the mapping does not know are treated as still
// processing so that a vocabulary drift upstream degrades to extra polls, not
// a false terminal state.
func (o *Orchestrator) Status(ctx context.Context, taskID string) (Status, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return Status{}, &ValidationError{Reason: "task id is empty"}
	}
	ps, err := o.provider.Poll(ctx, taskID)
	if err != nil {
		return Status{}, err
	}
	state, ok := o.vocab[strings.ToLower(strings.TrimSpace(ps.Code))]
	if !ok {
		state = StateProcessing
	}
	st := Status{TaskID: taskID, State: state, Message: ps.Message, Raw: ps.Raw}
	if state == StateSucceeded {
		result := o.extract(ps.Raw)
		st.Result = &result
	}
	return st, nil
}

type urlField struct {
	URL string
}

// UnmarshalJSON accepts either a bare string URL or an object with a url key.
func (u *urlField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		u.URL = s
		return nil
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		u.URL = obj.URL
	}
	return nil
}

func extractTripoResult(raw json.RawMessage) Result {
	var payload struct {
		Output struct {
			PBRModel      urlField `json:"pbr_model"`
			Model         urlField `json:"model"`
			RenderedImage urlField `json:"rendered_image"`
		} `json:"output"`
		Result struct {
			PBRModel      urlField `json:"pbr_model"`
			Model         urlField `json:"model"`
			RenderedImage urlField `json:"rendered_image"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}
	}
	res := Result{
		PrimaryURL: firstNonEmpty(payload.Result.PBRModel.URL, payload.Result.Model.URL, payload.Output.PBRModel.URL, payload.Output.Model.URL),
		PreviewURL: firstNonEmpty(payload.Result.RenderedImage.URL, payload.Output.RenderedImage.URL),
	}
	return res
}

func extractSoraResult(raw json.RawMessage) Result {
	var payload struct {
		URL  string `json:"url"`
		Data []struct {
			URL          string `json:"url"`
			ThumbnailURL string `json:"thumbnail_url"`
		} `json:"data"`
		Output struct {
			URL string `json:"url"`
		} `json:"output"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}
	}
	res := Result{PrimaryURL: firstNonEmpty(payload.URL, payload.Output.URL)}
	if len(payload.Data) > 0 {
		res.PrimaryURL = firstNonEmpty(payload.Data[0].URL, res.PrimaryURL)
		res.PreviewURL = payload.Data[0].ThumbnailURL
	}
	return res
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
