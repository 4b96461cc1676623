package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"testing"
)

// stubProvider scripts Submit and Poll outcomes and counts calls.
type stubProvider struct {
	submitID    string
	submitErr   error
	submitCalls int

	pollStatus ProviderStatus
	pollErr    error
	pollCalls  int
}

func (s *stubProvider) Submit(ctx context.Context, in SubmitInput) (string, error) {
	s.submitCalls++
	return s.submitID, s.submitErr
}

func (s *stubProvider) Poll(ctx context.Context, taskID string) (ProviderStatus, error) {
	s.pollCalls++
	return s.pollStatus, s.pollErr
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSubmitRejectsNonImagePayload(t *testing.T) {
	provider := &stubProvider{}
	orch := NewTripo(provider, nil)

	_, err := orch.Submit(context.Background(), SubmitInput{ImageData: []byte("not an image")})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if provider.submitCalls != 0 {
		t.Fatalf("provider called %d times for invalid input", provider.submitCalls)
	}
}

func TestSubmitRejectsEmptyPayload(t *testing.T) {
	orch := NewTripo(&stubProvider{}, nil)
	var verr *ValidationError
	if _, err := orch.Submit(context.Background(), SubmitInput{}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubmitRequiresPromptForImageEdits(t *testing.T) {
	provider := &stubProvider{submitID: "job-1"}
	orch := NewSora(provider, nil)

	_, err := orch.Submit(context.Background(), SubmitInput{ImageData: pngBytes(t)})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	h, err := orch.Submit(context.Background(), SubmitInput{ImageData: pngBytes(t), Prompt: "add a hat"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.ID != "job-1" || h.Kind != "sora" {
		t.Fatalf("handle = %+v", h)
	}
}

func TestSubmitPassesThroughSubmissionError(t *testing.T) {
	provider := &stubProvider{submitErr: &SubmissionError{Provider: "tripo", Err: errors.New("credit exhausted")}}
	orch := NewTripo(provider, nil)

	_, err := orch.Submit(context.Background(), SubmitInput{ImageData: pngBytes(t)})
	var serr *SubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
}

func TestStatusNormalizesVocabulary(t *testing.T) {
	cases := []struct {
		code string
		want State
	}{
		{"queued", StateSubmitted},
		{"running", StateProcessing},
		{"failed", StateFailed},
		{"SUCCESS", StateSucceeded},
		{"some-new-word", StateProcessing},
	}
	for _, tc := range cases {
		provider := &stubProvider{pollStatus: ProviderStatus{Code: tc.code, Raw: json.RawMessage(`{}`)}}
		orch := NewTripo(provider, nil)
		st, err := orch.Status(context.Background(), "t-1")
		if err != nil {
			t.Fatalf("Status(%q): %v", tc.code, err)
		}
		if st.State != tc.want {
			t.Errorf("code %q mapped to %q, want %q", tc.code, st.State, tc.want)
		}
	}
}

func TestStatusExtractsTripoArtifacts(t *testing.T) {
	raw := json.RawMessage(`{
		"status": "success",
		"result": {
			"pbr_model": {"url": "https://cdn.example/model.glb"},
			"rendered_image": {"url": "https://cdn.example/preview.webp"}
		}
	}`)
	provider := &stubProvider{pollStatus: ProviderStatus{Code: "success", Raw: raw}}
	orch := NewTripo(provider, nil)

	st, err := orch.Status(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Result == nil {
		t.Fatal("result missing on success")
	}
	if st.Result.PrimaryURL != "https://cdn.example/model.glb" {
		t.Fatalf("primary = %q", st.Result.PrimaryURL)
	}
	if st.Result.PreviewURL != "https://cdn.example/preview.webp" {
		t.Fatalf("preview = %q", st.Result.PreviewURL)
	}
}

func TestStatusSucceedsWithPreviewOnly(t *testing.T) {
	raw := json.RawMessage(`{"result": {"rendered_image": {"url": "https://cdn.example/preview.webp"}}}`)
	provider := &stubProvider{pollStatus: ProviderStatus{Code: "success", Raw: raw}}
	orch := NewTripo(provider, nil)

	st, err := orch.Status(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateSucceeded {
		t.Fatalf("state = %q", st.State)
	}
	if st.Result.PrimaryURL != "" {
		t.Fatalf("primary = %q, want empty", st.Result.PrimaryURL)
	}
	if st.Result.PreviewURL != "https://cdn.example/preview.webp" {
		t.Fatalf("preview = %q", st.Result.PreviewURL)
	}
}

func TestStatusExtractsSoraArtifacts(t *testing.T) {
	raw := json.RawMessage(`{"data": [{"url": "https://cdn.example/edit.png", "thumbnail_url": "https://cdn.example/thumb.png"}]}`)
	provider := &stubProvider{pollStatus: ProviderStatus{Code: "completed", Raw: raw}}
	orch := NewSora(provider, nil)

	st, err := orch.Status(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Result.PrimaryURL != "https://cdn.example/edit.png" {
		t.Fatalf("primary = %q", st.Result.PrimaryURL)
	}
	if st.Result.PreviewURL != "https://cdn.example/thumb.png" {
		t.Fatalf("preview = %q", st.Result.PreviewURL)
	}
}

func TestStatusToleratesBareStringModelURL(t *testing.T) {
	raw := json.RawMessage(`{"output": {"model": "https://cdn.example/model.glb"}}`)
	provider := &stubProvider{pollStatus: ProviderStatus{Code: "success", Raw: raw}}
	orch := NewTripo(provider, nil)

	st, err := orch.Status(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Result.PrimaryURL != "https://cdn.example/model.glb" {
		t.Fatalf("primary = %q", st.Result.PrimaryURL)
	}
}

func TestStatusPassesThroughPollErrors(t *testing.T) {
	provider := &stubProvider{pollErr: &NotFoundError{Provider: "tripo", TaskID: "t-404"}}
	orch := NewTripo(provider, nil)

	_, err := orch.Status(context.Background(), "t-404")
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStatusRejectsEmptyTaskID(t *testing.T) {
	orch := NewTripo(&stubProvider{}, nil)
	var verr *ValidationError
	if _, err := orch.Status(context.Background(), "  "); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestStateTerminal(t *testing.T) {
	if StateSubmitted.Terminal() || StateProcessing.Terminal() {
		t.Fatal("non-terminal state reported terminal")
	}
	if !StateSucceeded.Terminal() || !StateFailed.Terminal() {
		t.Fatal("terminal state reported non-terminal")
	}
}
