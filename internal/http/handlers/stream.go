package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"formu/internal/domain"
	"formu/internal/relay"
)

const doneSentinel = "[DONE]"

// maxUploadBytes bounds in-memory image reads.
const maxUploadBytes = 20 << 20

// PromptGeneration streams the two-stage pipeline over SSE for an uploaded
// image. Analysis deltas arrive first under "event: analysis", then prompt
// deltas under "event: prompt", then a single [DONE] data frame. Failures
// after the stream opened are delivered in-band followed by [DONE].
func (a *App) PromptGeneration(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireTier(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "file required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read file")
		return
	}

	style, ok := a.styleFromRequest(w, r)
	if !ok {
		return
	}
	a.streamRelay(w, r, user, relay.Input{
		ImageData: data,
		Filename:  header.Filename,
		Style:     style,
	})
}

type promptFromURLRequest struct {
	ImageURL string `json:"image_url"`
	Style    string `json:"style"`
}

// PromptGenerationURL is the remote-image variant: the chat provider fetches
// the image itself, so nothing is uploaded here.
func (a *App) PromptGenerationURL(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireTier(w, r)
	if !ok {
		return
	}
	var req promptFromURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image_url required")
		return
	}
	style, err := domain.ParseStyle(styleOrDefault(req.Style, r))
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_style", "unknown style")
		return
	}
	a.streamRelay(w, r, user, relay.Input{
		ImageURL: req.ImageURL,
		Style:    style,
	})
}

func (a *App) styleFromRequest(w http.ResponseWriter, r *http.Request) (domain.Style, bool) {
	raw := r.URL.Query().Get("style")
	if raw == "" {
		raw = r.FormValue("style")
	}
	if raw == "" {
		raw = string(domain.StyleCute)
	}
	style, err := domain.ParseStyle(raw)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_style", "unknown style")
		return "", false
	}
	return style, true
}

func styleOrDefault(s string, r *http.Request) string {
	if s != "" {
		return s
	}
	if q := r.URL.Query().Get("style"); q != "" {
		return q
	}
	return string(domain.StyleCute)
}

// streamRelay runs the pipeline and frames it as SSE. Once headers are out
// every failure is in-band: an error data frame, then the [DONE] sentinel,
// emitted exactly once.
func (a *App) streamRelay(w http.ResponseWriter, r *http.Request, user *domain.User, in relay.Input) {
	summary, err := a.Ledger.Check(r.Context(), user)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load usage failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load usage")
		return
	}
	if !summary.CanUse {
		a.error(w, http.StatusForbidden, "quota_exceeded", "tier quota exhausted")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	emit := func(e relay.Event) error {
		if err := writeSSE(w, string(e.Stage), e.Delta); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if _, err := a.Relay.Run(r.Context(), in, emit); err != nil {
		a.Logger.Error().Err(err).Str("style", string(in.Style)).Msg("relay failed")
		_ = writeSSE(w, "", "error: "+err.Error())
	}
	_ = writeSSE(w, "", doneSentinel)
	if flusher != nil {
		flusher.Flush()
	}
}

// writeSSE emits one SSE frame. Multi-line payloads become multiple data
// lines per the SSE wire format.
func writeSSE(w io.Writer, event, data string) error {
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
