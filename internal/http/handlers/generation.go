package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"formu/internal/domain"
	"formu/internal/quota"
	"formu/internal/tasks"
)

type submitResponse struct {
	TaskID       string `json:"task_id"`
	Kind         string `json:"kind"`
	Deduplicated bool   `json:"deduplicated"`
	Used         int    `json:"used,omitempty"`
}

// ThreeDSubmit opens an image-to-3D generation task. Submission is the
// billable moment: the task is recorded against the caller's quota before the
// id is returned.
func (a *App) ThreeDSubmit(w http.ResponseWriter, r *http.Request) {
	a.submitTask(w, r, a.Tripo, quota.ServiceTripo, false)
}

// ThreeDStatus reports the normalized state of a 3D generation task.
func (a *App) ThreeDStatus(w http.ResponseWriter, r *http.Request) {
	a.taskStatus(w, r, a.Tripo)
}

// SoraSubmit opens a prompt-guided image edit task.
func (a *App) SoraSubmit(w http.ResponseWriter, r *http.Request) {
	a.submitTask(w, r, a.Sora, quota.ServiceSora, true)
}

// SoraStatus reports the normalized state of an image edit task.
func (a *App) SoraStatus(w http.ResponseWriter, r *http.Request) {
	a.taskStatus(w, r, a.Sora)
}

func (a *App) submitTask(w http.ResponseWriter, r *http.Request, svc TaskService, kind quota.ServiceKind, wantPrompt bool) {
	user, ok := a.requireTier(w, r)
	if !ok {
		return
	}
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

	in := tasks.SubmitInput{ImageData: data, Filename: header.Filename}
	if wantPrompt {
		in.Prompt = r.FormValue("prompt")
	}

	handle, err := svc.Submit(r.Context(), in)
	if err != nil {
		a.taskError(w, err)
		return
	}

	outcome, err := a.Ledger.RecordAndCount(r.Context(), user.ID, handle.ID, kind)
	if err != nil {
		a.Logger.Error().Err(err).Str("task_id", handle.ID).Msg("record usage failed")
		a.error(w, http.StatusInternalServerError, "internal", "task submitted but billing failed")
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{
		TaskID:       handle.ID,
		Kind:         handle.Kind,
		Deduplicated: outcome.Deduplicated,
		Used:         outcome.Used,
	})
}

func (a *App) taskStatus(w http.ResponseWriter, r *http.Request, svc TaskService) {
	if _, ok := a.requireTier(w, r); !ok {
		return
	}
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "task id required")
		return
	}
	status, err := svc.Status(r.Context(), taskID)
	if err != nil {
		a.taskError(w, err)
		return
	}
	a.json(w, http.StatusOK, status)
}

// taskError maps the task error taxonomy onto HTTP statuses: caller mistakes
// are 4xx, provider trouble is 502.
func (a *App) taskError(w http.ResponseWriter, err error) {
	var verr *tasks.ValidationError
	var nfErr *tasks.NotFoundError
	var serr *tasks.SubmissionError
	var perr *tasks.PollError
	switch {
	case errors.As(err, &verr):
		a.error(w, http.StatusBadRequest, "bad_request", verr.Reason)
	case errors.As(err, &nfErr):
		a.error(w, http.StatusNotFound, "not_found", "task not found")
	case errors.As(err, &serr):
		a.Logger.Error().Err(err).Msg("provider submission failed")
		a.error(w, http.StatusBadGateway, "provider_error", "provider rejected the task")
	case errors.As(err, &perr):
		a.Logger.Error().Err(err).Msg("provider poll failed")
		a.error(w, http.StatusBadGateway, "provider_error", "provider status check failed")
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, http.StatusForbidden, "quota_exceeded", "tier quota exhausted")
	default:
		a.Logger.Error().Err(err).Msg("task operation failed")
		a.error(w, http.StatusInternalServerError, "internal", "task operation failed")
	}
}
