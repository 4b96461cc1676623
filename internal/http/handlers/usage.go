package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"formu/internal/domain"
	"formu/internal/quota"
)

type usageSummaryDTO struct {
	Used            int          `json:"used"`
	Limit           domain.Limit `json:"limit"`
	Remaining       *int         `json:"remaining"`
	CanUse          bool         `json:"can_use"`
	Tier            string       `json:"tier"`
	TierDisplayName string       `json:"tier_display_name"`
	TierColor       string       `json:"tier_color"`
}

func summaryDTO(s quota.Summary) usageSummaryDTO {
	dto := usageSummaryDTO{
		Used:            s.Used,
		Limit:           s.Config.MaxUnits,
		CanUse:          s.CanUse,
		Tier:            string(s.Tier),
		TierDisplayName: s.Config.DisplayName,
		TierColor:       s.Config.Color,
	}
	if !s.Config.MaxUnits.IsUnbounded() {
		remaining := s.Remaining
		dto.Remaining = &remaining
	}
	return dto
}

// UsageSummary reports the caller's consumption against their tier plan.
func (a *App) UsageSummary(w http.ResponseWriter, r *http.Request) {
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
	a.json(w, http.StatusOK, summaryDTO(summary))
}

type usageIncrementRequest struct {
	TaskID      string `json:"task_id"`
	ServiceType string `json:"service_type"`
}

type usageIncrementResponse struct {
	Deduplicated bool            `json:"deduplicated"`
	Summary      usageSummaryDTO `json:"summary"`
}

// UsageIncrement bills one completed task reported by the client. The call is
// idempotent per task id, so retried reports never double-charge.
func (a *App) UsageIncrement(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireTier(w, r)
	if !ok {
		return
	}
	var req usageIncrementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if strings.TrimSpace(req.TaskID) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "task_id required")
		return
	}
	kind := quota.ServiceKind(req.ServiceType)
	switch kind {
	case quota.ServiceTripo, quota.ServiceSora:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown service_type")
		return
	}
	outcome, err := a.Ledger.RecordAndCount(r.Context(), user.ID, req.TaskID, kind)
	if err != nil {
		a.Logger.Error().Err(err).Msg("record usage failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to record usage")
		return
	}
	summary, err := a.Ledger.Check(r.Context(), user)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load usage failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load usage")
		return
	}
	a.json(w, http.StatusOK, usageIncrementResponse{
		Deduplicated: outcome.Deduplicated,
		Summary:      summaryDTO(summary),
	})
}
