package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/infra/credentials"
	"formu/internal/sqlinline"
)

type assignTierRequest struct {
	Username string `json:"username"`
	Tier     string `json:"tier"`
}

// AdminAssignTier sets a user's tier. Only the closed tier set is accepted;
// there is no self-service path to a tier.
func (a *App) AdminAssignTier(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req assignTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	tier, err := domain.ParseTier(req.Tier)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_tier", "unknown tier")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "username required")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QAssignTierByUsername, req.Username, string(tier))
	var id, username, assigned string
	if err := row.Scan(&id, &username, &assigned); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		a.Logger.Error().Err(err).Msg("assign tier failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to assign tier")
		return
	}
	cfg := domain.ConfigForTier(domain.Tier(assigned))
	a.json(w, http.StatusOK, map[string]any{
		"id":                id,
		"username":          username,
		"tier":              assigned,
		"tier_display_name": cfg.DisplayName,
	})
}

type adminUserDTO struct {
	Username  string    `json:"username"`
	Tier      string    `json:"tier,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminListUsers lists accounts in registration order.
func (a *App) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListUsers)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list users failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list users")
		return
	}
	defer rows.Close()

	users := []adminUserDTO{}
	for rows.Next() {
		var u adminUserDTO
		if err := rows.Scan(&u.Username, &u.Tier, &u.Status, &u.CreatedAt); err != nil {
			a.Logger.Error().Err(err).Msg("scan user failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to list users")
			return
		}
		users = append(users, u)
	}
	a.json(w, http.StatusOK, map[string]any{"users": users})
}

type providerConfigDTO struct {
	Configured bool   `json:"configured"`
	BaseURL    string `json:"base_url,omitempty"`
}

type cozeConfigDTO struct {
	providerConfigDTO
	AnalysisBot string            `json:"analysis_bot,omitempty"`
	StyleBots   map[string]string `json:"style_bots,omitempty"`
}

// AdminGetConfig reports which providers are configured. Secrets are never
// echoed back, only their presence.
func (a *App) AdminGetConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	snap := a.Creds.Current()
	a.json(w, http.StatusOK, map[string]any{
		"coze": cozeConfigDTO{
			providerConfigDTO: providerConfigDTO{Configured: snap.Coze.Token != "", BaseURL: snap.Coze.BaseURL},
			AnalysisBot:       snap.Coze.AnalysisBot,
			StyleBots:         snap.Coze.StyleBots,
		},
		"tripo": providerConfigDTO{Configured: snap.Tripo.APIKey != "", BaseURL: snap.Tripo.BaseURL},
		"sora":  providerConfigDTO{Configured: snap.Sora.APIKey != "", BaseURL: snap.Sora.BaseURL},
	})
}

type setConfigRequest struct {
	Coze *struct {
		Token       string            `json:"token"`
		BaseURL     string            `json:"base_url"`
		AnalysisBot string            `json:"analysis_bot"`
		StyleBots   map[string]string `json:"style_bots"`
	} `json:"coze"`
	Tripo *struct {
		APIKey  string `json:"api_key"`
		BaseURL string `json:"base_url"`
	} `json:"tripo"`
	Sora *struct {
		APIKey  string `json:"api_key"`
		BaseURL string `json:"base_url"`
	} `json:"sora"`
}

// AdminSetConfig persists provider credentials and publishes them to running
// requests atomically. Providers omitted from the payload keep their current
// values.
func (a *App) AdminSetConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Coze != nil {
		err := a.Creds.SetCoze(r.Context(), credentials.CozeCredentials{
			Token:       req.Coze.Token,
			BaseURL:     req.Coze.BaseURL,
			AnalysisBot: req.Coze.AnalysisBot,
			StyleBots:   req.Coze.StyleBots,
		})
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	if req.Tripo != nil {
		if err := a.Creds.SetTripo(r.Context(), credentials.KeyCredentials{APIKey: req.Tripo.APIKey, BaseURL: req.Tripo.BaseURL}); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	if req.Sora != nil {
		if err := a.Creds.SetSora(r.Context(), credentials.KeyCredentials{APIKey: req.Sora.APIKey, BaseURL: req.Sora.BaseURL}); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "updated"})
}

// AdminStorageStats reports upload volume.
func (a *App) AdminStorageStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	stats, err := a.Files.Stats(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("storage stats failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read storage stats")
		return
	}
	a.json(w, http.StatusOK, stats)
}

type cleanupRequest struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// AdminStorageCleanup removes uploads older than the requested age.
func (a *App) AdminStorageCleanup(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.MaxAgeHours <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "max_age_hours must be positive")
		return
	}
	removed, err := a.Files.CleanupOlderThan(r.Context(), time.Duration(req.MaxAgeHours)*time.Hour)
	if err != nil {
		a.Logger.Error().Err(err).Msg("storage cleanup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to clean storage")
		return
	}
	a.json(w, http.StatusOK, map[string]int{"removed": removed})
}
