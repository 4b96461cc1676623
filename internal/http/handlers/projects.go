package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"formu/internal/domain"
	"formu/internal/infra"
	"formu/internal/sqlinline"
	ziputil "formu/pkg/zip"
)

type projectDTO struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Style        string    `json:"style"`
	ImageURL     string    `json:"image_url,omitempty"`
	AnalysisText string    `json:"analysis_text,omitempty"`
	PromptText   string    `json:"prompt_text,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func projectToDTO(p domain.Project) projectDTO {
	return projectDTO{
		ID:           p.ID,
		Title:        p.Title,
		Style:        string(p.Style),
		ImageURL:     p.ImageURL,
		AnalysisText: p.AnalysisText,
		PromptText:   p.PromptText,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type projectRequest struct {
	Title        string `json:"title"`
	Style        string `json:"style"`
	ImageURL     string `json:"image_url"`
	AnalysisText string `json:"analysis_text"`
	PromptText   string `json:"prompt_text"`
}

// ProjectCreate saves a generation session: source image, analysis and the
// produced prompt.
func (a *App) ProjectCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title required")
		return
	}
	if _, err := domain.ParseStyle(req.Style); err != nil {
		a.error(w, http.StatusBadRequest, "invalid_style", "unknown style")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertProject, userID, req.Title, req.Style, req.ImageURL, req.AnalysisText, req.PromptText)
	var id string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &createdAt, &updatedAt); err != nil {
		a.Logger.Error().Err(err).Msg("insert project failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create project")
		return
	}
	a.json(w, http.StatusCreated, projectDTO{
		ID:           id,
		Title:        req.Title,
		Style:        req.Style,
		ImageURL:     req.ImageURL,
		AnalysisText: req.AnalysisText,
		PromptText:   req.PromptText,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	})
}

// ProjectList lists the caller's projects, newest first.
func (a *App) ProjectList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	rows, err := a.SQL.Query(r.Context(), sqlinline.QListProjects, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list projects failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list projects")
		return
	}
	defer rows.Close()

	projects := []projectDTO{}
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Style, &p.ImageURL, &p.AnalysisText, &p.PromptText, &p.CreatedAt, &p.UpdatedAt); err != nil {
			a.Logger.Error().Err(err).Msg("scan project failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to list projects")
			return
		}
		projects = append(projects, projectToDTO(p))
	}
	a.json(w, http.StatusOK, map[string]any{"projects": projects})
}

func (a *App) loadProject(r *http.Request, userID string) (*domain.Project, error) {
	projectID := chi.URLParam(r, "id")
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectProject, projectID, userID)
	var p domain.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Style, &p.ImageURL, &p.AnalysisText, &p.PromptText, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ProjectGet returns one project owned by the caller.
func (a *App) ProjectGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	p, err := a.loadProject(r, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			a.error(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load project failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load project")
		return
	}
	a.json(w, http.StatusOK, projectToDTO(*p))
}

// ProjectUpdate applies a partial update; empty fields keep their values.
func (a *App) ProjectUpdate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Style != "" {
		if _, err := domain.ParseStyle(req.Style); err != nil {
			a.error(w, http.StatusBadRequest, "invalid_style", "unknown style")
			return
		}
	}
	projectID := chi.URLParam(r, "id")
	row := a.SQL.QueryRow(r.Context(), sqlinline.QUpdateProject, projectID, userID, req.Title, req.Style, req.ImageURL, req.AnalysisText, req.PromptText)
	var p domain.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Style, &p.ImageURL, &p.AnalysisText, &p.PromptText, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		a.Logger.Error().Err(err).Msg("update project failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to update project")
		return
	}
	a.json(w, http.StatusOK, projectToDTO(p))
}

// ProjectDelete removes a project owned by the caller.
func (a *App) ProjectDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	projectID := chi.URLParam(r, "id")
	tag, err := a.SQL.Exec(r.Context(), sqlinline.QDeleteProject, projectID, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("delete project failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete project")
		return
	}
	if tag.RowsAffected() == 0 {
		a.error(w, http.StatusNotFound, "not_found", "project not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ProjectExport downloads one project as a zip: a JSON manifest plus the
// stored source image when it still lives in local storage.
func (a *App) ProjectExport(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	p, err := a.loadProject(r, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			a.error(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		a.Logger.Error().Err(err).Msg("load project failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load project")
		return
	}

	manifest, err := json.MarshalIndent(projectToDTO(*p), "", "  ")
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to export project")
		return
	}
	assets := []ziputil.Asset{{Filename: "project.json", MIME: "application/json", Data: manifest}}

	if key, ok := strings.CutPrefix(p.ImageURL, a.UploadBaseURL+"/"); ok {
		if data, err := a.Files.Read(r.Context(), key); err == nil {
			assets = append(assets, ziputil.Asset{Filename: "images/" + key, Data: data})
		}
	}

	archive := ziputil.ArchiveAssets(assets)
	if len(archive) == 0 {
		a.error(w, http.StatusInternalServerError, "internal", "failed to export project")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "project-"+p.ID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
