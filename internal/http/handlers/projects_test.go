package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"formu/internal/domain"
	"formu/internal/sqlinline"
)

func projectRequestFor(method, target, projectID string, body io.Reader, userID string) *http.Request {
	req := authedRequest(method, target, body, userID)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", projectID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func sampleProject(userID string) domain.Project {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return domain.Project{
		ID:           "p-1",
		UserID:       userID,
		Title:        "desk mascot",
		Style:        "cute",
		ImageURL:     "/uploads/171_cat.png",
		AnalysisText: "a fluffy cat on a desk",
		PromptText:   "cute cat figurine, pastel palette",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func projectScanRow(p domain.Project) func(args ...any) SimpleRow {
	return func(args ...any) SimpleRow {
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = p.ID
			*(dest[1].(*string)) = p.UserID
			*(dest[2].(*string)) = p.Title
			*(dest[3].(*domain.Style)) = p.Style
			*(dest[4].(*string)) = p.ImageURL
			*(dest[5].(*string)) = p.AnalysisText
			*(dest[6].(*string)) = p.PromptText
			*(dest[7].(*time.Time)) = p.CreatedAt
			*(dest[8].(*time.Time)) = p.UpdatedAt
			return nil
		})
	}
}

func TestProjectCreate(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	ta.sql.rows[sqlinline.QInsertProject] = func(args ...any) SimpleRow {
		if args[0].(string) != user.ID || args[1].(string) != "desk mascot" {
			t.Errorf("args = %v", args)
		}
		return NewSimpleRow(func(dest ...any) error {
			*(dest[0].(*string)) = "p-1"
			*(dest[1].(*time.Time)) = now
			*(dest[2].(*time.Time)) = now
			return nil
		})
	}

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/projects",
		strings.NewReader(`{"title":"desk mascot","style":"cute","prompt_text":"cute cat figurine"}`), user.ID)
	ta.app.ProjectCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var dto projectDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.ID != "p-1" || dto.Style != "cute" {
		t.Fatalf("dto = %+v", dto)
	}
}

func TestProjectCreateValidatesStyle(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/projects",
		strings.NewReader(`{"title":"x","style":"vaporwave"}`), user.ID)
	ta.app.ProjectCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProjectList(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)
	p := sampleProject(user.ID)
	ta.sql.queries[sqlinline.QListProjects] = func(args ...any) (pgx.Rows, error) {
		return &SliceRows{Rows: [][]any{
			{p.ID, p.UserID, p.Title, p.Style, p.ImageURL, p.AnalysisText, p.PromptText, p.CreatedAt, p.UpdatedAt},
		}}, nil
	}

	rec := httptest.NewRecorder()
	ta.app.ProjectList(rec, authedRequest(http.MethodGet, "/api/projects", nil, user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Projects []projectDTO `json:"projects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Projects) != 1 || resp.Projects[0].Title != "desk mascot" {
		t.Fatalf("projects = %+v", resp.Projects)
	}
}

func TestProjectGetNotFound(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)
	ta.sql.rows[sqlinline.QSelectProject] = noRow

	rec := httptest.NewRecorder()
	ta.app.ProjectGet(rec, projectRequestFor(http.MethodGet, "/api/projects/ghost", "ghost", nil, user.ID))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProjectDelete(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)
	ta.sql.execs[sqlinline.QDeleteProject] = func(args ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("DELETE 1"), nil
	}

	rec := httptest.NewRecorder()
	ta.app.ProjectDelete(rec, projectRequestFor(http.MethodDelete, "/api/projects/p-1", "p-1", nil, user.ID))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProjectDeleteMissing(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)
	ta.sql.execs[sqlinline.QDeleteProject] = func(args ...any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("DELETE 0"), nil
	}

	rec := httptest.NewRecorder()
	ta.app.ProjectDelete(rec, projectRequestFor(http.MethodDelete, "/api/projects/ghost", "ghost", nil, user.ID))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProjectExportBundlesManifestAndImage(t *testing.T) {
	ta := newTestApp(t)
	user := testUser(domain.TierSparkPartner)
	key, err := ta.app.Files.Write(context.Background(), "171_cat.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	p := sampleProject(user.ID)
	p.ImageURL = "/uploads/" + key
	ta.sql.rows[sqlinline.QSelectProject] = projectScanRow(p)

	rec := httptest.NewRecorder()
	ta.app.ProjectExport(rec, projectRequestFor(http.MethodGet, "/api/projects/p-1/export", "p-1", nil, user.ID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("content type = %q", got)
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["project.json"] || !names["images/"+key] {
		t.Fatalf("archive entries = %v", names)
	}
}
