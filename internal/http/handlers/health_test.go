package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStylesListsClosedSet(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.Styles(rec, httptest.NewRequest(http.MethodGet, "/v1/styles", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Styles []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
		} `json:"styles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Styles) != 8 {
		t.Fatalf("styles = %d", len(resp.Styles))
	}
	if resp.Styles[0].ID != "cute" || resp.Styles[0].DisplayName != "Cute" {
		t.Fatalf("first style = %+v", resp.Styles[0])
	}
}
