package handlers

import (
	"net/http"

	"formu/internal/domain"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Styles lists the selectable generation styles for clients.
func (a *App) Styles(w http.ResponseWriter, r *http.Request) {
	type styleDTO struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	}
	out := make([]styleDTO, 0, 8)
	for _, s := range domain.Styles() {
		out = append(out, styleDTO{ID: string(s), DisplayName: s.DisplayName()})
	}
	a.json(w, http.StatusOK, map[string]any{"styles": out})
}
