package handlers

import (
	"io"
	"net/http"
	"path"
)

// Upload stores an image and returns the public URL clients embed in
// projects and prompt-generation-by-URL requests.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireTier(w, r); !ok {
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
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "empty file")
		return
	}
	key, err := a.Files.SaveUpload(r.Context(), header.Filename, data)
	if err != nil {
		a.Logger.Error().Err(err).Msg("save upload failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to store file")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{
		"key": key,
		"url": path.Join(a.UploadBaseURL, key),
	})
}
