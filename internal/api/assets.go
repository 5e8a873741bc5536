package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/assets"
	"github.com/starford/daybook/internal/markup"
)

const maxUploadBytes = 10 << 20 // 10 MB, matches the asset store limit

// AssetHandler serves and accepts image assets.
type AssetHandler struct {
	store *assets.Store
}

// NewAssetHandler creates a handler over the asset store.
func NewAssetHandler(store *assets.Store) *AssetHandler {
	return &AssetHandler{store: store}
}

// ServeFile handles GET /assets/{name}.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	abs, err := h.store.FilePath(name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.NotFound(w, r)
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/assets (multipart/form-data, field "file"). The
// response includes a ready-to-insert marker string at the default width.
//
//	@Summary		Upload an image asset
//	@Tags			assets
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"Image file (png, jpg, jpeg, gif, webp)"
//	@Success		201		{object}	AssetUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	name, err := h.store.Put(header.Filename, data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	slog.Info("asset stored", slog.String("asset", name), slog.Int("size", len(data)))
	writeJSON(w, http.StatusCreated, AssetUploadResponse{
		Asset:  name,
		Size:   int64(len(data)),
		URL:    "/assets/" + name,
		Markup: fmt.Sprintf("<<IMG:%s|%d>>", name, markup.DefaultWidth),
	})
}
