package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/journalservice"
	"github.com/starford/daybook/internal/markup"
	"github.com/starford/daybook/internal/sse"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Handler holds API route handlers.
type Handler struct {
	svc    *journalservice.Service
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil when SSE is disabled.
func NewHandler(svc *journalservice.Service, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, broker: broker}
}

func (h *Handler) publish(kind, date string) {
	if h.broker != nil {
		h.broker.PublishEntryEvent(kind, date)
	}
}

// entryDate extracts the entry date from the URL.
func entryDate(r *http.Request) string {
	return chi.URLParam(r, "date")
}

// decodeBody decodes a JSON request body into dst, capping its size.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List journal entries, newest first
//	@Tags			entries
//	@Produce		json
//	@Success		200	{object}	EntryListResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListEntries(r.Context())
	if err != nil {
		slog.Error("list entries failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: len(items)})
}

// GetEntry handles GET /api/entries/{date}.
//
//	@Summary		Get a single entry by date
//	@Tags			entries
//	@Produce		json
//	@Param			date	path		string	true	"Entry date (YYYY-MM-DD, loose forms accepted)"
//	@Success		200		{object}	EntryDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	date := entryDate(r)
	entry, err := h.svc.GetEntry(r.Context(), date)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get entry failed", slog.String("date", date), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// CreateEntry handles POST /api/entries.
//
//	@Summary		Create a new entry (empty date means today)
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateEntryRequest	true	"Entry to create"
//	@Success		201		{object}	EntryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [post]
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	entry, err := h.svc.CreateEntry(r.Context(), req.Date, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAlreadyExists):
			writeJSON(w, http.StatusConflict, errorBody("entry already exists for this date"))
		case strings.Contains(err.Error(), "invalid date"):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid date"))
		default:
			slog.Error("create entry failed", slog.String("date", req.Date), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.publish("created", entry.Date)
	writeJSON(w, http.StatusCreated, entry)
}

// UpdateEntry handles PUT /api/entries/{date}.
//
//	@Summary		Update an entry with optimistic concurrency
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			date		path	string				true	"Entry date"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateEntryRequest	true	"Updated content"
//	@Success		200			{object}	EntryDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date} [put]
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	date := entryDate(r)
	var req UpdateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	entry, err := h.svc.UpdateEntry(r.Context(), date, req.Content, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update entry failed", slog.String("date", date), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.publish("updated", entry.Date)
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/entries/{date}.
//
//	@Summary		Delete an entry
//	@Tags			entries
//	@Param			date	path	string	true	"Entry date"
//	@Success		204		"Entry deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date} [delete]
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	date := entryDate(r)
	if err := h.svc.DeleteEntry(r.Context(), date); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete entry failed", slog.String("date", date), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	h.publish("deleted", date)
	w.WriteHeader(http.StatusNoContent)
}

// RenderEntry handles GET /api/entries/{date}/render.
//
//	@Summary		Get the render plan for an entry
//	@Tags			entries
//	@Produce		json
//	@Param			date	path		string	true	"Entry date"
//	@Success		200		{object}	RenderResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date}/render [get]
func (h *Handler) RenderEntry(w http.ResponseWriter, r *http.Request) {
	date := entryDate(r)
	plan, entry, err := h.svc.RenderEntry(r.Context(), date)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("render entry failed", slog.String("date", date), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{
		Date:     entry.Date,
		Checksum: entry.Checksum,
		Runs:     planRuns(plan),
	})
}

// planRuns converts a render plan into transport runs, hidden runs included
// so spans remain addressable by clients.
func planRuns(p *markup.Plan) []RunDTO {
	out := make([]RunDTO, 0, len(p.Runs))
	for _, run := range p.Runs {
		switch v := run.(type) {
		case markup.TextRun:
			out = append(out, RunDTO{Type: "text", Text: v.Text, Span: v.Span})
		case markup.ImageRun:
			out = append(out, RunDTO{
				Type:   "image",
				Asset:  v.AssetName,
				Width:  v.Width,
				Height: v.Height,
				Span:   v.Span,
			})
		}
	}
	return out
}

// InsertImage handles POST /api/entries/{date}/images.
//
//	@Summary		Insert an image marker into an entry
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string				true	"Entry date"
//	@Param			body	body		InsertImageRequest	true	"Marker placement"
//	@Success		200		{object}	ImageMutationResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date}/images [post]
func (h *Handler) InsertImage(w http.ResponseWriter, r *http.Request) {
	date := entryDate(r)
	var req InsertImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	entry, span, err := h.svc.InsertImage(r.Context(), date, req.Offset, req.Asset)
	if err != nil {
		h.imageOpError(w, "insert image", date, err)
		return
	}
	h.publish("updated", entry.Date)
	writeJSON(w, http.StatusOK, ImageMutationResponse{Entry: entry, Span: &span})
}

// ResizeImage handles PATCH /api/entries/{date}/images.
//
//	@Summary		Change the width of an image marker
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string				true	"Entry date"
//	@Param			body	body		ResizeImageRequest	true	"Marker span and new width"
//	@Success		200		{object}	ImageMutationResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date}/images [patch]
func (h *Handler) ResizeImage(w http.ResponseWriter, r *http.Request) {
	date := entryDate(r)
	var req ResizeImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	span := markup.Span{Start: req.Start, End: req.End}
	entry, err := h.svc.ResizeImage(r.Context(), date, span, req.Width)
	if err != nil {
		h.imageOpError(w, "resize image", date, err)
		return
	}
	h.publish("updated", entry.Date)
	writeJSON(w, http.StatusOK, ImageMutationResponse{Entry: entry})
}

// RemoveImage handles DELETE /api/entries/{date}/images.
//
//	@Summary		Remove an image marker from an entry
//	@Tags			images
//	@Accept			json
//	@Produce		json
//	@Param			date	path		string				true	"Entry date"
//	@Param			body	body		RemoveImageRequest	true	"Marker span"
//	@Success		200		{object}	ImageMutationResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{date}/images [delete]
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	date := entryDate(r)
	var req RemoveImageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	span := markup.Span{Start: req.Start, End: req.End}
	entry, err := h.svc.RemoveImage(r.Context(), date, span)
	if err != nil {
		h.imageOpError(w, "remove image", date, err)
		return
	}
	h.publish("updated", entry.Date)
	writeJSON(w, http.StatusOK, ImageMutationResponse{Entry: entry})
}

// imageOpError maps marker mutation failures onto HTTP statuses. A stale
// span is a conflict: the client's view of the content is out of date.
func (h *Handler) imageOpError(w http.ResponseWriter, op, date string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidWidth):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrMarkerNotFound):
		writeJSON(w, http.StatusConflict, errorBody("no image marker at the given span"))
	default:
		slog.Error(op+" failed", slog.String("date", date), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across entries
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]SearchResultDTO, len(results))
	for i, res := range results {
		out[i] = SearchResultDTO{Date: res.Date, Snippet: res.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}
