package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lorepatch/internal/lore"
)

type Handler struct {
	svc         *Service
	defaultSize int
}

func NewHandler(svc *Service, defaultSize int) *Handler {
	return &Handler{svc: svc, defaultSize: defaultSize}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.svc.SessionCount(),
	})
}

// Lists handles GET /lists
func (h *Handler) Lists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.svc.Lists(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lists": lists,
	})
}

// Patches handles GET /lists/{list}/patches?page=N&size=S
func (h *Handler) Patches(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	size, err := queryInt(r, "size", h.defaultSize)
	if err != nil || size < 1 {
		writeError(w, http.StatusBadRequest, "size must be a positive integer")
		return
	}
	if maxSize := max(lore.PageSize, h.defaultSize); size > maxSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("size must be at most %d", maxSize))
		return
	}
	// Rejected before the service lock is taken.
	if _, err := lore.WindowEnd(size, page); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, ok, err := h.svc.Page(r.Context(), list, size, page)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "page out of range")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Patch handles GET /lists/{list}/patch?id=<message_id>
func (h *Handler) Patch(w http.ResponseWriter, r *http.Request) {
	list := chi.URLParam(r, "list")
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	p, ok := h.svc.Lookup(list, id)
	if !ok {
		writeError(w, http.StatusNotFound, "patch not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lore.ErrFetchFailed),
		errors.Is(err, lore.ErrMalformedFeed),
		errors.Is(err, lore.ErrMalformedListPage):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, lore.ErrWindowTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
