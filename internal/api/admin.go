package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avilov/tutorlab/internal/identity"
	"github.com/avilov/tutorlab/internal/store"
	"github.com/go-chi/chi/v5"
)

// RegisterAdminRoutes registers the admin-only reporting routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/interactions", h.ListInteractionLogs)
		r.Get("/interactions/stats", h.InteractionStats)
	})
}

// requireAdmin rejects non-admin callers before any data access.
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !identity.IsAdminFromContext(r.Context()) {
		Error(w, http.StatusForbidden, "admin access required")
		return false
	}
	return true
}

// parseDate accepts RFC 3339 timestamps or plain dates.
func parseDate(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, true
	}
	return nil, false
}

// ListInteractionLogs handles GET /api/admin/interactions.
func (h *Handler) ListInteractionLogs(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	q := r.URL.Query()
	filter := store.LogFilter{
		UserID:    q.Get("userId"),
		SessionID: q.Get("sessionId"),
		EventType: q.Get("eventType"),
	}

	start, ok := parseDate(q.Get("startDate"))
	if !ok {
		Error(w, http.StatusBadRequest, "invalid startDate")
		return
	}
	filter.StartDate = start

	end, ok := parseDate(q.Get("endDate"))
	if !ok {
		Error(w, http.StatusBadRequest, "invalid endDate")
		return
	}
	filter.EndDate = end

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	logs, err := h.auditor.Query(r.Context(), filter)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, logs)
}

// InteractionStats handles GET /api/admin/interactions/stats.
func (h *Handler) InteractionStats(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	q := r.URL.Query()
	start, ok := parseDate(q.Get("startDate"))
	if !ok {
		Error(w, http.StatusBadRequest, "invalid startDate")
		return
	}
	end, ok := parseDate(q.Get("endDate"))
	if !ok {
		Error(w, http.StatusBadRequest, "invalid endDate")
		return
	}

	stats, err := h.auditor.Stats(r.Context(), start, end)
	if err != nil {
		WriteError(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}
