package handlers

import (
	"net/http"
	"strings"
	"time"

	"aegis-irm/core/reports"
	"aegis-irm/core/utils"
)

type ReportsHandler struct {
	reports *reports.Service
	logger  *utils.Logger
}

func NewReportsHandler(svc *reports.Service, logger *utils.Logger) *ReportsHandler {
	return &ReportsHandler{reports: svc, logger: logger}
}

func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	items, err := h.reports.List(r.Context(), limit)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ReportsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	now := utils.NowUTC()
	from := now.AddDate(0, 0, -7)
	to := now
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t.UTC()
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t.UTC()
		}
	}
	digest, err := h.reports.Generate(r.Context(), actor, from, to)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"digest": digest})
}
