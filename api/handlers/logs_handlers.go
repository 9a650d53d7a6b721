package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"aegis-irm/core/store"
)

type LogsHandler struct {
	audits store.AuditStore
}

func NewLogsHandler(audits store.AuditStore) *LogsHandler {
	return &LogsHandler{audits: audits}
}

func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.audits == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []store.AuditEntry{}})
		return
	}
	filter := parseAuditFilter(r)
	items, next, err := h.audits.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": next,
	})
}

func (h *LogsHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.audits == nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	filter := parseAuditFilter(r)
	if filter.Limit <= 0 || filter.Limit > 5000 {
		filter.Limit = 5000
	}
	items, _, err := h.audits.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	filename := "audit_log_" + time.Now().UTC().Format("20060102_150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"time", "scope", "target", "actor", "action", "changes", "note"})
	for i := range items {
		changes := ""
		if len(items[i].Changes) > 0 {
			if raw, err := json.Marshal(items[i].Changes); err == nil {
				changes = string(raw)
			}
		}
		_ = writer.Write([]string{
			items[i].CreatedAt.UTC().Format(time.RFC3339),
			items[i].Scope,
			items[i].TargetID,
			items[i].ActorID,
			strings.TrimSpace(items[i].Action),
			changes,
			strings.TrimSpace(items[i].Note),
		})
	}
	writer.Flush()
}

func parseAuditFilter(r *http.Request) store.AuditFilter {
	q := r.URL.Query()
	filter := store.AuditFilter{
		Scope:    strings.ToLower(strings.TrimSpace(q.Get("scope"))),
		TargetID: strings.TrimSpace(q.Get("target")),
		ActorID:  strings.TrimSpace(q.Get("actor")),
		Action:   strings.TrimSpace(q.Get("action")),
		Limit:    parseIntDefault(q.Get("limit"), 100),
		Cursor:   strings.TrimSpace(q.Get("cursor")),
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = t.UTC()
		}
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = t.UTC()
		}
	}
	return filter
}
