package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aegis-irm/config"
	"aegis-irm/core/lifecycle"
	"aegis-irm/core/obs"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

type IncidentsHandler struct {
	cfg       *config.AppConfig
	incidents store.IncidentsStore
	users     store.UsersStore
	lifecycle *lifecycle.Service
	logger    *utils.Logger
}

func NewIncidentsHandler(cfg *config.AppConfig, incidents store.IncidentsStore, users store.UsersStore, lc *lifecycle.Service, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{cfg: cfg, incidents: incidents, users: users, lifecycle: lc, logger: logger}
}

type incidentPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	var p incidentPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.lifecycle.Create(r.Context(), actor, p.Title, p.Description, p.Impact)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"incident": inc})
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	caps, err := h.lifecycle.Capabilities(r.Context(), actor)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	q := r.URL.Query()
	filter := store.IncidentFilter{
		Search:     q.Get("q"),
		Status:     strings.ToLower(strings.TrimSpace(q.Get("status"))),
		Impact:     strings.ToLower(strings.TrimSpace(q.Get("impact"))),
		Visibility: strings.ToLower(strings.TrimSpace(q.Get("visibility"))),
		Limit:      parseIntDefault(q.Get("limit"), 50),
		Offset:     parseIntDefault(q.Get("offset"), 0),
	}
	items, err := h.incidents.ListIncidents(r.Context(), filter)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	visible := make([]store.Incident, 0, len(items))
	for i := range items {
		if h.lifecycle.CanView(actor, caps, &items[i]) {
			visible = append(visible, items[i])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": visible})
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	inc, err := h.incidents.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if inc == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	caps, err := h.lifecycle.Capabilities(r.Context(), actor)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	// hidden incidents look like missing ones
	if !h.lifecycle.CanView(actor, caps, inc) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc})
}

func (h *IncidentsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	var p struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.lifecycle.Transition(r.Context(), actor, chi.URLParam(r, "id"), p.Status)
	if errors.Is(err, lifecycle.ErrNoOp) {
		writeJSON(w, http.StatusOK, map[string]any{"incident": inc, "changed": false})
		return
	}
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	obs.TransitionsTotal.WithLabelValues(inc.Status).Inc()
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc, "changed": true})
}

func (h *IncidentsHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	var p struct {
		Visibility string `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.lifecycle.SetVisibility(r.Context(), actor, chi.URLParam(r, "id"), p.Visibility)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc})
}

func (h *IncidentsHandler) SetImpact(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	var p struct {
		Impact string `json:"impact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	inc, err := h.lifecycle.SetImpact(r.Context(), actor, chi.URLParam(r, "id"), p.Impact)
	if errors.Is(err, lifecycle.ErrNoOp) {
		writeJSON(w, http.StatusOK, map[string]any{"incident": inc, "changed": false})
		return
	}
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"incident": inc, "changed": true})
}
