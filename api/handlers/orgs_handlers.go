package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aegis-irm/core/access"
	"aegis-irm/core/lifecycle"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

type OrgsHandler struct {
	orgs      store.OrgsStore
	lifecycle *lifecycle.Service
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewOrgsHandler(orgs store.OrgsStore, lc *lifecycle.Service, audits store.AuditStore, logger *utils.Logger) *OrgsHandler {
	return &OrgsHandler{orgs: orgs, lifecycle: lc, audits: audits, logger: logger}
}

type orgPayload struct {
	Name        string          `json:"name"`
	Active      *bool           `json:"active"`
	MaxUsers    *int            `json:"max_users"`
	AccessFlags map[string]bool `json:"access_flags"`
}

func (h *OrgsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.orgs.List(r.Context())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *OrgsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	if !h.allowed(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var p orgPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	org := &store.Organization{
		Name:        p.Name,
		Active:      true,
		MaxUsers:    50,
		AccessFlags: p.AccessFlags,
	}
	if p.MaxUsers != nil && *p.MaxUsers > 0 {
		org.MaxUsers = *p.MaxUsers
	}
	if _, err := h.orgs.Create(r.Context(), org); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audit(r, actor.ID, org.ID, "organization_created", nil, org.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"organization": org})
}

func (h *OrgsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	if !h.allowed(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	id := chi.URLParam(r, "id")
	org, err := h.orgs.Get(r.Context(), id)
	if err != nil || org == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var p orgPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var changes []store.FieldChange
	if name := strings.TrimSpace(p.Name); name != "" && name != org.Name {
		changes = append(changes, store.FieldChange{Key: "name", From: org.Name, To: name})
		org.Name = name
	}
	if p.Active != nil && *p.Active != org.Active {
		if org.IsCore && !*p.Active {
			http.Error(w, "core organization cannot be deactivated", http.StatusBadRequest)
			return
		}
		changes = append(changes, store.FieldChange{
			Key: "active", From: fmt.Sprintf("%t", org.Active), To: fmt.Sprintf("%t", *p.Active),
		})
		org.Active = *p.Active
	}
	if p.MaxUsers != nil && *p.MaxUsers > 0 && *p.MaxUsers != org.MaxUsers {
		changes = append(changes, store.FieldChange{
			Key: "max_users", From: fmt.Sprintf("%d", org.MaxUsers), To: fmt.Sprintf("%d", *p.MaxUsers),
		})
		org.MaxUsers = *p.MaxUsers
	}
	if p.AccessFlags != nil {
		org.AccessFlags = p.AccessFlags
		changes = append(changes, store.FieldChange{Key: "access_flags", From: "", To: "updated"})
	}
	if len(changes) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"organization": org})
		return
	}
	if err := h.orgs.Update(r.Context(), org); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audit(r, actor.ID, org.ID, "organization_updated", changes, org.Name)
	writeJSON(w, http.StatusOK, map[string]any{"organization": org})
}

func (h *OrgsHandler) allowed(r *http.Request) bool {
	caps, err := h.lifecycle.Capabilities(r.Context(), currentUser(r))
	if err != nil {
		return false
	}
	return caps.Has(access.CapManageOrganizations)
}

func (h *OrgsHandler) audit(r *http.Request, actorID, targetID, action string, changes []store.FieldChange, note string) {
	if _, err := h.audits.Record(r.Context(), &store.AuditEntry{
		Scope:    store.AuditScopeOrganization,
		TargetID: targetID,
		ActorID:  actorID,
		Action:   action,
		Changes:  changes,
		Note:     note,
	}); err != nil {
		h.logger.Errorf("orgs: audit record failed action=%s: %v", action, err)
	}
}
