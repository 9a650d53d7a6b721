package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"aegis-irm/config"
	"aegis-irm/core/access"
	"aegis-irm/core/auth"
	"aegis-irm/core/lifecycle"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

type AccountsHandler struct {
	cfg       *config.AppConfig
	users     store.UsersStore
	orgs      store.OrgsStore
	sessions  store.SessionStore
	lifecycle *lifecycle.Service
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewAccountsHandler(cfg *config.AppConfig, users store.UsersStore, orgs store.OrgsStore, sessions store.SessionStore, lc *lifecycle.Service, audits store.AuditStore, logger *utils.Logger) *AccountsHandler {
	return &AccountsHandler{cfg: cfg, users: users, orgs: orgs, sessions: sessions, lifecycle: lc, audits: audits, logger: logger}
}

var validRoles = map[string]struct{}{
	store.RoleSuperAdmin: {},
	store.RoleAdmin:      {},
	store.RoleEditor:     {},
	store.RoleUser:       {},
	store.RoleOrgAdmin:   {},
}

type accountPayload struct {
	Username string  `json:"username"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	OrgID    *string `json:"org_id"`
	Password string  `json:"password"`
}

func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	caps, err := h.lifecycle.Capabilities(r.Context(), actor)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	filter := store.UserFilter{
		Search: r.URL.Query().Get("q"),
		Role:   strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))),
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 0),
		Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
	}
	// tenant admins only see their own organization
	if scope, ok := caps[access.CapManageUsers]; ok && scope != access.ScopeGlobal {
		filter.OrgID = scope
	} else if !caps.Has(access.CapManageUsers) && !caps.Has(access.CapViewAll) {
		if actor.OrgID == nil {
			writeJSON(w, http.StatusOK, map[string]any{"items": []store.User{}})
			return
		}
		filter.OrgID = *actor.OrgID
	}
	items, err := h.users.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	var p accountPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	p.Username = strings.ToLower(strings.TrimSpace(p.Username))
	if err := utils.ValidateUsername(p.Username); err != nil {
		http.Error(w, "invalid username", http.StatusBadRequest)
		return
	}
	role := strings.ToLower(strings.TrimSpace(p.Role))
	if role == "" {
		role = store.RoleUser
	}
	if _, ok := validRoles[role]; !ok {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	if !h.canManage(r, actor, p.OrgID, role) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if strings.TrimSpace(p.Password) == "" {
		http.Error(w, "password required", http.StatusBadRequest)
		return
	}
	ph, err := auth.HashPassword(p.Password, h.cfg.Pepper)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	u := &store.User{
		Username:     p.Username,
		FullName:     strings.TrimSpace(p.FullName),
		Email:        strings.TrimSpace(p.Email),
		Role:         role,
		OrgID:        p.OrgID,
		Active:       true,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
	}
	if _, err := h.users.Create(r.Context(), u); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audit(r, actor, u.ID, "account_created", []store.FieldChange{
		{Key: "role", From: "", To: u.Role},
	}, u.Username)
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	id := chi.URLParam(r, "id")
	target, err := h.users.Get(r.Context(), id)
	if err != nil || target == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var p accountPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if !h.canManage(r, actor, target.OrgID, target.Role) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	var changes []store.FieldChange
	if p.FullName != "" && p.FullName != target.FullName {
		changes = append(changes, store.FieldChange{Key: "full_name", From: target.FullName, To: p.FullName})
		target.FullName = strings.TrimSpace(p.FullName)
	}
	if p.Email != "" && p.Email != target.Email {
		changes = append(changes, store.FieldChange{Key: "email", From: target.Email, To: p.Email})
		target.Email = strings.TrimSpace(p.Email)
	}
	if p.Role != "" && p.Role != target.Role {
		role := strings.ToLower(strings.TrimSpace(p.Role))
		if _, ok := validRoles[role]; !ok {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		if !h.canManage(r, actor, target.OrgID, role) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		changes = append(changes, store.FieldChange{Key: "role", From: target.Role, To: role})
		target.Role = role
	}
	if p.Password != "" {
		ph, err := auth.HashPassword(p.Password, h.cfg.Pepper)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		target.PasswordHash = ph.Hash
		target.Salt = ph.Salt
		changes = append(changes, store.FieldChange{Key: "password", From: "***", To: "***"})
	}
	if len(changes) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"user": target})
		return
	}
	if err := h.users.Update(r.Context(), target); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.audit(r, actor, target.ID, "account_updated", changes, target.Username)
	writeJSON(w, http.StatusOK, map[string]any{"user": target})
}

// SetActive deactivates or reactivates an account. Accounts are never
// deleted; deactivation also kills live sessions.
func (h *AccountsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r)
	id := chi.URLParam(r, "id")
	target, err := h.users.Get(r.Context(), id)
	if err != nil || target == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if !h.canManage(r, actor, target.OrgID, target.Role) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if actor.ID == target.ID {
		http.Error(w, "cannot change own active state", http.StatusBadRequest)
		return
	}
	var p struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if p.Active == target.Active {
		writeJSON(w, http.StatusOK, map[string]any{"user": target})
		return
	}
	if err := h.users.SetActive(r.Context(), target.ID, p.Active); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !p.Active {
		_ = h.sessions.DeleteForUser(r.Context(), target.ID)
	}
	from, to := "true", "false"
	if p.Active {
		from, to = "false", "true"
	}
	h.audit(r, actor, target.ID, "account_active_changed", []store.FieldChange{
		{Key: "active", From: from, To: to},
	}, target.Username)
	target.Active = p.Active
	writeJSON(w, http.StatusOK, map[string]any{"user": target})
}

// canManage enforces the capability scope: a global manageUsers grant
// covers every tenant, an org-scoped grant only its own, and nobody
// below superadmin may touch superadmin accounts.
func (h *AccountsHandler) canManage(r *http.Request, actor *store.User, targetOrg *string, targetRole string) bool {
	caps, err := h.lifecycle.Capabilities(r.Context(), actor)
	if err != nil {
		return false
	}
	if targetRole == store.RoleSuperAdmin && actor.Role != store.RoleSuperAdmin {
		return false
	}
	orgID := ""
	if targetOrg != nil {
		orgID = *targetOrg
	}
	return caps.AllowedFor(access.CapManageUsers, orgID)
}

func (h *AccountsHandler) audit(r *http.Request, actor *store.User, targetID, action string, changes []store.FieldChange, note string) {
	if _, err := h.audits.Record(r.Context(), &store.AuditEntry{
		Scope:    store.AuditScopeUser,
		TargetID: targetID,
		ActorID:  actor.ID,
		Action:   action,
		Changes:  changes,
		Note:     note,
	}); err != nil {
		h.logger.Errorf("accounts: audit record failed action=%s: %v", action, err)
	}
}
