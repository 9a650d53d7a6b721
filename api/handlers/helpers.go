package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"aegis-irm/core/auth"
	"aegis-irm/core/lifecycle"
	"aegis-irm/core/store"
)

const (
	SessionCookieName = "aegis_session"
	CSRFCookieName    = "aegis_csrf"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func currentUser(r *http.Request) *store.User {
	info := auth.SessionFromContext(r.Context())
	if info == nil {
		return nil
	}
	return info.User
}

// writeLifecycleError maps engine error kinds onto HTTP statuses. NoOp
// is handled by the call sites because it carries a snapshot, not a
// failure.
func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, lifecycle.ErrTerminalState):
		http.Error(w, "incident is closed", http.StatusConflict)
	case errors.Is(err, lifecycle.ErrValidation):
		http.Error(w, "bad request", http.StatusBadRequest)
	case errors.Is(err, store.ErrConflict):
		// caller should refresh and retry
		http.Error(w, "conflict", http.StatusConflict)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrPersistenceUnavailable):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
