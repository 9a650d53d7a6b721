package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aegis-irm/core/auth"
	"aegis-irm/core/rbac"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

func testServer() *Server {
	return &Server{
		policy:   rbac.NewPolicy(rbac.DefaultRoles()),
		logger:   utils.NewNopLogger(),
		activity: newSessionActivity(),
	}
}

func withSessionInfo(r *http.Request, role string) *http.Request {
	info := &auth.SessionInfo{
		Record: &store.SessionRecord{ID: "s-1", Username: "tester", Role: role},
		User:   &store.User{ID: "u-1", Username: "tester", Role: role, Active: true},
	}
	return r.WithContext(context.WithValue(r.Context(), auth.SessionContextKey, info))
}

func TestRequirePermissionDeniesMissingPermission(t *testing.T) {
	s := testServer()
	handler := s.requirePermission("orgs.manage")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := withSessionInfo(httptest.NewRequest(http.MethodPost, "/api/orgs", nil), "editor")
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", rr.Code)
	}
}

func TestRequirePermissionAllowsGrantedRole(t *testing.T) {
	s := testServer()
	handler := s.requirePermission("incidents.review")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := withSessionInfo(httptest.NewRequest(http.MethodPost, "/api/incidents/1/status", nil), "editor")
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", rr.Code)
	}
}

func TestRequirePermissionWithoutSession(t *testing.T) {
	s := testServer()
	handler := s.requirePermission("incidents.view")(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/api/incidents", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
}

func TestClientIPTrustedProxyUsesForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.10:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.11")
	if got := clientIP(req, []string{"10.0.0.10"}); got != "203.0.113.9" {
		t.Fatalf("expected 203.0.113.9, got %s", got)
	}
}

func TestClientIPIgnoresForwardedForFromUntrustedRemote(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.168.1.20:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := clientIP(req, []string{"10.0.0.10"}); got != "192.168.1.20" {
		t.Fatalf("expected remote addr, got %s", got)
	}
}

func TestRequestLimiterExhaustsAndRefills(t *testing.T) {
	l := newLimiter(2, 50*time.Millisecond)
	if !l.allow("ip") || !l.allow("ip") {
		t.Fatal("first two requests must pass")
	}
	if l.allow("ip") {
		t.Fatal("third request within the window must be limited")
	}
	if !l.allow("other-ip") {
		t.Fatal("limiter keys must be independent")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.allow("ip") {
		t.Fatal("bucket must refill after the window")
	}
}

func TestSessionActivityThrottle(t *testing.T) {
	sa := newSessionActivity()
	now := time.Now()
	if !sa.shouldUpdate("s-1", now, 30*time.Second) {
		t.Fatal("first touch must update")
	}
	if sa.shouldUpdate("s-1", now.Add(time.Second), 30*time.Second) {
		t.Fatal("touch within interval must be throttled")
	}
	if !sa.shouldUpdate("s-1", now.Add(31*time.Second), 30*time.Second) {
		t.Fatal("touch past interval must update")
	}
}
