package rbac

import "testing"

func TestAllowedWildcard(t *testing.T) {
	p := NewPolicy(DefaultRoles())
	for _, perm := range []Permission{"accounts.manage", "orgs.manage", "logs.export", "anything.else"} {
		if !p.Allowed([]string{"superadmin"}, perm) {
			t.Errorf("superadmin denied %s", perm)
		}
	}
}

func TestAllowedPerRole(t *testing.T) {
	p := NewPolicy(DefaultRoles())
	cases := []struct {
		role string
		perm Permission
		want bool
	}{
		{"admin", "accounts.manage", true},
		{"admin", "incidents.review", true},
		{"editor", "incidents.review", true},
		{"editor", "accounts.manage", false},
		{"orgadmin", "accounts.manage", true},
		{"orgadmin", "orgs.manage", false},
		{"user", "incidents.view", true},
		{"user", "incidents.review", false},
		{"ghost", "incidents.view", false},
	}
	for _, tc := range cases {
		if got := p.Allowed([]string{tc.role}, tc.perm); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestAllowedAnyOfRoles(t *testing.T) {
	p := NewPolicy(DefaultRoles())
	if !p.Allowed([]string{"user", "editor"}, "incidents.review") {
		t.Error("any granting role should suffice")
	}
	if p.Allowed(nil, "incidents.view") {
		t.Error("no roles grants nothing")
	}
}

func TestAllowedNilPolicy(t *testing.T) {
	var p *Policy
	if p.Allowed([]string{"superadmin"}, "accounts.manage") {
		t.Error("nil policy must deny")
	}
}
