package access

import (
	"testing"

	"aegis-irm/core/store"
)

const coreOrgID = "org-core"

func user(role string, orgID string, active bool) *store.User {
	u := &store.User{ID: "u-" + role, Role: role, Active: active}
	if orgID != "" {
		u.OrgID = &orgID
	}
	return u
}

func TestResolveSuperAdminGetsEverythingGlobally(t *testing.T) {
	r := NewResolver(coreOrgID)
	caps := r.Resolve(user(store.RoleSuperAdmin, "org-tenant", true), nil)
	for _, c := range []Capability{
		CapViewAll, CapManageUsers, CapManageOrganizations, CapReviewIncidents,
		CapPublishIncidents, CapManageCategories, CapGenerateReports, CapEditVisibility,
	} {
		if scope, ok := caps[c]; !ok || scope != ScopeGlobal {
			t.Errorf("superadmin missing global %s", c)
		}
	}
}

func TestResolveCoreAdminVersusTenantAdmin(t *testing.T) {
	r := NewResolver(coreOrgID)

	coreAdmin := r.Resolve(user(store.RoleAdmin, coreOrgID, true), nil)
	if !coreAdmin.Has(CapReviewIncidents) || !coreAdmin.Has(CapViewAll) || !coreAdmin.Has(CapManageUsers) {
		t.Errorf("core admin caps = %v", coreAdmin)
	}

	tenantAdmin := r.Resolve(user(store.RoleAdmin, "org-tenant", true), nil)
	if tenantAdmin.Has(CapReviewIncidents) || tenantAdmin.Has(CapViewAll) || tenantAdmin.Has(CapManageUsers) {
		t.Errorf("tenant admin must not review or manage, got %v", tenantAdmin)
	}
	if !tenantAdmin.Has(CapEditVisibility) {
		t.Error("admins keep editVisibility regardless of tenant")
	}
}

func TestResolveEditorCoreMembershipViaOrgFlag(t *testing.T) {
	r := NewResolver("")
	org := &store.Organization{ID: "org-x", IsCore: true}
	caps := r.Resolve(user(store.RoleEditor, "org-x", true), org)
	if !caps.Has(CapReviewIncidents) || !caps.Has(CapPublishIncidents) || !caps.Has(CapGenerateReports) {
		t.Errorf("core editor caps = %v", caps)
	}
	if caps.Has(CapManageUsers) {
		t.Error("editors never manage users")
	}
}

func TestResolveOrgAdminScopedToOwnTenant(t *testing.T) {
	r := NewResolver(coreOrgID)
	caps := r.Resolve(user(store.RoleOrgAdmin, "org-tenant", true), nil)
	if scope, ok := caps[CapManageUsers]; !ok || scope != "org-tenant" {
		t.Fatalf("orgadmin manageUsers scope = %q, granted=%v", scope, ok)
	}
	if !caps.AllowedFor(CapManageUsers, "org-tenant") {
		t.Error("orgadmin should manage own tenant")
	}
	if caps.AllowedFor(CapManageUsers, "org-other") {
		t.Error("orgadmin must not reach another tenant")
	}
	if caps.Has(CapReviewIncidents) || caps.Has(CapEditVisibility) {
		t.Errorf("orgadmin has stray capabilities: %v", caps)
	}
}

func TestResolveFailsClosed(t *testing.T) {
	r := NewResolver(coreOrgID)
	if caps := r.Resolve(nil, nil); len(caps) != 0 {
		t.Errorf("nil principal resolved to %v", caps)
	}
	if caps := r.Resolve(user(store.RoleSuperAdmin, coreOrgID, false), nil); len(caps) != 0 {
		t.Errorf("inactive superadmin resolved to %v", caps)
	}
	if caps := r.Resolve(user("auditor", coreOrgID, true), nil); len(caps) != 0 {
		t.Errorf("unknown role resolved to %v", caps)
	}
	if caps := r.Resolve(user(store.RoleUser, "org-tenant", true), nil); len(caps) != 0 {
		t.Errorf("plain user resolved to %v", caps)
	}
}

func TestAllowedForGlobalScope(t *testing.T) {
	caps := CapabilitySet{CapManageUsers: ScopeGlobal}
	if !caps.AllowedFor(CapManageUsers, "any-org") {
		t.Error("global grant covers every tenant")
	}
	if caps.AllowedFor(CapViewAll, "any-org") {
		t.Error("absent capability must not pass")
	}
}
