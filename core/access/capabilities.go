package access

import (
	"aegis-irm/core/store"
)

// Capability is a named permission a principal holds after resolution.
type Capability string

const (
	CapViewAll             Capability = "viewAll"
	CapManageUsers         Capability = "manageUsers"
	CapManageOrganizations Capability = "manageOrganizations"
	CapReviewIncidents     Capability = "reviewIncidents"
	CapPublishIncidents    Capability = "publishIncidents"
	CapManageCategories    Capability = "manageCategories"
	CapGenerateReports     Capability = "generateReports"
	CapEditVisibility      Capability = "editVisibility"
)

// ScopeGlobal marks a capability that is not restricted to one tenant.
const ScopeGlobal = ""

// CapabilitySet maps each granted capability to its organization scope.
// ScopeGlobal means the grant applies across tenants; otherwise the grant
// is limited to the named organization.
type CapabilitySet map[Capability]string

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// AllowedFor reports whether the capability is granted and its scope
// covers the given organization.
func (s CapabilitySet) AllowedFor(c Capability, orgID string) bool {
	scope, ok := s[c]
	if !ok {
		return false
	}
	return scope == ScopeGlobal || scope == orgID
}

// Resolver maps an authenticated principal to its capability set.
// The privileged reviewing tenant is injected, never hard-coded.
type Resolver struct {
	CoreOrgID string
}

func NewResolver(coreOrgID string) Resolver {
	return Resolver{CoreOrgID: coreOrgID}
}

// Resolve is a pure function over already-loaded data; it performs no
// I/O and fails closed: inactive principals and unknown roles get an
// empty set. Incident creation is not a capability here; the lifecycle
// engine grants the creator's Draft -> Review path by identity.
func (r Resolver) Resolve(u *store.User, org *store.Organization) CapabilitySet {
	caps := CapabilitySet{}
	if u == nil || !u.Active {
		return caps
	}
	switch u.Role {
	case store.RoleSuperAdmin:
		for _, c := range []Capability{
			CapViewAll, CapManageUsers, CapManageOrganizations, CapReviewIncidents,
			CapPublishIncidents, CapManageCategories, CapGenerateReports, CapEditVisibility,
		} {
			caps[c] = ScopeGlobal
		}
	case store.RoleAdmin, store.RoleEditor:
		caps[CapEditVisibility] = ScopeGlobal
		if r.isCoreMember(u, org) {
			caps[CapReviewIncidents] = ScopeGlobal
			caps[CapPublishIncidents] = ScopeGlobal
			caps[CapGenerateReports] = ScopeGlobal
			caps[CapViewAll] = ScopeGlobal
			if u.Role == store.RoleAdmin {
				caps[CapManageUsers] = ScopeGlobal
				caps[CapManageCategories] = ScopeGlobal
			}
		}
	case store.RoleOrgAdmin:
		if u.OrgID != nil && *u.OrgID != "" {
			caps[CapManageUsers] = *u.OrgID
		}
	case store.RoleUser:
		// no capabilities beyond the creator-is-self rule
	}
	return caps
}

func (r Resolver) isCoreMember(u *store.User, org *store.Organization) bool {
	if u.OrgID == nil || *u.OrgID == "" {
		return false
	}
	if org != nil && org.ID == *u.OrgID && org.IsCore {
		return true
	}
	return r.CoreOrgID != "" && *u.OrgID == r.CoreOrgID
}
