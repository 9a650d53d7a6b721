package rbac

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission = string

type Role struct {
	Name        string
	Permissions []Permission
}

// Route-level permissions are the coarse first gate; the fine-grained
// tenant-aware checks live in core/access and core/lifecycle.
func DefaultRoles() []Role {
	return []Role{
		{Name: "superadmin", Permissions: []Permission{"*"}},
		{Name: "admin", Permissions: []Permission{
			"accounts.view", "accounts.manage",
			"orgs.view", "orgs.manage",
			"categories.manage",
			"incidents.view", "incidents.review",
			"logs.view", "logs.export",
			"reports.view", "reports.generate",
		}},
		{Name: "editor", Permissions: []Permission{
			"incidents.view", "incidents.review",
			"reports.view", "reports.generate",
		}},
		{Name: "orgadmin", Permissions: []Permission{
			"accounts.view", "accounts.manage",
			"incidents.view",
		}},
		{Name: "user", Permissions: []Permission{
			"incidents.view",
		}},
	}
}

const policyModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj)
`

type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func NewPolicy(roles []Role) *Policy {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		panic("rbac: invalid policy model: " + err.Error())
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		panic("rbac: enforcer init: " + err.Error())
	}
	for _, role := range roles {
		for _, perm := range role.Permissions {
			_, _ = e.AddPolicy(role.Name, string(perm))
		}
	}
	return &Policy{enforcer: e}
}

// Allowed reports whether any of the given roles grants the permission.
// Unknown roles grant nothing.
func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, string(perm))
		if err == nil && ok {
			return true
		}
	}
	return false
}
