package bootstrap

import (
	"context"
	"fmt"

	"aegis-irm/config"
	"aegis-irm/core/auth"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

// EnsureCoreOrg creates the privileged reviewing tenant on first run.
// When cfg.Tenancy.CoreOrgID is set the organization is created under
// that id so capability resolution and storage agree.
func EnsureCoreOrg(ctx context.Context, orgs store.OrgsStore, cfg *config.AppConfig, logger *utils.Logger) (*store.Organization, error) {
	if cfg.Tenancy.CoreOrgID != "" {
		org, err := orgs.Get(ctx, cfg.Tenancy.CoreOrgID)
		if err != nil {
			return nil, err
		}
		if org != nil {
			return org, nil
		}
	} else {
		org, err := orgs.FindCore(ctx)
		if err != nil {
			return nil, err
		}
		if org != nil {
			return org, nil
		}
	}
	org := &store.Organization{
		ID:     cfg.Tenancy.CoreOrgID,
		Name:   cfg.Tenancy.CoreOrgName,
		Active: true,
		IsCore: true,
	}
	if _, err := orgs.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("create core org: %w", err)
	}
	logger.Infof("bootstrap: core organization %q created (%s)", org.Name, org.ID)
	return org, nil
}

// EnsureDefaultAdmin provisions the initial superadmin when no account
// with that username exists yet.
func EnsureDefaultAdmin(ctx context.Context, users store.UsersStore, coreOrg *store.Organization, cfg *config.AppConfig, logger *utils.Logger) error {
	username := cfg.Bootstrap.AdminUsername
	if username == "" {
		username = "admin"
	}
	existing, err := users.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	password := cfg.Bootstrap.AdminPassword
	if password == "" {
		generated, err := utils.RandString(12)
		if err != nil {
			return err
		}
		password = generated
		logger.Warnf("bootstrap: generated initial admin password: %s", password)
	}
	ph, err := auth.HashPassword(password, cfg.Pepper)
	if err != nil {
		return err
	}
	u := &store.User{
		Username:     username,
		FullName:     "Administrator",
		Role:         store.RoleSuperAdmin,
		OrgID:        &coreOrg.ID,
		Active:       true,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
	}
	if _, err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}
	logger.Infof("bootstrap: default admin %q created", username)
	return nil
}
