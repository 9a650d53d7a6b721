package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aegis-irm/config"
	"aegis-irm/core/access"
	"aegis-irm/core/notify"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

// Service is the only writer of incident status, visibility and impact.
// Every privileged mutation goes through here so the capability checks
// and the audit trail cannot drift apart.
type Service struct {
	cfg       *config.AppConfig
	incidents store.IncidentsStore
	orgs      store.OrgsStore
	audits    store.AuditStore
	resolver  access.Resolver
	sender    notify.Sender
	logger    *utils.Logger
}

func NewService(cfg *config.AppConfig, incidents store.IncidentsStore, orgs store.OrgsStore, audits store.AuditStore, sender notify.Sender, logger *utils.Logger) *Service {
	if sender == nil {
		sender = notify.NopSender{}
	}
	return &Service{
		cfg:       cfg,
		incidents: incidents,
		orgs:      orgs,
		audits:    audits,
		resolver:  access.NewResolver(cfg.Tenancy.CoreOrgID),
		sender:    sender,
		logger:    logger,
	}
}

// Capabilities resolves the actor's capability set, loading the actor's
// organization for the core-tenant check.
func (s *Service) Capabilities(ctx context.Context, actor *store.User) (access.CapabilitySet, error) {
	var org *store.Organization
	if actor != nil && actor.OrgID != nil && *actor.OrgID != "" {
		loaded, err := s.orgs.Get(ctx, *actor.OrgID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		org = loaded
	}
	return s.resolver.Resolve(actor, org), nil
}

// Create registers a new incident in Draft for the actor's organization.
// Any authenticated active principal may report.
func (s *Service) Create(ctx context.Context, actor *store.User, title, description, impact string) (*store.Incident, error) {
	if actor == nil || !actor.Active {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	im := ImpactLow
	if strings.TrimSpace(impact) != "" {
		parsed, err := ParseImpact(impact)
		if err != nil {
			return nil, err
		}
		im = parsed
	}
	orgID := ""
	if actor.OrgID != nil {
		orgID = *actor.OrgID
	}
	if orgID == "" {
		return nil, fmt.Errorf("%w: reporter has no organization", ErrValidation)
	}
	inc := &store.Incident{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		OrgID:       orgID,
		Status:      string(StatusDraft),
		Visibility:  string(VisibilityPrivate),
		Impact:      string(im),
		CreatedBy:   actor.ID,
		UpdatedBy:   actor.ID,
	}
	if _, err := s.incidents.CreateIncident(ctx, inc, s.cfg.Incidents.RegNoFormat); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.record(ctx, &store.AuditEntry{
		Scope:    store.AuditScopeIncident,
		TargetID: inc.ID,
		ActorID:  actor.ID,
		Action:   "incident_created",
		Note:     inc.RegNo,
	})
	return inc, nil
}

// Transition moves an incident to the target status. Rule order, first
// match wins: terminal -> no-op -> privileged reviewer -> creator
// self-submission -> forbidden.
func (s *Service) Transition(ctx context.Context, actor *store.User, incidentID string, targetStatus string) (*store.Incident, error) {
	target, err := ParseStatus(targetStatus)
	if err != nil {
		return nil, err
	}
	inc, err := s.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	current := Status(inc.Status)
	if current.Terminal() {
		return inc, ErrTerminalState
	}
	if target == current {
		return inc, ErrNoOp
	}
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return nil, err
	}
	switch {
	case caps.Has(access.CapReviewIncidents):
		// any transition among non-terminal states
	case actor != nil && actor.ID == inc.CreatedBy && current == StatusDraft && target == StatusReview:
		// self-submission, the only creator transition
	default:
		return nil, ErrForbidden
	}
	updated, err := s.incidents.SetStatus(ctx, inc.ID, string(target), actor.ID, inc.Version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.record(ctx, &store.AuditEntry{
		Scope:    store.AuditScopeIncident,
		TargetID: inc.ID,
		ActorID:  actor.ID,
		Action:   "status_change",
		Changes:  []store.FieldChange{{Key: "status", From: string(current), To: string(target)}},
	})
	s.emit(notify.Event{
		Kind:       notify.EventIncidentStatusChanged,
		IncidentID: inc.ID,
		OldStatus:  string(current),
		NewStatus:  string(target),
		ActorID:    actor.ID,
		At:         time.Now().UTC(),
	})
	return updated, nil
}

// SetVisibility toggles public/private. Visibility freezes once the
// incident closes, independent of the state machine's own terminal
// check, because it is a separate field.
func (s *Service) SetVisibility(ctx context.Context, actor *store.User, incidentID string, newVisibility string) (*store.Incident, error) {
	vis, err := ParseVisibility(newVisibility)
	if err != nil {
		return nil, err
	}
	inc, err := s.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if Status(inc.Status).Terminal() {
		return inc, ErrTerminalState
	}
	caps, err := s.Capabilities(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !caps.Has(access.CapEditVisibility) {
		return nil, ErrForbidden
	}
	if string(vis) == inc.Visibility {
		// idempotent call: no audit noise
		return inc, nil
	}
	updated, err := s.incidents.SetVisibility(ctx, inc.ID, string(vis), actor.ID, inc.Version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.record(ctx, &store.AuditEntry{
		Scope:    store.AuditScopeIncident,
		TargetID: inc.ID,
		ActorID:  actor.ID,
		Action:   "visibility_change",
		Changes:  []store.FieldChange{{Key: "visibility", From: inc.Visibility, To: string(vis)}},
	})
	return updated, nil
}

// SetImpact carries no capability gate: any authenticated principal may
// set the impact level. The asymmetry with visibility is deliberate and
// preserved as observed upstream.
func (s *Service) SetImpact(ctx context.Context, actor *store.User, incidentID string, newImpact string) (*store.Incident, error) {
	im, err := ParseImpact(newImpact)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.Active {
		return nil, ErrForbidden
	}
	inc, err := s.load(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if string(im) == inc.Impact {
		return inc, ErrNoOp
	}
	updated, err := s.incidents.SetImpact(ctx, inc.ID, string(im), actor.ID, inc.Version)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.record(ctx, &store.AuditEntry{
		Scope:    store.AuditScopeIncident,
		TargetID: inc.ID,
		ActorID:  actor.ID,
		Action:   "impact_change",
		Changes:  []store.FieldChange{{Key: "impactStatus", From: inc.Impact, To: string(im)}},
	})
	return updated, nil
}

// CanView gates read access: cross-tenant reviewers see everything,
// members see their own tenant, and public incidents are open.
func (s *Service) CanView(actor *store.User, caps access.CapabilitySet, inc *store.Incident) bool {
	if inc == nil {
		return false
	}
	if caps.Has(access.CapViewAll) {
		return true
	}
	if inc.Visibility == string(VisibilityPublic) {
		return true
	}
	return actor != nil && actor.OrgID != nil && *actor.OrgID == inc.OrgID
}

func (s *Service) load(ctx context.Context, incidentID string) (*store.Incident, error) {
	inc, err := s.incidents.GetIncident(ctx, incidentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if inc == nil {
		return nil, store.ErrNotFound
	}
	return inc, nil
}

// record appends an audit entry. Durability of the primary write takes
// priority over the trail: a recording failure is logged, never rolled
// back.
func (s *Service) record(ctx context.Context, entry *store.AuditEntry) {
	if _, err := s.audits.Record(ctx, entry); err != nil {
		s.logger.Errorf("lifecycle: audit record failed action=%s target=%s: %v", entry.Action, entry.TargetID, err)
	}
}

// emit delivers the event asynchronously; failures are logged only.
func (s *Service) emit(ev notify.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.sender.Send(ctx, ev); err != nil {
			s.logger.Warnf("lifecycle: notify %s for %s failed: %v", ev.Kind, ev.IncidentID, err)
		}
	}()
}
