package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aegis-irm/core/access"
	"aegis-irm/core/lifecycle"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

// systemActorID identifies scheduler-generated digests in the audit
// trail.
const systemActorID = "system"

type Digest struct {
	PeriodFrom time.Time      `json:"period_from"`
	PeriodTo   time.Time      `json:"period_to"`
	ByStatus   map[string]int `json:"by_status"`
	ByImpact   map[string]int `json:"by_impact"`
	Total      int            `json:"total"`
}

type Service struct {
	incidents store.IncidentsStore
	reports   store.ReportsStore
	audits    store.AuditStore
	lifecycle *lifecycle.Service
	logger    *utils.Logger
}

func NewService(incidents store.IncidentsStore, reports store.ReportsStore, audits store.AuditStore, lc *lifecycle.Service, logger *utils.Logger) *Service {
	return &Service{incidents: incidents, reports: reports, audits: audits, lifecycle: lc, logger: logger}
}

// Generate aggregates incident counts for the period and persists the
// digest. Manual generation requires the generateReports capability;
// scheduled runs pass a nil actor.
func (s *Service) Generate(ctx context.Context, actor *store.User, from, to time.Time) (*store.ReportDigest, error) {
	actorID := systemActorID
	if actor != nil {
		caps, err := s.lifecycle.Capabilities(ctx, actor)
		if err != nil {
			return nil, err
		}
		if !caps.Has(access.CapGenerateReports) {
			return nil, lifecycle.ErrForbidden
		}
		actorID = actor.ID
	}
	byStatus, err := s.incidents.CountByField(ctx, "status", from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrPersistenceUnavailable, err)
	}
	byImpact, err := s.incidents.CountByField(ctx, "impact", from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrPersistenceUnavailable, err)
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}
	payload, err := json.Marshal(Digest{
		PeriodFrom: from.UTC(),
		PeriodTo:   to.UTC(),
		ByStatus:   byStatus,
		ByImpact:   byImpact,
		Total:      total,
	})
	if err != nil {
		return nil, err
	}
	digest := &store.ReportDigest{
		PeriodFrom:  from.UTC(),
		PeriodTo:    to.UTC(),
		GeneratedBy: actorID,
		Payload:     string(payload),
	}
	if _, err := s.reports.SaveDigest(ctx, digest); err != nil {
		return nil, fmt.Errorf("%w: %v", lifecycle.ErrPersistenceUnavailable, err)
	}
	if _, err := s.audits.Record(ctx, &store.AuditEntry{
		Scope:    store.AuditScopeIncident,
		TargetID: digest.ID,
		ActorID:  actorID,
		Action:   "report_generated",
		Note:     fmt.Sprintf("%s..%s total=%d", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), total),
	}); err != nil {
		s.logger.Errorf("reports: audit record failed for digest %s: %v", digest.ID, err)
	}
	return digest, nil
}

func (s *Service) List(ctx context.Context, limit int) ([]store.ReportDigest, error) {
	return s.reports.ListDigests(ctx, limit)
}
