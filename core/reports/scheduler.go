package reports

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"aegis-irm/config"
	"aegis-irm/core/utils"
)

// Scheduler runs the periodic digest on a cron schedule. Each run covers
// the window since the previous run.
type Scheduler struct {
	cfg    config.ReportsConfig
	svc    *Service
	logger *utils.Logger

	cron    *cron.Cron
	lastRun time.Time
}

func NewScheduler(cfg config.ReportsConfig, svc *Service, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		svc:     svc,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		lastRun: time.Now().UTC(),
	}
}

func (s *Scheduler) Start() error {
	if s == nil || !s.cfg.Enabled {
		return nil
	}
	schedule := s.cfg.Schedule
	if schedule == "" {
		schedule = "@daily"
	}
	_, err := s.cron.AddFunc(schedule, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infof("reports: digest scheduler started (%s)", schedule)
	return nil
}

func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runOnce() {
	now := time.Now().UTC()
	from := s.lastRun
	s.lastRun = now
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.svc.Generate(ctx, nil, from, now); err != nil {
		s.logger.Errorf("reports: scheduled digest failed: %v", err)
	}
}
