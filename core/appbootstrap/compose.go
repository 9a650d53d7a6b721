package appbootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aegis-irm/api"
	"aegis-irm/config"
	"aegis-irm/core/auth"
	"aegis-irm/core/bootstrap"
	"aegis-irm/core/lifecycle"
	"aegis-irm/core/notify"
	"aegis-irm/core/rbac"
	"aegis-irm/core/reports"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	sessions   store.SessionStore
	scheduler  *reports.Scheduler
}

func composeRuntime(cfg *config.AppConfig, db *store.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	orgs := store.NewOrgsStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	incidents := store.NewIncidentsStore(db)
	reportsStore := store.NewReportsStore(db)

	var sender notify.Sender
	if cfg.Notify.WebhookURL != "" {
		sender = notify.NewHTTPWebhookSender(cfg.Notify.WebhookURL, time.Duration(cfg.Notify.TimeoutSec)*time.Second)
	}
	lifecycleSvc := lifecycle.NewService(cfg, incidents, orgs, audits, sender, logger)
	reportsSvc := reports.NewService(incidents, reportsStore, audits, lifecycleSvc, logger)
	sessionMgr := auth.NewSessionManager(sessions, cfg, logger)
	policy := rbac.NewPolicy(rbac.DefaultRoles())

	var scheduler *reports.Scheduler
	if cfg.Reports.Enabled {
		scheduler = reports.NewScheduler(cfg.Reports, reportsSvc, logger)
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Cfg:        cfg,
			Users:      users,
			Orgs:       orgs,
			Sessions:   sessions,
			Audits:     audits,
			Incidents:  incidents,
			Policy:     policy,
			Lifecycle:  lifecycleSvc,
			Reports:    reportsSvc,
			SessionMgr: sessionMgr,
			Logger:     logger,
		},
		sessions:  sessions,
		scheduler: scheduler,
	}, nil
}

// Run wires the whole application together and blocks until the
// process receives SIGINT or SIGTERM.
func Run(configPath string) error {
	logger := utils.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}

	rt, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}

	coreOrg, err := bootstrap.EnsureCoreOrg(ctx, rt.serverDeps.Orgs, cfg, logger)
	if err != nil {
		return err
	}
	if err := bootstrap.EnsureDefaultAdmin(ctx, rt.serverDeps.Users, coreOrg, cfg, logger); err != nil {
		return err
	}

	if rt.scheduler != nil {
		if err := rt.scheduler.Start(); err != nil {
			return err
		}
		defer rt.scheduler.Stop()
	}

	go purgeSessionsLoop(ctx, rt.sessions, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(rt.serverDeps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeSessionsLoop(ctx context.Context, sessions store.SessionStore, logger *utils.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.PurgeExpired(ctx, utils.NowUTC()); err != nil {
				logger.Warnf("session purge failed: %v", err)
			}
		}
	}
}
