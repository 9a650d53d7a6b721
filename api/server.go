package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis-irm/api/handlers"
	"aegis-irm/config"
	"aegis-irm/core/auth"
	"aegis-irm/core/lifecycle"
	"aegis-irm/core/obs"
	"aegis-irm/core/rbac"
	"aegis-irm/core/reports"
	"aegis-irm/core/store"
	"aegis-irm/core/utils"
)

type ServerDeps struct {
	Cfg          *config.AppConfig
	Users        store.UsersStore
	Orgs         store.OrgsStore
	Sessions     store.SessionStore
	Audits       store.AuditStore
	Incidents    store.IncidentsStore
	Policy       *rbac.Policy
	Lifecycle    *lifecycle.Service
	Reports      *reports.Service
	SessionMgr   *auth.SessionManager
	Logger       *utils.Logger
}

type Server struct {
	cfg      *config.AppConfig
	users    store.UsersStore
	orgs     store.OrgsStore
	sessions store.SessionStore
	audits   store.AuditStore
	policy   *rbac.Policy
	logger   *utils.Logger
	router   chi.Router
	activity *sessionActivity

	handlers routeHandlers
}

type routeHandlers struct {
	auth      *handlers.AuthHandler
	accounts  *handlers.AccountsHandler
	orgs      *handlers.OrgsHandler
	incidents *handlers.IncidentsHandler
	logs      *handlers.LogsHandler
	reports   *handlers.ReportsHandler
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		cfg:      deps.Cfg,
		users:    deps.Users,
		orgs:     deps.Orgs,
		sessions: deps.Sessions,
		audits:   deps.Audits,
		policy:   deps.Policy,
		logger:   deps.Logger,
		activity: newSessionActivity(),
	}
	s.handlers = routeHandlers{
		auth:      handlers.NewAuthHandler(deps.Cfg, deps.Users, deps.Sessions, deps.SessionMgr, deps.Audits, deps.Logger),
		accounts:  handlers.NewAccountsHandler(deps.Cfg, deps.Users, deps.Orgs, deps.Sessions, deps.Lifecycle, deps.Audits, deps.Logger),
		orgs:      handlers.NewOrgsHandler(deps.Orgs, deps.Lifecycle, deps.Audits, deps.Logger),
		incidents: handlers.NewIncidentsHandler(deps.Cfg, deps.Incidents, deps.Users, deps.Lifecycle, deps.Logger),
		logs:      handlers.NewLogsHandler(deps.Audits),
		reports:   handlers.NewReportsHandler(deps.Reports, deps.Logger),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	burst := s.cfg.Security.LoginRateBurst
	if burst <= 0 {
		burst = 10
	}
	windowSec := s.cfg.Security.LoginRateWindowSec
	if windowSec <= 0 {
		windowSec = 60
	}
	loginLimiter := newLimiter(burst, time.Duration(windowSec)*time.Second)

	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if !loginLimiter.allow(clientIP(r, s.cfg.Security.TrustedProxies)) {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, loginPayloadMaxBytes)
			s.handlers.auth.Login(w, r)
		})
		api.Post("/auth/logout", s.withSession(s.handlers.auth.Logout))
		api.Get("/auth/me", s.withSession(s.handlers.auth.Me))

		api.Get("/accounts", s.withSession(s.requirePermission("accounts.view")(s.handlers.accounts.List)))
		api.Post("/accounts", s.withSession(s.requirePermission("accounts.manage")(s.handlers.accounts.Create)))
		api.Put("/accounts/{id}", s.withSession(s.requirePermission("accounts.manage")(s.handlers.accounts.Update)))
		api.Post("/accounts/{id}/active", s.withSession(s.requirePermission("accounts.manage")(s.handlers.accounts.SetActive)))

		api.Get("/orgs", s.withSession(s.requirePermission("orgs.view")(s.handlers.orgs.List)))
		api.Post("/orgs", s.withSession(s.requirePermission("orgs.manage")(s.handlers.orgs.Create)))
		api.Put("/orgs/{id}", s.withSession(s.requirePermission("orgs.manage")(s.handlers.orgs.Update)))

		api.Get("/incidents", s.withSession(s.requirePermission("incidents.view")(s.handlers.incidents.List)))
		api.Post("/incidents", s.withSession(s.requirePermission("incidents.view")(s.handlers.incidents.Create)))
		api.Get("/incidents/{id}", s.withSession(s.requirePermission("incidents.view")(s.handlers.incidents.Get)))
		api.Post("/incidents/{id}/status", s.withSession(s.requirePermission("incidents.view")(s.handlers.incidents.SetStatus)))
		api.Put("/incidents/{id}/visibility", s.withSession(s.requirePermission("incidents.view")(s.handlers.incidents.SetVisibility)))
		api.Put("/incidents/{id}/impact", s.withSession(s.requirePermission("incidents.view")(s.handlers.incidents.SetImpact)))

		api.Get("/logs", s.withSession(s.requirePermission("logs.view")(s.handlers.logs.List)))
		api.Get("/logs/export", s.withSession(s.requirePermission("logs.export")(s.handlers.logs.Export)))

		api.Get("/reports", s.withSession(s.requirePermission("reports.view")(s.handlers.reports.List)))
		api.Post("/reports/generate", s.withSession(s.requirePermission("reports.generate")(s.handlers.reports.Generate)))
	})
	return r
}
