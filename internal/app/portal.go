package app

import (
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/linkwave/portal/internal/accounts"
	accountshttp "github.com/linkwave/portal/internal/accounts/http"
	"github.com/linkwave/portal/internal/auth"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/notify"
	"github.com/linkwave/portal/internal/observability"
	"github.com/linkwave/portal/internal/rbac"
	"github.com/linkwave/portal/internal/sections"
	"github.com/linkwave/portal/internal/shared"
	"github.com/linkwave/portal/jobs"
)

// PortalDeps are the long-lived resources the HTTP portal is assembled from.
type PortalDeps struct {
	Config  *Config
	Logger  *slog.Logger
	Catalog *catalog.Catalog
	Stores  *Stores
	Redis   redis.Cmdable
	// Queue receives notification tasks. Nil disables approval notices.
	Queue notify.Queue
	// Inspector backs /jobs/health. Nil reports an empty queue.
	Inspector jobs.QueueInspector
	Metrics   *observability.Metrics
}

// Portal is the assembled HTTP application.
type Portal struct {
	Handler  http.Handler
	Accounts *accounts.Service
	Resolver *rbac.Resolver
}

// NewPortal wires services, middleware and handlers.
func NewPortal(deps PortalDeps) *Portal {
	cfg := deps.Config
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	serviceDeps := accounts.ServiceDeps{Logger: deps.Logger, Audit: deps.Stores.AuditRecorder()}
	if deps.Queue != nil {
		serviceDeps.Notifier = notify.NewDispatcher(deps.Queue, notify.DispatcherOptions{
			PortalURL: cfg.AppBaseURL,
			SMS:       cfg.SMSGatewayURL != "",
		})
	}
	svc := accounts.NewService(deps.Stores.Accounts, cat, serviceDeps)

	var observer rbac.DecisionObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	resolver := rbac.NewResolver(svc, cat, rbac.Config{
		UnknownResource: rbac.UnknownResourcePolicy(cfg.AuthzUnknownResource),
		ForbiddenPath:   cfg.AuthzForbiddenRedirect,
	}, observer)

	sessions := shared.NewSessionManager(deps.Redis, "portal_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	verifier := auth.NewTokenVerifier(cfg.IDPTokenSecret, cfg.IDPIssuer)
	rbacMW := rbac.Middleware{Resolver: resolver, Logger: deps.Logger}

	handler := NewRouter(RouterParams{
		Logger:         deps.Logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		RBACMiddleware: rbacMW,
		AuthHandler: auth.NewHandler(deps.Logger, verifier, svc, resolver, sessions, csrf, auth.Options{
			ProviderURL: cfg.IDPLoginURL,
			PendingPath: resolver.Config().PendingPath,
		}),
		AccountsHandler: accountshttp.NewHandler(deps.Logger, svc, resolver),
		SectionsHandler: sections.NewHandler(deps.Logger, resolver),
		JobHandler:      jobs.NewHandler(deps.Inspector, deps.Logger),
		Metrics:         deps.Metrics,
	})
	return &Portal{Handler: handler, Accounts: svc, Resolver: resolver}
}
