package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/config"
	"github.com/straye-as/salesflow-api/internal/database"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/http/handler"
	"github.com/straye-as/salesflow-api/internal/http/middleware"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReadinessCheck reports whether one dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Handlers groups every HTTP handler the API mounts
type Handlers struct {
	Lead         *handler.LeadHandler
	Opportunity  *handler.OpportunityHandler
	Deal         *handler.DealHandler
	Client       *handler.ClientHandler
	Project      *handler.ProjectHandler
	Proposal     *handler.ProposalHandler
	Notification *handler.NotificationHandler
	Assignment   *handler.AssignmentHandler
	Audit        *handler.AuditHandler
	Auth         *handler.AuthHandler
}

type Router struct {
	cfg            *config.Config
	logger         *zap.Logger
	db             *gorm.DB
	metrics        *metrics.Metrics
	authMiddleware *auth.Middleware
	rateLimiter    *middleware.RateLimiter
	handlers       Handlers
	checks         map[string]ReadinessCheck
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	m *metrics.Metrics,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	handlers Handlers,
) *Router {
	rt := &Router{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		metrics:        m,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		handlers:       handlers,
		checks:         make(map[string]ReadinessCheck),
	}
	rt.checks["database"] = func(ctx context.Context) error {
		return database.HealthCheck(ctx, db)
	}
	return rt
}

// AddReadinessCheck registers an extra dependency for /health/ready
func (rt *Router) AddReadinessCheck(name string, check ReadinessCheck) {
	rt.checks[name] = check
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger, rt.metrics))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Liveness probe
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/ready", rt.ready)

	if rt.cfg.Metrics.Enabled {
		path := rt.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, rt.metrics.Handler())
	}

	h := rt.handlers

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(middleware.TagUser)
			r.Use(rt.rateLimiter.LimitByUser)

			r.Get("/auth/me", h.Auth.Me)

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", h.Lead.List)
				r.Post("/", h.Lead.Create)
				r.Get("/{id}", h.Lead.GetByID)
				r.Put("/{id}/users", h.Assignment.AssignUsers(domain.EntityLead))
				r.Get("/{id}/history", h.Audit.History(domain.EntityLead))
				r.Post("/{id}/convert-to-deal", h.Lead.ConvertToDeal)
			})

			r.Route("/opportunities", func(r chi.Router) {
				r.Get("/", h.Opportunity.List)
				r.Post("/", h.Opportunity.Create)
				r.Get("/{id}", h.Opportunity.GetByID)
				r.Put("/{id}/users", h.Assignment.AssignUsers(domain.EntityOpportunity))
				r.Get("/{id}/history", h.Audit.History(domain.EntityOpportunity))
				r.Post("/{id}/convert-to-deal", h.Opportunity.ConvertToDeal)
			})

			r.Route("/deals", func(r chi.Router) {
				r.Get("/", h.Deal.List)
				r.Post("/", h.Deal.Create)
				r.Get("/{id}", h.Deal.GetByID)
				r.Put("/{id}", h.Deal.Update)
				r.Put("/{id}/users", h.Assignment.AssignUsers(domain.EntityDeal))
				r.Get("/{id}/history", h.Audit.History(domain.EntityDeal))
				r.Post("/{id}/convert-to-project", h.Deal.ConvertToProject)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.Client.List)
				r.Get("/{id}", h.Client.GetByID)
				r.Put("/{id}/users", h.Assignment.AssignUsers(domain.EntityClient))
				r.Get("/{id}/history", h.Audit.History(domain.EntityClient))
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/{id}", h.Project.GetByID)
				r.With(rt.authMiddleware.RequirePermission(domain.PermissionEditGlobalProjects)).
					Post("/{id}/archive", h.Project.Archive)
			})

			r.Route("/proposals", func(r chi.Router) {
				r.Get("/", h.Proposal.List)
				r.Post("/", h.Proposal.Create)
				r.Get("/{id}", h.Proposal.GetByID)
				r.Put("/{id}", h.Proposal.Update)
				r.Post("/{id}/approve", h.Proposal.Approve)
				r.Post("/{id}/reject", h.Proposal.Reject)
				r.Post("/{id}/reopen", h.Proposal.Reopen)
				r.Put("/{id}/users", h.Proposal.AssignUsers)
				r.Put("/{id}/content", h.Proposal.ReplaceContent)
				r.Put("/{id}/finance", h.Proposal.UpsertFinanceTable)
				r.Get("/{id}/logs", h.Proposal.Logs)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notification.List)
				r.Get("/unread-count", h.Notification.UnreadCount)
				r.Post("/read-all", h.Notification.MarkAllRead)
				r.Post("/{id}/read", h.Notification.MarkRead)
				r.Post("/{id}/click", h.Notification.MarkClicked)
			})
		})
	})

	return r
}

// ready runs every registered check with a shared deadline
func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]interface{}, len(rt.checks))
	allHealthy := true
	for name, check := range rt.checks {
		if err := check(ctx); err != nil {
			rt.logger.Error("readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
			allHealthy = false
			continue
		}
		checks[name] = map[string]interface{}{"status": "healthy"}
	}

	status, code := "healthy", http.StatusOK
	if !allHealthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
