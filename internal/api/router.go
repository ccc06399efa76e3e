package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	adapternotify "github.com/atelierlabs/studio-portal/internal/adapter/notify"
	"github.com/atelierlabs/studio-portal/internal/api/middleware"
	"github.com/atelierlabs/studio-portal/internal/catalog"
	"github.com/atelierlabs/studio-portal/internal/config"
	"github.com/atelierlabs/studio-portal/internal/domain/action"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/internal/engine"
	"github.com/atelierlabs/studio-portal/internal/eventbus"
	"github.com/atelierlabs/studio-portal/internal/gate"
	"github.com/atelierlabs/studio-portal/internal/onboarding"
	"github.com/atelierlabs/studio-portal/internal/usecase/workflow"
)

type Router struct {
	engine        *gin.Engine
	server        *http.Server
	cfg           *config.Config
	onboardingSvc *onboarding.Service
	advanceUC     *workflow.AdvanceUseCase
	gateSvc       *gate.Gate
	catalogSvc    *catalog.Service
	automation    *engine.Engine
	ruleCache     *engine.RuleCache
	projects      project.Repository
	history       tracking.HistoryReader
	actions       action.StatusWriter
	bus           *eventbus.Bus
	push          *adapternotify.WebPushSender
	logger        *zap.Logger
}

func NewRouter(
	cfg *config.Config,
	onboardingSvc *onboarding.Service,
	advanceUC *workflow.AdvanceUseCase,
	gateSvc *gate.Gate,
	catalogSvc *catalog.Service,
	automation *engine.Engine,
	ruleCache *engine.RuleCache,
	projects project.Repository,
	history tracking.HistoryReader,
	actions action.StatusWriter,
	bus *eventbus.Bus,
	push *adapternotify.WebPushSender,
	logger *zap.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())
	r.Use(middleware.Logger(logger))

	api := &Router{
		engine:        r,
		cfg:           cfg,
		onboardingSvc: onboardingSvc,
		advanceUC:     advanceUC,
		gateSvc:       gateSvc,
		catalogSvc:    catalogSvc,
		automation:    automation,
		ruleCache:     ruleCache,
		projects:      projects,
		history:       history,
		actions:       actions,
		bus:           bus,
		push:          push,
		logger:        logger,
	}

	api.RegisterRoutes()
	return api
}

func (r *Router) RegisterRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Subsystems relaying completions authenticate with the admin token,
	// not a user session.
	webhooks := r.engine.Group("/webhooks")
	webhooks.Use(r.adminAuth())
	{
		webhooks.POST("/actions/complete", r.CompleteAction)
		webhooks.POST("/payment", r.PaymentWebhook)
	}

	// Client portal routes (identity stamped by the auth proxy).
	api := r.engine.Group("/api")
	api.Use(middleware.Identity())
	{
		api.POST("/projects", r.CreateProject)
		api.GET("/projects", r.ListProjects)
		api.GET("/projects/:id", r.GetProjectStatus)
		api.GET("/projects/:id/pending", r.GetPendingActions)
		api.GET("/projects/:id/history", r.GetProjectHistory)
		api.POST("/projects/:id/advance", r.AdvanceProject)
		api.GET("/events/stream", r.StreamEvents)
		api.POST("/push/subscriptions", r.SavePushSubscription)
	}

	// Operator routes (protected by ADMIN_API_TOKEN).
	admin := r.engine.Group("/admin")
	admin.Use(r.adminAuth())
	{
		admin.POST("/projects/:id/advance", r.AdminAdvanceProject)
		admin.POST("/catalog/invalidate", r.InvalidateCatalog)
		admin.GET("/rules", r.ListRules)
		admin.POST("/rules/reload", r.ReloadRules)
		admin.POST("/engine/sweep", r.TriggerSweep)
	}
}

func (r *Router) Run() error {
	r.server = &http.Server{
		Addr:         ":" + r.cfg.Port,
		Handler:      r.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Router) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(r.cfg.AdminAPIToken)
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin_token_not_configured"})
			return
		}

		provided := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if provided == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				provided = strings.TrimSpace(authHeader[7:])
			}
		}

		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// resolveProject parses the :id param and verifies the requesting user owns
// the project.
func (r *Router) resolveProject(c *gin.Context) (*project.Project, bool) {
	val, exists := c.Get("UserID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	userID, ok := val.(int64)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}

	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return nil, false
	}

	proj, err := r.projects.FindByID(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if proj == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return nil, false
	}
	if proj.ClientUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return proj, true
}
