package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/enrich"
	"callbridge/internal/httpapi"
	"callbridge/internal/lockout"
	"callbridge/internal/ratelimit"
	"callbridge/internal/webhook"
	"callbridge/pkg/logger"
	"callbridge/pkg/storage"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	log        *slog.Logger
	tokens     *auth.Manager
	registry   webhook.Registry
	reconciler *calls.Reconciler
	callRepo   calls.Repository
	dispatcher *enrich.Dispatcher
	limiter    *ratelimit.Limiter
	guard      *lockout.Guard
	verifier   auth.CredentialVerifier
	audit      *audit.Service
	db         *sql.DB
}

func newRouter(cfg config.Config, deps routeDeps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(logger.Middleware(deps.log), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		if err := storage.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	wh := webhook.Handler{
		Registry:   deps.registry,
		Reconciler: deps.reconciler,
		Enricher:   deps.dispatcher,
		Audit:      deps.audit,
	}
	r.POST("/webhooks/:provider", wh.Receive)
	r.GET("/webhooks/:provider", wh.Health)

	usage := httpapi.UsageHandler{Limiter: deps.limiter}
	r.GET("/usage", usage.GetUsage)
	r.POST("/usage", usage.ReportUsage)

	login := httpapi.LoginHandler{
		Verifier: deps.verifier,
		Guard:    deps.guard,
		Tokens:   deps.tokens,
		Audit:    deps.audit,
	}
	r.POST("/v1/auth/login", login.Login)

	protected := r.Group("/v1", auth.RequireAccessToken(deps.tokens))

	callsHandler := httpapi.CallsHandler{Reconciler: deps.reconciler, Repo: deps.callRepo}
	protected.POST("/calls/start", callsHandler.StartCall)
	protected.GET("/calls/:call_id", callsHandler.GetCall)

	admin := httpapi.AdminHandler{Repo: deps.callRepo, Audit: deps.audit}
	protected.POST("/admin/calls/:call_id/enrichment/reset", admin.ResetEnrichment)

	return r
}
