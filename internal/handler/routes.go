package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/primes-api/internal/middleware"
	"github.com/noah-isme/primes-api/internal/models"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes. Audit, Export and Legacy may be nil.
type Handlers struct {
	Auth      *AuthHandler
	Catalog   *CatalogHandler
	Plan      *PlanHandler
	AdminWeek *AdminWeekHandler
	Audit     *AuditHandler
	Export    *ExportHandler
	Legacy    *LegacyHandler
	Metrics   *MetricsHandler
}

// RouteOptions carries the middleware dependencies of RegisterRoutes.
type RouteOptions struct {
	Tokens        middleware.TokenValidator
	Audit         middleware.AuditWriter
	Logger        *zap.Logger
	LegacyEnabled bool
	DocsURL       string
}

// RegisterRoutes mounts the API under prefix and the probes at the root.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, opts RouteOptions) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/admin", h.Auth.AdminLogin)
	api.GET("/bootstrap", h.Catalog.Bootstrap)
	api.GET("/weeks/current", h.Plan.CurrentWeek)

	agents := api.Group("/agents/:id")
	agents.GET("/week", h.Plan.AgentWeek)
	agents.GET("/plan", h.Plan.AgentPlan)
	agents.GET("/recap", h.Plan.AgentRecap)

	admin := api.Group("/admin", middleware.JWT(opts.Tokens), middleware.RequireAdmin())
	admin.GET("/week", middleware.Audit(opts.Audit, opts.Logger, models.AuditActionWeekView, "week"), h.AdminWeek.Get)
	admin.PUT("/week", h.AdminWeek.Save)
	admin.DELETE("/week", h.AdminWeek.Reset)
	admin.PUT("/prime-types/:code", h.Catalog.UpsertPrimeType)
	admin.DELETE("/prime-types/:code", h.Catalog.DeactivatePrimeType)
	admin.POST("/agents", h.Catalog.CreateAgent)
	admin.PUT("/agents/:id", h.Catalog.UpdateAgent)
	if h.Audit != nil {
		admin.GET("/audit", h.Audit.List)
	}

	if h.Export != nil {
		exports := api.Group("/exports")
		exports.GET("/download", h.Export.Download)
		exports.POST("/week", middleware.JWT(opts.Tokens), middleware.RequireAdmin(), h.Export.WeekExport)
		exports.POST("/recap", middleware.JWT(opts.Tokens), middleware.RequireAdmin(), h.Export.RecapExport)
	}

	if h.Legacy != nil {
		api.GET("/macro", middleware.LegacyMacro(opts.LegacyEnabled, opts.DocsURL), middleware.OptionalJWT(opts.Tokens), h.Legacy.Macro)
	}
}
