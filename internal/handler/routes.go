package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/libstats-api/internal/middleware"
	"github.com/noah-isme/libstats-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Years      *YearHandler
	Categories *CategoryHandler
	Events     *EventHandler
	Aggregates *AggregateHandler
	Exports    *ExportHandler
	Audit      *AuditHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts the API on group. Exports routes are skipped when
// the export handler is nil.
func RegisterRoutes(group *gin.RouterGroup, auth middleware.TokenValidator, h Handlers) {
	authed := group.Group("")
	authed.Use(middleware.JWT(auth), middleware.ClientInfo())

	admin := authed.Group("")
	admin.Use(middleware.RequireSuperAdmin())

	years := admin.Group("/years")
	years.POST("", h.Years.Create)
	years.POST("/:year/open", h.Years.Open)
	years.POST("/:year/close", h.Years.Close)
	years.POST("/:year/publish", h.Years.Publish)
	years.DELETE("/:year", h.Years.Delete)

	authed.GET("/categories", h.Categories.Definitions)

	institution := authed.Group("/institutions/:institutionId/years/:year")
	institution.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleInstitutionEditor))
	institution.GET("", h.Years.Window)
	institution.GET("/entry-status", h.Categories.EntryStatus)
	institution.GET("/categories/:category", h.Categories.Get)
	institution.PUT("/categories/:category", h.Categories.Submit)
	institution.POST("/subscriptions/:kind/import", h.Categories.ImportSubscriptions)

	events := admin.Group("/events")
	events.GET("", h.Events.List)
	events.POST("", h.Events.Schedule)
	events.POST("/run-due", h.Events.RunDue)
	events.GET("/:id", h.Events.Get)
	events.DELETE("/:id", h.Events.Cancel)
	events.POST("/:id/execute", h.Events.Execute)

	aggregates := authed.Group("/aggregates")
	aggregates.Use(middleware.WithResponseMeta())
	aggregates.GET("/:year/:category", h.Aggregates.Get)

	if h.Audit != nil {
		admin.GET("/audit/:resource/:resourceId", h.Audit.List)
	}

	if h.Metrics != nil {
		admin.GET("/system/metrics", h.Metrics.Summary)
	}

	if h.Exports != nil {
		admin.POST("/exports", h.Exports.Request)
		admin.GET("/exports/:id", h.Exports.Status)
		group.GET("/export/:token", h.Exports.Download)
	}
}
