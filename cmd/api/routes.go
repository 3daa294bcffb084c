package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"hr-platform/internal/accounts"
	"hr-platform/internal/audit"
	"hr-platform/internal/auth"
	"hr-platform/internal/hr"
	"hr-platform/internal/httpapi"
	"hr-platform/internal/metrics"
	"hr-platform/internal/rbac"
	"hr-platform/internal/reporting"
	"hr-platform/internal/tenant"
	"hr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// app carries the process-wide dependencies the router is built from.
type app struct {
	log       *slog.Logger
	authority *auth.Authority
	hasher    auth.Hasher
	throttle  accounts.Throttle
	stores    stores
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
}

// newRouter wires services and HTTP routes.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(a app) *gin.Engine {
	recorder := audit.NewService(a.stores.audit, a.metrics)
	people := hr.NewService(a.stores.hr, recorder)
	h := httpapi.Handlers{
		Accounts:  accounts.NewService(a.stores.accounts, a.authority, a.hasher, a.throttle, recorder, a.metrics),
		HR:        people,
		Audit:     recorder,
		Reporting: reporting.NewService(people, recorder),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(a.log))
	r.Use(audit.CaptureClientIP())

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if a.stores.ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := a.stores.ping(ctx); err != nil {
				logger.FromGin(c).Error("health check failed", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		// Logout accepts a missing or stale token.
		authGroup.POST("/logout", auth.OptionalIdentity(a.authority), h.Logout)
	}

	// protected API group: verified token, then a verified organization.
	api := v1.Group("")
	api.Use(auth.RequireIdentity(a.authority, a.metrics), tenant.RequireOrganization())
	editors := rbac.RequireAnyRole(rbac.Editors...)
	{
		api.GET("/me", h.Me)

		employees := api.Group("/employees")
		employees.GET("", h.ListEmployees)
		employees.GET("/:id", h.GetEmployee)
		employees.POST("", editors, h.CreateEmployee)
		employees.PUT("/:id", editors, h.UpdateEmployee)
		employees.DELETE("/:id", editors, h.DeleteEmployee)

		teams := api.Group("/teams")
		teams.GET("", h.ListTeams)
		teams.GET("/:id", h.GetTeam)
		teams.POST("", editors, h.CreateTeam)
		teams.PUT("/:id", editors, h.UpdateTeam)
		teams.DELETE("/:id", editors, h.DeleteTeam)

		api.GET("/assignments", h.ListAssignments)
		api.POST("/assignments", editors, h.ChangeAssignment)

		api.GET("/logs", h.ListLogs)
		api.GET("/dashboard", h.Dashboard)
	}
	return r
}
