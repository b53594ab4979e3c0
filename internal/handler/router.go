// Package handler exposes sync triggers, the schedule, directory configuration, provisioning and
// the audit trail over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Sync        SyncRunner
	Provisioner Provisioner
	Schedule    ScheduleService
	Directory   DirectoryConfigStore
	Audit       AuditLister
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(AccessLogMiddleware("api_http"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	NewSyncHandler(d.Sync, d.Schedule).RegisterRoutes(api)
	NewDirectoryHandler(d.Directory, d.Provisioner).RegisterRoutes(api)
	NewAuditHandler(d.Audit).RegisterRoutes(api)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	return r
}
