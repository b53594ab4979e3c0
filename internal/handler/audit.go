package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/matthewdavidson09/onboard-sync/internal/audit"
)

type AuditLister interface {
	List(ctx context.Context, employeeID string, limit int) ([]audit.Event, error)
}

type AuditHandler struct {
	events AuditLister
}

func NewAuditHandler(events AuditLister) *AuditHandler {
	return &AuditHandler{events: events}
}

func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit", h.List)
}

// List handles GET /audit?limit=&employeeId=
func (h *AuditHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
		return
	}
	events, err := h.events.List(c.Request.Context(), c.Query("employeeId"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": events, "count": len(events)})
}
