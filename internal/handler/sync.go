package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hrsync"
	"github.com/matthewdavidson09/onboard-sync/internal/schedule"
)

// SyncRunner is the part of hrsync.Engine the HTTP surface triggers.
type SyncRunner interface {
	Test(ctx context.Context) ([]hrsync.SyncResult, error)
	Manual(ctx context.Context, employeeIDs []string) ([]hrsync.SyncResult, error)
}

type ScheduleService interface {
	Get(ctx context.Context) (schedule.State, error)
	Update(ctx context.Context, enabled bool, freq schedule.Frequency) (schedule.State, error)
}

// SyncHandler handles sync triggers and the sync schedule.
type SyncHandler struct {
	runner   SyncRunner
	schedule ScheduleService
}

func NewSyncHandler(runner SyncRunner, schedule ScheduleService) *SyncHandler {
	return &SyncHandler{runner: runner, schedule: schedule}
}

func (h *SyncHandler) RegisterRoutes(r *gin.RouterGroup) {
	sync := r.Group("/sync")
	{
		sync.POST("/test", h.Test)
		sync.POST("/manual", h.Manual)
		sync.GET("/schedule", h.GetSchedule)
		sync.PUT("/schedule", h.UpdateSchedule)
	}
}

type ManualSyncRequest struct {
	EmployeeIDs []string `json:"employeeIds" binding:"required,min=1"`
}

type SyncResponse struct {
	Mode    hrsync.Mode         `json:"mode"`
	Summary hrsync.Summary      `json:"summary"`
	Results []hrsync.SyncResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

type UpdateScheduleRequest struct {
	Enabled   *bool  `json:"enabled" binding:"required"`
	Frequency string `json:"frequency"`
}

// Test handles POST /sync/test
func (h *SyncHandler) Test(c *gin.Context) {
	results, err := h.runner.Test(actorContext(c))
	h.respond(c, hrsync.ModeTest, results, err)
}

// Manual handles POST /sync/manual
func (h *SyncHandler) Manual(c *gin.Context) {
	var req ManualSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	results, err := h.runner.Manual(actorContext(c), req.EmployeeIDs)
	h.respond(c, hrsync.ModeManual, results, err)
}

// respond always returns the rows a pass produced; only a pass that produced none is an error.
func (h *SyncHandler) respond(c *gin.Context, mode hrsync.Mode, results []hrsync.SyncResult, err error) {
	if err != nil && results == nil {
		respondError(c, err)
		return
	}
	resp := SyncResponse{Mode: mode, Summary: hrsync.Summarize(results), Results: results}
	if resp.Results == nil {
		resp.Results = []hrsync.SyncResult{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// GetSchedule handles GET /sync/schedule
func (h *SyncHandler) GetSchedule(c *gin.Context) {
	state, err := h.schedule.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// UpdateSchedule handles PUT /sync/schedule
func (h *SyncHandler) UpdateSchedule(c *gin.Context) {
	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	state, err := h.schedule.Update(c.Request.Context(), *req.Enabled, schedule.ParseFrequency(req.Frequency))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func actorContext(c *gin.Context) context.Context {
	actor := strings.TrimSpace(c.GetHeader(performedByHeader))
	if actor == "" {
		actor = "api"
	}
	return audit.WithActor(c.Request.Context(), actor)
}
