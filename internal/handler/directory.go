package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	ad "github.com/matthewdavidson09/onboard-sync/internal/active_directory"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
)

type DirectoryConfigStore interface {
	Get(ctx context.Context) (ldapclient.Config, error)
	Save(ctx context.Context, cfg ldapclient.Config) (ldapclient.Config, error)
}

// Provisioner is the part of hrsync.Engine that creates accounts.
type Provisioner interface {
	Provision(ctx context.Context, spec ad.AccountSpec) (*ad.ProvisioningOutcome, error)
	CheckDirectory(ctx context.Context) error
}

// DirectoryHandler serves the directory connection configuration and account provisioning.
type DirectoryHandler struct {
	config      DirectoryConfigStore
	provisioner Provisioner
}

func NewDirectoryHandler(config DirectoryConfigStore, provisioner Provisioner) *DirectoryHandler {
	return &DirectoryHandler{config: config, provisioner: provisioner}
}

func (h *DirectoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	directory := r.Group("/directory")
	{
		directory.GET("/config", h.GetConfig)
		directory.PUT("/config", h.UpdateConfig)
		directory.POST("/test", h.TestConnection)
		directory.POST("/accounts", h.ProvisionAccount)
	}
}

type ProvisionResponse struct {
	*ad.ProvisioningOutcome
	Message string `json:"message"`
}

// GetConfig handles GET /directory/config. The bind secret is always masked.
func (h *DirectoryHandler) GetConfig(c *gin.Context) {
	cfg, err := h.config.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig handles PUT /directory/config. Sending the masked secret back keeps the stored one.
func (h *DirectoryHandler) UpdateConfig(c *gin.Context) {
	var cfg ldapclient.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	saved, err := h.config.Save(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// TestConnection handles POST /directory/test
func (h *DirectoryHandler) TestConnection(c *gin.Context) {
	if err := h.provisioner.CheckDirectory(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ProvisionAccount handles POST /directory/accounts. 201 means created, 200 means it already existed.
func (h *DirectoryHandler) ProvisionAccount(c *gin.Context) {
	var spec ad.AccountSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	outcome, err := h.provisioner.Provision(actorContext(c), spec)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if outcome.AccountCreated {
		status = http.StatusCreated
	}
	c.JSON(status, ProvisionResponse{ProvisioningOutcome: outcome, Message: outcome.Message()})
}
