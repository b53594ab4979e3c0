package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/matthewdavidson09/onboard-sync/internal/hrsync"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/internal/store"
)

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondError maps a domain error onto a status and error code.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, hrsync.ErrRunInProgress):
		writeError(c, http.StatusConflict, "RUN_IN_PROGRESS", err.Error())
	case errors.Is(err, store.ErrNotConfigured):
		writeError(c, http.StatusPreconditionFailed, "DIRECTORY_NOT_CONFIGURED", err.Error())
	case errors.Is(err, ldapclient.ErrValidation):
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, ldapclient.ErrAuthentication):
		writeError(c, http.StatusBadGateway, "DIRECTORY_AUTH_FAILED", err.Error())
	case errors.Is(err, ldapclient.ErrConnection):
		writeError(c, http.StatusBadGateway, "DIRECTORY_UNREACHABLE", err.Error())
	case errors.Is(err, ldapclient.ErrTimeout):
		writeError(c, http.StatusGatewayTimeout, "DIRECTORY_TIMEOUT", err.Error())
	case errors.Is(err, ldapclient.ErrPermission):
		writeError(c, http.StatusForbidden, "DIRECTORY_PERMISSION_DENIED", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
