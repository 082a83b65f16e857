package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httplog/v2"

	"shortly/internal/middleware"
	"shortly/internal/service"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrInvalidURL, http.StatusBadRequest},
	{service.ErrInvalidShortCode, http.StatusBadRequest},
	{service.ErrReservedShortCode, http.StatusBadRequest},
	{service.ErrInvalidStatus, http.StatusBadRequest},
	{service.ErrInvalidRole, http.StatusBadRequest},
	{service.ErrShortCodeTaken, http.StatusConflict},
	{service.ErrEmailTaken, http.StatusConflict},
	{service.ErrBlockedMalicious, http.StatusUnprocessableEntity},
	{service.ErrCodeAllocation, http.StatusServiceUnavailable},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrSelfModeration, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
}

// respondError maps service errors to HTTP responses. Anything unknown is
// logged on the request entry and answered with a generic 500.
func respondError(c *gin.Context, op string, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}

	logError(c, op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

func logError(c *gin.Context, op string, err error) {
	httplog.LogEntrySetFields(c.Request.Context(), map[string]any{"op": op, "err": err})
}

func userID(c *gin.Context) *string {
	if p := middleware.Principal(c); p != nil {
		id := p.UserID
		return &id
	}
	return nil
}
