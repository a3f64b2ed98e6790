package controllers

import (
	"errors"
	"net/http"

	"research-grant-api/middleware"
	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto status codes. StoreError causes are never shown.
func respondError(c *gin.Context, err error) {
	var (
		authErr       *services.AuthError
		validationErr *services.ValidationError
		forbiddenErr  *services.ForbiddenError
		notFoundErr   *services.NotFoundError
		conflictErr   *services.ConflictError
	)

	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Message})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"fields": validationErr.Fields,
		})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenErr.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Message})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong, please try again"})
	}
}

// bindJSON decodes the request body and answers 400 on malformed input.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// requireSession returns the caller's session or answers 401.
func requireSession(c *gin.Context) *services.Session {
	session := middleware.CurrentSession(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
	}
	return session
}
