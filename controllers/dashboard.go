package controllers

import (
	"net/http"

	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	dashboards *services.DashboardService
}

func NewDashboardController(dashboards *services.DashboardService) *DashboardController {
	return &DashboardController{dashboards: dashboards}
}

// GetDashboard returns the caller's role view, read fresh on every request
func (dc *DashboardController) GetDashboard(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	dash, err := dc.dashboards.Load(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": dash})
}
