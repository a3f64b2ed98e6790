package controllers

import (
	"net/http"

	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

type ReviewController struct {
	workflow *services.WorkflowService
}

func NewReviewController(workflow *services.WorkflowService) *ReviewController {
	return &ReviewController{workflow: workflow}
}

func (rc *ReviewController) GetReviews(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	reviews, err := rc.workflow.ListReviews(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// SubmitReview records the caller's review (assigned reviewer only)
func (rc *ReviewController) SubmitReview(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var form services.SubmitReviewForm
	if !bindJSON(c, &form) {
		return
	}

	review, err := rc.workflow.SubmitReview(c.Request.Context(), session, c.Param("id"), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": review, "message": "Review submitted successfully"})
}
