package controllers

import (
	"net/http"

	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

type BudgetController struct {
	workflow *services.WorkflowService
}

func NewBudgetController(workflow *services.WorkflowService) *BudgetController {
	return &BudgetController{workflow: workflow}
}

func (bc *BudgetController) GetBudgetRequests(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	requests, err := bc.workflow.ListBudgetRequests(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget_requests": requests, "total": len(requests)})
}

// RequestBudget opens a budget request for an approved proposal (director)
func (bc *BudgetController) RequestBudget(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var form services.RequestBudgetForm
	if !bindJSON(c, &form) {
		return
	}

	request, err := bc.workflow.RequestBudget(c.Request.Context(), session, c.Param("id"), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"budget_request": request, "message": "Budget requested successfully"})
}

// DecideBudget approves or rejects a pending budget request (vice president)
func (bc *BudgetController) DecideBudget(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var form services.BudgetDecisionForm
	if !bindJSON(c, &form) {
		return
	}

	request, err := bc.workflow.DecideBudget(c.Request.Context(), session, c.Param("id"), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget_request": request, "message": "Budget request " + string(request.Status)})
}
