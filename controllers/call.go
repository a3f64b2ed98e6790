package controllers

import (
	"net/http"

	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

type CallController struct {
	workflow *services.WorkflowService
}

func NewCallController(workflow *services.WorkflowService) *CallController {
	return &CallController{workflow: workflow}
}

// GetCalls lists calls for papers visible to the caller
func (cc *CallController) GetCalls(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	calls, err := cc.workflow.ListCalls(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls, "total": len(calls)})
}

// CreateCall publishes an open call (director)
func (cc *CallController) CreateCall(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var form services.CreateCallForm
	if !bindJSON(c, &form) {
		return
	}

	call, err := cc.workflow.CreateCall(c.Request.Context(), session, form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"call": call, "message": "Call created successfully"})
}

// SubmitProposal submits a proposal against the call in the path (researcher)
func (cc *CallController) SubmitProposal(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var form services.SubmitProposalForm
	if !bindJSON(c, &form) {
		return
	}

	proposal, err := cc.workflow.SubmitProposal(c.Request.Context(), session, c.Param("id"), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"proposal": proposal, "message": "Proposal submitted successfully"})
}
