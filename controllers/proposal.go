package controllers

import (
	"net/http"

	"research-grant-api/services"

	"github.com/gin-gonic/gin"
)

type ProposalController struct {
	workflow *services.WorkflowService
}

func NewProposalController(workflow *services.WorkflowService) *ProposalController {
	return &ProposalController{workflow: workflow}
}

// GetProposals lists the proposals in the caller's scope
func (pc *ProposalController) GetProposals(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	proposals, err := pc.workflow.ListProposals(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals, "total": len(proposals)})
}

func (pc *ProposalController) GetProposal(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	proposal, err := pc.workflow.GetProposal(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}

// DecideProposal approves or rejects a proposal under review (director)
func (pc *ProposalController) DecideProposal(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var form services.DecisionForm
	if !bindJSON(c, &form) {
		return
	}

	proposal, err := pc.workflow.DecideProposal(c.Request.Context(), session, c.Param("id"), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposal": proposal, "message": "Proposal " + string(proposal.Status)})
}

// GetReviewers lists profiles that can be assigned as reviewers
func (pc *ProposalController) GetReviewers(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	reviewers, err := pc.workflow.ListReviewers(c.Request.Context(), session)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviewers": reviewers})
}

func (pc *ProposalController) GetAssignedReviewers(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	assignments, err := pc.workflow.ListAssignedReviewers(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

// AssignReviewer assigns a reviewer and moves the proposal to under_review
func (pc *ProposalController) AssignReviewer(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	var form services.AssignReviewerForm
	if !bindJSON(c, &form) {
		return
	}

	assignment, err := pc.workflow.AssignReviewer(c.Request.Context(), session, c.Param("id"), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assignment": assignment, "message": "Reviewer assigned successfully"})
}

func (pc *ProposalController) UnassignReviewer(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}
	if err := pc.workflow.UnassignReviewer(c.Request.Context(), session, c.Param("id"), c.Param("reviewer_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reviewer unassigned successfully"})
}
