package services

import (
	"context"
	"fmt"

	"research-grant-api/authz"
	"research-grant-api/models"
	"research-grant-api/store"

	"github.com/sirupsen/logrus"
)

// Action names a button a role view offers on a record.
type Action string

const (
	ActionCreateCall     Action = "create_call"
	ActionSubmitProposal Action = "submit_proposal"
	ActionAssignReviewer Action = "assign_reviewer"
	ActionSubmitReview   Action = "submit_review"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestBudget  Action = "request_budget"
	ActionApproveBudget  Action = "approve_budget"
	ActionRejectBudget   Action = "reject_budget"
)

type CallItem struct {
	models.CallForPapers
	Actions []Action `json:"actions"`
}

type ProposalItem struct {
	models.Proposal
	Actions []Action `json:"actions"`
}

// AssignedProposalItem is a reviewer's assigned proposal with the reviewer's own review, if any.
type AssignedProposalItem struct {
	models.Proposal
	Review  *models.Review `json:"review"`
	Actions []Action       `json:"actions"`
}

type BudgetRequestItem struct {
	models.BudgetRequest
	Proposal *models.Proposal `json:"proposal"`
	Actions  []Action         `json:"actions"`
}

// Dashboard is one role view. Only the sections that belong to the role are filled.
type Dashboard struct {
	Role                   models.Role            `json:"role"`
	Counts                 map[string]int         `json:"counts"`
	Actions                []Action               `json:"actions"`
	Calls                  []CallItem             `json:"calls,omitempty"`
	Proposals              []ProposalItem         `json:"proposals,omitempty"`
	AssignedProposals      []AssignedProposalItem `json:"assigned_proposals,omitempty"`
	PendingBudgetRequests  []BudgetRequestItem    `json:"pending_budget_requests,omitempty"`
	ReviewedBudgetRequests []BudgetRequestItem    `json:"reviewed_budget_requests,omitempty"`
}

// DashboardService builds role views. Every Load reads fresh from the store.
type DashboardService struct {
	store  store.Store
	authz  *authz.Authorizer
	logger *logrus.Entry
}

// NewDashboardService builds the role views over st.
func NewDashboardService(st store.Store, az *authz.Authorizer, logger *logrus.Logger) *DashboardService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DashboardService{
		store:  st,
		authz:  az,
		logger: logger.WithField("component", "dashboard"),
	}
}

func (s *DashboardService) Load(ctx context.Context, session *Session) (*Dashboard, error) {
	if session == nil {
		return nil, &AuthError{Message: "Not signed in"}
	}
	if !s.authz.Allowed(session.Role, authz.ObjectDashboard, authz.ActionRead) {
		return nil, &ForbiddenError{Reason: fmt.Sprintf("role %s has no dashboard", session.Role)}
	}

	dash := &Dashboard{Role: session.Role, Counts: map[string]int{}, Actions: []Action{}}
	if s.authz.Allowed(session.Role, authz.ObjectCall, authz.ActionCreate) {
		dash.Actions = append(dash.Actions, ActionCreateCall)
	}

	var err error
	switch session.Role {
	case models.RoleResearcher:
		err = s.loadResearcher(ctx, session, dash)
	case models.RoleReviewer:
		err = s.loadReviewer(ctx, session, dash)
	case models.RoleCoordinator:
		err = s.loadCoordinator(ctx, session, dash)
	case models.RoleDirector:
		err = s.loadDirector(ctx, session, dash)
	case models.RoleVicePresident:
		err = s.loadVicePresident(ctx, session, dash)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"role":    session.Role,
			"user_id": session.UserID,
		}).Error("dashboard load failed")
		return nil, &StoreError{Op: "load dashboard", Err: err}
	}
	return dash, nil
}

func (s *DashboardService) loadResearcher(ctx context.Context, session *Session, dash *Dashboard) error {
	open := models.CallStatusOpen
	calls, err := s.store.ListCalls(ctx, store.CallFilter{Status: &open})
	if err != nil {
		return err
	}
	proposals, err := visibleProposals(ctx, s.store, session)
	if err != nil {
		return err
	}

	dash.Calls = s.callItems(session, calls)
	dash.Proposals = s.proposalItems(session, proposals)

	dash.Counts["open_calls"] = len(calls)
	dash.Counts["total"] = len(proposals)
	for _, p := range proposals {
		switch p.Status {
		case models.ProposalUnderReview:
			dash.Counts["under_review"]++
		case models.ProposalApproved, models.ProposalBudgetApproved:
			dash.Counts["approved"]++
		}
	}
	ensureCounts(dash.Counts, "under_review", "approved")
	return nil
}

func (s *DashboardService) loadReviewer(ctx context.Context, session *Session, dash *Dashboard) error {
	proposals, err := visibleProposals(ctx, s.store, session)
	if err != nil {
		return err
	}
	reviews, err := s.store.ListReviews(ctx, store.ReviewFilter{ReviewerID: session.UserID})
	if err != nil {
		return err
	}

	byProposal := make(map[string]*models.Review, len(reviews))
	for i := range reviews {
		if _, seen := byProposal[reviews[i].ProposalID]; !seen {
			byProposal[reviews[i].ProposalID] = &reviews[i]
		}
	}

	canReview := s.authz.Allowed(session.Role, authz.ObjectReview, authz.ActionSubmit)
	dash.AssignedProposals = make([]AssignedProposalItem, 0, len(proposals))
	for _, p := range proposals {
		item := AssignedProposalItem{Proposal: p, Review: byProposal[p.ID], Actions: []Action{}}
		if item.Review == nil {
			dash.Counts["pending"]++
			if canReview {
				item.Actions = append(item.Actions, ActionSubmitReview)
			}
		} else {
			dash.Counts["completed"]++
		}
		dash.AssignedProposals = append(dash.AssignedProposals, item)
	}
	dash.Counts["assigned"] = len(proposals)
	ensureCounts(dash.Counts, "pending", "completed")
	return nil
}

func (s *DashboardService) loadCoordinator(ctx context.Context, session *Session, dash *Dashboard) error {
	proposals, err := visibleProposals(ctx, s.store, session)
	if err != nil {
		return err
	}
	dash.Proposals = s.proposalItems(session, proposals)

	dash.Counts["total"] = len(proposals)
	for _, p := range proposals {
		switch p.Status {
		case models.ProposalSubmitted:
			dash.Counts["awaiting_assignment"]++
		case models.ProposalUnderReview:
			dash.Counts["under_review"]++
		}
	}
	ensureCounts(dash.Counts, "awaiting_assignment", "under_review")
	return nil
}

func (s *DashboardService) loadDirector(ctx context.Context, session *Session, dash *Dashboard) error {
	calls, err := s.store.ListCalls(ctx, store.CallFilter{})
	if err != nil {
		return err
	}
	proposals, err := visibleProposals(ctx, s.store, session)
	if err != nil {
		return err
	}

	dash.Calls = s.callItems(session, calls)
	dash.Proposals = s.proposalItems(session, proposals)

	dash.Counts["calls"] = len(calls)
	dash.Counts["proposals"] = len(proposals)
	for _, p := range proposals {
		if p.Status == models.ProposalSubmitted || p.Status == models.ProposalUnderReview {
			dash.Counts["pending_review"]++
		}
	}
	ensureCounts(dash.Counts, "pending_review")
	return nil
}

func (s *DashboardService) loadVicePresident(ctx context.Context, session *Session, dash *Dashboard) error {
	requests, err := s.store.ListBudgetRequests(ctx, store.BudgetRequestFilter{})
	if err != nil {
		return err
	}
	proposals, err := visibleProposals(ctx, s.store, session)
	if err != nil {
		return err
	}

	byID := make(map[string]*models.Proposal, len(proposals))
	for i := range proposals {
		byID[proposals[i].ID] = &proposals[i]
	}

	canDecide := s.authz.Allowed(session.Role, authz.ObjectBudgetRequest, authz.ActionDecide)
	dash.PendingBudgetRequests = []BudgetRequestItem{}
	dash.ReviewedBudgetRequests = []BudgetRequestItem{}
	for _, r := range requests {
		item := BudgetRequestItem{BudgetRequest: r, Proposal: byID[r.ProposalID], Actions: []Action{}}
		if r.Status.CanDecide() {
			if canDecide {
				item.Actions = append(item.Actions, ActionApproveBudget, ActionRejectBudget)
			}
			dash.PendingBudgetRequests = append(dash.PendingBudgetRequests, item)
			continue
		}
		if r.Status == models.BudgetApproved {
			dash.Counts["approved"]++
		}
		dash.ReviewedBudgetRequests = append(dash.ReviewedBudgetRequests, item)
	}

	dash.Counts["pending"] = len(dash.PendingBudgetRequests)
	dash.Counts["total"] = len(requests)
	ensureCounts(dash.Counts, "approved")
	return nil
}

func (s *DashboardService) callItems(session *Session, calls []models.CallForPapers) []CallItem {
	canSubmit := s.authz.Allowed(session.Role, authz.ObjectProposal, authz.ActionSubmit)
	items := make([]CallItem, 0, len(calls))
	for _, c := range calls {
		item := CallItem{CallForPapers: c, Actions: []Action{}}
		if canSubmit && c.Status == models.CallStatusOpen {
			item.Actions = append(item.Actions, ActionSubmitProposal)
		}
		items = append(items, item)
	}
	return items
}

func (s *DashboardService) proposalItems(session *Session, proposals []models.Proposal) []ProposalItem {
	items := make([]ProposalItem, 0, len(proposals))
	for _, p := range proposals {
		items = append(items, ProposalItem{Proposal: p, Actions: s.proposalActions(session.Role, p.Status)})
	}
	return items
}

// proposalActions derives the buttons for a proposal from the policy and the transition table.
func (s *DashboardService) proposalActions(role models.Role, status models.ProposalStatus) []Action {
	actions := []Action{}
	if status.Terminal() {
		return actions
	}
	if s.authz.Allowed(role, authz.ObjectReviewerAssignment, authz.ActionAssign) &&
		models.CanTransition(status, models.ProposalUnderReview) {
		actions = append(actions, ActionAssignReviewer)
	}
	if s.authz.Allowed(role, authz.ObjectProposal, authz.ActionDecide) && status == models.ProposalUnderReview {
		actions = append(actions, ActionApprove, ActionReject)
	}
	if s.authz.Allowed(role, authz.ObjectBudgetRequest, authz.ActionRequest) &&
		models.CanTransition(status, models.ProposalBudgetRequested) {
		actions = append(actions, ActionRequestBudget)
	}
	return actions
}

func ensureCounts(counts map[string]int, keys ...string) {
	for _, k := range keys {
		if _, ok := counts[k]; !ok {
			counts[k] = 0
		}
	}
}
