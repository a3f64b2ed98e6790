package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-grant-api/authz"
	"research-grant-api/models"
	"research-grant-api/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WorkflowService is the lifecycle engine. Every mutating operation checks the role policy,
// validates its form, then applies its writes in one store transaction guarded by the
// proposal transition table.
type WorkflowService struct {
	store  store.Store
	authz  *authz.Authorizer
	now    func() time.Time
	logger *logrus.Entry
}

// NewWorkflowService builds the lifecycle engine over st, guarded by az.
func NewWorkflowService(st store.Store, az *authz.Authorizer, logger *logrus.Logger) *WorkflowService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WorkflowService{
		store:  st,
		authz:  az,
		now:    time.Now,
		logger: logger.WithField("component", "workflow"),
	}
}

func (s *WorkflowService) authorize(session *Session, object authz.Object, action authz.Action) error {
	if session == nil {
		return &AuthError{Message: "Not signed in"}
	}
	if !s.authz.Allowed(session.Role, object, action) {
		return &ForbiddenError{Reason: fmt.Sprintf("role %s may not %s %s", session.Role, action, object)}
	}
	return nil
}

func (s *WorkflowService) storeFailure(op string, err error) error {
	s.logger.WithError(err).WithField("op", op).Error("store operation failed")
	return &StoreError{Op: op, Err: err}
}

// transaction runs fn in a store transaction. Typed errors returned by fn pass through;
// anything else (begin or commit failures) becomes a StoreError.
func (s *WorkflowService) transaction(ctx context.Context, op string, fn func(tx store.Store) error) error {
	err := s.store.Transaction(ctx, fn)
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) || resultLabel(err) != "store_error" {
		return err
	}
	return s.storeFailure(op, err)
}

func (s *WorkflowService) loadProposal(ctx context.Context, st store.Store, id string) (*models.Proposal, error) {
	proposal, err := st.GetProposal(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "proposal", ID: id}
	}
	if err != nil {
		return nil, s.storeFailure("get proposal", err)
	}
	return proposal, nil
}

// moveProposal applies a guarded status update. A stale expected state is a conflict.
func (s *WorkflowService) moveProposal(ctx context.Context, st store.Store, proposal *models.Proposal, to models.ProposalStatus, at time.Time) error {
	if !models.CanTransition(proposal.Status, to) {
		return &ConflictError{Message: fmt.Sprintf("proposal %s cannot move from %s to %s", proposal.ID, proposal.Status, to)}
	}
	err := st.UpdateProposalStatus(ctx, proposal.ID, []models.ProposalStatus{proposal.Status}, to, at)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStaleState):
		return &ConflictError{Message: fmt.Sprintf("proposal %s changed status concurrently", proposal.ID)}
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Entity: "proposal", ID: proposal.ID}
	}
	return s.storeFailure("update proposal status", err)
}

// CreateCall publishes a new open call for papers.
func (s *WorkflowService) CreateCall(ctx context.Context, session *Session, form CreateCallForm) (call *models.CallForPapers, err error) {
	defer func() { recordOperation("create_call", err) }()

	if err := s.authorize(session, authz.ObjectCall, authz.ActionCreate); err != nil {
		return nil, err
	}
	if err := form.validate(); err != nil {
		return nil, err
	}

	call = &models.CallForPapers{
		ID:          uuid.NewString(),
		Title:       form.Title,
		Description: form.Description,
		Deadline:    form.Deadline,
		CreatedBy:   session.UserID,
		Status:      models.CallStatusOpen,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateCall(ctx, call); err != nil {
		return nil, s.storeFailure("create call", err)
	}

	recordTransition("call", "", string(call.Status))
	return call, nil
}

// ListCalls returns open calls to researchers and every call to directors.
func (s *WorkflowService) ListCalls(ctx context.Context, session *Session) ([]models.CallForPapers, error) {
	if err := s.authorize(session, authz.ObjectCall, authz.ActionRead); err != nil {
		return nil, err
	}

	filter := store.CallFilter{}
	if session.Role == models.RoleResearcher {
		open := models.CallStatusOpen
		filter.Status = &open
	}
	calls, err := s.store.ListCalls(ctx, filter)
	if err != nil {
		return nil, s.storeFailure("list calls", err)
	}
	return calls, nil
}

// SubmitProposal creates a submitted proposal against an open call.
func (s *WorkflowService) SubmitProposal(ctx context.Context, session *Session, callID string, form SubmitProposalForm) (proposal *models.Proposal, err error) {
	defer func() { recordOperation("submit_proposal", err) }()

	if err := s.authorize(session, authz.ObjectProposal, authz.ActionSubmit); err != nil {
		return nil, err
	}
	if err := form.validate(); err != nil {
		return nil, err
	}

	call, err := s.store.GetCall(ctx, callID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{Entity: "call", ID: callID}
	}
	if err != nil {
		return nil, s.storeFailure("get call", err)
	}
	if call.Status != models.CallStatusOpen {
		return nil, &ConflictError{Message: fmt.Sprintf("call %s is %s", call.ID, call.Status)}
	}

	now := s.now()
	proposal = &models.Proposal{
		ID:           uuid.NewString(),
		CallID:       call.ID,
		ResearcherID: session.UserID,
		Title:        form.Title,
		Abstract:     form.Abstract,
		Methodology:  form.Methodology,
		BudgetAmount: *form.BudgetAmount,
		Status:       models.ProposalSubmitted,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateProposal(ctx, proposal); err != nil {
		return nil, s.storeFailure("create proposal", err)
	}

	recordTransition("proposal", "", string(proposal.Status))
	return proposal, nil
}

// ListProposals returns the proposals visible to the caller's role.
func (s *WorkflowService) ListProposals(ctx context.Context, session *Session) ([]models.Proposal, error) {
	if err := s.authorize(session, authz.ObjectProposal, authz.ActionRead); err != nil {
		return nil, err
	}
	proposals, err := visibleProposals(ctx, s.store, session)
	if err != nil {
		return nil, s.storeFailure("list proposals", err)
	}
	return proposals, nil
}

// GetProposal returns one proposal if the caller can see it.
func (s *WorkflowService) GetProposal(ctx context.Context, session *Session, id string) (*models.Proposal, error) {
	if err := s.authorize(session, authz.ObjectProposal, authz.ActionRead); err != nil {
		return nil, err
	}
	proposal, err := s.loadProposal(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, session, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

func (s *WorkflowService) checkVisible(ctx context.Context, session *Session, proposal *models.Proposal) error {
	ok, err := canViewProposal(ctx, s.store, session, proposal)
	if err != nil {
		return s.storeFailure("check proposal visibility", err)
	}
	if !ok {
		return &ForbiddenError{Reason: fmt.Sprintf("proposal %s is not visible to %s", proposal.ID, session.Role)}
	}
	return nil
}

// AssignReviewer links a reviewer to a proposal and moves it to under_review.
// The assignment insert and the status change commit together.
func (s *WorkflowService) AssignReviewer(ctx context.Context, session *Session, proposalID string, form AssignReviewerForm) (assignment *models.ProposalReviewer, err error) {
	defer func() { recordOperation("assign_reviewer", err) }()

	if err := s.authorize(session, authz.ObjectReviewerAssignment, authz.ActionAssign); err != nil {
		return nil, err
	}
	if err := form.validate(); err != nil {
		return nil, err
	}

	var from models.ProposalStatus
	now := s.now()
	err = s.transaction(ctx, "assign reviewer", func(tx store.Store) error {
		proposal, err := s.loadProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if !models.CanTransition(proposal.Status, models.ProposalUnderReview) {
			return &ConflictError{Message: fmt.Sprintf("cannot assign reviewers to a %s proposal", proposal.Status)}
		}
		from = proposal.Status

		reviewer, err := tx.GetProfile(ctx, form.ReviewerID)
		if errors.Is(err, store.ErrNotFound) {
			return fieldError("reviewer_id", "does not exist")
		}
		if err != nil {
			return s.storeFailure("get reviewer profile", err)
		}
		if reviewer.Role != models.RoleReviewer {
			return fieldError("reviewer_id", "is not a reviewer")
		}

		existing, err := tx.ListAssignments(ctx, store.AssignmentFilter{ProposalID: proposal.ID, ReviewerID: reviewer.ID})
		if err != nil {
			return s.storeFailure("list assignments", err)
		}
		if len(existing) > 0 {
			return &ConflictError{Message: "reviewer is already assigned to this proposal"}
		}

		assignment = &models.ProposalReviewer{
			ID:         uuid.NewString(),
			ProposalID: proposal.ID,
			ReviewerID: reviewer.ID,
			AssignedBy: session.UserID,
			AssignedAt: now,
		}
		if err := tx.CreateAssignment(ctx, assignment); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return &ConflictError{Message: "reviewer is already assigned to this proposal"}
			}
			return s.storeFailure("create assignment", err)
		}

		return s.moveProposal(ctx, tx, proposal, models.ProposalUnderReview, now)
	})
	if err != nil {
		return nil, err
	}

	recordTransition("proposal", string(from), string(models.ProposalUnderReview))
	s.logger.WithFields(logrus.Fields{
		"proposal_id": proposalID,
		"reviewer_id": assignment.ReviewerID,
		"assigned_by": session.UserID,
	}).Info("reviewer assigned")
	return assignment, nil
}

// UnassignReviewer removes an assignment. The proposal status is left as is.
func (s *WorkflowService) UnassignReviewer(ctx context.Context, session *Session, proposalID, reviewerID string) (err error) {
	defer func() { recordOperation("unassign_reviewer", err) }()

	if err := s.authorize(session, authz.ObjectReviewerAssignment, authz.ActionUnassign); err != nil {
		return err
	}

	err = s.store.DeleteAssignment(ctx, proposalID, reviewerID)
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Entity: "reviewer_assignment", ID: proposalID + "/" + reviewerID}
	}
	if err != nil {
		return s.storeFailure("delete assignment", err)
	}
	return nil
}

// ListAssignedReviewers returns a proposal's assignments with the reviewer profiles attached.
func (s *WorkflowService) ListAssignedReviewers(ctx context.Context, session *Session, proposalID string) ([]models.ProposalReviewer, error) {
	if err := s.authorize(session, authz.ObjectReviewerAssignment, authz.ActionRead); err != nil {
		return nil, err
	}
	if _, err := s.loadProposal(ctx, s.store, proposalID); err != nil {
		return nil, err
	}

	assignments, err := s.store.ListAssignments(ctx, store.AssignmentFilter{ProposalID: proposalID})
	if err != nil {
		return nil, s.storeFailure("list assignments", err)
	}
	if len(assignments) == 0 {
		return assignments, nil
	}

	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ReviewerID)
	}
	profiles, err := s.store.ListProfiles(ctx, store.ProfileFilter{IDs: ids})
	if err != nil {
		return nil, s.storeFailure("list reviewer profiles", err)
	}
	byID := make(map[string]*models.UserProfile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ID] = &profiles[i]
	}
	for i := range assignments {
		assignments[i].Reviewer = byID[assignments[i].ReviewerID]
	}
	return assignments, nil
}

// ListReviewers returns every profile that can be assigned as a reviewer.
func (s *WorkflowService) ListReviewers(ctx context.Context, session *Session) ([]models.UserProfile, error) {
	if err := s.authorize(session, authz.ObjectReviewerAssignment, authz.ActionRead); err != nil {
		return nil, err
	}
	role := models.RoleReviewer
	reviewers, err := s.store.ListProfiles(ctx, store.ProfileFilter{Role: &role})
	if err != nil {
		return nil, s.storeFailure("list reviewers", err)
	}
	return reviewers, nil
}

// SubmitReview records the caller's review of a proposal they are assigned to.
// The form is validated before any store access, and a second review by the same reviewer is a conflict.
func (s *WorkflowService) SubmitReview(ctx context.Context, session *Session, proposalID string, form SubmitReviewForm) (review *models.Review, err error) {
	defer func() { recordOperation("submit_review", err) }()

	if err := s.authorize(session, authz.ObjectReview, authz.ActionSubmit); err != nil {
		return nil, err
	}
	if err := form.validate(); err != nil {
		return nil, err
	}

	err = s.transaction(ctx, "submit review", func(tx store.Store) error {
		proposal, err := s.loadProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}

		assigned, err := tx.ListAssignments(ctx, store.AssignmentFilter{ProposalID: proposal.ID, ReviewerID: session.UserID})
		if err != nil {
			return s.storeFailure("list assignments", err)
		}
		if len(assigned) == 0 {
			return &ForbiddenError{Reason: "reviewer is not assigned to this proposal"}
		}

		existing, err := tx.ListReviews(ctx, store.ReviewFilter{ProposalID: proposal.ID, ReviewerID: session.UserID})
		if err != nil {
			return s.storeFailure("list reviews", err)
		}
		if len(existing) > 0 {
			return &ConflictError{Message: "review already submitted for this proposal"}
		}

		review = &models.Review{
			ID:             uuid.NewString(),
			ProposalID:     proposal.ID,
			ReviewerID:     session.UserID,
			Score:          *form.Score,
			Recommendation: form.Recommendation,
			Comments:       form.Comments,
			SubmittedAt:    s.now(),
		}
		if err := tx.CreateReview(ctx, review); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return &ConflictError{Message: "review already submitted for this proposal"}
			}
			return s.storeFailure("create review", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews returns a proposal's reviews. Reviewers only see their own.
func (s *WorkflowService) ListReviews(ctx context.Context, session *Session, proposalID string) ([]models.Review, error) {
	if err := s.authorize(session, authz.ObjectReview, authz.ActionRead); err != nil {
		return nil, err
	}
	proposal, err := s.loadProposal(ctx, s.store, proposalID)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, session, proposal); err != nil {
		return nil, err
	}

	filter := store.ReviewFilter{ProposalID: proposal.ID}
	if session.Role == models.RoleReviewer {
		filter.ReviewerID = session.UserID
	}
	reviews, err := s.store.ListReviews(ctx, filter)
	if err != nil {
		return nil, s.storeFailure("list reviews", err)
	}
	return reviews, nil
}

// DecideProposal approves or rejects a proposal that is under review.
func (s *WorkflowService) DecideProposal(ctx context.Context, session *Session, proposalID string, form DecisionForm) (proposal *models.Proposal, err error) {
	defer func() { recordOperation("decide_proposal", err) }()

	if err := s.authorize(session, authz.ObjectProposal, authz.ActionDecide); err != nil {
		return nil, err
	}
	if err := validateForm(&form); err != nil {
		return nil, err
	}

	proposal, err = s.loadProposal(ctx, s.store, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != models.ProposalUnderReview {
		return nil, &ConflictError{Message: fmt.Sprintf("only under_review proposals can be decided, proposal is %s", proposal.Status)}
	}

	from := proposal.Status
	now := s.now()
	if err := s.moveProposal(ctx, s.store, proposal, form.Decision, now); err != nil {
		return nil, err
	}
	proposal.Status = form.Decision
	proposal.UpdatedAt = now

	recordTransition("proposal", string(from), string(form.Decision))
	s.logger.WithFields(logrus.Fields{
		"proposal_id": proposal.ID,
		"decision":    form.Decision,
		"decided_by":  session.UserID,
	}).Info("proposal decided")
	return proposal, nil
}

// RequestBudget opens a pending budget request for an approved proposal and moves the
// proposal to budget_requested. Both writes commit together.
func (s *WorkflowService) RequestBudget(ctx context.Context, session *Session, proposalID string, form RequestBudgetForm) (request *models.BudgetRequest, err error) {
	defer func() { recordOperation("request_budget", err) }()

	if err := s.authorize(session, authz.ObjectBudgetRequest, authz.ActionRequest); err != nil {
		return nil, err
	}
	if err := form.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.transaction(ctx, "request budget", func(tx store.Store) error {
		proposal, err := s.loadProposal(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if proposal.Status != models.ProposalApproved {
			return &ConflictError{Message: fmt.Sprintf("budget can only be requested for approved proposals, proposal is %s", proposal.Status)}
		}

		pending, err := tx.ListBudgetRequests(ctx, store.BudgetRequestFilter{
			ProposalID: proposal.ID,
			Statuses:   []models.BudgetStatus{models.BudgetPending},
		})
		if err != nil {
			return s.storeFailure("list budget requests", err)
		}
		if len(pending) > 0 {
			return &ConflictError{Message: "a budget request is already pending for this proposal"}
		}

		amount := proposal.BudgetAmount
		if form.RequestedAmount != nil {
			amount = *form.RequestedAmount
		}
		if !amount.IsPositive() {
			return fieldError("requested_amount", "must be greater than 0")
		}
		if err := checkMoney("requested_amount", amount); err != nil {
			return err
		}

		request = &models.BudgetRequest{
			ID:              uuid.NewString(),
			ProposalID:      proposal.ID,
			RequestedAmount: amount,
			Justification:   form.Justification,
			Status:          models.BudgetPending,
			RequestedBy:     session.UserID,
			RequestedAt:     now,
		}
		if err := tx.CreateBudgetRequest(ctx, request); err != nil {
			return s.storeFailure("create budget request", err)
		}

		return s.moveProposal(ctx, tx, proposal, models.ProposalBudgetRequested, now)
	})
	if err != nil {
		return nil, err
	}

	recordTransition("budget_request", "", string(models.BudgetPending))
	recordTransition("proposal", string(models.ProposalApproved), string(models.ProposalBudgetRequested))
	s.logger.WithFields(logrus.Fields{
		"proposal_id":       proposalID,
		"budget_request_id": request.ID,
		"amount":            request.RequestedAmount.StringFixed(2),
	}).Info("budget requested")
	return request, nil
}

// ListBudgetRequests returns every budget request, newest first.
func (s *WorkflowService) ListBudgetRequests(ctx context.Context, session *Session) ([]models.BudgetRequest, error) {
	if err := s.authorize(session, authz.ObjectBudgetRequest, authz.ActionRead); err != nil {
		return nil, err
	}
	requests, err := s.store.ListBudgetRequests(ctx, store.BudgetRequestFilter{})
	if err != nil {
		return nil, s.storeFailure("list budget requests", err)
	}
	return requests, nil
}

// DecideBudget approves or rejects a pending budget request. Approval also moves the
// proposal to budget_approved in the same transaction. Rejection leaves the proposal
// at budget_requested.
func (s *WorkflowService) DecideBudget(ctx context.Context, session *Session, requestID string, form BudgetDecisionForm) (request *models.BudgetRequest, err error) {
	defer func() { recordOperation("decide_budget", err) }()

	if err := s.authorize(session, authz.ObjectBudgetRequest, authz.ActionDecide); err != nil {
		return nil, err
	}
	if err := validateForm(&form); err != nil {
		return nil, err
	}

	now := s.now()
	var proposalMoved bool
	err = s.transaction(ctx, "decide budget", func(tx store.Store) error {
		req, err := tx.GetBudgetRequest(ctx, requestID)
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Entity: "budget_request", ID: requestID}
		}
		if err != nil {
			return s.storeFailure("get budget request", err)
		}
		if form.ProposalID != "" && form.ProposalID != req.ProposalID {
			return fieldError("proposal_id", "does not match the budget request")
		}
		if !req.Status.CanDecide() {
			return &ConflictError{Message: fmt.Sprintf("budget request %s is already %s", req.ID, req.Status)}
		}

		err = tx.DecideBudgetRequest(ctx, req.ID, store.BudgetDecision{
			Status:     form.Decision,
			ApprovedBy: session.UserID,
			ReviewedAt: now,
		})
		if errors.Is(err, store.ErrStaleState) {
			return &ConflictError{Message: fmt.Sprintf("budget request %s was decided concurrently", req.ID)}
		}
		if err != nil {
			return s.storeFailure("decide budget request", err)
		}

		approver := session.UserID
		req.Status = form.Decision
		req.ApprovedBy = &approver
		req.ReviewedAt = &now
		request = req

		if form.Decision != models.BudgetApproved {
			return nil
		}
		proposal, err := s.loadProposal(ctx, tx, req.ProposalID)
		if err != nil {
			return err
		}
		if err := s.moveProposal(ctx, tx, proposal, models.ProposalBudgetApproved, now); err != nil {
			return err
		}
		proposalMoved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordTransition("budget_request", string(models.BudgetPending), string(form.Decision))
	if proposalMoved {
		recordTransition("proposal", string(models.ProposalBudgetRequested), string(models.ProposalBudgetApproved))
	}
	s.logger.WithFields(logrus.Fields{
		"budget_request_id": request.ID,
		"proposal_id":       request.ProposalID,
		"decision":          form.Decision,
	}).Info("budget request decided")
	return request, nil
}

// visibleProposals applies the per-role proposal scope shared by the list endpoint and dashboards.
func visibleProposals(ctx context.Context, st store.Store, session *Session) ([]models.Proposal, error) {
	switch session.Role {
	case models.RoleResearcher:
		return st.ListProposals(ctx, store.ProposalFilter{ResearcherID: session.UserID})
	case models.RoleReviewer:
		assignments, err := st.ListAssignments(ctx, store.AssignmentFilter{ReviewerID: session.UserID})
		if err != nil || len(assignments) == 0 {
			return nil, err
		}
		ids := make([]string, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.ProposalID)
		}
		return st.ListProposals(ctx, store.ProposalFilter{IDs: ids})
	case models.RoleVicePresident:
		requests, err := st.ListBudgetRequests(ctx, store.BudgetRequestFilter{})
		if err != nil || len(requests) == 0 {
			return nil, err
		}
		ids := make([]string, 0, len(requests))
		for _, r := range requests {
			ids = append(ids, r.ProposalID)
		}
		return st.ListProposals(ctx, store.ProposalFilter{IDs: ids})
	case models.RoleCoordinator, models.RoleDirector:
		return st.ListProposals(ctx, store.ProposalFilter{})
	}
	return nil, nil
}

func canViewProposal(ctx context.Context, st store.Store, session *Session, proposal *models.Proposal) (bool, error) {
	switch session.Role {
	case models.RoleCoordinator, models.RoleDirector:
		return true, nil
	case models.RoleResearcher:
		return proposal.ResearcherID == session.UserID, nil
	case models.RoleReviewer:
		assigned, err := st.ListAssignments(ctx, store.AssignmentFilter{ProposalID: proposal.ID, ReviewerID: session.UserID})
		return len(assigned) > 0, err
	case models.RoleVicePresident:
		requests, err := st.ListBudgetRequests(ctx, store.BudgetRequestFilter{ProposalID: proposal.ID})
		return len(requests) > 0, err
	}
	return false, nil
}
