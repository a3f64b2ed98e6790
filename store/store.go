// Package store holds the persistence boundary of the grant workflow.
// Every role view and lifecycle operation reads and writes through Store.
package store

import (
	"context"
	"errors"
	"time"

	"research-grant-api/models"
)

var (
	// ErrNotFound is returned when a filtered lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrStaleState is returned by compare-and-swap updates whose expected state no longer holds.
	ErrStaleState = errors.New("record state changed")
	// ErrDuplicate is returned when an insert would violate a uniqueness rule.
	ErrDuplicate = errors.New("duplicate record")
)

type ProfileFilter struct {
	Role *models.Role
	IDs  []string
}

type CallFilter struct {
	Status *models.CallStatus
}

type ProposalFilter struct {
	ResearcherID string
	IDs          []string
	Statuses     []models.ProposalStatus
}

type AssignmentFilter struct {
	ProposalID string
	ReviewerID string
}

type ReviewFilter struct {
	ProposalID string
	ReviewerID string
}

type BudgetRequestFilter struct {
	ProposalID string
	Statuses   []models.BudgetStatus
}

// BudgetDecision is the patch applied to a pending budget request.
type BudgetDecision struct {
	Status     models.BudgetStatus
	ApprovedBy string
	ReviewedAt time.Time
}

// Store is the structured store consumed by the services layer.
// Reads return rows in the order the dashboards display them.
type Store interface {
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]models.UserProfile, error)

	CreateSession(ctx context.Context, session *models.UserSession) error
	GetSession(ctx context.Context, id string) (*models.UserSession, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)

	CreateCall(ctx context.Context, call *models.CallForPapers) error
	GetCall(ctx context.Context, id string) (*models.CallForPapers, error)
	ListCalls(ctx context.Context, filter CallFilter) ([]models.CallForPapers, error)

	CreateProposal(ctx context.Context, proposal *models.Proposal) error
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	ListProposals(ctx context.Context, filter ProposalFilter) ([]models.Proposal, error)
	// UpdateProposalStatus sets status and updated_at only when the current status is one of from.
	UpdateProposalStatus(ctx context.Context, id string, from []models.ProposalStatus, to models.ProposalStatus, at time.Time) error

	CreateAssignment(ctx context.Context, assignment *models.ProposalReviewer) error
	DeleteAssignment(ctx context.Context, proposalID, reviewerID string) error
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]models.ProposalReviewer, error)

	CreateReview(ctx context.Context, review *models.Review) error
	ListReviews(ctx context.Context, filter ReviewFilter) ([]models.Review, error)

	CreateBudgetRequest(ctx context.Context, request *models.BudgetRequest) error
	GetBudgetRequest(ctx context.Context, id string) (*models.BudgetRequest, error)
	ListBudgetRequests(ctx context.Context, filter BudgetRequestFilter) ([]models.BudgetRequest, error)
	// DecideBudgetRequest applies decision only while the request is still pending.
	DecideBudgetRequest(ctx context.Context, id string, decision BudgetDecision) error

	// Transaction runs fn against a transactional view of the store.
	// Writes made through that view are committed together when fn returns nil and discarded otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
