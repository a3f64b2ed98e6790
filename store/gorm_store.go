package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"research-grant-api/models"

	"gorm.io/gorm"
)

// GormStore persists the workflow in a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Ping checks that the database still answers. It backs the health endpoint.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (s *GormStore) first(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return translate(s.db.WithContext(ctx).Where(query, args...).First(dest).Error)
}

func (s *GormStore) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	return translate(s.db.WithContext(ctx).Create(profile).Error)
}

func (s *GormStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.first(ctx, &profile, "id = ?", id); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *GormStore) GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := s.first(ctx, &profile, "email = ?", email); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *GormStore) ListProfiles(ctx context.Context, filter ProfileFilter) ([]models.UserProfile, error) {
	q := s.db.WithContext(ctx).Model(&models.UserProfile{})
	if filter.Role != nil {
		q = q.Where("role = ?", *filter.Role)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}

	var profiles []models.UserProfile
	if err := q.Order("full_name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *GormStore) CreateSession(ctx context.Context, session *models.UserSession) error {
	return translate(s.db.WithContext(ctx).Create(session).Error)
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*models.UserSession, error) {
	var session models.UserSession
	if err := s.first(ctx, &session, "id = ?", id); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *GormStore) DeleteSession(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.UserSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserSession{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) CreateCall(ctx context.Context, call *models.CallForPapers) error {
	return translate(s.db.WithContext(ctx).Create(call).Error)
}

func (s *GormStore) GetCall(ctx context.Context, id string) (*models.CallForPapers, error) {
	var call models.CallForPapers
	if err := s.first(ctx, &call, "id = ?", id); err != nil {
		return nil, err
	}
	return &call, nil
}

func (s *GormStore) ListCalls(ctx context.Context, filter CallFilter) ([]models.CallForPapers, error) {
	q := s.db.WithContext(ctx).Model(&models.CallForPapers{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}

	var calls []models.CallForPapers
	if err := q.Order("created_at DESC").Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

func (s *GormStore) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	return translate(s.db.WithContext(ctx).Create(proposal).Error)
}

func (s *GormStore) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := s.first(ctx, &proposal, "id = ?", id); err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (s *GormStore) ListProposals(ctx context.Context, filter ProposalFilter) ([]models.Proposal, error) {
	q := s.db.WithContext(ctx).Model(&models.Proposal{})
	if filter.ResearcherID != "" {
		q = q.Where("researcher_id = ?", filter.ResearcherID)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}

	var proposals []models.Proposal
	if err := q.Order("submitted_at DESC").Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

func (s *GormStore) UpdateProposalStatus(ctx context.Context, id string, from []models.ProposalStatus, to models.ProposalStatus, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Proposal{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missingOrStale(ctx, &models.Proposal{}, id)
	}
	return nil
}

// missingOrStale tells a vanished row apart from one whose guard no longer matched.
func (s *GormStore) missingOrStale(ctx context.Context, model interface{}, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStaleState
}

func (s *GormStore) CreateAssignment(ctx context.Context, assignment *models.ProposalReviewer) error {
	return translate(s.db.WithContext(ctx).Create(assignment).Error)
}

func (s *GormStore) DeleteAssignment(ctx context.Context, proposalID, reviewerID string) error {
	res := s.db.WithContext(ctx).
		Where("proposal_id = ? AND reviewer_id = ?", proposalID, reviewerID).
		Delete(&models.ProposalReviewer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]models.ProposalReviewer, error) {
	q := s.db.WithContext(ctx).Model(&models.ProposalReviewer{})
	if filter.ProposalID != "" {
		q = q.Where("proposal_id = ?", filter.ProposalID)
	}
	if filter.ReviewerID != "" {
		q = q.Where("reviewer_id = ?", filter.ReviewerID)
	}

	var assignments []models.ProposalReviewer
	if err := q.Order("assigned_at ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (s *GormStore) CreateReview(ctx context.Context, review *models.Review) error {
	return translate(s.db.WithContext(ctx).Create(review).Error)
}

func (s *GormStore) ListReviews(ctx context.Context, filter ReviewFilter) ([]models.Review, error) {
	q := s.db.WithContext(ctx).Model(&models.Review{})
	if filter.ProposalID != "" {
		q = q.Where("proposal_id = ?", filter.ProposalID)
	}
	if filter.ReviewerID != "" {
		q = q.Where("reviewer_id = ?", filter.ReviewerID)
	}

	var reviews []models.Review
	if err := q.Order("submitted_at DESC").Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *GormStore) CreateBudgetRequest(ctx context.Context, request *models.BudgetRequest) error {
	return translate(s.db.WithContext(ctx).Create(request).Error)
}

func (s *GormStore) GetBudgetRequest(ctx context.Context, id string) (*models.BudgetRequest, error) {
	var request models.BudgetRequest
	if err := s.first(ctx, &request, "id = ?", id); err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *GormStore) ListBudgetRequests(ctx context.Context, filter BudgetRequestFilter) ([]models.BudgetRequest, error) {
	q := s.db.WithContext(ctx).Model(&models.BudgetRequest{})
	if filter.ProposalID != "" {
		q = q.Where("proposal_id = ?", filter.ProposalID)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}

	var requests []models.BudgetRequest
	if err := q.Order("requested_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *GormStore) DecideBudgetRequest(ctx context.Context, id string, decision BudgetDecision) error {
	res := s.db.WithContext(ctx).Model(&models.BudgetRequest{}).
		Where("id = ? AND status = ?", id, models.BudgetPending).
		Updates(map[string]interface{}{
			"status":      decision.Status,
			"approved_by": decision.ApprovedBy,
			"reviewed_at": decision.ReviewedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return s.missingOrStale(ctx, &models.BudgetRequest{}, id)
	}
	return nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
