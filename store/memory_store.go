package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"research-grant-api/models"
)

// MemoryStore keeps every collection in process memory.
// It backs STORE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables *memTables
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: newMemTables()}
}

func (s *MemoryStore) read(fn func(t *memTables) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.tables)
}

func (s *MemoryStore) write(fn func(t *memTables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.tables)
}

// Transaction runs fn against a private copy of the tables and publishes the copy only on success.
// Writers are serialised for the duration of fn.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.tables.clone()
	if err := fn(draft); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.tables = draft
	return nil
}

func (s *MemoryStore) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	return s.write(func(t *memTables) error { return t.CreateProfile(ctx, profile) })
}

func (s *MemoryStore) GetProfile(ctx context.Context, id string) (out *models.UserProfile, err error) {
	err = s.read(func(t *memTables) error { out, err = t.GetProfile(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) GetProfileByEmail(ctx context.Context, email string) (out *models.UserProfile, err error) {
	err = s.read(func(t *memTables) error { out, err = t.GetProfileByEmail(ctx, email); return err })
	return out, err
}

func (s *MemoryStore) ListProfiles(ctx context.Context, filter ProfileFilter) (out []models.UserProfile, err error) {
	err = s.read(func(t *memTables) error { out, err = t.ListProfiles(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *models.UserSession) error {
	return s.write(func(t *memTables) error { return t.CreateSession(ctx, session) })
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (out *models.UserSession, err error) {
	err = s.read(func(t *memTables) error { out, err = t.GetSession(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	return s.write(func(t *memTables) error { return t.DeleteSession(ctx, id) })
}

func (s *MemoryStore) DeleteUserSessions(ctx context.Context, userID string) (n int64, err error) {
	err = s.write(func(t *memTables) error { n, err = t.DeleteUserSessions(ctx, userID); return err })
	return n, err
}

func (s *MemoryStore) CreateCall(ctx context.Context, call *models.CallForPapers) error {
	return s.write(func(t *memTables) error { return t.CreateCall(ctx, call) })
}

func (s *MemoryStore) GetCall(ctx context.Context, id string) (out *models.CallForPapers, err error) {
	err = s.read(func(t *memTables) error { out, err = t.GetCall(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) ListCalls(ctx context.Context, filter CallFilter) (out []models.CallForPapers, err error) {
	err = s.read(func(t *memTables) error { out, err = t.ListCalls(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	return s.write(func(t *memTables) error { return t.CreateProposal(ctx, proposal) })
}

func (s *MemoryStore) GetProposal(ctx context.Context, id string) (out *models.Proposal, err error) {
	err = s.read(func(t *memTables) error { out, err = t.GetProposal(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) ListProposals(ctx context.Context, filter ProposalFilter) (out []models.Proposal, err error) {
	err = s.read(func(t *memTables) error { out, err = t.ListProposals(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) UpdateProposalStatus(ctx context.Context, id string, from []models.ProposalStatus, to models.ProposalStatus, at time.Time) error {
	return s.write(func(t *memTables) error { return t.UpdateProposalStatus(ctx, id, from, to, at) })
}

func (s *MemoryStore) CreateAssignment(ctx context.Context, assignment *models.ProposalReviewer) error {
	return s.write(func(t *memTables) error { return t.CreateAssignment(ctx, assignment) })
}

func (s *MemoryStore) DeleteAssignment(ctx context.Context, proposalID, reviewerID string) error {
	return s.write(func(t *memTables) error { return t.DeleteAssignment(ctx, proposalID, reviewerID) })
}

func (s *MemoryStore) ListAssignments(ctx context.Context, filter AssignmentFilter) (out []models.ProposalReviewer, err error) {
	err = s.read(func(t *memTables) error { out, err = t.ListAssignments(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) CreateReview(ctx context.Context, review *models.Review) error {
	return s.write(func(t *memTables) error { return t.CreateReview(ctx, review) })
}

func (s *MemoryStore) ListReviews(ctx context.Context, filter ReviewFilter) (out []models.Review, err error) {
	err = s.read(func(t *memTables) error { out, err = t.ListReviews(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) CreateBudgetRequest(ctx context.Context, request *models.BudgetRequest) error {
	return s.write(func(t *memTables) error { return t.CreateBudgetRequest(ctx, request) })
}

func (s *MemoryStore) GetBudgetRequest(ctx context.Context, id string) (out *models.BudgetRequest, err error) {
	err = s.read(func(t *memTables) error { out, err = t.GetBudgetRequest(ctx, id); return err })
	return out, err
}

func (s *MemoryStore) ListBudgetRequests(ctx context.Context, filter BudgetRequestFilter) (out []models.BudgetRequest, err error) {
	err = s.read(func(t *memTables) error { out, err = t.ListBudgetRequests(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) DecideBudgetRequest(ctx context.Context, id string, decision BudgetDecision) error {
	return s.write(func(t *memTables) error { return t.DecideBudgetRequest(ctx, id, decision) })
}

// memTables is the unguarded table set. Inside a transaction it is the Store handed to the callback.
type memTables struct {
	profiles    map[string]models.UserProfile
	sessions    map[string]models.UserSession
	calls       map[string]models.CallForPapers
	proposals   map[string]models.Proposal
	assignments []models.ProposalReviewer
	reviews     []models.Review
	budgets     map[string]models.BudgetRequest
}

func newMemTables() *memTables {
	return &memTables{
		profiles:  make(map[string]models.UserProfile),
		sessions:  make(map[string]models.UserSession),
		calls:     make(map[string]models.CallForPapers),
		proposals: make(map[string]models.Proposal),
		budgets:   make(map[string]models.BudgetRequest),
	}
}

// clone copies every table. Rows are values, so only ApprovedBy/ReviewedAt/Department pointers
// are shared, and those are never mutated in place.
func (t *memTables) clone() *memTables {
	c := newMemTables()
	for k, v := range t.profiles {
		c.profiles[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	for k, v := range t.calls {
		c.calls[k] = v
	}
	for k, v := range t.proposals {
		c.proposals[k] = v
	}
	for k, v := range t.budgets {
		c.budgets[k] = v
	}
	c.assignments = append([]models.ProposalReviewer(nil), t.assignments...)
	c.reviews = append([]models.Review(nil), t.reviews...)
	return c
}

func (t *memTables) Transaction(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memTables) CreateProfile(_ context.Context, profile *models.UserProfile) error {
	if _, ok := t.profiles[profile.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range t.profiles {
		if existing.Email == profile.Email {
			return ErrDuplicate
		}
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	t.profiles[profile.ID] = *profile
	return nil
}

func (t *memTables) GetProfile(_ context.Context, id string) (*models.UserProfile, error) {
	profile, ok := t.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &profile, nil
}

func (t *memTables) GetProfileByEmail(_ context.Context, email string) (*models.UserProfile, error) {
	for _, profile := range t.profiles {
		if profile.Email == email {
			p := profile
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTables) ListProfiles(_ context.Context, filter ProfileFilter) ([]models.UserProfile, error) {
	ids := toSet(filter.IDs)
	out := make([]models.UserProfile, 0)
	for _, profile := range t.profiles {
		if filter.Role != nil && profile.Role != *filter.Role {
			continue
		}
		if ids != nil && !ids[profile.ID] {
			continue
		}
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (t *memTables) CreateSession(_ context.Context, session *models.UserSession) error {
	if _, ok := t.sessions[session.ID]; ok {
		return ErrDuplicate
	}
	t.sessions[session.ID] = *session
	return nil
}

func (t *memTables) GetSession(_ context.Context, id string) (*models.UserSession, error) {
	session, ok := t.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (t *memTables) DeleteSession(_ context.Context, id string) error {
	if _, ok := t.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(t.sessions, id)
	return nil
}

func (t *memTables) DeleteUserSessions(_ context.Context, userID string) (int64, error) {
	var n int64
	for id, session := range t.sessions {
		if session.UserID == userID {
			delete(t.sessions, id)
			n++
		}
	}
	return n, nil
}

func (t *memTables) CreateCall(_ context.Context, call *models.CallForPapers) error {
	if _, ok := t.calls[call.ID]; ok {
		return ErrDuplicate
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}
	t.calls[call.ID] = *call
	return nil
}

func (t *memTables) GetCall(_ context.Context, id string) (*models.CallForPapers, error) {
	call, ok := t.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &call, nil
}

func (t *memTables) ListCalls(_ context.Context, filter CallFilter) ([]models.CallForPapers, error) {
	out := make([]models.CallForPapers, 0, len(t.calls))
	for _, call := range t.calls {
		if filter.Status != nil && call.Status != *filter.Status {
			continue
		}
		out = append(out, call)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memTables) CreateProposal(_ context.Context, proposal *models.Proposal) error {
	if _, ok := t.proposals[proposal.ID]; ok {
		return ErrDuplicate
	}
	t.proposals[proposal.ID] = *proposal
	return nil
}

func (t *memTables) GetProposal(_ context.Context, id string) (*models.Proposal, error) {
	proposal, ok := t.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &proposal, nil
}

func (t *memTables) ListProposals(_ context.Context, filter ProposalFilter) ([]models.Proposal, error) {
	ids := toSet(filter.IDs)
	out := make([]models.Proposal, 0)
	for _, proposal := range t.proposals {
		if filter.ResearcherID != "" && proposal.ResearcherID != filter.ResearcherID {
			continue
		}
		if ids != nil && !ids[proposal.ID] {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, proposal.Status) {
			continue
		}
		out = append(out, proposal)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (t *memTables) UpdateProposalStatus(_ context.Context, id string, from []models.ProposalStatus, to models.ProposalStatus, at time.Time) error {
	proposal, ok := t.proposals[id]
	if !ok {
		return ErrNotFound
	}
	if !containsStatus(from, proposal.Status) {
		return ErrStaleState
	}
	proposal.Status = to
	proposal.UpdatedAt = at
	t.proposals[id] = proposal
	return nil
}

func (t *memTables) CreateAssignment(_ context.Context, assignment *models.ProposalReviewer) error {
	for _, existing := range t.assignments {
		if existing.ProposalID == assignment.ProposalID && existing.ReviewerID == assignment.ReviewerID {
			return ErrDuplicate
		}
	}
	t.assignments = append(t.assignments, *assignment)
	return nil
}

func (t *memTables) DeleteAssignment(_ context.Context, proposalID, reviewerID string) error {
	for i, existing := range t.assignments {
		if existing.ProposalID == proposalID && existing.ReviewerID == reviewerID {
			t.assignments = append(t.assignments[:i:i], t.assignments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTables) ListAssignments(_ context.Context, filter AssignmentFilter) ([]models.ProposalReviewer, error) {
	out := make([]models.ProposalReviewer, 0)
	for _, assignment := range t.assignments {
		if filter.ProposalID != "" && assignment.ProposalID != filter.ProposalID {
			continue
		}
		if filter.ReviewerID != "" && assignment.ReviewerID != filter.ReviewerID {
			continue
		}
		out = append(out, assignment)
	}
	return out, nil
}

func (t *memTables) CreateReview(_ context.Context, review *models.Review) error {
	for _, existing := range t.reviews {
		if existing.ProposalID == review.ProposalID && existing.ReviewerID == review.ReviewerID {
			return ErrDuplicate
		}
	}
	t.reviews = append(t.reviews, *review)
	return nil
}

func (t *memTables) ListReviews(_ context.Context, filter ReviewFilter) ([]models.Review, error) {
	out := make([]models.Review, 0)
	for _, review := range t.reviews {
		if filter.ProposalID != "" && review.ProposalID != filter.ProposalID {
			continue
		}
		if filter.ReviewerID != "" && review.ReviewerID != filter.ReviewerID {
			continue
		}
		out = append(out, review)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (t *memTables) CreateBudgetRequest(_ context.Context, request *models.BudgetRequest) error {
	if _, ok := t.budgets[request.ID]; ok {
		return ErrDuplicate
	}
	t.budgets[request.ID] = *request
	return nil
}

func (t *memTables) GetBudgetRequest(_ context.Context, id string) (*models.BudgetRequest, error) {
	request, ok := t.budgets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &request, nil
}

func (t *memTables) ListBudgetRequests(_ context.Context, filter BudgetRequestFilter) ([]models.BudgetRequest, error) {
	out := make([]models.BudgetRequest, 0)
	for _, request := range t.budgets {
		if filter.ProposalID != "" && request.ProposalID != filter.ProposalID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsBudgetStatus(filter.Statuses, request.Status) {
			continue
		}
		out = append(out, request)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (t *memTables) DecideBudgetRequest(_ context.Context, id string, decision BudgetDecision) error {
	request, ok := t.budgets[id]
	if !ok {
		return ErrNotFound
	}
	if request.Status != models.BudgetPending {
		return ErrStaleState
	}
	approver := decision.ApprovedBy
	reviewedAt := decision.ReviewedAt
	request.Status = decision.Status
	request.ApprovedBy = &approver
	request.ReviewedAt = &reviewedAt
	t.budgets[id] = request
	return nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func containsStatus(list []models.ProposalStatus, s models.ProposalStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsBudgetStatus(list []models.BudgetStatus, s models.BudgetStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}
