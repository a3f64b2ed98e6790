package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"research-grant-api/authz"
	"research-grant-api/models"
	"research-grant-api/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected store failure")

// testClock advances one second per reading so ordering by timestamp is deterministic.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	ctx        context.Context
	store      *store.MemoryStore
	authz      *authz.Authorizer
	logger     *logrus.Logger
	clock      *testClock
	auth       *AuthService
	workflow   *WorkflowService
	dashboards *DashboardService
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := quietLogger()
	az, err := authz.New(logger)
	require.NoError(t, err)

	st := store.NewMemoryStore()
	clock := newTestClock()

	auth := NewAuthService(st, "test-secret", time.Hour, logger)
	auth.now = clock.Now
	workflow := NewWorkflowService(st, az, logger)
	workflow.now = clock.Now

	return &fixture{
		ctx:        context.Background(),
		store:      st,
		authz:      az,
		logger:     logger,
		clock:      clock,
		auth:       auth,
		workflow:   workflow,
		dashboards: NewDashboardService(st, az, logger),
	}
}

// withStore returns a workflow service over st sharing the fixture's policy and clock.
func (f *fixture) withStore(st store.Store) *WorkflowService {
	w := NewWorkflowService(st, f.authz, f.logger)
	w.now = f.clock.Now
	return w
}

// register creates a profile with the given role and returns a session for it.
func (f *fixture) register(t *testing.T, role models.Role, name string) *Session {
	t.Helper()

	profile, err := f.auth.SignUp(f.ctx, SignUpForm{
		Email:    name + "@example.edu",
		Password: "correct-horse",
		FullName: name,
		Role:     role,
	})
	require.NoError(t, err)
	return newSession(uuid.NewString(), profile, f.clock.Now().Add(time.Hour))
}

func (f *fixture) openCall(t *testing.T, director *Session) *models.CallForPapers {
	t.Helper()

	call, err := f.workflow.CreateCall(f.ctx, director, CreateCallForm{
		Title:       "Climate Resilience 2025",
		Description: "Applied research on regional climate adaptation",
		Deadline:    time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return call
}

func (f *fixture) submitProposal(t *testing.T, researcher *Session, callID string, budget string) *models.Proposal {
	t.Helper()

	amount := decimal.RequireFromString(budget)
	proposal, err := f.workflow.SubmitProposal(f.ctx, researcher, callID, SubmitProposalForm{
		Title:        "Flood forecasting with sparse sensors",
		Abstract:     "We study low-cost sensing.",
		Methodology:  "Field deployment and Bayesian modelling.",
		BudgetAmount: &amount,
	})
	require.NoError(t, err)
	return proposal
}

func (f *fixture) assign(t *testing.T, assigner *Session, proposalID string, reviewer *Session) {
	t.Helper()

	_, err := f.workflow.AssignReviewer(f.ctx, assigner, proposalID, AssignReviewerForm{ReviewerID: reviewer.UserID})
	require.NoError(t, err)
}

func (f *fixture) review(t *testing.T, reviewer *Session, proposalID string, score int) *models.Review {
	t.Helper()

	review, err := f.workflow.SubmitReview(f.ctx, reviewer, proposalID, SubmitReviewForm{
		Score:          &score,
		Recommendation: models.RecommendApprove,
		Comments:       "Sound methodology.",
	})
	require.NoError(t, err)
	return review
}

func (f *fixture) decide(t *testing.T, director *Session, proposalID string, decision models.ProposalStatus) {
	t.Helper()

	_, err := f.workflow.DecideProposal(f.ctx, director, proposalID, DecisionForm{Decision: decision})
	require.NoError(t, err)
}

func (f *fixture) proposalStatus(t *testing.T, id string) models.ProposalStatus {
	t.Helper()

	p, err := f.store.GetProposal(f.ctx, id)
	require.NoError(t, err)
	return p.Status
}

// cast is the set of sessions most lifecycle tests need.
type cast struct {
	researcher    *Session
	reviewer      *Session
	coordinator   *Session
	director      *Session
	vicePresident *Session
}

func (f *fixture) cast(t *testing.T) cast {
	t.Helper()
	return cast{
		researcher:    f.register(t, models.RoleResearcher, "rita"),
		reviewer:      f.register(t, models.RoleReviewer, "rex"),
		coordinator:   f.register(t, models.RoleCoordinator, "cora"),
		director:      f.register(t, models.RoleDirector, "dana"),
		vicePresident: f.register(t, models.RoleVicePresident, "victor"),
	}
}

// approvedProposal drives a fresh proposal up to approved.
func (f *fixture) approvedProposal(t *testing.T, c cast, budget string) *models.Proposal {
	t.Helper()

	call := f.openCall(t, c.director)
	p := f.submitProposal(t, c.researcher, call.ID, budget)
	f.assign(t, c.director, p.ID, c.reviewer)
	f.review(t, c.reviewer, p.ID, 85)
	f.decide(t, c.director, p.ID, models.ProposalApproved)
	return p
}

// faultyStore fails one write inside transactions.
type faultyStore struct {
	store.Store
	failOn string
}

func (s *faultyStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(&faultyTx{Store: tx, failOn: s.failOn})
	})
}

type faultyTx struct {
	store.Store
	failOn string
}

func (tx *faultyTx) UpdateProposalStatus(ctx context.Context, id string, from []models.ProposalStatus, to models.ProposalStatus, at time.Time) error {
	if tx.failOn == "UpdateProposalStatus" {
		return errInjected
	}
	return tx.Store.UpdateProposalStatus(ctx, id, from, to, at)
}

func (tx *faultyTx) DecideBudgetRequest(ctx context.Context, id string, decision store.BudgetDecision) error {
	if tx.failOn == "DecideBudgetRequest" {
		return errInjected
	}
	return tx.Store.DecideBudgetRequest(ctx, id, decision)
}
