package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"research-grant-api/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewGormStore(gdb), mock
}

func TestGormStoreUpdateProposalStatusDistinguishesStaleFromMissing(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	from := []models.ProposalStatus{models.ProposalUnderReview}

	mock.ExpectExec("UPDATE `proposals` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `proposals` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := s.UpdateProposalStatus(ctx, "p1", from, models.ProposalApproved, at)
	require.ErrorIs(t, err, ErrStaleState)

	mock.ExpectExec("UPDATE `proposals` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `proposals` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err = s.UpdateProposalStatus(ctx, "p2", from, models.ProposalApproved, at)
	require.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec("UPDATE `proposals` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateProposalStatus(ctx, "p3", from, models.ProposalApproved, at))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreTransactionRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `budget_requests`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `proposals` SET").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateBudgetRequest(ctx, &models.BudgetRequest{
			ID:              "b1",
			ProposalID:      "p1",
			RequestedAmount: decimal.NewFromInt(5000),
			Status:          models.BudgetPending,
			RequestedBy:     "d1",
			RequestedAt:     at,
		}); err != nil {
			return err
		}
		return tx.UpdateProposalStatus(ctx, "p1", []models.ProposalStatus{models.ProposalApproved}, models.ProposalBudgetRequested, at)
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreTransactionCommits(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `proposal_reviewers`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `proposals` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Transaction(ctx, func(tx Store) error {
		if err := tx.CreateAssignment(ctx, &models.ProposalReviewer{ID: "a1", ProposalID: "p1", ReviewerID: "r1", AssignedBy: "d1"}); err != nil {
			return err
		}
		return tx.UpdateProposalStatus(ctx, "p1", []models.ProposalStatus{models.ProposalSubmitted}, models.ProposalUnderReview, time.Now())
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreGetProfileNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `user_profiles` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "role", "email"}))

	_, err := s.GetProfile(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreListProposalsFiltersAndOrders(t *testing.T) {
	s, mock := newMockStore(t)
	submitted := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "call_id", "researcher_id", "title", "abstract", "methodology", "budget_amount", "status", "submitted_at", "updated_at"}).
		AddRow("p1", "c1", "r1", "Sensors", "a", "m", "1500.25", "submitted", submitted, submitted)
	mock.ExpectQuery("SELECT \\* FROM `proposals` WHERE researcher_id = \\? ORDER BY submitted_at DESC").
		WithArgs("r1").
		WillReturnRows(rows)

	proposals, err := s.ListProposals(context.Background(), ProposalFilter{ResearcherID: "r1"})
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	require.Equal(t, models.ProposalSubmitted, proposals[0].Status)
	require.Equal(t, "1500.25", proposals[0].BudgetAmount.StringFixed(2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreDeleteAssignmentMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM `proposal_reviewers` WHERE proposal_id = \\? AND reviewer_id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteAssignment(context.Background(), "p1", "r1")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateMapsGormErrors(t *testing.T) {
	require.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	require.ErrorIs(t, translate(gorm.ErrDuplicatedKey), ErrDuplicate)
	require.Nil(t, translate(nil))
}

func TestGormStorePing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := NewGormStore(gdb)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("server has gone away"))
	require.Error(t, s.Ping(context.Background()))

	require.NoError(t, mock.ExpectationsWereMet())
}
