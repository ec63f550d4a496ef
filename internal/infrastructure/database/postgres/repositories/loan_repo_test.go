package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

type LoanRepoTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	db   *sql.DB
	repo *LoanRepo
	now  time.Time
}

func (s *LoanRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	log := logging.NewNopLogger()
	s.repo = NewLoanRepo(postgres.NewConnectionWithDB(s.db, log), log)
	s.now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *LoanRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *LoanRepoTestSuite) loanRow(l *loan.Loan, version int) *sqlmock.Rows {
	doc, err := json.Marshal(l)
	s.Require().NoError(err)
	return sqlmock.NewRows([]string{"version", "document"}).AddRow(version, doc)
}

func (s *LoanRepoTestSuite) TestCreate_Success() {
	l := testutil.ApprovedLoan("100000", s.now)

	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loans")).
		WithArgs(l.ID.String(), l.ApplicationNumber, "bank_approved", l.LearnerID, l.CourseID, l.ProviderID,
			l.BankID, l.Version, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Create(context.Background(), l))
}

func (s *LoanRepoTestSuite) TestCreate_DuplicateApplicationNumber() {
	for _, dup := range []error{&pgconn.PgError{Code: "23505"}, &pq.Error{Code: "23505"}} {
		l := testutil.ApprovedLoan("100000", s.now)
		s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loans")).WillReturnError(dup)

		err := s.repo.Create(context.Background(), l)
		s.Require().Error(err)
		s.True(errors.IsConflict(err))
	}
}

func (s *LoanRepoTestSuite) TestCreate_DatabaseError() {
	l := testutil.ApprovedLoan("100000", s.now)
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO loans")).WillReturnError(stderrors.New("connection reset"))

	err := s.repo.Create(context.Background(), l)
	s.True(errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func (s *LoanRepoTestSuite) TestGetByID_Found() {
	l := testutil.ApprovedLoan("250000", s.now)
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT version, document FROM loans WHERE id = $1")).
		WithArgs(l.ID.String()).
		WillReturnRows(s.loanRow(l, 4))

	got, err := s.repo.GetByID(context.Background(), l.ID)
	s.Require().NoError(err)
	s.Equal(l.ID, got.ID)
	s.Equal(4, got.Version)
	s.True(decimal.RequireFromString("250000").Equal(got.ApprovedAmount))
	s.Len(got.Milestones, len(l.Milestones))
}

func (s *LoanRepoTestSuite) TestGetByID_NotFound() {
	id := uuid.New()
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT version, document FROM loans WHERE id = $1")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"version", "document"}))

	_, err := s.repo.GetByID(context.Background(), id)
	s.True(errors.IsCode(err, errors.ErrCodeLoanNotFound))
}

func (s *LoanRepoTestSuite) TestGetByID_CorruptDocument() {
	id := uuid.New()
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT version, document FROM loans")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "document"}).AddRow(1, []byte("{not json")))

	_, err := s.repo.GetByID(context.Background(), id)
	s.True(errors.IsCode(err, errors.ErrCodeSerialization))
}

func (s *LoanRepoTestSuite) TestGetByApplicationNumber() {
	l := testutil.ApprovedLoan("100000", s.now)
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE application_number = $1")).
		WithArgs(l.ApplicationNumber).
		WillReturnRows(s.loanRow(l, 1))

	got, err := s.repo.GetByApplicationNumber(context.Background(), l.ApplicationNumber)
	s.Require().NoError(err)
	s.Equal(l.ApplicationNumber, got.ApplicationNumber)
}

func (s *LoanRepoTestSuite) TestUpdate_BumpsVersion() {
	l := testutil.ApprovedLoan("100000", s.now)
	l.Version = 3

	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).
		WithArgs("bank_approved", l.BankID, 4, sqlmock.AnyArg(), sqlmock.AnyArg(), l.ID.String(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.Require().NoError(s.repo.Update(context.Background(), l))
	s.Equal(4, l.Version)
}

func (s *LoanRepoTestSuite) TestUpdate_StaleVersion() {
	l := testutil.ApprovedLoan("100000", s.now)
	l.Version = 2

	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM loans WHERE id = $1")).
		WithArgs(l.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(5))

	err := s.repo.Update(context.Background(), l)
	s.True(errors.IsCode(err, errors.ErrCodeLoanVersionConflict))
	s.Equal(2, l.Version)
}

func (s *LoanRepoTestSuite) TestUpdate_Missing() {
	l := testutil.ApprovedLoan("100000", s.now)

	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM loans")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	err := s.repo.Update(context.Background(), l)
	s.True(errors.IsCode(err, errors.ErrCodeLoanNotFound))
}

func (s *LoanRepoTestSuite) TestList_FiltersAndPaging() {
	a := testutil.ApprovedLoan("100000", s.now)
	b := testutil.ApprovedLoan("120000", s.now.Add(time.Minute))

	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM loans WHERE status = ANY($1) AND learner_id = $2")).
		WithArgs(sqlmock.AnyArg(), a.LearnerID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	s.mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC, id ASC LIMIT $3 OFFSET $4")).
		WithArgs(sqlmock.AnyArg(), a.LearnerID, 2, 4).
		WillReturnRows(sqlmock.NewRows([]string{"version", "document"}).
			AddRow(1, mustJSON(s.T(), a)).
			AddRow(2, mustJSON(s.T(), b)))

	out, total, err := s.repo.List(context.Background(), loan.ListFilter{
		Statuses:  []loan.Status{loan.StatusBankApproved, loan.StatusActive},
		LearnerID: a.LearnerID,
		Limit:     2,
		Offset:    4,
	})
	s.Require().NoError(err)
	s.EqualValues(7, total)
	s.Require().Len(out, 2)
	s.Equal(b.ID, out[1].ID)
	s.Equal(2, out[1].Version)
}

func (s *LoanRepoTestSuite) TestList_NoFilter() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM loans")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT version, document FROM loans ORDER BY created_at ASC, id ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "document"}))

	out, total, err := s.repo.List(context.Background(), loan.ListFilter{})
	s.Require().NoError(err)
	s.Zero(total)
	s.NotNil(out)
	s.Empty(out)
}

func (s *LoanRepoTestSuite) TestNextApplicationSequence() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval('loan_application_seq')")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(42))

	seq, err := s.repo.NextApplicationSequence(context.Background())
	s.Require().NoError(err)
	s.EqualValues(42, seq)
}

func (s *LoanRepoTestSuite) TestDisbursement_RoundTrip() {
	d := &loan.Disbursement{
		ID:              uuid.New(),
		LoanID:          uuid.New(),
		MilestoneNumber: 1,
		Amount:          decimal.NewFromInt(30000),
		Status:          loan.DisbursementMilestoneVerified,
		CreatedAt:       s.now,
		UpdatedAt:       s.now,
	}

	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO disbursements")).
		WithArgs(d.ID.String(), d.LoanID.String(), 1, "milestone_verified", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Require().NoError(s.repo.CreateDisbursement(context.Background(), d))

	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM disbursements WHERE id = $1")).
		WithArgs(d.ID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(mustJSON(s.T(), d)))
	got, err := s.repo.GetDisbursement(context.Background(), d.ID)
	s.Require().NoError(err)
	s.Equal(d.MilestoneNumber, got.MilestoneNumber)
	s.True(d.Amount.Equal(got.Amount))
}

func (s *LoanRepoTestSuite) TestUpdateDisbursement_NotFound() {
	d := &loan.Disbursement{ID: uuid.New(), Status: loan.DisbursementCompleted}
	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE disbursements")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.UpdateDisbursement(context.Background(), d)
	s.True(errors.IsCode(err, errors.ErrCodeDisbursementNotFound))
}

func (s *LoanRepoTestSuite) TestListUnsettledDisbursements() {
	d := &loan.Disbursement{ID: uuid.New(), Status: loan.DisbursementBankInitiated}
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE status IN ('milestone_verified', 'bank_initiated')")).
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(mustJSON(s.T(), d)))

	out, err := s.repo.ListUnsettledDisbursements(context.Background())
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(loan.DisbursementBankInitiated, out[0].Status)
}

func (s *LoanRepoTestSuite) TestCreateRepayments_InsertsEachInstallment() {
	loanID := uuid.New()
	rs := []*loan.Repayment{
		{ID: uuid.New(), LoanID: loanID, EMINumber: 1, Status: loan.RepaymentScheduled, DueDate: s.now, GraceEndDate: s.now.AddDate(0, 0, 7)},
		{ID: uuid.New(), LoanID: loanID, EMINumber: 2, Status: loan.RepaymentScheduled, DueDate: s.now.AddDate(0, 1, 0), GraceEndDate: s.now.AddDate(0, 1, 7)},
	}
	for _, rp := range rs {
		s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO repayments")).
			WithArgs(rp.ID.String(), loanID.String(), rp.EMINumber, "scheduled",
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	s.NoError(s.repo.CreateRepayments(context.Background(), rs))
}

func (s *LoanRepoTestSuite) TestGetRepayment_NotFound() {
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT document FROM repayments WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"document"}))

	_, err := s.repo.GetRepayment(context.Background(), uuid.New())
	s.True(errors.IsCode(err, errors.ErrCodeRepaymentNotFound))
}

func (s *LoanRepoTestSuite) TestListLoansWithOverdue() {
	a, b := uuid.New(), uuid.New()
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT loan_id FROM repayments")).
		WithArgs(s.now).
		WillReturnRows(sqlmock.NewRows([]string{"loan_id"}).AddRow(a.String()).AddRow(b.String()))

	ids, err := s.repo.ListLoansWithOverdue(context.Background(), s.now)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{a, b}, ids)
}

func (s *LoanRepoTestSuite) TestWithTx_Commit() {
	l := testutil.ApprovedLoan("100000", s.now)

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT version, document FROM loans WHERE id = $1 FOR UPDATE")).
		WithArgs(l.ID.String()).
		WillReturnRows(s.loanRow(l, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("UPDATE loans")).WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := s.repo.WithTx(context.Background(), func(tx loan.Repository) error {
		got, err := tx.GetByID(context.Background(), l.ID)
		if err != nil {
			return err
		}
		got.BankRemarks = "ok"
		return tx.Update(context.Background(), got)
	})
	s.NoError(err)
}

func (s *LoanRepoTestSuite) TestWithTx_RollbackOnError() {
	boom := errors.Conflict("boom")

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval")).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(1))
	s.mock.ExpectRollback()

	err := s.repo.WithTx(context.Background(), func(tx loan.Repository) error {
		if _, err := tx.NextApplicationSequence(context.Background()); err != nil {
			return err
		}
		return boom
	})
	s.True(errors.IsConflict(err))
}

func (s *LoanRepoTestSuite) TestWithTx_BeginFails() {
	s.mock.ExpectBegin().WillReturnError(stderrors.New("too many connections"))

	called := false
	err := s.repo.WithTx(context.Background(), func(loan.Repository) error {
		called = true
		return nil
	})
	s.True(errors.IsCode(err, errors.ErrCodeDatabaseError))
	s.False(called)
}

func (s *LoanRepoTestSuite) TestWithTx_NestedJoinsOuter() {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()

	err := s.repo.WithTx(context.Background(), func(tx loan.Repository) error {
		return tx.WithTx(context.Background(), func(inner loan.Repository) error {
			s.Same(tx, inner)
			return nil
		})
	})
	s.NoError(err)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestLoanRepoTestSuite(t *testing.T) {
	suite.Run(t, new(LoanRepoTestSuite))
}

//Personal.AI order the ending
