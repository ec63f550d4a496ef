package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// LoanRepo is the PostgreSQL loan.Repository.
type LoanRepo struct {
	baseRepo
}

var _ loan.Repository = (*LoanRepo)(nil)

func NewLoanRepo(conn *postgres.Connection, log logging.Logger) *LoanRepo {
	return &LoanRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

// forUpdate locks selected loan rows for the rest of the enclosing
// transaction.
func (r *LoanRepo) forUpdate() string {
	if r.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

// --- Loan ---

func (r *LoanRepo) Create(ctx context.Context, l *loan.Loan) error {
	doc, err := encode(l)
	if err != nil {
		return err
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO loans (
			id, application_number, status, learner_id, course_id, provider_id,
			bank_id, version, document, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.ApplicationNumber, string(l.Status), l.LearnerID, l.CourseID, l.ProviderID,
		l.BankID, l.Version, doc, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("loan already exists").WithDetail("application_number=" + l.ApplicationNumber).WithCause(err)
		}
		return dbErr(err, "failed to create loan")
	}
	return nil
}

func (r *LoanRepo) GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	row := r.executor().QueryRowContext(ctx,
		`SELECT version, document FROM loans WHERE id = $1`+r.forUpdate(), id)
	l, err := scanLoan(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeLoanNotFound, "loan not found").WithDetail("id=" + id.String())
	}
	return l, err
}

func (r *LoanRepo) GetByApplicationNumber(ctx context.Context, number string) (*loan.Loan, error) {
	row := r.executor().QueryRowContext(ctx,
		`SELECT version, document FROM loans WHERE application_number = $1`, number)
	l, err := scanLoan(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeLoanNotFound, "loan not found").WithDetail("application_number=" + number)
	}
	return l, err
}

// Update writes l when the stored version still equals l.Version and bumps
// the version on success.
func (r *LoanRepo) Update(ctx context.Context, l *loan.Loan) error {
	next := l.Clone()
	next.Version = l.Version + 1
	doc, err := encode(next)
	if err != nil {
		return err
	}
	res, err := r.executor().ExecContext(ctx, `
		UPDATE loans
		SET status = $1, bank_id = $2, version = $3, document = $4, updated_at = $5
		WHERE id = $6 AND version = $7`,
		string(l.Status), l.BankID, next.Version, doc, l.UpdatedAt, l.ID, l.Version,
	)
	if err != nil {
		return dbErr(err, "failed to update loan")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(err, "failed to read affected rows")
	}
	if n == 0 {
		var current int
		err := r.executor().QueryRowContext(ctx, `SELECT version FROM loans WHERE id = $1`, l.ID).Scan(&current)
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.New(errors.ErrCodeLoanNotFound, "loan not found").WithDetail("id=" + l.ID.String())
		}
		if err != nil {
			return dbErr(err, "failed to read loan version")
		}
		return errors.Newf(errors.ErrCodeLoanVersionConflict,
			"loan version %d is stale, current is %d", l.Version, current).WithDetail("id=" + l.ID.String())
	}
	l.Version = next.Version
	return nil
}

func (r *LoanRepo) List(ctx context.Context, f loan.ListFilter) ([]*loan.Loan, int64, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(pq.Array(statuses))+")")
	}
	if f.LearnerID != "" {
		conds = append(conds, "learner_id = "+arg(f.LearnerID))
	}
	if f.ProviderID != "" {
		conds = append(conds, "provider_id = "+arg(f.ProviderID))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.executor().QueryRowContext(ctx, `SELECT COUNT(*) FROM loans`+where, args...).Scan(&total); err != nil {
		return nil, 0, dbErr(err, "failed to count loans")
	}

	query := `SELECT version, document FROM loans` + where + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}
	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, dbErr(err, "failed to list loans")
	}
	defer rows.Close()

	out := make([]*loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, dbErr(err, "failed to iterate loans")
	}
	return out, total, nil
}

func (r *LoanRepo) NextApplicationSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.executor().QueryRowContext(ctx, `SELECT nextval('loan_application_seq')`).Scan(&seq); err != nil {
		return 0, dbErr(err, "failed to allocate application sequence")
	}
	return seq, nil
}

func scanLoan(s scanner) (*loan.Loan, error) {
	var (
		version int
		doc     []byte
	)
	if err := s.Scan(&version, &doc); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dbErr(err, "failed to scan loan")
	}
	var l loan.Loan
	if err := decode(doc, &l); err != nil {
		return nil, err
	}
	l.Version = version
	return &l, nil
}

// --- Disbursement ---

func (r *LoanRepo) CreateDisbursement(ctx context.Context, d *loan.Disbursement) error {
	doc, err := encode(d)
	if err != nil {
		return err
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO disbursements (id, loan_id, milestone_number, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.LoanID, d.MilestoneNumber, string(d.Status), doc, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("disbursement already exists").
				WithDetail(fmt.Sprintf("loan_id=%s milestone=%d", d.LoanID, d.MilestoneNumber)).WithCause(err)
		}
		return dbErr(err, "failed to create disbursement")
	}
	return nil
}

func (r *LoanRepo) GetDisbursement(ctx context.Context, id uuid.UUID) (*loan.Disbursement, error) {
	row := r.executor().QueryRowContext(ctx, `SELECT document FROM disbursements WHERE id = $1`, id)
	d, err := scanDisbursement(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeDisbursementNotFound, "disbursement not found").WithDetail("id=" + id.String())
	}
	return d, err
}

func (r *LoanRepo) UpdateDisbursement(ctx context.Context, d *loan.Disbursement) error {
	doc, err := encode(d)
	if err != nil {
		return err
	}
	res, err := r.executor().ExecContext(ctx, `
		UPDATE disbursements SET status = $1, document = $2, updated_at = $3 WHERE id = $4`,
		string(d.Status), doc, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return dbErr(err, "failed to update disbursement")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeDisbursementNotFound, "disbursement not found").WithDetail("id=" + d.ID.String())
	}
	return nil
}

func (r *LoanRepo) ListDisbursements(ctx context.Context, loanID uuid.UUID) ([]*loan.Disbursement, error) {
	return r.queryDisbursements(ctx, `
		SELECT document FROM disbursements WHERE loan_id = $1
		ORDER BY milestone_number ASC`, loanID)
}

func (r *LoanRepo) ListUnsettledDisbursements(ctx context.Context) ([]*loan.Disbursement, error) {
	return r.queryDisbursements(ctx, `
		SELECT document FROM disbursements
		WHERE status IN ('milestone_verified', 'bank_initiated')
		ORDER BY created_at ASC`)
}

func (r *LoanRepo) queryDisbursements(ctx context.Context, query string, args ...interface{}) ([]*loan.Disbursement, error) {
	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr(err, "failed to query disbursements")
	}
	defer rows.Close()

	var out []*loan.Disbursement
	for rows.Next() {
		d, err := scanDisbursement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "failed to iterate disbursements")
	}
	return out, nil
}

func scanDisbursement(s scanner) (*loan.Disbursement, error) {
	var doc []byte
	if err := s.Scan(&doc); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dbErr(err, "failed to scan disbursement")
	}
	var d loan.Disbursement
	if err := decode(doc, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Repayment ---

func (r *LoanRepo) CreateRepayments(ctx context.Context, rs []*loan.Repayment) error {
	for _, rp := range rs {
		doc, err := encode(rp)
		if err != nil {
			return err
		}
		_, err = r.executor().ExecContext(ctx, `
			INSERT INTO repayments (
				id, loan_id, emi_number, status, due_date, grace_end_date, document, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rp.ID, rp.LoanID, rp.EMINumber, string(rp.Status), rp.DueDate, rp.GraceEndDate, doc, rp.CreatedAt, rp.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.Conflict("repayment schedule already exists").
					WithDetail(fmt.Sprintf("loan_id=%s emi=%d", rp.LoanID, rp.EMINumber)).WithCause(err)
			}
			return dbErr(err, "failed to create repayment")
		}
	}
	return nil
}

func (r *LoanRepo) GetRepayment(ctx context.Context, id uuid.UUID) (*loan.Repayment, error) {
	row := r.executor().QueryRowContext(ctx, `SELECT document FROM repayments WHERE id = $1`, id)
	rp, err := scanRepayment(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeRepaymentNotFound, "repayment not found").WithDetail("id=" + id.String())
	}
	return rp, err
}

func (r *LoanRepo) UpdateRepayment(ctx context.Context, rp *loan.Repayment) error {
	doc, err := encode(rp)
	if err != nil {
		return err
	}
	res, err := r.executor().ExecContext(ctx, `
		UPDATE repayments SET status = $1, document = $2, updated_at = $3 WHERE id = $4`,
		string(rp.Status), doc, rp.UpdatedAt, rp.ID,
	)
	if err != nil {
		return dbErr(err, "failed to update repayment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeRepaymentNotFound, "repayment not found").WithDetail("id=" + rp.ID.String())
	}
	return nil
}

func (r *LoanRepo) ListRepayments(ctx context.Context, loanID uuid.UUID) ([]*loan.Repayment, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT document FROM repayments WHERE loan_id = $1 ORDER BY emi_number ASC`, loanID)
	if err != nil {
		return nil, dbErr(err, "failed to query repayments")
	}
	defer rows.Close()

	var out []*loan.Repayment
	for rows.Next() {
		rp, err := scanRepayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "failed to iterate repayments")
	}
	return out, nil
}

func (r *LoanRepo) ListLoansWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT DISTINCT loan_id FROM repayments
		WHERE status IN ('scheduled', 'partial', 'overdue') AND grace_end_date < $1
		ORDER BY loan_id`, asOf)
	if err != nil {
		return nil, dbErr(err, "failed to query overdue loans")
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr(err, "failed to scan loan id")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr(err, "failed to iterate overdue loans")
	}
	return out, nil
}

func scanRepayment(s scanner) (*loan.Repayment, error) {
	var doc []byte
	if err := s.Scan(&doc); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, dbErr(err, "failed to scan repayment")
	}
	var rp loan.Repayment
	if err := decode(doc, &rp); err != nil {
		return nil, err
	}
	return &rp, nil
}

// --- Transactions ---

// WithTx runs fn inside one database transaction. Calls on a repository that
// is already transactional join the open transaction.
func (r *LoanRepo) WithTx(ctx context.Context, fn func(tx loan.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return dbErr(err, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&LoanRepo{baseRepo: baseRepo{conn: r.conn, tx: tx, log: r.log}}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Warn("Transaction rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return dbErr(err, "failed to commit transaction")
	}
	return nil
}

//Personal.AI order the ending
