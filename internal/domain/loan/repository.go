package loan

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows loan listings. Zero values mean "any".
type ListFilter struct {
	Statuses   []Status
	LearnerID  string
	ProviderID string
	Limit      int
	Offset     int
}

// Repository defines the persistence contract for the loan aggregate and the
// records it owns.
type Repository interface {
	// Loan
	Create(ctx context.Context, l *Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	GetByApplicationNumber(ctx context.Context, number string) (*Loan, error)
	// Update persists l if the stored version equals l.Version and then
	// increments l.Version. A stale version yields ErrCodeLoanVersionConflict.
	Update(ctx context.Context, l *Loan) error
	List(ctx context.Context, filter ListFilter) ([]*Loan, int64, error)
	NextApplicationSequence(ctx context.Context) (int64, error)

	// Disbursement
	CreateDisbursement(ctx context.Context, d *Disbursement) error
	GetDisbursement(ctx context.Context, id uuid.UUID) (*Disbursement, error)
	UpdateDisbursement(ctx context.Context, d *Disbursement) error
	ListDisbursements(ctx context.Context, loanID uuid.UUID) ([]*Disbursement, error)
	// ListUnsettledDisbursements returns records in milestone_verified or
	// bank_initiated, oldest first.
	ListUnsettledDisbursements(ctx context.Context) ([]*Disbursement, error)

	// Repayment
	CreateRepayments(ctx context.Context, rs []*Repayment) error
	GetRepayment(ctx context.Context, id uuid.UUID) (*Repayment, error)
	UpdateRepayment(ctx context.Context, r *Repayment) error
	ListRepayments(ctx context.Context, loanID uuid.UUID) ([]*Repayment, error)
	// ListLoansWithOverdue returns ids of loans holding an open installment
	// whose grace period ended before asOf.
	ListLoansWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)

	// WithTx runs fn against a transactional view of the repository. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}

// Locker serializes work on one key across goroutines or processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LockKey is the lock key guarding a loan aggregate.
func LockKey(id uuid.UUID) string { return "loan:" + id.String() }

func disbursementLockKey(id uuid.UUID) string { return "disbursement:" + id.String() }

//Personal.AI order the ending
