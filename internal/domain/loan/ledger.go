package loan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// Payment is an incoming payment against one installment.
type Payment struct {
	RepaymentID uuid.UUID
	Amount      decimal.Decimal
	Method      PaymentMethod
	Reference   string
}

// PaymentResult is the outcome of RecordPayment.
type PaymentResult struct {
	Repayment *Repayment
	Loan      *Loan
	// PreviousStatus is the loan status before the payment.
	PreviousStatus Status
	// FirstPayment is true when this call opened the installment.
	FirstPayment bool
	Cured        bool
	Closed       bool
}

// DelinquencyResult is the outcome of assessing one loan.
type DelinquencyResult struct {
	Loan          *Loan
	NewlyOverdue  int
	DaysPastDue   int
	PreviousState Status
}

// Changed reports whether the loan's status moved.
func (r *DelinquencyResult) Changed() bool {
	return r.Loan != nil && r.Loan.Status != r.PreviousState
}

// Ledger applies payments to the schedule and keeps the delinquency counters.
type Ledger struct {
	repo   Repository
	locker Locker
	policy *policy.Policy
	log    logging.Logger
	now    func() time.Time
}

// NewLedger wires a Ledger.
func NewLedger(repo Repository, locker Locker, p *policy.Policy, log logging.Logger, now func() time.Time) *Ledger {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{repo: repo, locker: locker, policy: p, log: log.Named("loan.ledger"), now: now}
}

// RecordPayment adds p to the installment's paid amount and books it on the
// loan. Every call counts as one EMI paid and retires the installment's
// principal and interest components, whatever the amount.
func (g *Ledger) RecordPayment(ctx context.Context, p Payment) (*PaymentResult, error) {
	if !p.Amount.IsPositive() {
		return nil, errors.New(errors.ErrCodeRepaymentAmount, "payment amount must be positive")
	}
	if !p.Amount.Round(2).Equal(p.Amount) {
		return nil, errors.New(errors.ErrCodeRepaymentAmount, "payment amount must have at most two decimal places")
	}
	if !p.Method.IsValid() {
		return nil, errors.InvalidParam("unknown payment method").WithDetail("method=" + string(p.Method))
	}
	r, err := g.repo.GetRepayment(ctx, p.RepaymentID)
	if err != nil {
		return nil, err
	}

	res := &PaymentResult{}
	_, err = mutate(ctx, g.repo, g.locker, r.LoanID, func(tx Repository, l *Loan) error {
		r, err := tx.GetRepayment(ctx, p.RepaymentID)
		if err != nil {
			return err
		}
		if !l.Status.InRepaymentPhase() {
			return errors.Newf(errors.ErrCodeRepaymentNotActive, "loan is %s, not in repayment", l.Status).
				WithDetail("loan_id=" + l.ID.String())
		}
		if !r.Status.IsOpen() {
			return errors.Newf(errors.ErrCodeRepaymentSettled, "installment %d is already %s", r.EMINumber, r.Status).
				WithDetail("repayment_id=" + r.ID.String())
		}

		now := g.now()
		res.PreviousStatus = l.Status
		res.FirstPayment = r.AmountPaid.IsZero()
		r.AmountPaid = r.AmountPaid.Add(p.Amount)
		r.PaymentMethod = p.Method
		r.PaymentReference = p.Reference
		r.PaymentDate = &now
		r.UpdatedAt = now
		if r.AmountPaid.GreaterThanOrEqual(r.TotalDue) {
			r.Status = RepaymentCompleted
		} else {
			r.Status = RepaymentPartial
		}
		if err := tx.UpdateRepayment(ctx, r); err != nil {
			return err
		}

		l.TotalRepaid = l.TotalRepaid.Add(p.Amount)
		l.EMIsPaid++
		l.OutstandingPrincipal = decimal.Max(l.OutstandingPrincipal.Sub(r.PrincipalComponent), decimal.Zero)
		l.OutstandingInterest = decimal.Max(l.OutstandingInterest.Sub(r.InterestComponent), decimal.Zero)

		all, err := tx.ListRepayments(ctx, l.ID)
		if err != nil {
			return err
		}
		l.NextEMIDate = nextDue(all, r)

		if r.Status == RepaymentCompleted && l.Status == StatusDelinquent && !hasOverdue(all, r.ID) {
			if err := l.TransitionTo(StatusInRepayment, now); err != nil {
				return err
			}
			l.ConsecutiveMissedEMIs = 0
			l.DaysPastDue = 0
			res.Cured = true
		}
		if l.EMIsPaid >= l.TotalEMIs {
			if err := l.TransitionTo(StatusClosed, now); err != nil {
				return err
			}
			l.ClosedAt = &now
			l.NextEMIDate = nil
			res.Closed = true
		}

		res.Repayment = r
		res.Loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.log.Info("payment recorded",
		logging.RepaymentID(p.RepaymentID.String()),
		logging.LoanID(res.Loan.ID.String()),
		logging.Money("amount", p.Amount),
		logging.String("status", string(res.Repayment.Status)),
		logging.Bool("closed", res.Closed))
	return res, nil
}

// AssessDelinquency marks installments whose grace period ended before asOf
// as overdue, charges the late fee once per installment and moves the loan
// through delinquent and npa by days past due. Loans outside the repayment
// phase are returned unchanged.
func (g *Ledger) AssessDelinquency(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*DelinquencyResult, error) {
	res := &DelinquencyResult{}
	_, err := mutate(ctx, g.repo, g.locker, loanID, func(tx Repository, l *Loan) error {
		res.Loan = l
		res.PreviousState = l.Status
		if !l.Status.InRepaymentPhase() {
			return nil
		}
		all, err := tx.ListRepayments(ctx, l.ID)
		if err != nil {
			return err
		}

		dpd := 0
		for _, r := range all {
			if !r.Status.IsOpen() || !asOf.After(r.GraceEndDate) {
				continue
			}
			if r.Status != RepaymentOverdue {
				r.Status = RepaymentOverdue
				r.LateFee = g.policy.LateFee
				r.TotalDue = r.TotalDue.Add(g.policy.LateFee)
				res.NewlyOverdue++
			}
			r.OverdueDays = daysBetween(r.DueDate, asOf)
			r.UpdatedAt = asOf
			if err := tx.UpdateRepayment(ctx, r); err != nil {
				return err
			}
			dpd = max(dpd, r.OverdueDays)
		}

		l.DaysPastDue = dpd
		l.TotalMissedEMIs += res.NewlyOverdue
		l.ConsecutiveMissedEMIs += res.NewlyOverdue
		res.DaysPastDue = dpd

		if dpd > 0 && l.Status == StatusInRepayment {
			if err := l.TransitionTo(StatusDelinquent, asOf); err != nil {
				return err
			}
		}
		if dpd >= g.policy.NPAThresholdDays && l.Status == StatusDelinquent {
			if err := l.TransitionTo(StatusNPA, asOf); err != nil {
				return err
			}
		}
		l.UpdatedAt = asOf
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Changed() {
		g.log.Warn("loan delinquency changed",
			logging.LoanID(loanID.String()),
			logging.String("from", string(res.PreviousState)),
			logging.String("to", string(res.Loan.Status)),
			logging.Int("days_past_due", res.DaysPastDue))
	}
	return res, nil
}

// Schedule returns the installments of a loan ordered by EMI number.
func (g *Ledger) Schedule(ctx context.Context, loanID uuid.UUID) ([]*Repayment, error) {
	if _, err := g.repo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return g.repo.ListRepayments(ctx, loanID)
}

func hasOverdue(all []*Repayment, except uuid.UUID) bool {
	for _, r := range all {
		if r.ID != except && r.Status == RepaymentOverdue {
			return true
		}
	}
	return false
}

// nextDue is the due date of the earliest open installment, using the
// just-updated record in place of its stored copy.
func nextDue(all []*Repayment, updated *Repayment) *time.Time {
	var next *time.Time
	for _, r := range all {
		if r.ID == updated.ID {
			r = updated
		}
		if !r.Status.IsOpen() {
			continue
		}
		if next == nil || r.DueDate.Before(*next) {
			d := r.DueDate
			next = &d
		}
	}
	return next
}

func daysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

//Personal.AI order the ending
