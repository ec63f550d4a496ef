package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/amortization"
)

// PaymentMethod is how an installment was paid.
type PaymentMethod string

const (
	PaymentUPI          PaymentMethod = "upi"
	PaymentNetBanking   PaymentMethod = "net_banking"
	PaymentAutoDebit    PaymentMethod = "auto_debit"
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentUPI, PaymentNetBanking, PaymentAutoDebit, PaymentCash, PaymentBankTransfer:
		return true
	}
	return false
}

// Repayment is one scheduled EMI installment.
type Repayment struct {
	ID                 uuid.UUID       `json:"id"`
	LoanID             uuid.UUID       `json:"loan_id"`
	EMINumber          int             `json:"emi_number"`
	IsStepUp           bool            `json:"is_step_up"`
	PrincipalComponent decimal.Decimal `json:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component"`
	EMIAmount          decimal.Decimal `json:"emi_amount"`
	LateFee            decimal.Decimal `json:"late_fee"`
	TotalDue           decimal.Decimal `json:"total_due"`
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	DueDate            time.Time       `json:"due_date"`
	GraceEndDate       time.Time       `json:"grace_end_date"`
	Status             RepaymentStatus `json:"status"`
	PaymentMethod      PaymentMethod   `json:"payment_method,omitempty"`
	PaymentDate        *time.Time      `json:"payment_date,omitempty"`
	PaymentReference   string          `json:"payment_reference,omitempty"`
	OverdueDays        int             `json:"overdue_days"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Clone returns a copy safe to mutate.
func (r *Repayment) Clone() *Repayment {
	c := *r
	return &c
}

// Remaining is the amount still owed on the installment, never negative.
func (r *Repayment) Remaining() decimal.Decimal {
	return decimal.Max(r.TotalDue.Sub(r.AmountPaid), decimal.Zero)
}

// buildSchedule turns an amortization plan into installments due one
// calendar month apart starting at first.
func buildSchedule(loanID uuid.UUID, plan *amortization.Plan, first time.Time, graceDays int, now time.Time) []*Repayment {
	out := make([]*Repayment, 0, len(plan.Schedule))
	for i, in := range plan.Schedule {
		due := first.AddDate(0, i, 0)
		out = append(out, &Repayment{
			ID:                 uuid.New(),
			LoanID:             loanID,
			EMINumber:          in.Number,
			IsStepUp:           in.IsStepUp,
			PrincipalComponent: in.Principal,
			InterestComponent:  in.Interest,
			EMIAmount:          in.EMI,
			LateFee:            decimal.Zero,
			TotalDue:           in.EMI,
			AmountPaid:         decimal.Zero,
			DueDate:            due,
			GraceEndDate:       due.AddDate(0, 0, graceDays),
			Status:             RepaymentScheduled,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}
	return out
}

//Personal.AI order the ending
