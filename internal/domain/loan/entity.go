// Package loan implements the Loan aggregate root with its milestone ledger,
// the Disbursement and Repayment records it owns, the disbursement state
// machine and the repayment ledger. Persistence is reached only through
// Repository; every mutation of one loan is serialized through a Locker and
// committed with an optimistic version check.
package loan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// MilestoneProgress value object
// ─────────────────────────────────────────────────────────────────────────────

// MilestoneProgress tracks one disbursement checkpoint. Entries are created
// with the loan, addressed by index and never removed.
type MilestoneProgress struct {
	Index           int             `json:"index"`
	Name            string          `json:"name"`
	TargetPct       float64         `json:"target_pct"`
	ActualPct       float64         `json:"actual_pct"`
	DisbursementPct float64         `json:"disbursement_pct"`
	Amount          decimal.Decimal `json:"amount"`
	Status          MilestoneStatus `json:"status"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	DisbursedAt     *time.Time      `json:"disbursed_at,omitempty"`
	DisbursementID  *uuid.UUID      `json:"disbursement_id,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Loan aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Loan is the aggregate root of the lending context. Money fields are decimal
// and always carry at most two fractional digits.
type Loan struct {
	ID                uuid.UUID `json:"id"`
	ApplicationNumber string    `json:"application_number"`
	Status            Status    `json:"status"`
	Purpose           string    `json:"purpose"`

	LearnerID  string `json:"learner_id"`
	CourseID   string `json:"course_id"`
	ProviderID string `json:"provider_id"`
	BankID     string `json:"bank_id"`

	RequestedAmount      decimal.Decimal `json:"requested_amount"`
	ApprovedAmount       decimal.Decimal `json:"approved_amount"`
	DisbursedAmount      decimal.Decimal `json:"disbursed_amount"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
	OutstandingInterest  decimal.Decimal `json:"outstanding_interest"`
	TotalRepaid          decimal.Decimal `json:"total_repaid"`

	InterestRate     float64             `json:"interest_rate"`
	MCLRRate         float64             `json:"mclr_rate"`
	SpreadRate       float64             `json:"spread_rate"`
	RiskCategory     policy.RiskCategory `json:"risk_category"`
	TenureMonths     int                 `json:"tenure_months"`
	MoratoriumMonths int                 `json:"moratorium_months"`
	EMIAmount        decimal.Decimal     `json:"emi_amount"`
	StepUpEMIAmount  decimal.Decimal     `json:"step_up_emi_amount"`

	// Milestones has a fixed length set at creation.
	Milestones []MilestoneProgress `json:"milestones"`

	CourseCompletionPct float64    `json:"course_completion_pct"`
	AttendancePct       float64    `json:"attendance_pct"`
	AssessmentScore     float64    `json:"assessment_score"`
	IsCertified         bool       `json:"is_certified"`
	CertificationDate   *time.Time `json:"certification_date,omitempty"`
	IsPlaced            bool       `json:"is_placed"`

	CourseStartDate *time.Time `json:"course_start_date,omitempty"`
	FirstEMIDate    *time.Time `json:"first_emi_date,omitempty"`
	NextEMIDate     *time.Time `json:"next_emi_date,omitempty"`

	TotalEMIs             int `json:"total_emis"`
	EMIsPaid              int `json:"emis_paid"`
	DaysPastDue           int `json:"days_past_due"`
	ConsecutiveMissedEMIs int `json:"consecutive_missed_emis"`
	TotalMissedEMIs       int `json:"total_missed_emis"`

	BorrowerScore             float64         `json:"borrower_score"`
	TPScore                   float64         `json:"tp_score"`
	GuaranteeAmount           decimal.Decimal `json:"guarantee_amount"`
	GuaranteePercentage       float64         `json:"guarantee_percentage"`
	StandingDepositPercentage float64         `json:"standing_deposit_percentage"`

	BankRemarks        string     `json:"bank_remarks,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terms are the priced figures a new loan is created with.
type Terms struct {
	ApplicationNumber string
	Purpose           string
	LearnerID         string
	CourseID          string
	ProviderID        string
	BankID            string

	RequestedAmount  decimal.Decimal
	TenureMonths     int
	MoratoriumMonths int

	InterestRate    float64
	MCLRRate        float64
	SpreadRate      float64
	RiskCategory    policy.RiskCategory
	EMIAmount       decimal.Decimal
	StepUpEMIAmount decimal.Decimal

	BorrowerScore             float64
	TPScore                   float64
	GuaranteeAmount           decimal.Decimal
	GuaranteePercentage       float64
	StandingDepositPercentage float64
}

// NewLoan builds a draft loan with one pending milestone entry per
// definition.
func NewLoan(t Terms, milestones []policy.MilestoneDefinition, now time.Time) (*Loan, error) {
	if !t.RequestedAmount.IsPositive() {
		return nil, errors.New(errors.ErrCodeLoanAmountOutOfRange, "requested amount must be positive")
	}
	if t.TenureMonths < 1 {
		return nil, errors.New(errors.ErrCodeLoanInvalidTerms, "tenure must be at least one month")
	}
	if t.LearnerID == "" || t.ProviderID == "" {
		return nil, errors.InvalidParam("learner and provider are required")
	}
	if err := policy.ValidateMilestones(milestones); err != nil {
		return nil, err
	}

	progress := make([]MilestoneProgress, len(milestones))
	for i, m := range milestones {
		progress[i] = MilestoneProgress{
			Index:           i,
			Name:            m.Name,
			TargetPct:       m.TargetPercentage,
			DisbursementPct: m.DisbursementPercentage,
			Amount:          decimal.Zero,
			Status:          MilestonePending,
		}
	}

	return &Loan{
		ID:                        uuid.New(),
		ApplicationNumber:         t.ApplicationNumber,
		Status:                    StatusDraft,
		Purpose:                   t.Purpose,
		LearnerID:                 t.LearnerID,
		CourseID:                  t.CourseID,
		ProviderID:                t.ProviderID,
		BankID:                    t.BankID,
		RequestedAmount:           t.RequestedAmount.Round(2),
		ApprovedAmount:            decimal.Zero,
		DisbursedAmount:           decimal.Zero,
		OutstandingPrincipal:      decimal.Zero,
		OutstandingInterest:       decimal.Zero,
		TotalRepaid:               decimal.Zero,
		InterestRate:              t.InterestRate,
		MCLRRate:                  t.MCLRRate,
		SpreadRate:                t.SpreadRate,
		RiskCategory:              t.RiskCategory,
		TenureMonths:              t.TenureMonths,
		MoratoriumMonths:          t.MoratoriumMonths,
		EMIAmount:                 t.EMIAmount,
		StepUpEMIAmount:           t.StepUpEMIAmount,
		Milestones:                progress,
		BorrowerScore:             t.BorrowerScore,
		TPScore:                   t.TPScore,
		GuaranteeAmount:           t.GuaranteeAmount,
		GuaranteePercentage:       t.GuaranteePercentage,
		StandingDepositPercentage: t.StandingDepositPercentage,
		Version:                   1,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}, nil
}

// FormatApplicationNumber renders a sequence as EDU-<year>-<6 digit seq>.
func FormatApplicationNumber(year int, seq int64) string {
	return fmt.Sprintf("EDU-%d-%06d", year, seq)
}

// TransitionTo moves the loan to status `to` if the transition table allows it.
func (l *Loan) TransitionTo(to Status, at time.Time) error {
	if !l.Status.CanTransitionTo(to) {
		return errors.Newf(errors.ErrCodeLoanInvalidTransition,
			"cannot move loan from %s to %s", l.Status, to).WithDetail("loan_id=" + l.ID.String())
	}
	l.Status = to
	l.UpdatedAt = at
	return nil
}

// requireStatus fails unless the loan is in one of allowed.
func (l *Loan) requireStatus(op string, allowed ...Status) error {
	for _, s := range allowed {
		if l.Status == s {
			return nil
		}
	}
	return errors.Newf(errors.ErrCodeLoanInvalidTransition,
		"%s is not permitted while loan is %s", op, l.Status).WithDetail("loan_id=" + l.ID.String())
}

// advanceMilestone is the only writer of milestone status. It rejects any
// move that is not strictly forward and opens the next milestone once this
// one is disbursed.
func (l *Loan) advanceMilestone(i int, to MilestoneStatus, at time.Time) error {
	if i < 0 || i >= len(l.Milestones) {
		return errors.Newf(errors.ErrCodeMilestoneUnknown, "milestone %d does not exist", i)
	}
	m := &l.Milestones[i]
	if milestoneRank[to] <= milestoneRank[m.Status] {
		return errors.Newf(errors.ErrCodeMilestoneDisbursed,
			"milestone %d cannot move from %s to %s", i, m.Status, to)
	}
	m.Status = to
	switch to {
	case MilestoneVerified:
		m.VerifiedAt = &at
	case MilestoneDisbursed:
		m.DisbursedAt = &at
		if i+1 < len(l.Milestones) && l.Milestones[i+1].Status == MilestonePending {
			l.Milestones[i+1].Status = MilestoneInProgress
		}
	}
	l.UpdatedAt = at
	return nil
}

// IsFinalMilestone reports whether i is the last milestone index.
func (l *Loan) IsFinalMilestone(i int) bool {
	return i == len(l.Milestones)-1
}

// DisbursedTotal sums the amounts of disbursed milestones.
func (l *Loan) DisbursedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, m := range l.Milestones {
		if m.Status == MilestoneDisbursed {
			sum = sum.Add(m.Amount)
		}
	}
	return sum
}

// EscrowBalance is the approved amount not yet disbursed.
func (l *Loan) EscrowBalance() decimal.Decimal {
	return l.ApprovedAmount.Sub(l.DisbursedAmount)
}

// Clone returns a deep copy.
func (l *Loan) Clone() *Loan {
	c := *l
	c.Milestones = make([]MilestoneProgress, len(l.Milestones))
	copy(c.Milestones, l.Milestones)
	return &c
}

//Personal.AI order the ending
