package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankAccount is the settlement destination of a disbursement.
type BankAccount struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
}

// Disbursement is one milestone payout to the training provider.
type Disbursement struct {
	ID              uuid.UUID          `json:"id"`
	LoanID          uuid.UUID          `json:"loan_id"`
	MilestoneNumber int                `json:"milestone_number"`
	MilestoneName   string             `json:"milestone_name"`
	MilestonePct    float64            `json:"milestone_pct"`
	Amount          decimal.Decimal    `json:"amount"`
	Recipient       BankAccount        `json:"recipient"`
	Status          DisbursementStatus `json:"status"`
	RetryCount      int                `json:"retry_count"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	BankReference   string             `json:"bank_reference,omitempty"`

	InitiatedAt *time.Time `json:"initiated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	EscrowBalanceBefore decimal.Decimal `json:"escrow_balance_before"`
	EscrowBalanceAfter  decimal.Decimal `json:"escrow_balance_after"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy safe to mutate.
func (d *Disbursement) Clone() *Disbursement {
	c := *d
	return &c
}

// markBankInitiated reports whether the record changed.
func (d *Disbursement) markBankInitiated(at time.Time) bool {
	if d.Status != DisbursementMilestoneVerified && d.Status != DisbursementPending {
		return false
	}
	d.Status = DisbursementBankInitiated
	d.InitiatedAt = &at
	d.UpdatedAt = at
	return true
}

// complete settles the attempt. A terminal record is left untouched.
func (d *Disbursement) complete(bankRef string, at time.Time) bool {
	if d.Status.IsTerminal() {
		return false
	}
	d.Status = DisbursementCompleted
	d.BankReference = bankRef
	d.CompletedAt = &at
	d.UpdatedAt = at
	return true
}

// fail records a failed attempt and bumps the retry counter once.
func (d *Disbursement) fail(reason string, at time.Time) bool {
	if d.Status.IsTerminal() {
		return false
	}
	d.Status = DisbursementFailed
	d.FailureReason = reason
	d.RetryCount++
	d.FailedAt = &at
	d.UpdatedAt = at
	return true
}

//Personal.AI order the ending
