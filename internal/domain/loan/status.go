package loan

// Status is the lifecycle state of a Loan.
type Status string

const (
	StatusDraft                  Status = "draft"
	StatusSubmitted              Status = "submitted"
	StatusUnderReview            Status = "under_review"
	StatusBankSubmitted          Status = "bank_submitted"
	StatusBankApproved           Status = "bank_approved"
	StatusBankRejected           Status = "bank_rejected"
	StatusActive                 Status = "active"
	StatusDisbursementInProgress Status = "disbursement_in_progress"
	StatusFullyDisbursed         Status = "fully_disbursed"
	StatusInMoratorium           Status = "in_moratorium"
	StatusInRepayment            Status = "in_repayment"
	StatusDelinquent             Status = "delinquent"
	StatusNPA                    Status = "npa"
	StatusClosed                 Status = "closed"
	StatusWrittenOff             Status = "written_off"
	StatusCancelled              Status = "cancelled"
)

// ─────────────────────────────────────────────────────────────────────────────
// State machine: allowed status transitions
// ─────────────────────────────────────────────────────────────────────────────

// transitions lists the statuses reachable from each status. Anything not
// listed is rejected by TransitionTo.
//
//	draft ─► submitted ─► under_review ─► bank_submitted ─► bank_approved ─► active
//	                  └──────────────────────┘          └─► bank_rejected
//	active ─► disbursement_in_progress ─► fully_disbursed ─► in_moratorium ─► in_repayment
//	in_repayment ⇄ delinquent ─► npa
//	in_repayment | delinquent | npa ─► closed
//	delinquent | npa ─► written_off
var transitions = map[Status][]Status{
	StatusDraft:                  {StatusSubmitted, StatusCancelled},
	StatusSubmitted:              {StatusUnderReview, StatusBankSubmitted, StatusCancelled},
	StatusUnderReview:            {StatusBankSubmitted, StatusBankRejected, StatusCancelled},
	StatusBankSubmitted:          {StatusBankApproved, StatusBankRejected, StatusCancelled},
	StatusBankApproved:           {StatusActive, StatusCancelled},
	StatusActive:                 {StatusDisbursementInProgress},
	StatusDisbursementInProgress: {StatusFullyDisbursed},
	StatusFullyDisbursed:         {StatusInMoratorium},
	StatusInMoratorium:           {StatusInRepayment},
	StatusInRepayment:            {StatusDelinquent, StatusClosed},
	StatusDelinquent:             {StatusInRepayment, StatusNPA, StatusClosed, StatusWrittenOff},
	StatusNPA:                    {StatusWrittenOff, StatusClosed},
	StatusClosed:                 {},
	StatusWrittenOff:             {},
	StatusCancelled:              {},
	StatusBankRejected:           {},
}

// CanTransitionTo reports whether the table allows s → to.
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// InRepaymentPhase reports whether payments may be recorded against the loan.
func (s Status) InRepaymentPhase() bool {
	return s == StatusInRepayment || s == StatusDelinquent || s == StatusNPA
}

// MilestoneStatus is the progress state of one milestone. It only moves
// forward.
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "pending"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneVerified   MilestoneStatus = "verified"
	MilestoneDisbursed  MilestoneStatus = "disbursed"
)

var milestoneRank = map[MilestoneStatus]int{
	MilestonePending:    0,
	MilestoneInProgress: 1,
	MilestoneVerified:   2,
	MilestoneDisbursed:  3,
}

// DisbursementStatus is the settlement state of a Disbursement.
type DisbursementStatus string

const (
	DisbursementPending           DisbursementStatus = "pending"
	DisbursementMilestoneVerified DisbursementStatus = "milestone_verified"
	DisbursementBankInitiated     DisbursementStatus = "bank_initiated"
	DisbursementCompleted         DisbursementStatus = "completed"
	DisbursementFailed            DisbursementStatus = "failed"
	DisbursementReversed          DisbursementStatus = "reversed"
)

// IsTerminal reports whether settlement has finished for this attempt.
func (s DisbursementStatus) IsTerminal() bool {
	return s == DisbursementCompleted || s == DisbursementFailed || s == DisbursementReversed
}

// RepaymentStatus is the payment state of an installment.
type RepaymentStatus string

const (
	RepaymentScheduled RepaymentStatus = "scheduled"
	RepaymentPartial   RepaymentStatus = "partial"
	RepaymentCompleted RepaymentStatus = "completed"
	RepaymentOverdue   RepaymentStatus = "overdue"
	RepaymentWaived    RepaymentStatus = "waived"
)

// IsOpen reports whether the installment still expects money.
func (s RepaymentStatus) IsOpen() bool {
	return s == RepaymentScheduled || s == RepaymentPartial || s == RepaymentOverdue
}

//Personal.AI order the ending
