package loan

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventApplicationCreated     EventType = "loan.application.created"
	EventApplicationSubmitted   EventType = "loan.application.submitted"
	EventBankApproved           EventType = "loan.bank.approved"
	EventBankRejected           EventType = "loan.bank.rejected"
	EventLoanCancelled          EventType = "loan.cancelled"
	EventLoanActivated          EventType = "loan.activated"
	EventMilestoneVerified      EventType = "loan.milestone.verified"
	EventDisbursementAuthorized EventType = "disbursement.authorized"
	EventDisbursementCompleted  EventType = "disbursement.completed"
	EventDisbursementFailed     EventType = "disbursement.failed"
	EventLoanCertified          EventType = "loan.certified"
	EventMoratoriumStarted      EventType = "loan.moratorium.started"
	EventRepaymentStarted       EventType = "loan.repayment.started"
	EventPaymentRecorded        EventType = "repayment.recorded"
	EventLoanDelinquent         EventType = "loan.delinquent"
	EventLoanNPA                EventType = "loan.npa"
	EventLoanClosed             EventType = "loan.closed"
)

// Event is a notification trigger raised by a lifecycle change. Delivery is
// left to the publisher.
type Event struct {
	ID         string         `json:"event_id"`
	Type       EventType      `json:"event_type"`
	LoanID     string         `json:"loan_id"`
	Status     Status         `json:"status"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewEvent builds an event for l.
func NewEvent(t EventType, l *Loan, at time.Time, payload map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		LoanID:     l.ID.String(),
		Status:     l.Status,
		OccurredAt: at,
		Payload:    payload,
	}
}

// NewDisbursementEvent builds an event for a settlement outcome of d.
func NewDisbursementEvent(t EventType, d *Disbursement, at time.Time) Event {
	payload := map[string]any{
		"disbursement_id":  d.ID.String(),
		"milestone_number": d.MilestoneNumber,
		"amount":           d.Amount.StringFixed(2),
		"status":           string(d.Status),
		"retry_count":      d.RetryCount,
	}
	if d.BankReference != "" {
		payload["bank_reference"] = d.BankReference
	}
	if d.FailureReason != "" {
		payload["failure_reason"] = d.FailureReason
	}
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		LoanID:     d.LoanID.String(),
		OccurredAt: at,
		Payload:    payload,
	}
}

//Personal.AI order the ending
