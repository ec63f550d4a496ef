// internal/application/repayment/service.go
//
// Application service for EMI collection. Validates incoming payments, hands
// them to the repayment ledger and turns the ledger's result into lifecycle
// events (payment recorded, delinquency cured, loan closed) and metrics.

package repayment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
)

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt loan.Event) error
}

// Metrics receives repayment outcomes.
type Metrics interface {
	ObserveRepayment(status, method string, amount decimal.Decimal)
	ObserveTransition(from, to string)
}

// RecordPaymentRequest is one incoming payment.
type RecordPaymentRequest struct {
	RepaymentID uuid.UUID       `json:"repayment_id"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Method      string          `json:"payment_method" binding:"required"`
	Reference   string          `json:"payment_reference"`
}

// Service is the repayment use-case surface.
type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*loan.PaymentResult, error)
	ListSchedule(ctx context.Context, loanID uuid.UUID) ([]*loan.Repayment, error)
	GetRepayment(ctx context.Context, id uuid.UUID) (*loan.Repayment, error)
}

type serviceImpl struct {
	ledger    *loan.Ledger
	repo      loan.Repository
	publisher Publisher
	metrics   Metrics
	log       logging.Logger
}

// NewService builds the repayment service.
func NewService(ledger *loan.Ledger, repo loan.Repository, publisher Publisher, metrics Metrics, log logging.Logger) Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &serviceImpl{
		ledger:    ledger,
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		log:       log.Named("repayment"),
	}
}

func (s *serviceImpl) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*loan.PaymentResult, error) {
	res, err := s.ledger.RecordPayment(ctx, loan.Payment{
		RepaymentID: req.RepaymentID,
		Amount:      req.Amount,
		Method:      loan.PaymentMethod(req.Method),
		Reference:   req.Reference,
	})
	if err != nil {
		return nil, err
	}

	r, l := res.Repayment, res.Loan
	if s.metrics != nil {
		s.metrics.ObserveRepayment(string(r.Status), req.Method, req.Amount)
		if l.Status != res.PreviousStatus {
			s.metrics.ObserveTransition(string(res.PreviousStatus), string(l.Status))
		}
	}
	s.publish(ctx, loan.NewEvent(loan.EventPaymentRecorded, l, r.UpdatedAt, map[string]any{
		"repayment_id":   r.ID.String(),
		"emi_number":     r.EMINumber,
		"amount":         req.Amount.StringFixed(2),
		"amount_paid":    r.AmountPaid.StringFixed(2),
		"status":         string(r.Status),
		"payment_method": req.Method,
		"cured":          res.Cured,
	}))
	if res.Closed {
		s.publish(ctx, loan.NewEvent(loan.EventLoanClosed, l, r.UpdatedAt, map[string]any{
			"total_repaid": l.TotalRepaid.StringFixed(2),
		}))
		s.log.Info("loan closed", logging.LoanID(l.ID.String()), logging.Money("total_repaid", l.TotalRepaid))
	}
	return res, nil
}

func (s *serviceImpl) ListSchedule(ctx context.Context, loanID uuid.UUID) ([]*loan.Repayment, error) {
	return s.ledger.Schedule(ctx, loanID)
}

func (s *serviceImpl) GetRepayment(ctx context.Context, id uuid.UUID) (*loan.Repayment, error) {
	return s.repo.GetRepayment(ctx, id)
}

func (s *serviceImpl) publish(ctx context.Context, evt loan.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", logging.String("event_type", string(evt.Type)), logging.Err(err))
	}
}

//Personal.AI order the ending
