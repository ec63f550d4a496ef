// internal/application/origination/service.go
//
// Application service for loan origination. Orchestrates the scoring,
// pricing, guarantee and amortization engines into a draft loan, then drives
// the pre-activation statuses (submission, review, bank decision,
// cancellation).
//
// Flow of Apply:
//   validate bounds -> load read models -> score borrower -> (ineligible: return
//   recommendations, no loan) -> score provider -> price -> size guarantee ->
//   amortize -> allocate application number -> persist draft -> publish event

package origination

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/amortization"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/domain/pricing"
	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// ReadModels exposes the read-only views origination consumes. A missing
// learner profile is reported as (nil, nil).
type ReadModels interface {
	GetUser(ctx context.Context, id string) (*scoring.User, error)
	GetLearnerProfile(ctx context.Context, userID string) (*scoring.LearnerProfile, error)
	GetCourse(ctx context.Context, id string) (*scoring.Course, error)
	GetProvider(ctx context.Context, id string) (*scoring.TrainingProvider, error)
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt loan.Event) error
}

// Metrics receives origination outcomes.
type Metrics interface {
	ObserveApplication(decision string)
	ObserveTransition(from, to string)
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// ApplyRequest is a new loan application.
type ApplyRequest struct {
	LearnerID       string          `json:"learner_id" binding:"required"`
	CourseID        string          `json:"course_id" binding:"required"`
	BankID          string          `json:"bank_id"`
	Purpose         string          `json:"purpose"`
	RequestedAmount decimal.Decimal `json:"requested_amount" binding:"required"`
	TenureMonths    int             `json:"tenure_months"`
}

// ApplyResult is the outcome of Apply. Loan is nil when the borrower is not
// eligible; Recommendations then explain what would change the outcome.
type ApplyResult struct {
	Eligible        bool                    `json:"eligible"`
	Loan            *loan.Loan              `json:"loan,omitempty"`
	Borrower        *scoring.BorrowerResult `json:"borrower"`
	Provider        *scoring.TPResult       `json:"provider,omitempty"`
	Quote           *pricing.Quote          `json:"quote,omitempty"`
	Guarantee       *pricing.GuaranteeQuote `json:"guarantee,omitempty"`
	Plan            *amortization.Plan      `json:"plan,omitempty"`
	Recommendations []string                `json:"recommendations,omitempty"`
}

// BankDecision is the lender's verdict on a submitted application.
type BankDecision struct {
	Approved bool `json:"approved"`
	// ApprovedAmount defaults to the requested amount when nil.
	ApprovedAmount *decimal.Decimal `json:"approved_amount,omitempty"`
	Remarks        string           `json:"remarks"`
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the origination use-case surface.
type Service interface {
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
	Submit(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	MarkUnderReview(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	SendToBank(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	RecordBankDecision(ctx context.Context, id uuid.UUID, d BankDecision) (*loan.Loan, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*loan.Loan, error)
	Get(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
	List(ctx context.Context, filter loan.ListFilter) ([]*loan.Loan, int64, error)
}

type serviceImpl struct {
	policy     *policy.Policy
	scores     *scoring.Engine
	prices     *pricing.Engine
	amortizer  *amortization.Engine
	machine    *loan.StateMachine
	repo       loan.Repository
	readModels ReadModels
	publisher  Publisher
	metrics    Metrics
	log        logging.Logger
	now        func() time.Time
}

// Deps groups the collaborators of the origination service.
type Deps struct {
	Policy     *policy.Policy
	Scores     *scoring.Engine
	Prices     *pricing.Engine
	Amortizer  *amortization.Engine
	Machine    *loan.StateMachine
	Repo       loan.Repository
	ReadModels ReadModels
	Publisher  Publisher
	Metrics    Metrics
	Logger     logging.Logger
	Now        func() time.Time
}

// NewService builds the origination service.
func NewService(d Deps) Service {
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &serviceImpl{
		policy:     d.Policy,
		scores:     d.Scores,
		prices:     d.Prices,
		amortizer:  d.Amortizer,
		machine:    d.Machine,
		repo:       d.Repo,
		readModels: d.ReadModels,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		log:        d.Logger.Named("origination"),
		now:        d.Now,
	}
}

func (s *serviceImpl) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	amount := req.RequestedAmount.Round(2)
	if amount.LessThan(s.policy.MinLoanAmount) || amount.GreaterThan(s.policy.MaxLoanAmount) {
		return nil, errors.Newf(errors.ErrCodeLoanAmountOutOfRange,
			"requested amount %s is outside [%s, %s]", amount.StringFixed(2),
			s.policy.MinLoanAmount.StringFixed(2), s.policy.MaxLoanAmount.StringFixed(2))
	}
	tenure := req.TenureMonths
	if tenure == 0 {
		tenure = s.policy.DefaultTenureMonths
	}
	if tenure < 1 {
		return nil, errors.New(errors.ErrCodeLoanInvalidTerms, "tenure must be at least one month")
	}

	user, err := s.readModels.GetUser(ctx, req.LearnerID)
	if err != nil {
		return nil, err
	}
	profile, err := s.readModels.GetLearnerProfile(ctx, req.LearnerID)
	if err != nil {
		return nil, err
	}
	course, err := s.readModels.GetCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	provider, err := s.readModels.GetProvider(ctx, course.ProviderID)
	if err != nil {
		return nil, err
	}

	borrower, err := s.scores.ScoreBorrower(ctx, user, profile, course)
	if err != nil {
		return nil, err
	}
	res := &ApplyResult{Eligible: borrower.Eligible, Borrower: borrower}
	if !borrower.Eligible {
		res.Recommendations = borrower.Recommendations
		s.observe("ineligible")
		s.log.Info("application rejected on eligibility",
			logging.String("learner_id", req.LearnerID),
			logging.Float64("score", borrower.Score))
		return res, nil
	}

	tp, err := s.scores.ScoreTP(ctx, provider)
	if err != nil {
		return nil, err
	}
	quote := s.prices.Price(borrower.Score)
	guarantee := s.prices.Guarantee(tp.Score, amount)
	plan, err := s.amortizer.Amortize(amount, quote.TotalRate, tenure)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seq, err := s.repo.NextApplicationSequence(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to allocate application number")
	}
	l, err := loan.NewLoan(loan.Terms{
		ApplicationNumber:         loan.FormatApplicationNumber(now.Year(), seq),
		Purpose:                   req.Purpose,
		LearnerID:                 req.LearnerID,
		CourseID:                  course.ID,
		ProviderID:                provider.ID,
		BankID:                    req.BankID,
		RequestedAmount:           amount,
		TenureMonths:              tenure,
		MoratoriumMonths:          course.DurationMonths + s.policy.MoratoriumExtraMonths,
		InterestRate:              quote.TotalRate,
		MCLRRate:                  quote.MCLRRate,
		SpreadRate:                quote.SpreadRate,
		RiskCategory:              quote.RiskCategory,
		EMIAmount:                 plan.StandardEMI,
		StepUpEMIAmount:           plan.StepUpEMI,
		BorrowerScore:             borrower.Score,
		TPScore:                   tp.Score,
		GuaranteeAmount:           guarantee.Amount,
		GuaranteePercentage:       guarantee.DynamicPercentage,
		StandingDepositPercentage: guarantee.StandingDepositPct,
	}, s.policy.Milestones, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}

	res.Loan = l
	res.Provider = tp
	res.Quote = &quote
	res.Guarantee = &guarantee
	res.Plan = plan
	res.Recommendations = borrower.Recommendations
	s.observe("draft")
	s.publish(ctx, loan.NewEvent(loan.EventApplicationCreated, l, now, map[string]any{
		"application_number": l.ApplicationNumber,
		"requested_amount":   amount.StringFixed(2),
		"interest_rate":      quote.TotalRate,
	}))
	s.log.Info("loan application created",
		logging.LoanID(l.ID.String()),
		logging.String("application_number", l.ApplicationNumber),
		logging.Money("amount", amount),
		logging.Float64("rate", quote.TotalRate))
	return res, nil
}

func (s *serviceImpl) Submit(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return s.transition(ctx, id, loan.StatusSubmitted, loan.EventApplicationSubmitted, nil)
}

func (s *serviceImpl) MarkUnderReview(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return s.transition(ctx, id, loan.StatusUnderReview, "", nil)
}

func (s *serviceImpl) SendToBank(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return s.transition(ctx, id, loan.StatusBankSubmitted, "", nil)
}

func (s *serviceImpl) RecordBankDecision(ctx context.Context, id uuid.UUID, d BankDecision) (*loan.Loan, error) {
	if !d.Approved {
		return s.transition(ctx, id, loan.StatusBankRejected, loan.EventBankRejected, func(l *loan.Loan) error {
			l.BankRemarks = d.Remarks
			return nil
		})
	}
	return s.transition(ctx, id, loan.StatusBankApproved, loan.EventBankApproved, func(l *loan.Loan) error {
		approved := l.RequestedAmount
		if d.ApprovedAmount != nil {
			approved = d.ApprovedAmount.Round(2)
		}
		if !approved.IsPositive() || approved.GreaterThan(l.RequestedAmount) {
			return errors.Newf(errors.ErrCodeLoanAmountOutOfRange,
				"approved amount %s must be positive and not exceed the requested %s",
				approved.StringFixed(2), l.RequestedAmount.StringFixed(2))
		}
		if approved.LessThan(s.policy.MinLoanAmount) {
			return errors.Newf(errors.ErrCodeLoanAmountOutOfRange,
				"approved amount %s is below the minimum %s", approved.StringFixed(2), s.policy.MinLoanAmount.StringFixed(2))
		}
		l.ApprovedAmount = approved
		l.BankRemarks = d.Remarks
		if !approved.Equal(l.RequestedAmount) {
			plan, err := s.amortizer.Amortize(approved, l.InterestRate, l.TenureMonths)
			if err != nil {
				return err
			}
			l.EMIAmount = plan.StandardEMI
			l.StepUpEMIAmount = plan.StepUpEMI
			l.GuaranteeAmount = s.prices.Guarantee(l.TPScore, approved).Amount
		}
		return nil
	})
}

func (s *serviceImpl) Cancel(ctx context.Context, id uuid.UUID, reason string) (*loan.Loan, error) {
	return s.transition(ctx, id, loan.StatusCancelled, loan.EventLoanCancelled, func(l *loan.Loan) error {
		l.CancellationReason = reason
		return nil
	})
}

func (s *serviceImpl) Get(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *serviceImpl) List(ctx context.Context, filter loan.ListFilter) ([]*loan.Loan, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// transition applies mutate and moves the loan to `to` under the loan lock.
func (s *serviceImpl) transition(ctx context.Context, id uuid.UUID, to loan.Status, evt loan.EventType, mutate func(*loan.Loan) error) (*loan.Loan, error) {
	var from loan.Status
	l, err := s.machine.Update(ctx, id, func(l *loan.Loan, now time.Time) error {
		from = l.Status
		if err := l.TransitionTo(to, now); err != nil {
			return err
		}
		if mutate != nil {
			return mutate(l)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(to))
	}
	if evt != "" {
		s.publish(ctx, loan.NewEvent(evt, l, l.UpdatedAt, nil))
	}
	s.log.Info("loan status changed",
		logging.LoanID(id.String()),
		logging.String("from", string(from)),
		logging.String("to", string(to)))
	return l, nil
}

func (s *serviceImpl) observe(decision string) {
	if s.metrics != nil {
		s.metrics.ObserveApplication(decision)
	}
}

// publish is best effort: a delivery failure is logged and never undoes the
// committed state change.
func (s *serviceImpl) publish(ctx context.Context, evt loan.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed",
			logging.String("event_type", string(evt.Type)),
			logging.LoanID(evt.LoanID),
			logging.Err(err))
	}
}

//Personal.AI order the ending
