// internal/application/disbursement/service.go
//
// Application service for the post-approval lifecycle: activation, milestone
// verification, settlement callbacks and retries, the moratorium and the
// start of repayment. The domain state machine decides every transition; this
// layer schedules the asynchronous work the machine hands back (settlement of
// each authorized tranche and the delayed moratorium transition), publishes
// lifecycle events and records metrics.

package disbursement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/application/settlement"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Scheduler runs keyed background work. *settlement.Settler satisfies it;
// settlement tasks are registered under settlement.SettlementKey.
type Scheduler interface {
	Schedule(d *loan.Disbursement) bool
	ScheduleAfter(key string, delay time.Duration, fn func(ctx context.Context)) bool
	Cancel(key string) bool
}

// Deduper reports whether key is seen for the first time. Implementations
// backed by a shared store make callback handling idempotent across
// processes. Forget releases a key whose processing failed.
type Deduper interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt loan.Event) error
}

// Metrics receives lifecycle outcomes.
type Metrics interface {
	ObserveTransition(from, to string)
	ObserveDisbursement(status string, milestone int, amount decimal.Decimal)
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Callback statuses reported by the bank.
const (
	CallbackCompleted = "completed"
	CallbackFailed    = "failed"
)

// SettlementCallback is the bank's asynchronous verdict on a transfer.
type SettlementCallback struct {
	DisbursementID uuid.UUID `json:"disbursement_id"`
	Status         string    `json:"status"`
	BankReference  string    `json:"bank_reference,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

// Config controls scheduling.
type Config struct {
	// MoratoriumDelay is the pause between full disbursement and the move
	// into moratorium.
	MoratoriumDelay time.Duration
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the disbursement use-case surface.
type Service interface {
	Activate(ctx context.Context, loanID uuid.UUID) (*loan.Authorization, error)
	VerifyMilestone(ctx context.Context, loanID uuid.UUID, n int, ev loan.Evidence) (*loan.Authorization, error)
	EnterMoratorium(ctx context.Context, loanID uuid.UUID) (*loan.Loan, error)
	StartRepayment(ctx context.Context, loanID uuid.UUID) (*loan.Loan, []*loan.Repayment, error)
	HandleSettlementCallback(ctx context.Context, cb SettlementCallback) (*loan.Disbursement, error)
	RetrySettlement(ctx context.Context, disbursementID uuid.UUID) (*loan.Disbursement, error)
	GetDisbursement(ctx context.Context, id uuid.UUID) (*loan.Disbursement, error)
	ListDisbursements(ctx context.Context, loanID uuid.UUID) ([]*loan.Disbursement, error)
}

// Deps groups the collaborators of the disbursement service.
type Deps struct {
	Machine   *loan.StateMachine
	Repo      loan.Repository
	Scheduler Scheduler
	Deduper   Deduper
	Publisher Publisher
	Metrics   Metrics
	Logger    logging.Logger
	Config    Config
}

type serviceImpl struct {
	machine   *loan.StateMachine
	repo      loan.Repository
	scheduler Scheduler
	deduper   Deduper
	publisher Publisher
	metrics   Metrics
	log       logging.Logger
	cfg       Config
}

// NewService builds the disbursement service.
func NewService(d Deps) Service {
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		machine:   d.Machine,
		repo:      d.Repo,
		scheduler: d.Scheduler,
		deduper:   d.Deduper,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       d.Logger.Named("disbursement"),
		cfg:       d.Config,
	}
}

// MoratoriumKey is the task key of a loan's pending moratorium transition.
func MoratoriumKey(loanID uuid.UUID) string { return "moratorium:" + loanID.String() }

func (s *serviceImpl) Activate(ctx context.Context, loanID uuid.UUID) (*loan.Authorization, error) {
	auth, err := s.machine.Activate(ctx, loanID)
	if err != nil {
		return nil, err
	}
	s.transitioned(loan.StatusBankApproved, loan.StatusActive)
	s.publish(ctx, loan.NewEvent(loan.EventLoanActivated, auth.Loan, auth.Loan.UpdatedAt, nil))
	s.authorized(ctx, auth, loan.StatusActive)
	return auth, nil
}

func (s *serviceImpl) VerifyMilestone(ctx context.Context, loanID uuid.UUID, n int, ev loan.Evidence) (*loan.Authorization, error) {
	auth, err := s.machine.VerifyMilestone(ctx, loanID, n, ev)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, loan.NewEvent(loan.EventMilestoneVerified, auth.Loan, auth.Loan.UpdatedAt, map[string]any{
		"milestone":             n,
		"course_completion_pct": ev.CourseCompletionPct,
		"verified_by":           ev.VerifiedBy,
	}))
	from := loan.StatusDisbursementInProgress
	if n == 0 {
		from = loan.StatusActive
	}
	s.authorized(ctx, auth, from)
	return auth, nil
}

// authorized hands the new tranche to the scheduler and, once the loan is
// fully disbursed, schedules its move into moratorium.
func (s *serviceImpl) authorized(ctx context.Context, auth *loan.Authorization, from loan.Status) {
	d := auth.Disbursement
	if s.metrics != nil {
		s.metrics.ObserveDisbursement(string(d.Status), d.MilestoneNumber, d.Amount)
	}
	s.publish(ctx, loan.NewDisbursementEvent(loan.EventDisbursementAuthorized, d, d.CreatedAt))
	if s.scheduler != nil {
		s.scheduler.Schedule(d)
	}

	if from == loan.StatusActive && auth.Loan.Status != loan.StatusActive {
		s.transitioned(loan.StatusActive, loan.StatusDisbursementInProgress)
		from = loan.StatusDisbursementInProgress
	}
	if !auth.FullyDisbursed {
		return
	}
	s.transitioned(from, loan.StatusFullyDisbursed)
	if auth.Certified {
		s.publish(ctx, loan.NewEvent(loan.EventLoanCertified, auth.Loan, auth.Loan.UpdatedAt, nil))
	}
	if s.scheduler == nil {
		return
	}
	id := auth.Loan.ID
	s.scheduler.ScheduleAfter(MoratoriumKey(id), s.cfg.MoratoriumDelay, func(taskCtx context.Context) {
		if _, err := s.EnterMoratorium(taskCtx, id); err != nil && !errors.IsCode(err, errors.ErrCodeLoanInvalidTransition) {
			s.log.Error("scheduled moratorium transition failed", logging.LoanID(id.String()), logging.Err(err))
		}
	})
}

func (s *serviceImpl) EnterMoratorium(ctx context.Context, loanID uuid.UUID) (*loan.Loan, error) {
	l, err := s.machine.EnterMoratorium(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if s.scheduler != nil {
		s.scheduler.Cancel(MoratoriumKey(loanID))
	}
	s.transitioned(loan.StatusFullyDisbursed, loan.StatusInMoratorium)
	s.publish(ctx, loan.NewEvent(loan.EventMoratoriumStarted, l, l.UpdatedAt, map[string]any{
		"first_emi_date": l.FirstEMIDate.Format(time.DateOnly),
	}))
	return l, nil
}

func (s *serviceImpl) StartRepayment(ctx context.Context, loanID uuid.UUID) (*loan.Loan, []*loan.Repayment, error) {
	l, schedule, err := s.machine.StartRepayment(ctx, loanID)
	if err != nil {
		return nil, nil, err
	}
	s.transitioned(loan.StatusInMoratorium, loan.StatusInRepayment)
	s.publish(ctx, loan.NewEvent(loan.EventRepaymentStarted, l, l.UpdatedAt, map[string]any{
		"installments": len(schedule),
		"emi_amount":   l.EMIAmount.StringFixed(2),
	}))
	return l, schedule, nil
}

// HandleSettlementCallback applies a bank verdict. Redelivered callbacks and
// verdicts on records that are already terminal return the current record
// unchanged.
func (s *serviceImpl) HandleSettlementCallback(ctx context.Context, cb SettlementCallback) (*loan.Disbursement, error) {
	if cb.DisbursementID == uuid.Nil {
		return nil, errors.InvalidParam("disbursement id is required")
	}
	if cb.Status != CallbackCompleted && cb.Status != CallbackFailed {
		return nil, errors.InvalidParam("callback status must be completed or failed").WithDetail("status=" + cb.Status)
	}

	dedupeKey := "settlement-callback:" + cb.DisbursementID.String() + ":" + cb.Status + ":" + cb.BankReference
	recorded := false
	if s.deduper != nil {
		first, err := s.deduper.FirstSeen(ctx, dedupeKey)
		if err != nil {
			s.log.Warn("callback dedupe unavailable, relying on idempotent settlement", logging.Err(err))
		} else if !first {
			s.log.Debug("duplicate settlement callback ignored", logging.DisbursementID(cb.DisbursementID.String()))
			return s.machine.GetDisbursement(ctx, cb.DisbursementID)
		} else {
			recorded = true
		}
	}

	var (
		d       *loan.Disbursement
		changed bool
		err     error
		evt     loan.EventType
	)
	if cb.Status == CallbackCompleted {
		d, changed, err = s.machine.CompleteSettlement(ctx, cb.DisbursementID, cb.BankReference)
		evt = loan.EventDisbursementCompleted
	} else {
		reason := cb.Reason
		if reason == "" {
			reason = "bank reported failure"
		}
		d, changed, err = s.machine.FailSettlement(ctx, cb.DisbursementID, reason)
		evt = loan.EventDisbursementFailed
	}
	if err != nil {
		if recorded {
			if ferr := s.deduper.Forget(ctx, dedupeKey); ferr != nil {
				s.log.Warn("failed to release callback dedupe key", logging.Err(ferr))
			}
		}
		return nil, err
	}
	if !changed {
		return d, nil
	}
	if s.scheduler != nil {
		s.scheduler.Cancel(settlement.SettlementKey(d.ID))
	}
	if s.metrics != nil {
		s.metrics.ObserveDisbursement(string(d.Status), d.MilestoneNumber, d.Amount)
	}
	s.publish(ctx, loan.NewDisbursementEvent(evt, d, d.UpdatedAt))
	return d, nil
}

func (s *serviceImpl) RetrySettlement(ctx context.Context, disbursementID uuid.UUID) (*loan.Disbursement, error) {
	d, err := s.machine.RetrySettlement(ctx, disbursementID)
	if err != nil {
		return nil, err
	}
	if s.scheduler != nil && !s.scheduler.Schedule(d) {
		// An attempt that is still winding down holds the key.
		s.scheduler.Cancel(settlement.SettlementKey(d.ID))
		if !s.scheduler.Schedule(d) {
			s.log.Warn("settlement retry not scheduled, it resumes on the next recovery",
				logging.DisbursementID(d.ID.String()))
			return d, nil
		}
	}
	s.log.Info("settlement retry scheduled",
		logging.DisbursementID(d.ID.String()),
		logging.Int("retry_count", d.RetryCount))
	return d, nil
}

func (s *serviceImpl) GetDisbursement(ctx context.Context, id uuid.UUID) (*loan.Disbursement, error) {
	return s.machine.GetDisbursement(ctx, id)
}

func (s *serviceImpl) ListDisbursements(ctx context.Context, loanID uuid.UUID) ([]*loan.Disbursement, error) {
	if _, err := s.repo.GetByID(ctx, loanID); err != nil {
		return nil, err
	}
	return s.repo.ListDisbursements(ctx, loanID)
}

func (s *serviceImpl) transitioned(from, to loan.Status) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(to))
	}
}

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
