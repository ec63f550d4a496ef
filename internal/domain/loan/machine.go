package loan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/amortization"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Evidence is the course-progress proof submitted to verify a milestone.
// Percentages are in [0, 100].
type Evidence struct {
	CourseCompletionPct float64  `json:"course_completion_pct"`
	AttendancePct       *float64 `json:"attendance_pct,omitempty"`
	AssessmentScore     *float64 `json:"assessment_score,omitempty"`
	VerifiedBy          string   `json:"verified_by,omitempty"`
}

// RecipientResolver supplies the payout account of a training provider.
type RecipientResolver interface {
	RecipientFor(ctx context.Context, providerID string) (BankAccount, error)
}

// Authorization is the outcome of activating a loan or verifying a milestone.
type Authorization struct {
	Loan           *Loan
	Disbursement   *Disbursement
	Milestone      int
	Certified      bool
	FullyDisbursed bool
}

// MachineOption configures a StateMachine.
type MachineOption func(*StateMachine)

// WithMachineClock overrides the time source.
func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *StateMachine) { m.now = now }
}

// WithRecipients sets the payout account resolver.
func WithRecipients(r RecipientResolver) MachineOption {
	return func(m *StateMachine) { m.recipients = r }
}

// StateMachine owns loan status transitions and the milestone ledger. It
// never schedules work itself: settlement and the moratorium transition are
// driven by the caller from the returned results.
type StateMachine struct {
	repo       Repository
	locker     Locker
	policy     *policy.Policy
	amortizer  *amortization.Engine
	recipients RecipientResolver
	log        logging.Logger
	now        func() time.Time
}

// NewStateMachine wires a StateMachine.
func NewStateMachine(repo Repository, locker Locker, p *policy.Policy, amortizer *amortization.Engine, log logging.Logger, opts ...MachineOption) *StateMachine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	m := &StateMachine{
		repo:      repo,
		locker:    locker,
		policy:    p,
		amortizer: amortizer,
		log:       log.Named("loan.machine"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update loads the loan under its lock, applies fn and persists the result
// in one transaction. If fn fails nothing is written.
func (m *StateMachine) Update(ctx context.Context, id uuid.UUID, fn func(l *Loan, now time.Time) error) (*Loan, error) {
	return mutate(ctx, m.repo, m.locker, id, func(_ Repository, l *Loan) error {
		return fn(l, m.now())
	})
}

// Activate moves an approved loan to active, stamps the course start and
// authorizes milestone 0.
func (m *StateMachine) Activate(ctx context.Context, id uuid.UUID) (*Authorization, error) {
	var auth *Authorization
	_, err := mutate(ctx, m.repo, m.locker, id, func(tx Repository, l *Loan) error {
		if err := l.requireStatus("activate", StatusBankApproved); err != nil {
			return err
		}
		if !l.ApprovedAmount.IsPositive() {
			return errors.New(errors.ErrCodeLoanInvalidTerms, "approved amount must be positive before activation")
		}
		now := m.now()
		if err := l.TransitionTo(StatusActive, now); err != nil {
			return err
		}
		if l.CourseStartDate == nil {
			l.CourseStartDate = &now
		}
		var err error
		auth, err = m.authorize(ctx, tx, l, 0, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("loan activated", logging.LoanID(id.String()), logging.Money("amount", auth.Disbursement.Amount))
	return auth, nil
}

// VerifyMilestone checks the evidence for milestone n and authorizes its
// disbursement. Milestones are strictly sequential: n may be verified only
// once milestone n-1 is disbursed. On any rejection the loan is unchanged.
func (m *StateMachine) VerifyMilestone(ctx context.Context, id uuid.UUID, n int, ev Evidence) (*Authorization, error) {
	if err := ev.validate(); err != nil {
		return nil, err
	}
	var auth *Authorization
	_, err := mutate(ctx, m.repo, m.locker, id, func(tx Repository, l *Loan) error {
		if err := l.requireStatus("milestone verification", StatusActive, StatusDisbursementInProgress); err != nil {
			return err
		}
		if n < 0 || n >= len(l.Milestones) {
			return errors.Newf(errors.ErrCodeMilestoneUnknown, "milestone %d does not exist", n).
				WithDetail("loan_id=" + id.String())
		}
		if n > 0 && l.Milestones[n-1].Status != MilestoneDisbursed {
			return errors.Newf(errors.ErrCodeMilestoneOutOfOrder,
				"milestone %d requires milestone %d to be disbursed", n, n-1).WithDetail("loan_id=" + id.String())
		}
		ms := l.Milestones[n]
		if ms.Status == MilestoneVerified || ms.Status == MilestoneDisbursed {
			return errors.Newf(errors.ErrCodeMilestoneDisbursed, "milestone %d is already %s", n, ms.Status).
				WithDetail("loan_id=" + id.String())
		}
		if ev.CourseCompletionPct < ms.TargetPct {
			return errors.Newf(errors.ErrCodeEvidenceBelowTarget,
				"course completion %.2f%% is below the %.2f%% target of %s", ev.CourseCompletionPct, ms.TargetPct, ms.Name)
		}

		now := m.now()
		l.CourseCompletionPct = max(l.CourseCompletionPct, ev.CourseCompletionPct)
		if ev.AttendancePct != nil {
			l.AttendancePct = *ev.AttendancePct
		}
		if ev.AssessmentScore != nil {
			l.AssessmentScore = *ev.AssessmentScore
		}
		l.Milestones[n].ActualPct = ev.CourseCompletionPct
		if err := l.advanceMilestone(n, MilestoneVerified, now); err != nil {
			return err
		}
		if l.IsFinalMilestone(n) {
			l.IsCertified = true
			l.CertificationDate = &now
		}

		var err error
		auth, err = m.authorize(ctx, tx, l, n, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("milestone verified",
		logging.LoanID(id.String()),
		logging.Int("milestone", n),
		logging.Money("amount", auth.Disbursement.Amount),
		logging.Bool("fully_disbursed", auth.FullyDisbursed))
	return auth, nil
}

// authorize creates the Disbursement for milestone i and books it against the
// loan inside the caller's transaction. The final milestone takes whatever
// remains of the approved amount so the tranches sum exactly.
func (m *StateMachine) authorize(ctx context.Context, tx Repository, l *Loan, i int, now time.Time) (*Authorization, error) {
	ms := l.Milestones[i]
	amount := l.ApprovedAmount.Mul(decimal.NewFromFloat(ms.DisbursementPct)).Div(hundred).Round(2)
	if l.IsFinalMilestone(i) {
		amount = l.ApprovedAmount.Sub(l.DisbursedAmount)
	}
	if amount.IsNegative() || amount.GreaterThan(l.EscrowBalance()) {
		return nil, errors.Newf(errors.ErrCodeInternal, "tranche %s exceeds escrow %s", amount, l.EscrowBalance())
	}

	if ms.Status != MilestoneVerified {
		if err := l.advanceMilestone(i, MilestoneVerified, now); err != nil {
			return nil, err
		}
	}

	var recipient BankAccount
	if m.recipients != nil {
		acct, err := m.recipients.RecipientFor(ctx, l.ProviderID)
		if err != nil {
			return nil, err
		}
		recipient = acct
	}

	before := l.EscrowBalance()
	d := &Disbursement{
		ID:                  uuid.New(),
		LoanID:              l.ID,
		MilestoneNumber:     i,
		MilestoneName:       ms.Name,
		MilestonePct:        ms.DisbursementPct,
		Amount:              amount,
		Recipient:           recipient,
		Status:              DisbursementMilestoneVerified,
		EscrowBalanceBefore: before,
		EscrowBalanceAfter:  before.Sub(amount),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := tx.CreateDisbursement(ctx, d); err != nil {
		return nil, err
	}

	l.DisbursedAmount = l.DisbursedAmount.Add(amount)
	l.OutstandingPrincipal = l.OutstandingPrincipal.Add(amount)
	l.Milestones[i].Amount = amount
	did := d.ID
	l.Milestones[i].DisbursementID = &did
	if err := l.advanceMilestone(i, MilestoneDisbursed, now); err != nil {
		return nil, err
	}

	if l.Status == StatusActive {
		if err := l.TransitionTo(StatusDisbursementInProgress, now); err != nil {
			return nil, err
		}
	}
	auth := &Authorization{Loan: l, Disbursement: d, Milestone: i, Certified: l.IsFinalMilestone(i) && l.IsCertified}
	if l.IsFinalMilestone(i) {
		if err := l.TransitionTo(StatusFullyDisbursed, now); err != nil {
			return nil, err
		}
		auth.FullyDisbursed = true
	}
	return auth, nil
}

// EnterMoratorium moves a fully disbursed loan into moratorium and fixes the
// first EMI date at course start plus the moratorium, or from now if that
// date has already passed.
func (m *StateMachine) EnterMoratorium(ctx context.Context, id uuid.UUID) (*Loan, error) {
	l, err := mutate(ctx, m.repo, m.locker, id, func(_ Repository, l *Loan) error {
		now := m.now()
		if err := l.TransitionTo(StatusInMoratorium, now); err != nil {
			return err
		}
		start := now
		if l.CourseStartDate != nil {
			start = *l.CourseStartDate
		}
		first := start.AddDate(0, l.MoratoriumMonths, 0)
		if first.Before(now) {
			first = now.AddDate(0, l.MoratoriumMonths, 0)
		}
		l.FirstEMIDate = &first
		l.NextEMIDate = &first
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("loan entered moratorium", logging.LoanID(id.String()), logging.Time("first_emi_date", *l.FirstEMIDate))
	return l, nil
}

// StartRepayment generates the installment schedule over the outstanding
// principal and moves the loan to in_repayment.
func (m *StateMachine) StartRepayment(ctx context.Context, id uuid.UUID) (*Loan, []*Repayment, error) {
	var schedule []*Repayment
	l, err := mutate(ctx, m.repo, m.locker, id, func(tx Repository, l *Loan) error {
		if err := l.requireStatus("starting repayment", StatusInMoratorium); err != nil {
			return err
		}
		now := m.now()
		plan, err := m.amortizer.Amortize(l.OutstandingPrincipal, l.InterestRate, l.TenureMonths)
		if err != nil {
			return err
		}
		first := now
		if l.FirstEMIDate != nil {
			first = *l.FirstEMIDate
		}
		schedule = buildSchedule(l.ID, plan, first, m.policy.GracePeriodDays, now)
		if err := tx.CreateRepayments(ctx, schedule); err != nil {
			return err
		}

		l.EMIAmount = plan.StandardEMI
		l.StepUpEMIAmount = plan.StepUpEMI
		l.OutstandingInterest = plan.TotalInterest
		l.TotalEMIs = len(schedule)
		l.FirstEMIDate = &first
		l.NextEMIDate = &first
		return l.TransitionTo(StatusInRepayment, now)
	})
	if err != nil {
		return nil, nil, err
	}
	m.log.Info("repayment started",
		logging.LoanID(id.String()),
		logging.Int("installments", len(schedule)),
		logging.Money("emi", l.EMIAmount))
	return l, schedule, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Settlement callbacks
// ─────────────────────────────────────────────────────────────────────────────

// MarkBankInitiated records that the bank accepted the transfer request.
func (m *StateMachine) MarkBankInitiated(ctx context.Context, id uuid.UUID) (*Disbursement, error) {
	d, _, err := m.settle(ctx, id, func(d *Disbursement, now time.Time) bool {
		return d.markBankInitiated(now)
	})
	return d, err
}

// CompleteSettlement marks the disbursement completed. Repeated or late calls
// on a terminal record return it unchanged with changed == false. Loan
// balances were booked at authorization and are never touched here.
func (m *StateMachine) CompleteSettlement(ctx context.Context, id uuid.UUID, bankRef string) (d *Disbursement, changed bool, err error) {
	d, changed, err = m.settle(ctx, id, func(d *Disbursement, now time.Time) bool {
		return d.complete(bankRef, now)
	})
	if err == nil && changed {
		m.log.Info("disbursement settled", logging.DisbursementID(id.String()), logging.String("bank_reference", bankRef))
	}
	return d, changed, err
}

// FailSettlement marks the disbursement failed and increments its retry
// counter. The loan stays in its current status.
func (m *StateMachine) FailSettlement(ctx context.Context, id uuid.UUID, reason string) (d *Disbursement, changed bool, err error) {
	d, changed, err = m.settle(ctx, id, func(d *Disbursement, now time.Time) bool {
		return d.fail(reason, now)
	})
	if err == nil && changed {
		m.log.Warn("disbursement failed",
			logging.DisbursementID(id.String()),
			logging.String("reason", reason),
			logging.Int("retry_count", d.RetryCount))
	}
	return d, changed, err
}

// RetrySettlement reopens a failed disbursement for another attempt while
// its retry count is below the policy limit.
func (m *StateMachine) RetrySettlement(ctx context.Context, id uuid.UUID) (*Disbursement, error) {
	var gate error
	d, _, err := m.settle(ctx, id, func(d *Disbursement, now time.Time) bool {
		if d.Status != DisbursementFailed {
			gate = errors.Newf(errors.ErrCodeDisbursementNotFailed, "disbursement is %s, not failed", d.Status)
			return false
		}
		if d.RetryCount >= m.policy.MaxSettlementRetries {
			gate = errors.Newf(errors.ErrCodeSettlementRetryLimit,
				"disbursement has failed %d times, limit is %d", d.RetryCount, m.policy.MaxSettlementRetries)
			return false
		}
		d.Status = DisbursementMilestoneVerified
		d.FailureReason = ""
		d.UpdatedAt = now
		return true
	})
	if err != nil {
		return nil, err
	}
	if gate != nil {
		return nil, gate
	}
	return d, nil
}

// GetDisbursement loads one disbursement.
func (m *StateMachine) GetDisbursement(ctx context.Context, id uuid.UUID) (*Disbursement, error) {
	return m.repo.GetDisbursement(ctx, id)
}

func (m *StateMachine) settle(ctx context.Context, id uuid.UUID, apply func(*Disbursement, time.Time) bool) (*Disbursement, bool, error) {
	release, err := acquire(ctx, m.locker, disbursementLockKey(id))
	if err != nil {
		return nil, false, err
	}
	defer release()

	var (
		out     *Disbursement
		changed bool
	)
	err = m.repo.WithTx(ctx, func(tx Repository) error {
		d, err := tx.GetDisbursement(ctx, id)
		if err != nil {
			return err
		}
		out = d
		if changed = apply(d, m.now()); !changed {
			return nil
		}
		return tx.UpdateDisbursement(ctx, d)
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func (ev Evidence) validate() error {
	check := func(name string, v float64) error {
		if v < 0 || v > 100 {
			return errors.Validation(name + " must be within [0, 100]")
		}
		return nil
	}
	if err := check("course completion", ev.CourseCompletionPct); err != nil {
		return err
	}
	if ev.AttendancePct != nil {
		if err := check("attendance", *ev.AttendancePct); err != nil {
			return err
		}
	}
	if ev.AssessmentScore != nil {
		if err := check("assessment score", *ev.AssessmentScore); err != nil {
			return err
		}
	}
	return nil
}

func acquire(ctx context.Context, locker Locker, key string) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConflict, "failed to acquire lock")
	}
	return release, nil
}

// mutate serializes on the loan, reloads it inside a transaction, applies fn
// and persists it with the version check.
func mutate(ctx context.Context, repo Repository, locker Locker, id uuid.UUID, fn func(tx Repository, l *Loan) error) (*Loan, error) {
	release, err := acquire(ctx, locker, LockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	var out *Loan
	err = repo.WithTx(ctx, func(tx Repository) error {
		l, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(tx, l); err != nil {
			return err
		}
		if err := tx.Update(ctx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

//Personal.AI order the ending
