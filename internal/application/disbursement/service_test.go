package disbursement

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/application/settlement"
	"github.com/turtacn/EduLoan-Engine/internal/domain/amortization"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
	"github.com/turtacn/EduLoan-Engine/pkg/keymutex"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []uuid.UUID
	delayed   map[string]func(context.Context)
	cancelled []string
	// busy holds settlement keys of attempts that are still running.
	busy map[string]bool
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{delayed: map[string]func(context.Context){}}
}

func (s *recordingScheduler) Schedule(d *loan.Disbursement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[settlement.SettlementKey(d.ID)] {
		return false
	}
	s.scheduled = append(s.scheduled, d.ID)
	return true
}

func (s *recordingScheduler) ScheduleAfter(key string, _ time.Duration, fn func(context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delayed[key]; ok {
		return false
	}
	s.delayed[key] = fn
	return true
}

func (s *recordingScheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, key)
	_, ok := s.delayed[key]
	delete(s.delayed, key)
	if s.busy[key] {
		delete(s.busy, key)
		ok = true
	}
	return ok
}

// run executes the delayed task registered under key.
func (s *recordingScheduler) run(key string) bool {
	s.mu.Lock()
	fn, ok := s.delayed[key]
	s.mu.Unlock()
	if ok {
		fn(context.Background())
	}
	return ok
}

type mapDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *mapDeduper) FirstSeen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *mapDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

func (d *mapDeduper) has(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[key]
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	tranches    []string
}

func (m *recordingMetrics) ObserveTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from+"->"+to)
}

func (m *recordingMetrics) ObserveDisbursement(status string, _ int, _ decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tranches = append(m.tranches, status)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

var now = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       Service
	repo      *testutil.MemoryLoanRepo
	machine   *loan.StateMachine
	scheduler *recordingScheduler
	deduper   *mapDeduper
	events    *testutil.EventRecorder
	metrics   *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := policy.Default()
	repo := testutil.NewMemoryLoanRepo()
	models := testutil.NewMemoryReadModels()
	testutil.SeedLending(models, now)
	machine := loan.NewStateMachine(repo, keymutex.New(), p, amortization.NewEngine(p), nil,
		loan.WithMachineClock(func() time.Time { return now }), loan.WithRecipients(models))
	f := &fixture{
		repo:      repo,
		machine:   machine,
		scheduler: newRecordingScheduler(),
		deduper:   &mapDeduper{},
		events:    testutil.NewEventRecorder(),
		metrics:   &recordingMetrics{},
	}
	f.svc = NewService(Deps{
		Machine:   machine,
		Repo:      repo,
		Scheduler: f.scheduler,
		Deduper:   f.deduper,
		Publisher: f.events,
		Metrics:   f.metrics,
		Logger:    testutil.NewMockLogger(),
		Config:    Config{MoratoriumDelay: time.Minute},
	})
	return f
}

func (f *fixture) approved(t *testing.T) *loan.Loan {
	t.Helper()
	l := testutil.ApprovedLoan("100000", now)
	f.repo.Put(l)
	return l
}

func (f *fixture) disburseAll(t *testing.T, l *loan.Loan) *loan.Authorization {
	t.Helper()
	ctx := context.Background()
	auth, err := f.svc.Activate(ctx, l.ID)
	require.NoError(t, err)
	for i := 1; i < len(l.Milestones); i++ {
		auth, err = f.svc.VerifyMilestone(ctx, l.ID, i, loan.Evidence{CourseCompletionPct: l.Milestones[i].TargetPct})
		require.NoError(t, err)
	}
	return auth
}

// ---------------------------------------------------------------------------
// Activation and milestones
// ---------------------------------------------------------------------------

func TestActivate_SchedulesFirstTranche(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)

	auth, err := f.svc.Activate(context.Background(), l.ID)
	require.NoError(t, err)

	assert.Equal(t, loan.StatusDisbursementInProgress, auth.Loan.Status)
	assert.True(t, auth.Disbursement.Amount.Equal(decimal.NewFromInt(30000)))
	assert.Equal(t, "HDFC0001234", auth.Disbursement.Recipient.IFSC)
	assert.Equal(t, []uuid.UUID{auth.Disbursement.ID}, f.scheduler.scheduled)
	assert.Equal(t, []loan.EventType{loan.EventLoanActivated, loan.EventDisbursementAuthorized}, f.events.Types())
	assert.Equal(t, []string{"bank_approved->active", "active->disbursement_in_progress"}, f.metrics.transitions)
}

func TestActivate_RequiresApproval(t *testing.T) {
	f := newFixture(t)
	l := testutil.ApprovedLoan("100000", now)
	l.Status = loan.StatusSubmitted
	f.repo.Put(l)

	_, err := f.svc.Activate(context.Background(), l.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeLoanInvalidTransition))
	assert.Empty(t, f.scheduler.scheduled)
	assert.Empty(t, f.events.Types())
}

func TestVerifyMilestone_OutOfOrder(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)
	_, err := f.svc.Activate(context.Background(), l.ID)
	require.NoError(t, err)

	_, err = f.svc.VerifyMilestone(context.Background(), l.ID, 2, loan.Evidence{CourseCompletionPct: 70})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMilestoneOutOfOrder))
	assert.Len(t, f.scheduler.scheduled, 1)
}

func TestFullDisbursement_SchedulesMoratorium(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)

	auth := f.disburseAll(t, l)
	require.True(t, auth.FullyDisbursed)
	assert.Len(t, f.scheduler.scheduled, 4)
	assert.True(t, f.events.Has(loan.EventLoanCertified))

	key := MoratoriumKey(l.ID)
	require.True(t, f.scheduler.run(key))

	stored, err := f.repo.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusInMoratorium, stored.Status)
	require.NotNil(t, stored.FirstEMIDate)
	assert.Equal(t, now.AddDate(0, 3, 0), *stored.FirstEMIDate)
	assert.Contains(t, f.scheduler.cancelled, key)
	assert.True(t, f.events.Has(loan.EventMoratoriumStarted))
	assert.Contains(t, f.metrics.transitions, "disbursement_in_progress->fully_disbursed")
}

func TestEnterMoratorium_ManualThenScheduledIsHarmless(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)
	f.disburseAll(t, l)

	_, err := f.svc.EnterMoratorium(context.Background(), l.ID)
	require.NoError(t, err)
	assert.False(t, f.scheduler.run(MoratoriumKey(l.ID)), "manual transition cancels the pending task")
}

func TestStartRepayment(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)
	f.disburseAll(t, l)
	_, err := f.svc.EnterMoratorium(context.Background(), l.ID)
	require.NoError(t, err)

	started, schedule, err := f.svc.StartRepayment(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusInRepayment, started.Status)
	assert.Len(t, schedule, 12)
	assert.True(t, f.events.Has(loan.EventRepaymentStarted))
}

// ---------------------------------------------------------------------------
// Settlement callbacks
// ---------------------------------------------------------------------------

func TestHandleSettlementCallback_CompletesOnce(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)
	auth, err := f.svc.Activate(context.Background(), l.ID)
	require.NoError(t, err)
	id := auth.Disbursement.ID

	cb := SettlementCallback{DisbursementID: id, Status: CallbackCompleted, BankReference: "UTR9"}
	d, err := f.svc.HandleSettlementCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, loan.DisbursementCompleted, d.Status)
	assert.Contains(t, f.scheduler.cancelled, settlement.SettlementKey(id))

	again, err := f.svc.HandleSettlementCallback(context.Background(), cb)
	require.NoError(t, err)
	assert.Equal(t, loan.DisbursementCompleted, again.Status)

	late, err := f.svc.HandleSettlementCallback(context.Background(), SettlementCallback{DisbursementID: id, Status: CallbackFailed})
	require.NoError(t, err)
	assert.Equal(t, loan.DisbursementCompleted, late.Status, "terminal records are never reopened by callbacks")
	assert.Zero(t, late.RetryCount)

	completed := 0
	for _, typ := range f.events.Types() {
		if typ == loan.EventDisbursementCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestHandleSettlementCallback_DedupeOutageFallsBackToIdempotency(t *testing.T) {
	f := newFixture(t)
	f.deduper.err = stderrors.New("redis down")
	l := f.approved(t)
	auth, err := f.svc.Activate(context.Background(), l.ID)
	require.NoError(t, err)

	d, err := f.svc.HandleSettlementCallback(context.Background(), SettlementCallback{
		DisbursementID: auth.Disbursement.ID, Status: CallbackFailed, Reason: "account frozen",
	})
	require.NoError(t, err)
	assert.Equal(t, loan.DisbursementFailed, d.Status)
	assert.Equal(t, "account frozen", d.FailureReason)
	assert.Equal(t, 1, d.RetryCount)
}

func TestHandleSettlementCallback_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.HandleSettlementCallback(context.Background(), SettlementCallback{Status: CallbackCompleted})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = f.svc.HandleSettlementCallback(context.Background(), SettlementCallback{DisbursementID: uuid.New(), Status: "maybe"})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	missing := uuid.New()
	_, err = f.svc.HandleSettlementCallback(context.Background(), SettlementCallback{DisbursementID: missing, Status: CallbackCompleted, BankReference: "UTR1"})
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, f.deduper.has("settlement-callback:"+missing.String()+":completed:UTR1"), "failed callbacks must stay retryable")
}

func TestRetrySettlement(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)
	auth, err := f.svc.Activate(context.Background(), l.ID)
	require.NoError(t, err)
	id := auth.Disbursement.ID

	_, err = f.svc.RetrySettlement(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDisbursementNotFailed))

	for i := 0; i < policy.Default().MaxSettlementRetries; i++ {
		_, err = f.svc.HandleSettlementCallback(context.Background(), SettlementCallback{
			DisbursementID: id, Status: CallbackFailed, BankReference: string(rune('a' + i)),
		})
		require.NoError(t, err)
		if i < policy.Default().MaxSettlementRetries-1 {
			d, err := f.svc.RetrySettlement(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, loan.DisbursementMilestoneVerified, d.Status)
		}
	}

	_, err = f.svc.RetrySettlement(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSettlementRetryLimit))
	assert.Len(t, f.scheduler.scheduled, policy.Default().MaxSettlementRetries)
}

func TestRetrySettlement_ReplacesLingeringAttempt(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)
	ctx := context.Background()
	auth, err := f.svc.Activate(ctx, l.ID)
	require.NoError(t, err)
	id := auth.Disbursement.ID
	key := settlement.SettlementKey(id)

	_, err = f.svc.HandleSettlementCallback(ctx, SettlementCallback{DisbursementID: id, Status: CallbackFailed, BankReference: "r1"})
	require.NoError(t, err)

	f.scheduler.mu.Lock()
	f.scheduler.busy = map[string]bool{key: true}
	f.scheduler.cancelled = nil
	f.scheduler.mu.Unlock()

	d, err := f.svc.RetrySettlement(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, loan.DisbursementMilestoneVerified, d.Status)
	assert.Equal(t, []string{key}, f.scheduler.cancelled)
	assert.Equal(t, []uuid.UUID{id, id}, f.scheduler.scheduled, "initial attempt and the retry")
}

func TestListDisbursements(t *testing.T) {
	f := newFixture(t)
	l := f.approved(t)
	f.disburseAll(t, l)

	ds, err := f.svc.ListDisbursements(context.Background(), l.ID)
	require.NoError(t, err)
	require.Len(t, ds, 4)
	sum := decimal.Zero
	for _, d := range ds {
		sum = sum.Add(d.Amount)
	}
	assert.True(t, sum.Equal(decimal.NewFromInt(100000)))

	_, err = f.svc.ListDisbursements(context.Background(), uuid.New())
	assert.True(t, errors.IsCode(err, errors.ErrCodeLoanNotFound))
}

// ---------------------------------------------------------------------------
// With the real settler
// ---------------------------------------------------------------------------

func TestActivate_SettlesThroughSettler(t *testing.T) {
	p := policy.Default()
	repo := testutil.NewMemoryLoanRepo()
	models := testutil.NewMemoryReadModels()
	testutil.SeedLending(models, now)
	machine := loan.NewStateMachine(repo, keymutex.New(), p, amortization.NewEngine(p), nil, loan.WithRecipients(models))
	events := testutil.NewEventRecorder()
	settler := settlement.NewSettler(machine, settlement.NewSimulatedGateway(0, 0, 7),
		settlement.Config{Timeout: time.Second}, nil, settlement.WithPublisher(events))
	svc := NewService(Deps{Machine: machine, Repo: repo, Scheduler: settler, Publisher: events})

	l := testutil.ApprovedLoan("50000", now)
	repo.Put(l)
	auth, err := svc.Activate(context.Background(), l.ID)
	require.NoError(t, err)
	settler.Wait()

	d, err := svc.GetDisbursement(context.Background(), auth.Disbursement.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.DisbursementCompleted, d.Status)
	assert.NotEmpty(t, d.BankReference)
	assert.True(t, events.Has(loan.EventDisbursementCompleted))

	stored, err := repo.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, stored.DisbursedAmount.Equal(decimal.NewFromInt(15000)), "settlement never changes loan amounts")
}

//Personal.AI order the ending
