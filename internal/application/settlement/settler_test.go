package settlement

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/testutil"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeLedger struct {
	mu    sync.Mutex
	items map[uuid.UUID]*loan.Disbursement
}

func newFakeLedger(ds ...*loan.Disbursement) *fakeLedger {
	l := &fakeLedger{items: map[uuid.UUID]*loan.Disbursement{}}
	for _, d := range ds {
		l.items[d.ID] = d.Clone()
	}
	return l
}

func (l *fakeLedger) get(id uuid.UUID) *loan.Disbursement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[id].Clone()
}

func (l *fakeLedger) MarkBankInitiated(_ context.Context, id uuid.UUID) (*loan.Disbursement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.items[id]
	if d.Status == loan.DisbursementMilestoneVerified {
		d.Status = loan.DisbursementBankInitiated
	}
	return d.Clone(), nil
}

func (l *fakeLedger) CompleteSettlement(_ context.Context, id uuid.UUID, ref string) (*loan.Disbursement, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.items[id]
	if d.Status.IsTerminal() {
		return d.Clone(), false, nil
	}
	d.Status = loan.DisbursementCompleted
	d.BankReference = ref
	return d.Clone(), true, nil
}

func (l *fakeLedger) FailSettlement(_ context.Context, id uuid.UUID, why string) (*loan.Disbursement, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.items[id]
	if d.Status.IsTerminal() {
		return d.Clone(), false, nil
	}
	d.Status = loan.DisbursementFailed
	d.FailureReason = why
	d.RetryCount++
	return d.Clone(), true, nil
}

func (l *fakeLedger) ListUnsettledDisbursements(context.Context) ([]*loan.Disbursement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*loan.Disbursement
	for _, d := range l.items {
		if !d.Status.IsTerminal() {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

// reopen mirrors a settlement retry: a failed record goes back to
// milestone_verified.
func (l *fakeLedger) reopen(id uuid.UUID) *loan.Disbursement {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.items[id]
	d.Status = loan.DisbursementMilestoneVerified
	d.FailureReason = ""
	return d.Clone()
}

type publisherFunc func(ctx context.Context, evt loan.Event) error

func (f publisherFunc) Publish(ctx context.Context, evt loan.Event) error { return f(ctx, evt) }

type gatewayFunc func(ctx context.Context, d *loan.Disbursement) (string, error)

func (f gatewayFunc) Transfer(ctx context.Context, d *loan.Disbursement) (string, error) {
	return f(ctx, d)
}

type metricsSink struct {
	mu       sync.Mutex
	outcomes []string
	inFlight map[string]int
}

func (m *metricsSink) ObserveDisbursement(status string, _ int, _ decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, status)
}

func (m *metricsSink) ObserveSettlement(string, time.Duration) {}

func (m *metricsSink) SetTasksInFlight(kind string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight == nil {
		m.inFlight = map[string]int{}
	}
	m.inFlight[kind] = n
}

// manualClock fires After channels only when the test says so.
type manualClock struct{ fire chan time.Time }

func (c *manualClock) Now() time.Time                       { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
func (c *manualClock) After(time.Duration) <-chan time.Time { return c.fire }

func verified() *loan.Disbursement {
	return &loan.Disbursement{
		ID:              uuid.New(),
		LoanID:          uuid.New(),
		MilestoneNumber: 1,
		Amount:          decimal.NewFromInt(30000),
		Recipient:       loan.BankAccount{AccountNumber: "001122334455", IFSC: "HDFC0001234"},
		Status:          loan.DisbursementMilestoneVerified,
	}
}

func succeed(ref string) gatewayFunc {
	return func(context.Context, *loan.Disbursement) (string, error) { return ref, nil }
}

// ---------------------------------------------------------------------------
// Settlement
// ---------------------------------------------------------------------------

func TestSchedule_Completes(t *testing.T) {
	d := verified()
	ledger := newFakeLedger(d)
	events := testutil.NewEventRecorder()
	metrics := &metricsSink{}
	s := NewSettler(ledger, succeed("UTR42"), Config{Timeout: time.Second}, nil,
		WithPublisher(events), WithMetrics(metrics))

	require.True(t, s.Schedule(d))
	s.Wait()

	got := ledger.get(d.ID)
	assert.Equal(t, loan.DisbursementCompleted, got.Status)
	assert.Equal(t, "UTR42", got.BankReference)
	assert.Equal(t, []loan.EventType{loan.EventDisbursementCompleted}, events.Types())
	assert.Equal(t, []string{"completed"}, metrics.outcomes)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 0, metrics.inFlight[kindSettlement])
}

func TestSchedule_GatewayFailureIsRecorded(t *testing.T) {
	d := verified()
	ledger := newFakeLedger(d)
	events := testutil.NewEventRecorder()
	gw := gatewayFunc(func(context.Context, *loan.Disbursement) (string, error) {
		return "", errors.New(errors.ErrCodeSettlementFailed, "bank declined the transfer")
	})
	s := NewSettler(ledger, gw, Config{Timeout: time.Second}, nil, WithPublisher(events))

	s.Schedule(d)
	s.Wait()

	got := ledger.get(d.ID)
	assert.Equal(t, loan.DisbursementFailed, got.Status)
	assert.Equal(t, "bank declined the transfer", got.FailureReason)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, []loan.EventType{loan.EventDisbursementFailed}, events.Types())
}

func TestSchedule_TimeoutFails(t *testing.T) {
	d := verified()
	ledger := newFakeLedger(d)
	gw := gatewayFunc(func(ctx context.Context, _ *loan.Disbursement) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	s := NewSettler(ledger, gw, Config{Timeout: 20 * time.Millisecond}, nil)

	s.Schedule(d)
	s.Wait()

	got := ledger.get(d.ID)
	assert.Equal(t, loan.DisbursementFailed, got.Status)
	assert.Contains(t, got.FailureReason, "did not confirm")
}

func TestSchedule_RetryFromFailureHandlerRuns(t *testing.T) {
	d := verified()
	ledger := newFakeLedger(d)
	var attempts int32
	gw := gatewayFunc(func(context.Context, *loan.Disbursement) (string, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return "", errors.New(errors.ErrCodeSettlementFailed, "beneficiary bank offline")
		}
		return "UTR7", nil
	})

	var (
		s         *Settler
		retried   atomic.Bool
		completed atomic.Bool
	)
	pub := publisherFunc(func(_ context.Context, evt loan.Event) error {
		switch evt.Type {
		case loan.EventDisbursementFailed:
			retried.Store(s.Schedule(ledger.reopen(d.ID)))
		case loan.EventDisbursementCompleted:
			completed.Store(true)
		}
		return nil
	})
	s = NewSettler(ledger, gw, Config{Timeout: time.Second}, nil, WithPublisher(pub))

	require.True(t, s.Schedule(d))
	s.Wait()

	assert.True(t, retried.Load(), "retry issued while the failed attempt winds down must be scheduled")
	assert.True(t, completed.Load())
	got := ledger.get(d.ID)
	assert.Equal(t, loan.DisbursementCompleted, got.Status)
	assert.Equal(t, "UTR7", got.BankReference)
	assert.Equal(t, 1, got.RetryCount)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
	assert.Equal(t, 0, s.Pending())
}

func TestSchedule_SkipsTerminalRecord(t *testing.T) {
	d := verified()
	d.Status = loan.DisbursementCompleted
	ledger := newFakeLedger(d)
	var calls int32
	gw := gatewayFunc(func(context.Context, *loan.Disbursement) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "x", nil
	})
	s := NewSettler(ledger, gw, Config{}, nil)

	s.Schedule(d)
	s.Wait()
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSchedule_OncePerDisbursement(t *testing.T) {
	d := verified()
	ledger := newFakeLedger(d)
	release := make(chan struct{})
	gw := gatewayFunc(func(context.Context, *loan.Disbursement) (string, error) {
		<-release
		return "UTR1", nil
	})
	s := NewSettler(ledger, gw, Config{Timeout: time.Minute}, nil)

	require.True(t, s.Schedule(d))
	assert.False(t, s.Schedule(d))
	assert.Equal(t, 1, s.Pending())
	close(release)
	s.Wait()
	assert.Equal(t, loan.DisbursementCompleted, ledger.get(d.ID).Status)
}

func TestCancel_LeavesDisbursementUnsettled(t *testing.T) {
	d := verified()
	ledger := newFakeLedger(d)
	clock := &manualClock{fire: make(chan time.Time)}
	s := NewSettler(ledger, succeed("UTR"), Config{Delay: time.Hour}, nil, WithClock(clock))

	require.True(t, s.Schedule(d))
	assert.True(t, s.Cancel(SettlementKey(d.ID)))
	assert.False(t, s.Cancel(SettlementKey(d.ID)))
	s.Wait()

	assert.Equal(t, loan.DisbursementMilestoneVerified, ledger.get(d.ID).Status)
}

func TestShutdown_RefusesNewWork(t *testing.T) {
	d := verified()
	clock := &manualClock{fire: make(chan time.Time)}
	s := NewSettler(newFakeLedger(d), succeed("UTR"), Config{Delay: time.Hour}, nil, WithClock(clock))
	s.Schedule(d)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	assert.False(t, s.Schedule(verified()))
	assert.False(t, s.ScheduleAfter("x", 0, func(context.Context) {}))
}

func TestRecover_ReschedulesUnsettled(t *testing.T) {
	open1, open2, done := verified(), verified(), verified()
	open2.Status = loan.DisbursementBankInitiated
	done.Status = loan.DisbursementCompleted
	ledger := newFakeLedger(open1, open2, done)
	s := NewSettler(ledger, succeed("UTR"), Config{Timeout: time.Second}, nil)

	n, err := s.Recover(context.Background(), ledger)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	s.Wait()

	assert.Equal(t, loan.DisbursementCompleted, ledger.get(open1.ID).Status)
	assert.Equal(t, loan.DisbursementCompleted, ledger.get(open2.ID).Status)
}

// ---------------------------------------------------------------------------
// Delayed tasks
// ---------------------------------------------------------------------------

func TestScheduleAfter_WaitsForClock(t *testing.T) {
	clock := &manualClock{fire: make(chan time.Time, 1)}
	s := NewSettler(newFakeLedger(), succeed(""), Config{}, nil, WithClock(clock))

	ran := make(chan struct{})
	require.True(t, s.ScheduleAfter("moratorium:1", time.Hour, func(context.Context) { close(ran) }))
	assert.False(t, s.ScheduleAfter("moratorium:1", time.Hour, func(context.Context) {}))

	select {
	case <-ran:
		t.Fatal("task ran before its delay elapsed")
	case <-time.After(20 * time.Millisecond):
	}
	clock.fire <- clock.Now()
	s.Wait()
	<-ran
}

// ---------------------------------------------------------------------------
// Simulated gateway
// ---------------------------------------------------------------------------

func TestSimulatedGateway(t *testing.T) {
	ctx := context.Background()

	ok := NewSimulatedGateway(0, 0, 1)
	ref, err := ok.Transfer(ctx, verified())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "UTR"))
	assert.Len(t, ref, 15)

	bad := NewSimulatedGateway(1, 0, 1)
	_, err = bad.Transfer(ctx, verified())
	assert.True(t, errors.IsCode(err, errors.ErrCodeSettlementFailed))

	noAccount := verified()
	noAccount.Recipient = loan.BankAccount{}
	_, err = ok.Transfer(ctx, noAccount)
	assert.Error(t, err)

	slow := NewSimulatedGateway(0, time.Hour, 1)
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = slow.Transfer(cctx, verified())
	assert.True(t, stderrors.Is(err, context.Canceled))
}

//Personal.AI order the ending
