// internal/application/settlement/settler.go
//
// Asynchronous settlement of authorized disbursements. Every disbursement
// gets one cancellable task that waits the configured delay, asks the bank
// gateway to move the money and records the outcome on the disbursement.
// The same task registry runs other delayed lifecycle work (the moratorium
// transition), keyed so that each unit of work is scheduled at most once.
//
// A task cancelled by Shutdown leaves its disbursement unsettled; Recover
// reschedules such records on the next start.

package settlement

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Clock abstracts time so tests can control the settlement delay.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now().UTC() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// BankGateway moves money to the disbursement recipient and returns the bank
// reference of the transfer.
type BankGateway interface {
	Transfer(ctx context.Context, d *loan.Disbursement) (reference string, err error)
}

// Ledger records settlement outcomes. *loan.StateMachine satisfies it.
type Ledger interface {
	MarkBankInitiated(ctx context.Context, id uuid.UUID) (*loan.Disbursement, error)
	CompleteSettlement(ctx context.Context, id uuid.UUID, bankRef string) (*loan.Disbursement, bool, error)
	FailSettlement(ctx context.Context, id uuid.UUID, reason string) (*loan.Disbursement, bool, error)
}

// UnsettledLister lists disbursements that never reached a terminal status.
type UnsettledLister interface {
	ListUnsettledDisbursements(ctx context.Context) ([]*loan.Disbursement, error)
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt loan.Event) error
}

// Metrics receives settlement outcomes.
type Metrics interface {
	ObserveDisbursement(status string, milestone int, amount decimal.Decimal)
	ObserveSettlement(outcome string, d time.Duration)
	SetTasksInFlight(kind string, n int)
}

// Config bounds a settlement attempt.
type Config struct {
	// Delay is the pause between authorization and the transfer request.
	Delay time.Duration
	// Timeout caps one gateway call; an expired attempt is recorded as failed.
	Timeout time.Duration
}

// Option configures a Settler.
type Option func(*Settler)

// WithClock overrides the time source.
func WithClock(c Clock) Option { return func(s *Settler) { s.clock = c } }

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option { return func(s *Settler) { s.publisher = p } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option { return func(s *Settler) { s.metrics = m } }

// ---------------------------------------------------------------------------
// Settler
// ---------------------------------------------------------------------------

const (
	kindSettlement = "settlement"
	kindDelayed    = "delayed"
)

type task struct {
	kind   string
	cancel context.CancelFunc
}

// Settler runs keyed background tasks. It is safe for concurrent use.
type Settler struct {
	ledger    Ledger
	gateway   BankGateway
	cfg       Config
	clock     Clock
	publisher Publisher
	metrics   Metrics
	log       logging.Logger

	base context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup
}

// NewSettler builds a Settler. Call Shutdown to stop it.
func NewSettler(ledger Ledger, gateway BankGateway, cfg Config, log logging.Logger, opts ...Option) *Settler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	base, stop := context.WithCancel(context.Background())
	s := &Settler{
		ledger:  ledger,
		gateway: gateway,
		cfg:     cfg,
		clock:   realClock{},
		log:     log.Named("settlement"),
		base:    base,
		stop:    stop,
		tasks:   make(map[string]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SettlementKey is the task key of a disbursement's settlement.
func SettlementKey(id uuid.UUID) string { return "settle:" + id.String() }

// Schedule starts the settlement of d unless one is already running. It
// reports whether a task was started.
func (s *Settler) Schedule(d *loan.Disbursement) bool {
	snapshot := d.Clone()
	return s.spawn(SettlementKey(d.ID), kindSettlement, func(ctx context.Context, release func()) {
		s.settle(ctx, snapshot, release)
	})
}

// ScheduleAfter runs fn once after delay unless a task with the same key is
// already pending. fn receives a context cancelled by Cancel or Shutdown.
func (s *Settler) ScheduleAfter(key string, delay time.Duration, fn func(ctx context.Context)) bool {
	return s.spawn(key, kindDelayed, func(ctx context.Context, _ func()) {
		select {
		case <-s.clock.After(delay):
		case <-ctx.Done():
			return
		}
		fn(ctx)
	})
}

// Cancel stops the task registered under key. It reports whether one was
// pending.
func (s *Settler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.cancel()
	delete(s.tasks, key)
	s.reportLocked()
	return true
}

// Pending returns the number of registered tasks.
func (s *Settler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until every task started so far has returned.
func (s *Settler) Wait() { s.wg.Wait() }

// Shutdown refuses new tasks, cancels running ones and waits for them or ctx.
func (s *Settler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "settlement tasks did not stop in time")
	}
}

// Recover schedules every unsettled disbursement found by lister and returns
// how many tasks were started.
func (s *Settler) Recover(ctx context.Context, lister UnsettledLister) (int, error) {
	pending, err := lister.ListUnsettledDisbursements(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range pending {
		if s.Schedule(d) {
			n++
		}
	}
	if n > 0 {
		s.log.Info("rescheduled unsettled disbursements", logging.Int("count", n))
	}
	return n, nil
}

// spawn registers fn under key. fn may call release to free the key while it
// is still running, so a follow-up task for the same key can be scheduled.
func (s *Settler) spawn(key, kind string, fn func(ctx context.Context, release func())) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if _, ok := s.tasks[key]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(s.base)
	t := &task{kind: kind, cancel: cancel}
	s.tasks[key] = t
	s.reportLocked()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(key, t)
		fn(ctx, func() { s.release(key, t) })
	}()
	return true
}

func (s *Settler) finish(key string, t *task) {
	t.cancel()
	s.release(key, t)
}

func (s *Settler) release(key string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[key] == t {
		delete(s.tasks, key)
		s.reportLocked()
	}
}

func (s *Settler) reportLocked() {
	if s.metrics == nil {
		return
	}
	counts := map[string]int{kindSettlement: 0, kindDelayed: 0}
	for _, t := range s.tasks {
		counts[t.kind]++
	}
	for kind, n := range counts {
		s.metrics.SetTasksInFlight(kind, n)
	}
}

// ---------------------------------------------------------------------------
// Settlement attempt
// ---------------------------------------------------------------------------

type transferResult struct {
	ref string
	err error
}

// settle releases its key before recording a verdict: once the record is
// terminal a retry may reopen it and must be able to schedule a new attempt.
func (s *Settler) settle(ctx context.Context, d *loan.Disbursement, release func()) {
	select {
	case <-s.clock.After(s.cfg.Delay):
	case <-ctx.Done():
		return
	}
	started := s.clock.Now()

	current, err := s.ledger.MarkBankInitiated(ctx, d.ID)
	if err != nil {
		s.log.Error("failed to mark disbursement initiated", logging.DisbursementID(d.ID.String()), logging.Err(err))
		return
	}
	if current.Status.IsTerminal() {
		return
	}

	tctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan transferResult, 1)
	go func() {
		ref, err := s.gateway.Transfer(tctx, current)
		ch <- transferResult{ref: ref, err: err}
	}()

	var res transferResult
	select {
	case res = <-ch:
	case <-s.clock.After(s.cfg.Timeout):
		res.err = errors.Newf(errors.ErrCodeSettlementFailed, "bank did not confirm within %s", s.cfg.Timeout)
	case <-ctx.Done():
		return
	}

	release()
	if res.err == nil {
		s.complete(ctx, current, res.ref, started)
		return
	}
	s.fail(ctx, current, reason(res.err), started)
}

func (s *Settler) complete(ctx context.Context, d *loan.Disbursement, ref string, started time.Time) {
	out, changed, err := s.ledger.CompleteSettlement(ctx, d.ID, ref)
	if err != nil {
		s.log.Error("failed to record settlement", logging.DisbursementID(d.ID.String()), logging.Err(err))
		return
	}
	if !changed {
		return
	}
	s.observe(out, "completed", started)
	s.publish(ctx, loan.NewDisbursementEvent(loan.EventDisbursementCompleted, out, s.clock.Now()))
}

func (s *Settler) fail(ctx context.Context, d *loan.Disbursement, why string, started time.Time) {
	out, changed, err := s.ledger.FailSettlement(ctx, d.ID, why)
	if err != nil {
		s.log.Error("failed to record settlement failure", logging.DisbursementID(d.ID.String()), logging.Err(err))
		return
	}
	if !changed {
		return
	}
	s.observe(out, "failed", started)
	s.publish(ctx, loan.NewDisbursementEvent(loan.EventDisbursementFailed, out, s.clock.Now()))
}

func (s *Settler) observe(d *loan.Disbursement, outcome string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDisbursement(outcome, d.MilestoneNumber, d.Amount)
	s.metrics.ObserveSettlement(outcome, s.clock.Now().Sub(started))
}

func (s *Settler) publish(ctx context.Context, evt loan.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", logging.String("event_type", string(evt.Type)), logging.Err(err))
	}
}

func reason(err error) string {
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		return strings.TrimSpace(ae.Message)
	}
	return err.Error()
}

//Personal.AI order the ending
