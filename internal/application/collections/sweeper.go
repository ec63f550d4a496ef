// internal/application/collections/sweeper.go
//
// Periodic collections sweep. Each pass:
//   0. moves fully disbursed loans into moratorium once MoratoriumDelay has
//      passed, covering transitions whose in-process timer was lost,
//   1. starts repayment for loans whose moratorium ends within one billing
//      cycle of the sweep time,
//   2. assesses every loan holding an installment past its grace period
//      (overdue marking, late fee, delinquent / npa transitions),
//   3. refreshes the delinquency gauges.
// Loans are processed in parallel with bounded concurrency; a failure on one
// loan is logged and counted without stopping the pass.

package collections

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// Assessor evaluates the delinquency of one loan. *loan.Ledger satisfies it.
type Assessor interface {
	AssessDelinquency(ctx context.Context, loanID uuid.UUID, asOf time.Time) (*loan.DelinquencyResult, error)
}

// RepaymentStarter opens the repayment schedule of a loan in moratorium.
type RepaymentStarter interface {
	StartRepayment(ctx context.Context, loanID uuid.UUID) (*loan.Loan, []*loan.Repayment, error)
}

// MoratoriumStarter moves a fully disbursed loan into moratorium.
type MoratoriumStarter interface {
	EnterMoratorium(ctx context.Context, loanID uuid.UUID) (*loan.Loan, error)
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt loan.Event) error
}

// Metrics receives sweep outcomes.
type Metrics interface {
	ObserveSweep(d time.Duration, err error)
	SetDelinquent(status string, n int)
	ObserveTransition(from, to string)
}

// Config tunes the sweeper.
type Config struct {
	Interval    time.Duration
	Concurrency int
	// MoratoriumDelay is how long a loan may sit fully disbursed before
	// the sweep moves it into moratorium.
	MoratoriumDelay time.Duration
}

// Report summarizes one pass.
type Report struct {
	AsOf              time.Time `json:"as_of"`
	EnteredMoratorium int       `json:"entered_moratorium"`
	Promoted          int       `json:"promoted"`
	Assessed          int       `json:"assessed"`
	NewlyOverdue      int       `json:"newly_overdue"`
	Delinquent        int       `json:"delinquent"`
	NPA               int       `json:"npa"`
	Failed            int       `json:"failed"`
}

// Sweeper runs collection passes.
type Sweeper struct {
	repo       loan.Repository
	assessor   Assessor
	starter    RepaymentStarter
	moratorium MoratoriumStarter
	publisher  Publisher
	metrics    Metrics
	cfg        Config
	log        logging.Logger
	now        func() time.Time
}

// Deps groups the collaborators of the sweeper.
type Deps struct {
	Repo       loan.Repository
	Assessor   Assessor
	Starter    RepaymentStarter
	Moratorium MoratoriumStarter
	Publisher  Publisher
	Metrics    Metrics
	Logger     logging.Logger
	Now        func() time.Time
}

// NewSweeper builds a Sweeper.
func NewSweeper(d Deps, cfg Config) *Sweeper {
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Sweeper{
		repo:       d.Repo,
		assessor:   d.Assessor,
		starter:    d.Starter,
		moratorium: d.Moratorium,
		publisher:  d.Publisher,
		metrics:    d.Metrics,
		cfg:        cfg,
		log:        d.Logger.Named("collections"),
		now:        d.Now,
	}
}

// Run sweeps immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx, s.now()); err != nil && ctx.Err() == nil {
			s.log.Error("collections sweep failed", logging.Err(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep performs one pass as of asOf.
func (s *Sweeper) Sweep(ctx context.Context, asOf time.Time) (rep *Report, err error) {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveSweep(time.Since(started), err)
		}
	}()

	rep = &Report{AsOf: asOf}
	var mu sync.Mutex

	if s.moratorium != nil {
		stale, err := s.fullyDisbursedBefore(ctx, asOf.Add(-s.cfg.MoratoriumDelay))
		if err != nil {
			return nil, err
		}
		err = s.each(ctx, stale, func(ctx context.Context, id uuid.UUID) error {
			_, err := s.moratorium.EnterMoratorium(ctx, id)
			if errors.IsCode(err, errors.ErrCodeLoanInvalidTransition) {
				// moved concurrently by the scheduled transition
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			rep.EnteredMoratorium++
			mu.Unlock()
			return nil
		}, rep, &mu)
		if err != nil {
			return nil, err
		}
	}

	if s.starter != nil {
		due, err := s.moratoriumEnding(ctx, asOf)
		if err != nil {
			return nil, err
		}
		err = s.each(ctx, due, func(ctx context.Context, id uuid.UUID) error {
			if _, _, err := s.starter.StartRepayment(ctx, id); err != nil {
				return err
			}
			mu.Lock()
			rep.Promoted++
			mu.Unlock()
			return nil
		}, rep, &mu)
		if err != nil {
			return nil, err
		}
	}

	overdue, err := s.repo.ListLoansWithOverdue(ctx, asOf)
	if err != nil {
		return nil, err
	}
	err = s.each(ctx, overdue, func(ctx context.Context, id uuid.UUID) error {
		res, err := s.assessor.AssessDelinquency(ctx, id, asOf)
		if err != nil {
			return err
		}
		mu.Lock()
		rep.Assessed++
		rep.NewlyOverdue += res.NewlyOverdue
		mu.Unlock()
		if res.Changed() {
			s.changed(ctx, res, asOf)
		}
		return nil
	}, rep, &mu)
	if err != nil {
		return nil, err
	}

	for _, st := range []loan.Status{loan.StatusDelinquent, loan.StatusNPA} {
		_, n, err := s.repo.List(ctx, loan.ListFilter{Statuses: []loan.Status{st}, Limit: 1})
		if err != nil {
			return nil, err
		}
		if st == loan.StatusDelinquent {
			rep.Delinquent = int(n)
		} else {
			rep.NPA = int(n)
		}
		if s.metrics != nil {
			s.metrics.SetDelinquent(string(st), int(n))
		}
	}

	s.log.Info("collections sweep finished",
		logging.Time("as_of", asOf),
		logging.Int("entered_moratorium", rep.EnteredMoratorium),
		logging.Int("promoted", rep.Promoted),
		logging.Int("assessed", rep.Assessed),
		logging.Int("newly_overdue", rep.NewlyOverdue),
		logging.Int("delinquent", rep.Delinquent),
		logging.Int("npa", rep.NPA),
		logging.Int("failed", rep.Failed))
	return rep, nil
}

// each runs fn for every id with at most Concurrency in flight. Per-loan
// errors are counted in rep.Failed; only cancellation aborts the pass.
func (s *Sweeper) each(ctx context.Context, ids []uuid.UUID, fn func(context.Context, uuid.UUID) error, rep *Report, mu *sync.Mutex) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			if err := fn(gctx, id); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn("collections step failed for loan", logging.LoanID(id.String()), logging.Err(err))
				mu.Lock()
				rep.Failed++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// fullyDisbursedBefore lists fully disbursed loans last updated at or before
// cutoff.
func (s *Sweeper) fullyDisbursedBefore(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := s.scan(ctx, loan.StatusFullyDisbursed, func(l *loan.Loan) {
		if !l.UpdatedAt.After(cutoff) {
			out = append(out, l.ID)
		}
	})
	return out, err
}

// moratoriumEnding lists loans in moratorium whose first EMI falls within
// one month after asOf.
func (s *Sweeper) moratoriumEnding(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	horizon := asOf.AddDate(0, 1, 0)
	var out []uuid.UUID
	err := s.scan(ctx, loan.StatusInMoratorium, func(l *loan.Loan) {
		if l.FirstEMIDate != nil && !l.FirstEMIDate.After(horizon) {
			out = append(out, l.ID)
		}
	})
	return out, err
}

// scan pages through every loan in status.
func (s *Sweeper) scan(ctx context.Context, status loan.Status, fn func(*loan.Loan)) error {
	const page = 200
	for offset := 0; ; offset += page {
		ls, total, err := s.repo.List(ctx, loan.ListFilter{Statuses: []loan.Status{status}, Limit: page, Offset: offset})
		if err != nil {
			return err
		}
		for _, l := range ls {
			fn(l)
		}
		if len(ls) == 0 || int64(offset+len(ls)) >= total {
			return nil
		}
	}
}

func (s *Sweeper) changed(ctx context.Context, res *loan.DelinquencyResult, asOf time.Time) {
	from, to := res.PreviousState, res.Loan.Status
	if s.metrics != nil {
		// npa is reached through delinquent within one assessment.
		if from == loan.StatusInRepayment && to == loan.StatusNPA {
			s.metrics.ObserveTransition(string(from), string(loan.StatusDelinquent))
			from = loan.StatusDelinquent
		}
		s.metrics.ObserveTransition(string(from), string(to))
	}
	evt := loan.EventLoanDelinquent
	if to == loan.StatusNPA {
		evt = loan.EventLoanNPA
	}
	if s.publisher == nil {
		return
	}
	e := loan.NewEvent(evt, res.Loan, asOf, map[string]any{
		"days_past_due":   res.DaysPastDue,
		"newly_overdue":   res.NewlyOverdue,
		"previous_status": string(res.PreviousState),
	})
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.Warn("event publish failed", logging.String("event_type", string(evt)), logging.Err(err))
	}
}

//Personal.AI order the ending
