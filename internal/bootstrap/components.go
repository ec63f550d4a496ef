package bootstrap

import (
	"context"
	"time"

	"github.com/turtacn/EduLoan-Engine/internal/application/collections"
	"github.com/turtacn/EduLoan-Engine/internal/application/disbursement"
	"github.com/turtacn/EduLoan-Engine/internal/application/origination"
	"github.com/turtacn/EduLoan-Engine/internal/application/repayment"
	"github.com/turtacn/EduLoan-Engine/internal/application/settlement"
	"github.com/turtacn/EduLoan-Engine/internal/config"
	"github.com/turtacn/EduLoan-Engine/internal/domain/amortization"
	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/domain/pricing"
	"github.com/turtacn/EduLoan-Engine/internal/domain/scoring"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/prometheus"
)

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, evt loan.Event) error
}

// ReadModels is the borrower, course and provider store the services read
// and score against.
type ReadModels interface {
	origination.ReadModels
	scoring.ProfileStore
	loan.RecipientResolver
}

// Deps are the collaborators the services are built from. Publisher and
// Metrics may be nil.
type Deps struct {
	Policy      *policy.Policy
	Repo        loan.Repository
	ReadModels  ReadModels
	Locker      loan.Locker
	Deduper     disbursement.Deduper
	Publisher   Publisher
	Metrics     *prometheus.LendingMetrics
	Gateway     settlement.BankGateway
	Settlement  config.SettlementConfig
	Collections config.CollectionsConfig
	Logger      logging.Logger
	Now         func() time.Time
}

// Components are the assembled services.
type Components struct {
	Scores       *scoring.Engine
	Machine      *loan.StateMachine
	Ledger       *loan.Ledger
	Origination  origination.Service
	Disbursement disbursement.Service
	Repayment    repayment.Service
	Settler      *settlement.Settler
	Sweeper      *collections.Sweeper
}

// Build wires the domain engines and application services. The caller owns
// the Settler and must Shutdown it.
func Build(d Deps) *Components {
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Gateway == nil {
		d.Gateway = settlement.NewSimulatedGateway(d.Settlement.FailureRate, 0, time.Now().UnixNano())
	}

	amortizer := amortization.NewEngine(d.Policy)
	scores := scoring.NewEngine(d.Policy, d.ReadModels, d.Locker, d.Logger,
		scoring.WithClock(d.Now), scoring.WithMetrics(d.Metrics))
	machine := loan.NewStateMachine(d.Repo, d.Locker, d.Policy, amortizer, d.Logger,
		loan.WithMachineClock(d.Now), loan.WithRecipients(d.ReadModels))
	ledger := loan.NewLedger(d.Repo, d.Locker, d.Policy, d.Logger, d.Now)

	settlerOpts := []settlement.Option{settlement.WithMetrics(d.Metrics)}
	if d.Publisher != nil {
		settlerOpts = append(settlerOpts, settlement.WithPublisher(d.Publisher))
	}
	settler := settlement.NewSettler(machine, d.Gateway, settlement.Config{
		Delay:   d.Settlement.Delay,
		Timeout: d.Settlement.Timeout,
	}, d.Logger, settlerOpts...)

	// A nil Publisher must reach the services as a nil interface.
	var (
		origPub  origination.Publisher
		disbPub  disbursement.Publisher
		repayPub repayment.Publisher
		collPub  collections.Publisher
	)
	if d.Publisher != nil {
		origPub, disbPub, repayPub, collPub = d.Publisher, d.Publisher, d.Publisher, d.Publisher
	}

	disb := disbursement.NewService(disbursement.Deps{
		Machine:   machine,
		Repo:      d.Repo,
		Scheduler: settler,
		Deduper:   d.Deduper,
		Publisher: disbPub,
		Metrics:   d.Metrics,
		Logger:    d.Logger,
		Config:    disbursement.Config{MoratoriumDelay: d.Settlement.MoratoriumDelay},
	})

	return &Components{
		Scores:  scores,
		Machine: machine,
		Ledger:  ledger,
		Origination: origination.NewService(origination.Deps{
			Policy:     d.Policy,
			Scores:     scores,
			Prices:     pricing.NewEngine(d.Policy),
			Amortizer:  amortizer,
			Machine:    machine,
			Repo:       d.Repo,
			ReadModels: d.ReadModels,
			Publisher:  origPub,
			Metrics:    d.Metrics,
			Logger:     d.Logger,
			Now:        d.Now,
		}),
		Disbursement: disb,
		Repayment:    repayment.NewService(ledger, d.Repo, repayPub, d.Metrics, d.Logger),
		Settler:      settler,
		Sweeper: collections.NewSweeper(collections.Deps{
			Repo:       d.Repo,
			Assessor:   ledger,
			Starter:    disb,
			Moratorium: disb,
			Publisher:  collPub,
			Metrics:    d.Metrics,
			Logger:     d.Logger,
			Now:        d.Now,
		}, collections.Config{
			Interval:        d.Collections.Interval,
			Concurrency:     d.Collections.Concurrency,
			MoratoriumDelay: d.Settlement.MoratoriumDelay,
		}),
	}
}

//Personal.AI order the ending
