package settlement

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/EduLoan-Engine/internal/domain/loan"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// SimulatedGateway stands in for a bank transfer API. Each transfer waits
// Latency and then fails with probability FailureRate.
type SimulatedGateway struct {
	failureRate float64
	latency     time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedGateway builds a gateway with its own random source.
func NewSimulatedGateway(failureRate float64, latency time.Duration, seed int64) *SimulatedGateway {
	if failureRate < 0 {
		failureRate = 0
	}
	if failureRate > 1 {
		failureRate = 1
	}
	return &SimulatedGateway{
		failureRate: failureRate,
		latency:     latency,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

// Transfer implements BankGateway.
func (g *SimulatedGateway) Transfer(ctx context.Context, d *loan.Disbursement) (string, error) {
	if d.Recipient.AccountNumber == "" {
		return "", errors.New(errors.ErrCodeSettlementFailed, "recipient account is missing")
	}
	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()
	if roll < g.failureRate {
		return "", errors.New(errors.ErrCodeSettlementFailed, "bank declined the transfer")
	}
	return "UTR" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]), nil
}

//Personal.AI order the ending
