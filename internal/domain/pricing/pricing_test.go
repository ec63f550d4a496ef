package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

func TestPrice_RiskBands(t *testing.T) {
	e := NewEngine(policy.Default())

	cases := []struct {
		score    float64
		category policy.RiskCategory
		spread   float64
		total    float64
	}{
		{85, policy.RiskLow, 1.0, 9.5},
		{65, policy.RiskModerate, 1.5, 10.0},
		{40, policy.RiskHigh, 2.0, 10.5},
		{80, policy.RiskLow, 1.0, 9.5},
		{50, policy.RiskModerate, 1.5, 10.0},
	}
	for _, tc := range cases {
		q := e.Price(tc.score)
		assert.Equal(t, tc.category, q.RiskCategory, "score %.0f", tc.score)
		assert.Equal(t, tc.spread, q.SpreadRate, "score %.0f", tc.score)
		assert.Equal(t, 8.5, q.MCLRRate)
		assert.Equal(t, tc.total, q.TotalRate, "score %.0f", tc.score)
	}
}

func TestPrice_UsesConfiguredTable(t *testing.T) {
	raw := *policy.Default()
	raw.MCLRRate = 9
	raw.RiskBands = []policy.RiskBand{
		{Category: policy.RiskLow, MinScore: 70, Spread: 0.75},
		{Category: policy.RiskHigh, MinScore: 0, Spread: 3},
	}
	p, err := policy.New(raw)
	assert.NoError(t, err)

	q := NewEngine(p).Price(72)
	assert.Equal(t, 9.75, q.TotalRate)
	assert.Equal(t, 12.0, NewEngine(p).Price(69).TotalRate)
}

func TestProbabilityOfDefault(t *testing.T) {
	e := NewEngine(policy.Default())
	assert.InDelta(t, 0.5, e.ProbabilityOfDefault(0), 1e-9)
	assert.InDelta(t, 0.2, e.ProbabilityOfDefault(60), 1e-9)
	assert.InDelta(t, 0.05, e.ProbabilityOfDefault(95), 1e-9)
	assert.InDelta(t, 0.05, e.ProbabilityOfDefault(100), 1e-9)
	assert.InDelta(t, 0.5, e.ProbabilityOfDefault(-10), 1e-9)
}

func TestGuarantee(t *testing.T) {
	e := NewEngine(policy.Default())

	// 1.2 * 0.2 * 1,000,000 * 0.25
	q := e.Guarantee(60, decimal.NewFromInt(1_000_000))
	assert.True(t, decimal.NewFromInt(60000).Equal(q.Amount), q.Amount.String())
	assert.Equal(t, 6.0, q.DynamicPercentage)
	assert.Equal(t, policy.PerformanceAverage, q.TierCategory)
	assert.Equal(t, 25.0, q.StandingDepositPct)

	strong := e.Guarantee(92, decimal.NewFromInt(200000))
	assert.True(t, decimal.NewFromInt(3000).Equal(strong.Amount), strong.Amount.String())
	assert.Equal(t, 1.5, strong.DynamicPercentage)
	assert.Equal(t, 15.0, strong.StandingDepositPct)

	risky := e.Guarantee(20, decimal.NewFromInt(100000))
	assert.True(t, decimal.NewFromInt(12000).Equal(risky.Amount), risky.Amount.String())
	assert.Equal(t, 30.0, risky.StandingDepositPct)
}

func TestGuarantee_ZeroExpected(t *testing.T) {
	q := NewEngine(policy.Default()).Guarantee(70, decimal.Zero)
	assert.True(t, q.Amount.IsZero())
	assert.Equal(t, 0.0, q.DynamicPercentage)
}

func TestGuarantee_FullCoverage(t *testing.T) {
	raw := *policy.Default()
	raw.CGFSSDCoveragePercentage = 100
	p, err := policy.New(raw)
	assert.NoError(t, err)

	q := NewEngine(p).Guarantee(10, decimal.NewFromInt(500000))
	assert.True(t, q.Amount.IsZero())
}

//Personal.AI order the ending
