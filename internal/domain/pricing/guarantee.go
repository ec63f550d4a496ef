package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

var hundred = decimal.NewFromInt(100)

// GuaranteeQuote carries both guarantee figures for a provider. Amount and
// DynamicPercentage come from the probability-of-default formula;
// StandingDepositPercentage comes from the tier table. They answer different
// questions and are never merged.
type GuaranteeQuote struct {
	TPScore              float64                    `json:"tp_score"`
	ExpectedDisbursement decimal.Decimal            `json:"expected_disbursement"`
	PD                   float64                    `json:"pd"`
	RiskBuffer           float64                    `json:"risk_buffer"`
	CGFSSDCoverage       float64                    `json:"cgfssd_coverage"`
	Amount               decimal.Decimal            `json:"amount"`
	DynamicPercentage    float64                    `json:"dynamic_percentage"`
	TierCategory         policy.PerformanceCategory `json:"tier_category"`
	StandingDepositPct   float64                    `json:"standing_deposit_percentage"`
}

// ProbabilityOfDefault is max(MinPD, (100 - tpScore)/100 * PDScale).
func (e *Engine) ProbabilityOfDefault(tpScore float64) float64 {
	s := math.Max(0, math.Min(100, tpScore))
	return math.Max(e.policy.MinPD, (100-s)/100*e.policy.PDScale)
}

// Guarantee sizes the dynamic guarantee for expected disbursement volume and
// looks up the provider's standing deposit tier.
//
//	amount = riskBuffer * pd * expected * (1 - cgfssdCoverage/100), floored at 0
func (e *Engine) Guarantee(tpScore float64, expected decimal.Decimal) GuaranteeQuote {
	pd := e.ProbabilityOfDefault(tpScore)
	uncovered := 1 - e.policy.CGFSSDCoveragePercentage/100

	amount := expected.
		Mul(decimal.NewFromFloat(e.policy.RiskBuffer)).
		Mul(decimal.NewFromFloat(pd)).
		Mul(decimal.NewFromFloat(uncovered)).
		Round(2)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	var pct float64
	if expected.IsPositive() {
		pct = amount.Div(expected).Mul(hundred).Round(2).InexactFloat64()
	}

	tier := e.policy.GuaranteeTierFor(tpScore)
	return GuaranteeQuote{
		TPScore:              tpScore,
		ExpectedDisbursement: expected,
		PD:                   pd,
		RiskBuffer:           e.policy.RiskBuffer,
		CGFSSDCoverage:       e.policy.CGFSSDCoveragePercentage,
		Amount:               amount,
		DynamicPercentage:    pct,
		TierCategory:         tier.Category,
		StandingDepositPct:   tier.DepositPercentage,
	}
}

//Personal.AI order the ending
