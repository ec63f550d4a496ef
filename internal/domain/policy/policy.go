// Package policy holds the lending policy: every threshold, percentage and
// table the scoring, pricing, guarantee, amortization and disbursement engines
// read. A Policy is built once (from configuration or Default) and then shared
// read-only; engines receive it at construction time.
package policy

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// RiskCategory classifies a borrower by score for pricing.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskModerate RiskCategory = "moderate"
	RiskHigh     RiskCategory = "high"
)

// PerformanceCategory classifies a training provider by TPScore.
type PerformanceCategory string

const (
	PerformanceStrong  PerformanceCategory = "strong"
	PerformanceAverage PerformanceCategory = "average"
	PerformanceRisky   PerformanceCategory = "risky"
)

// RiskBand maps a borrower score floor to a category and its rate spread.
type RiskBand struct {
	Category RiskCategory `json:"category"`
	MinScore float64      `json:"min_score"`
	Spread   float64      `json:"spread"`
}

// GuaranteeTier maps a TPScore floor to a performance category and the
// standing deposit percentage held against that provider.
type GuaranteeTier struct {
	Category          PerformanceCategory `json:"category"`
	MinScore          float64             `json:"min_score"`
	DepositPercentage float64             `json:"deposit_percentage"`
}

// MilestoneDefinition describes one disbursement checkpoint.
type MilestoneDefinition struct {
	Name                   string  `json:"name"`
	TargetPercentage       float64 `json:"target_percentage"`
	DisbursementPercentage float64 `json:"disbursement_percentage"`
}

// Policy is the complete set of lending parameters.
type Policy struct {
	MCLRRate   float64
	RiskBands  []RiskBand
	Guarantees []GuaranteeTier

	CGFSSDCoveragePercentage float64
	RiskBuffer               float64
	MinPD                    float64
	PDScale                  float64

	StepUpMonths     int
	StepUpPercentage float64

	Milestones []MilestoneDefinition

	MinLoanAmount         decimal.Decimal
	MaxLoanAmount         decimal.Decimal
	DefaultTenureMonths   int
	MoratoriumExtraMonths int
	GracePeriodDays       int

	EligibilityThreshold   float64
	TPEligibilityThreshold float64

	LateFee              decimal.Decimal
	NPAThresholdDays     int
	MaxSettlementRetries int
}

// Default returns the documented default policy.
func Default() *Policy {
	return &Policy{
		MCLRRate: 8.5,
		RiskBands: []RiskBand{
			{Category: RiskLow, MinScore: 80, Spread: 1.0},
			{Category: RiskModerate, MinScore: 50, Spread: 1.5},
			{Category: RiskHigh, MinScore: 0, Spread: 2.0},
		},
		Guarantees: []GuaranteeTier{
			{Category: PerformanceStrong, MinScore: 80, DepositPercentage: 15},
			{Category: PerformanceAverage, MinScore: 50, DepositPercentage: 25},
			{Category: PerformanceRisky, MinScore: 0, DepositPercentage: 30},
		},
		CGFSSDCoveragePercentage: 75,
		RiskBuffer:               1.2,
		MinPD:                    0.05,
		PDScale:                  0.5,
		StepUpMonths:             6,
		StepUpPercentage:         50,
		Milestones: []MilestoneDefinition{
			{Name: "T0 Enrollment", TargetPercentage: 0, DisbursementPercentage: 30},
			{Name: "T1 33% Completion", TargetPercentage: 33, DisbursementPercentage: 30},
			{Name: "T2 66% Completion", TargetPercentage: 66, DisbursementPercentage: 20},
			{Name: "T3 Certification", TargetPercentage: 100, DisbursementPercentage: 20},
		},
		MinLoanAmount:          decimal.NewFromInt(10000),
		MaxLoanAmount:          decimal.NewFromInt(750000),
		DefaultTenureMonths:    36,
		MoratoriumExtraMonths:  3,
		GracePeriodDays:        7,
		EligibilityThreshold:   50,
		TPEligibilityThreshold: 50,
		LateFee:                decimal.NewFromInt(500),
		NPAThresholdDays:       90,
		MaxSettlementRetries:   3,
	}
}

// New validates p and returns an independent copy with bands and tiers sorted
// by descending floor. Callers must not mutate the returned Policy.
func New(p Policy) (*Policy, error) {
	c := p
	c.RiskBands = append([]RiskBand(nil), p.RiskBands...)
	c.Guarantees = append([]GuaranteeTier(nil), p.Guarantees...)
	c.Milestones = append([]MilestoneDefinition(nil), p.Milestones...)
	sort.SliceStable(c.RiskBands, func(i, j int) bool { return c.RiskBands[i].MinScore > c.RiskBands[j].MinScore })
	sort.SliceStable(c.Guarantees, func(i, j int) bool { return c.Guarantees[i].MinScore > c.Guarantees[j].MinScore })
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the structural invariants of the policy.
func (p *Policy) Validate() error {
	if err := ValidateMilestones(p.Milestones); err != nil {
		return err
	}
	if len(p.RiskBands) == 0 {
		return invalid("at least one risk band is required")
	}
	if p.RiskBands[len(p.RiskBands)-1].MinScore > 0 {
		return invalid("lowest risk band must start at score 0")
	}
	if len(p.Guarantees) == 0 {
		return invalid("at least one guarantee tier is required")
	}
	if p.Guarantees[len(p.Guarantees)-1].MinScore > 0 {
		return invalid("lowest guarantee tier must start at score 0")
	}
	if p.MCLRRate < 0 {
		return invalid("mclr rate must not be negative")
	}
	if p.CGFSSDCoveragePercentage < 0 || p.CGFSSDCoveragePercentage > 100 {
		return invalid("cgfssd coverage must be within [0, 100]")
	}
	if p.MinPD < 0 || p.MinPD > 1 || p.PDScale < 0 || p.RiskBuffer < 0 {
		return invalid("pd floor, pd scale and risk buffer must be non-negative fractions")
	}
	if p.StepUpMonths < 0 || p.StepUpPercentage <= 0 || p.StepUpPercentage > 100 {
		return invalid("step-up months must be >= 0 and step-up percentage within (0, 100]")
	}
	if !p.MinLoanAmount.IsPositive() || p.MaxLoanAmount.LessThan(p.MinLoanAmount) {
		return invalid("loan amount bounds must satisfy 0 < min <= max")
	}
	if p.DefaultTenureMonths < 1 {
		return invalid("default tenure must be at least one month")
	}
	if p.GracePeriodDays < 0 || p.NPAThresholdDays < 1 || p.MaxSettlementRetries < 0 {
		return invalid("grace days, npa threshold and retry limit must be non-negative")
	}
	return nil
}

// ValidateMilestones checks that disbursement percentages sum to exactly 100
// and target percentages are strictly increasing within [0, 100].
func ValidateMilestones(ms []MilestoneDefinition) error {
	if len(ms) == 0 {
		return invalid("at least one milestone is required")
	}
	var sum float64
	for i, m := range ms {
		if m.DisbursementPercentage <= 0 {
			return invalid(fmt.Sprintf("milestone %d disbursement percentage must be positive", i))
		}
		if m.TargetPercentage < 0 || m.TargetPercentage > 100 {
			return invalid(fmt.Sprintf("milestone %d target percentage must be within [0, 100]", i))
		}
		if i > 0 && m.TargetPercentage <= ms[i-1].TargetPercentage {
			return invalid(fmt.Sprintf("milestone %d target percentage must exceed milestone %d", i, i-1))
		}
		sum += m.DisbursementPercentage
	}
	if math.Abs(sum-100) > 1e-9 {
		return invalid(fmt.Sprintf("milestone disbursement percentages sum to %.2f, want 100", sum))
	}
	return nil
}

// RiskBandFor returns the band whose floor is the highest one not above score.
func (p *Policy) RiskBandFor(score float64) RiskBand {
	for _, b := range p.RiskBands {
		if score >= b.MinScore {
			return b
		}
	}
	return p.RiskBands[len(p.RiskBands)-1]
}

// NextRiskBand returns the band immediately better than the one score falls
// into, or false when score is already in the best band.
func (p *Policy) NextRiskBand(score float64) (RiskBand, bool) {
	for i, b := range p.RiskBands {
		if score >= b.MinScore {
			if i == 0 {
				return RiskBand{}, false
			}
			return p.RiskBands[i-1], true
		}
	}
	return RiskBand{}, false
}

// GuaranteeTierFor returns the provider tier for tpScore.
func (p *Policy) GuaranteeTierFor(tpScore float64) GuaranteeTier {
	for _, g := range p.Guarantees {
		if tpScore >= g.MinScore {
			return g
		}
	}
	return p.Guarantees[len(p.Guarantees)-1]
}

// NextGuaranteeTier mirrors NextRiskBand for provider tiers.
func (p *Policy) NextGuaranteeTier(tpScore float64) (GuaranteeTier, bool) {
	for i, g := range p.Guarantees {
		if tpScore >= g.MinScore {
			if i == 0 {
				return GuaranteeTier{}, false
			}
			return p.Guarantees[i-1], true
		}
	}
	return GuaranteeTier{}, false
}

func invalid(msg string) error {
	return errors.New(errors.ErrCodePolicyInvalid, msg)
}

//Personal.AI order the ending
