// Package pricing turns scores into money terms: the loan interest rate from
// the borrower score, and the provider guarantee from the TPScore. Both
// engines are pure and hold only the immutable policy.
package pricing

import (
	"math"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
)

// Quote is the priced interest rate for a borrower score. Rates are annual
// percentages.
type Quote struct {
	BorrowerScore float64             `json:"borrower_score"`
	RiskCategory  policy.RiskCategory `json:"risk_category"`
	MCLRRate      float64             `json:"mclr_rate"`
	SpreadRate    float64             `json:"spread_rate"`
	TotalRate     float64             `json:"total_rate"`
}

// Engine prices loans and sizes provider guarantees.
type Engine struct {
	policy *policy.Policy
}

// NewEngine returns an Engine bound to p.
func NewEngine(p *policy.Policy) *Engine {
	return &Engine{policy: p}
}

// Price returns MCLR plus the spread of the risk band borrowerScore falls in.
func (e *Engine) Price(borrowerScore float64) Quote {
	band := e.policy.RiskBandFor(borrowerScore)
	return Quote{
		BorrowerScore: borrowerScore,
		RiskCategory:  band.Category,
		MCLRRate:      e.policy.MCLRRate,
		SpreadRate:    band.Spread,
		TotalRate:     math.Round((e.policy.MCLRRate+band.Spread)*100) / 100,
	}
}

//Personal.AI order the ending
