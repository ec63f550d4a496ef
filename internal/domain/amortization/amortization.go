// Package amortization produces the reducing-balance EMI plan for a loan:
// a standard EMI, a reduced step-up EMI for the opening installments and the
// full month-by-month schedule. Every figure is rounded to 2 decimal places
// when it is computed, so the schedule matches the ledger entries built from it.
package amortization

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

var monthsTimesPercent = decimal.NewFromInt(1200)

// Installment is one row of the schedule.
type Installment struct {
	Number         int             `json:"number"`
	IsStepUp       bool            `json:"is_step_up"`
	EMI            decimal.Decimal `json:"emi"`
	Principal      decimal.Decimal `json:"principal"`
	Interest       decimal.Decimal `json:"interest"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
}

// Plan is the output of Amortize.
type Plan struct {
	Principal     decimal.Decimal `json:"principal"`
	AnnualRate    float64         `json:"annual_rate"`
	TenureMonths  int             `json:"tenure_months"`
	StepUpMonths  int             `json:"step_up_months"`
	StandardEMI   decimal.Decimal `json:"standard_emi"`
	StepUpEMI     decimal.Decimal `json:"step_up_emi"`
	TotalPayable  decimal.Decimal `json:"total_payable"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	Schedule      []Installment   `json:"schedule"`
}

// Engine builds amortization plans under a policy's step-up terms.
type Engine struct {
	stepUpMonths int
	stepUpPct    decimal.Decimal
}

// NewEngine returns an Engine using p's step-up months and percentage.
func NewEngine(p *policy.Policy) *Engine {
	return &Engine{
		stepUpMonths: p.StepUpMonths,
		stepUpPct:    decimal.NewFromFloat(p.StepUpPercentage),
	}
}

// StandardEMI is the closed-form reducing-balance installment
// P*r*(1+r)^n / ((1+r)^n - 1) with r = annualRatePct/12/100, or P/n at 0%.
func StandardEMI(principal decimal.Decimal, annualRatePct float64, tenureMonths int) decimal.Decimal {
	if annualRatePct == 0 {
		return principal.Div(decimal.NewFromInt(int64(tenureMonths))).Round(2)
	}
	r := annualRatePct / 12 / 100
	growth := math.Pow(1+r, float64(tenureMonths))
	p := principal.InexactFloat64()
	return decimal.NewFromFloat(p * r * growth / (growth - 1)).Round(2)
}

// Amortize validates the terms and walks the schedule month by month. The
// final installment settles whatever balance remains, so the schedule always
// closes at exactly zero.
func (e *Engine) Amortize(principal decimal.Decimal, annualRatePct float64, tenureMonths int) (*Plan, error) {
	if !principal.IsPositive() {
		return nil, errors.New(errors.ErrCodeLoanInvalidTerms, "principal must be positive")
	}
	if annualRatePct < 0 || math.IsNaN(annualRatePct) || math.IsInf(annualRatePct, 0) {
		return nil, errors.New(errors.ErrCodeLoanInvalidTerms, "annual rate must be a non-negative number")
	}
	if tenureMonths < 1 {
		return nil, errors.New(errors.ErrCodeLoanInvalidTerms, "tenure must be at least one month")
	}

	standard := StandardEMI(principal, annualRatePct, tenureMonths)
	stepUp := standard.Mul(e.stepUpPct).Div(decimal.NewFromInt(100)).Round(2)
	stepUpMonths := max(0, min(e.stepUpMonths, tenureMonths-1))
	rate := decimal.NewFromFloat(annualRatePct)

	plan := &Plan{
		Principal:    principal,
		AnnualRate:   annualRatePct,
		TenureMonths: tenureMonths,
		StepUpMonths: stepUpMonths,
		StandardEMI:  standard,
		StepUpEMI:    stepUp,
		Schedule:     make([]Installment, 0, tenureMonths),
	}

	balance := principal
	total := decimal.Zero
	for n := 1; n <= tenureMonths; n++ {
		isStepUp := n <= stepUpMonths
		emi := standard
		if isStepUp {
			emi = stepUp
		}
		interest := balance.Mul(rate).Div(monthsTimesPercent).Round(2)

		var part decimal.Decimal
		if n == tenureMonths {
			part = balance
			emi = part.Add(interest)
		} else {
			part = decimal.Min(decimal.Max(emi.Sub(interest), decimal.Zero), balance)
		}

		opening := balance
		balance = balance.Sub(part)
		total = total.Add(emi)
		plan.Schedule = append(plan.Schedule, Installment{
			Number:         n,
			IsStepUp:       isStepUp,
			EMI:            emi,
			Principal:      part,
			Interest:       interest,
			OpeningBalance: opening,
			Balance:        balance,
		})
	}

	plan.TotalPayable = total
	plan.TotalInterest = total.Sub(principal)
	return plan, nil
}

//Personal.AI order the ending
