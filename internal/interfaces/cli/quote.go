package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/turtacn/EduLoan-Engine/internal/domain/amortization"
	"github.com/turtacn/EduLoan-Engine/internal/domain/policy"
	"github.com/turtacn/EduLoan-Engine/internal/domain/pricing"
	"github.com/turtacn/EduLoan-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// QuoteResult is the offline terms for a prospective loan.
type QuoteResult struct {
	Amount           decimal.Decimal              `json:"amount"`
	TenureMonths     int                          `json:"tenure_months"`
	Pricing          pricing.Quote                `json:"pricing"`
	Guarantee        pricing.GuaranteeQuote       `json:"guarantee"`
	StandardEMI      decimal.Decimal              `json:"standard_emi"`
	StepUpEMI        decimal.Decimal              `json:"step_up_emi"`
	StepUpMonths     int                          `json:"step_up_months"`
	TotalPayable     decimal.Decimal              `json:"total_payable"`
	TotalInterest    decimal.Decimal              `json:"total_interest"`
	BorrowerEligible bool                         `json:"borrower_eligible"`
	ProviderEligible bool                         `json:"provider_eligible"`
	Tranches         []policy.MilestoneDefinition `json:"tranches"`
}

func (q *QuoteResult) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (q *QuoteResult) TableRows() [][]string {
	rows := [][]string{
		{"Amount", q.Amount.StringFixed(2)},
		{"Tenure (months)", strconv.Itoa(q.TenureMonths)},
		{"Risk category", string(q.Pricing.RiskCategory)},
		{"Interest rate", fmt.Sprintf("%.2f%% (MCLR %.2f + spread %.2f)", q.Pricing.TotalRate, q.Pricing.MCLRRate, q.Pricing.SpreadRate)},
		{"Step-up EMI", fmt.Sprintf("%s x %d", q.StepUpEMI.StringFixed(2), q.StepUpMonths)},
		{"Standard EMI", q.StandardEMI.StringFixed(2)},
		{"Total payable", q.TotalPayable.StringFixed(2)},
		{"Total interest", q.TotalInterest.StringFixed(2)},
		{"Guarantee", fmt.Sprintf("%s (%.2f%%, PD %.4f)", q.Guarantee.Amount.StringFixed(2), q.Guarantee.DynamicPercentage, q.Guarantee.PD)},
		{"Provider tier", fmt.Sprintf("%s, standing deposit %.0f%%", q.Guarantee.TierCategory, q.Guarantee.StandingDepositPct)},
		{"Borrower eligible", strconv.FormatBool(q.BorrowerEligible)},
		{"Provider eligible", strconv.FormatBool(q.ProviderEligible)},
	}
	for i, t := range q.Tranches {
		rows = append(rows, []string{fmt.Sprintf("Tranche %d", i), fmt.Sprintf("%s: %.0f%%", t.Name, t.DisbursementPercentage)})
	}
	return rows
}

func (q *QuoteResult) String() string {
	var sb strings.Builder
	for _, row := range q.TableRows() {
		fmt.Fprintf(&sb, "%-18s %s\n", row[0]+":", row[1])
	}
	return strings.TrimRight(sb.String(), "\n")
}

// NewQuoteCmd prices a loan from a borrower score and provider TPScore
// without touching any store.
func NewQuoteCmd() *cobra.Command {
	var (
		amount        string
		tenure        int
		borrowerScore float64
		tpScore       float64
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote rate, EMI and guarantee for a prospective loan",
		Long: "Price a loan under the configured lending policy: interest rate from the\n" +
			"borrower score, dynamic guarantee from the provider TPScore, and the\n" +
			"step-up EMI schedule totals.",
		Example: "  eduloan quote --amount 120000 --borrower-score 82 --tp-score 91 --tenure 24",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			principal, err := parseAmount(amount)
			if err != nil {
				return err
			}
			if err := validateScore("borrower-score", borrowerScore); err != nil {
				return err
			}
			if err := validateScore("tp-score", tpScore); err != nil {
				return err
			}

			result, err := buildQuote(cliCtx.Policy, principal, tenure, borrowerScore, tpScore)
			if err != nil {
				return err
			}
			cliCtx.Logger.Debug("Quote computed",
				logging.Money("amount", principal),
				logging.Float64("rate", result.Pricing.TotalRate),
				logging.Int("tenure_months", result.TenureMonths))
			return PrintResult(cmd, result)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "requested principal [REQUIRED]")
	cmd.Flags().IntVar(&tenure, "tenure", 0, "tenure in months (default: policy default)")
	cmd.Flags().Float64Var(&borrowerScore, "borrower-score", 0, "borrower score 0-100 [REQUIRED]")
	cmd.Flags().Float64Var(&tpScore, "tp-score", 0, "training provider TPScore 0-100 [REQUIRED]")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("borrower-score")
	_ = cmd.MarkFlagRequired("tp-score")

	return cmd
}

func buildQuote(p *policy.Policy, principal decimal.Decimal, tenure int, borrowerScore, tpScore float64) (*QuoteResult, error) {
	if principal.LessThan(p.MinLoanAmount) || principal.GreaterThan(p.MaxLoanAmount) {
		return nil, errors.Newf(errors.ErrCodeLoanAmountOutOfRange,
			"amount %s is outside %s..%s", principal.StringFixed(2),
			p.MinLoanAmount.StringFixed(2), p.MaxLoanAmount.StringFixed(2))
	}
	if tenure == 0 {
		tenure = p.DefaultTenureMonths
	}

	prices := pricing.NewEngine(p)
	q := prices.Price(borrowerScore)
	plan, err := amortization.NewEngine(p).Amortize(principal, q.TotalRate, tenure)
	if err != nil {
		return nil, err
	}

	return &QuoteResult{
		Amount:           principal,
		TenureMonths:     tenure,
		Pricing:          q,
		Guarantee:        prices.Guarantee(tpScore, principal),
		StandardEMI:      plan.StandardEMI,
		StepUpEMI:        plan.StepUpEMI,
		StepUpMonths:     plan.StepUpMonths,
		TotalPayable:     plan.TotalPayable,
		TotalInterest:    plan.TotalInterest,
		BorrowerEligible: borrowerScore >= p.EligibilityThreshold,
		ProviderEligible: tpScore >= p.TPEligibilityThreshold,
		Tranches:         p.Milestones,
	}, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.InvalidParam(fmt.Sprintf("invalid amount %q", s))
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.InvalidParam("amount must be positive")
	}
	return d, nil
}

func validateScore(name string, v float64) error {
	if v < 0 || v > 100 {
		return errors.InvalidParam(fmt.Sprintf("%s must be within 0..100, got %v", name, v))
	}
	return nil
}

//Personal.AI order the ending
