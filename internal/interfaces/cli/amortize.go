package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/EduLoan-Engine/internal/domain/amortization"
	"github.com/turtacn/EduLoan-Engine/internal/domain/pricing"
	"github.com/turtacn/EduLoan-Engine/pkg/errors"
)

// ScheduleResult wraps a plan for table output.
type ScheduleResult struct {
	*amortization.Plan
}

func (s ScheduleResult) TableHeaders() []string {
	return []string{"#", "TYPE", "OPENING", "EMI", "PRINCIPAL", "INTEREST", "BALANCE"}
}

func (s ScheduleResult) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Schedule)+1)
	for _, in := range s.Schedule {
		kind := "standard"
		if in.IsStepUp {
			kind = "step-up"
		}
		rows = append(rows, []string{
			strconv.Itoa(in.Number), kind,
			in.OpeningBalance.StringFixed(2), in.EMI.StringFixed(2),
			in.Principal.StringFixed(2), in.Interest.StringFixed(2), in.Balance.StringFixed(2),
		})
	}
	rows = append(rows, []string{"", "total", "", s.TotalPayable.StringFixed(2), s.Principal.StringFixed(2), s.TotalInterest.StringFixed(2), ""})
	return rows
}

func (s ScheduleResult) String() string {
	return fmt.Sprintf("Principal %s at %.2f%% over %d months: %d step-up EMIs of %s, then %s; total payable %s (interest %s)",
		s.Principal.StringFixed(2), s.AnnualRate, s.TenureMonths, s.StepUpMonths,
		s.StepUpEMI.StringFixed(2), s.StandardEMI.StringFixed(2),
		s.TotalPayable.StringFixed(2), s.TotalInterest.StringFixed(2))
}

// NewAmortizeCmd prints the month-by-month step-up schedule. The rate is
// either given directly or priced from a borrower score.
func NewAmortizeCmd() *cobra.Command {
	var (
		principal     string
		rate          float64
		borrowerScore float64
		tenure        int
	)

	cmd := &cobra.Command{
		Use:     "amortize",
		Short:   "Print the step-up repayment schedule for a principal",
		Example: "  eduloan amortize --principal 120000 --rate 10 --tenure 12 -o table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			amount, err := parseAmount(principal)
			if err != nil {
				return err
			}

			rateSet := cmd.Flags().Changed("rate")
			scoreSet := cmd.Flags().Changed("borrower-score")
			switch {
			case rateSet && scoreSet:
				return errors.InvalidParam("--rate and --borrower-score are mutually exclusive")
			case scoreSet:
				if err := validateScore("borrower-score", borrowerScore); err != nil {
					return err
				}
				rate = pricing.NewEngine(cliCtx.Policy).Price(borrowerScore).TotalRate
			case !rateSet:
				return errors.InvalidParam("one of --rate or --borrower-score is required")
			}
			if tenure == 0 {
				tenure = cliCtx.Policy.DefaultTenureMonths
			}

			plan, err := amortization.NewEngine(cliCtx.Policy).Amortize(amount, rate, tenure)
			if err != nil {
				return err
			}
			return PrintResult(cmd, ScheduleResult{Plan: plan})
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "", "principal to amortize [REQUIRED]")
	cmd.Flags().Float64Var(&rate, "rate", 0, "annual interest rate in percent")
	cmd.Flags().Float64Var(&borrowerScore, "borrower-score", 0, "price the rate from this borrower score")
	cmd.Flags().IntVar(&tenure, "tenure", 0, "tenure in months (default: policy default)")
	_ = cmd.MarkFlagRequired("principal")

	return cmd
}

//Personal.AI order the ending
