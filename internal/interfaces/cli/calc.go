package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const dateLayout = "2006-01-02"

// NewCalcCmd groups the offline deposit calculators. None of them needs a
// server or configuration.
func NewCalcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Run the deposit calculators locally",
	}
	cmd.AddCommand(
		newCalcDeadlineCmd(),
		newCalcInterestCmd(),
		newCalcRefundCmd(),
		newCalcPenaltyCmd(),
		newCalcProrationCmd(),
	)
	return cmd
}

func parseDateFlag(name, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errors.InvalidParam(fmt.Sprintf("--%s must be YYYY-MM-DD", name)).WithField(name, value)
	}
	return t, nil
}

func money(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// DeadlineResult is the output of calc deadline.
type DeadlineResult struct {
	MoveOutDate  string `json:"move_out_date"`
	DeadlineDays int    `json:"deadline_days"`
	calculator.DeadlineSummary
}

func (r DeadlineResult) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (r DeadlineResult) TableRows() [][]string {
	return [][]string{
		{"move_out_date", r.MoveOutDate},
		{"deadline_days", strconv.Itoa(r.DeadlineDays)},
		{"due_date", r.DueDate.Format(dateLayout)},
		{"days_left", strconv.Itoa(r.DaysLeft)},
		{"overdue", strconv.FormatBool(r.IsOverdue)},
		{"urgency", string(r.Urgency)},
	}
}

func newCalcDeadlineCmd() *cobra.Command {
	var (
		moveOut string
		days    int
		asOf    string
	)
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Compute the deposit return due date and urgency",
		RunE: func(cmd *cobra.Command, args []string) error {
			mo, err := parseDateFlag("move-out", moveOut)
			if err != nil {
				return err
			}
			if days < 0 {
				return errors.InvalidParam("--days must not be negative")
			}
			now, err := referenceTime(cmd, asOf)
			if err != nil {
				return err
			}
			due := calculator.CalculateDeadline(mo, days)
			return PrintResult(cmd, DeadlineResult{
				MoveOutDate:     mo.Format(dateLayout),
				DeadlineDays:    days,
				DeadlineSummary: calculator.Summarize(due, now),
			})
		},
	}
	cmd.Flags().StringVar(&moveOut, "move-out", "", "move-out date, YYYY-MM-DD")
	cmd.Flags().IntVar(&days, "days", 0, "days the jurisdiction allows for the return")
	cmd.Flags().StringVar(&asOf, "as-of", "", "count days left from this date instead of today")
	_ = cmd.MarkFlagRequired("move-out")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func referenceTime(cmd *cobra.Command, asOf string) (time.Time, error) {
	if asOf != "" {
		return parseDateFlag("as-of", asOf)
	}
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return time.Now(), nil
	}
	return cliCtx.Deps.Now(), nil
}

type InterestResult struct {
	Interest float64 `json:"interest"`
}

func (r InterestResult) String() string { return "interest: " + money(r.Interest) }

func newCalcInterestCmd() *cobra.Command {
	var (
		deposit    float64
		rate       float64
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "interest",
		Short: "Compute simple interest owed on a deposit",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := parseDateFlag("start", start)
			if err != nil {
				return err
			}
			e, err := parseDateFlag("end", end)
			if err != nil {
				return err
			}
			var ratePtr *float64
			if cmd.Flags().Changed("rate") {
				ratePtr = &rate
			}
			return PrintResult(cmd, InterestResult{Interest: calculator.CalculateInterest(deposit, ratePtr, s, e)})
		},
	}
	cmd.Flags().Float64Var(&deposit, "deposit", 0, "deposit amount")
	cmd.Flags().Float64Var(&rate, "rate", 0, "annual rate as a fraction, e.g. 0.01")
	cmd.Flags().StringVar(&start, "start", "", "lease start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "lease end or move-out date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("deposit")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// RefundResult is the output of calc refund.
type RefundResult struct {
	TotalDeductions float64 `json:"total_deductions"`
	RefundAmount    float64 `json:"refund_amount"`
	OwesBalance     bool    `json:"owes_balance"`
	Skipped         int     `json:"skipped"`
}

func (r RefundResult) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (r RefundResult) TableRows() [][]string {
	return [][]string{
		{"total_deductions", money(r.TotalDeductions)},
		{"refund_amount", money(r.RefundAmount)},
		{"owes_balance", strconv.FormatBool(r.OwesBalance)},
		{"skipped", strconv.Itoa(r.Skipped)},
	}
}

func newCalcRefundCmd() *cobra.Command {
	var (
		deposit    float64
		interest   float64
		deductions []string
	)
	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Compute the refund after deductions",
		Long: "Compute deposit + interest - deductions. Deductions that are not numbers\n" +
			"are skipped and counted. A negative refund means the tenant owes a balance.",
		Example: "  landlordctl calc refund --deposit 1500 --deduction 100 --deduction 50.255",
		RunE: func(cmd *cobra.Command, args []string) error {
			amounts := make([]calculator.LooseAmount, 0, len(deductions))
			skipped := 0
			for _, d := range deductions {
				a := calculator.AmountOf(d)
				if !a.Valid() {
					skipped++
				}
				amounts = append(amounts, a)
			}
			total := calculator.SumDeductions(amounts)
			refund := calculator.CalculateRefundAmount(deposit, interest, total)
			return PrintResult(cmd, RefundResult{
				TotalDeductions: total,
				RefundAmount:    refund,
				OwesBalance:     refund < 0,
				Skipped:         skipped,
			})
		},
	}
	cmd.Flags().Float64Var(&deposit, "deposit", 0, "deposit amount")
	cmd.Flags().Float64Var(&interest, "interest", 0, "interest owed to the tenant")
	cmd.Flags().StringArrayVar(&deductions, "deduction", nil, "deduction amount; repeatable")
	_ = cmd.MarkFlagRequired("deposit")
	return cmd
}

// PenaltyResult is the output of calc penalty.
type PenaltyResult struct {
	Multiplier *int     `json:"multiplier"`
	Amount     *float64 `json:"amount"`
}

func (r PenaltyResult) String() string {
	if r.Amount == nil {
		return "penalty: not quantifiable from the statute text"
	}
	return fmt.Sprintf("penalty: %s (%dx deposit)", money(*r.Amount), *r.Multiplier)
}

func newCalcPenaltyCmd() *cobra.Command {
	var (
		deposit float64
		text    string
	)
	cmd := &cobra.Command{
		Use:     "penalty",
		Short:   "Compute the statutory penalty for a late or missing return",
		Example: `  landlordctl calc penalty --deposit 1200 --text "2x the deposit"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res PenaltyResult
			if m, ok := calculator.ParsePenaltyMultiplier(text); ok {
				amount, _ := calculator.CalculatePenaltyAmount(deposit, text)
				res = PenaltyResult{Multiplier: &m, Amount: &amount}
			}
			return PrintResult(cmd, res)
		},
	}
	cmd.Flags().Float64Var(&deposit, "deposit", 0, "deposit amount")
	cmd.Flags().StringVar(&text, "text", "", `penalty text, e.g. "2x the deposit"`)
	_ = cmd.MarkFlagRequired("deposit")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// ProrationResult is the output of calc proration.
type ProrationResult struct {
	Fraction       float64 `json:"fraction"`
	ProratedAmount float64 `json:"prorated_amount"`
}

func (r ProrationResult) String() string {
	return fmt.Sprintf("prorated amount: %s (%.4f of cost)", money(r.ProratedAmount), r.Fraction)
}

func newCalcProrationCmd() *cobra.Command {
	var amount, age, life float64
	cmd := &cobra.Command{
		Use:   "proration",
		Short: "Prorate a replacement cost by the item's remaining useful life",
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, ProrationResult{
				Fraction:       calculator.CalculateProration(age, life),
				ProratedAmount: calculator.ApplyProration(amount, age, life),
			})
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 0, "replacement cost")
	cmd.Flags().Float64Var(&age, "age", 0, "item age in months")
	cmd.Flags().Float64Var(&life, "life", calculator.DefaultUsefulLifeMonths, "useful life in months")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("age")
	return cmd
}
