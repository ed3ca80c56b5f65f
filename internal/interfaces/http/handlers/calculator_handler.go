package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/internal/interfaces/http/middleware"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// RuleResolver finds the live rule set for a location.
type RuleResolver interface {
	Resolve(ctx context.Context, state, city string) (*jurisdiction.Resolution, error)
}

// CalculatorHandler serves the public, stateless calculators. Rules are
// looked up only when the caller names a location instead of a figure.
type CalculatorHandler struct {
	rules RuleResolver
	now   func() time.Time
}

func NewCalculatorHandler(rules RuleResolver, now func() time.Time) *CalculatorHandler {
	if now == nil {
		now = time.Now
	}
	return &CalculatorHandler{rules: rules, now: now}
}

type DeadlineRequest struct {
	MoveOutDate  string `json:"move_out_date"`
	DeadlineDays *int   `json:"deadline_days,omitempty"`
	State        string `json:"state,omitempty"`
	City         string `json:"city,omitempty"`
}

type DeadlineResponse struct {
	MoveOutDate  string `json:"move_out_date"`
	DeadlineDays int    `json:"deadline_days"`
	calculator.DeadlineSummary
	Citations []string `json:"citations,omitempty"`
}

// Deadline handles POST /api/v1/calculator/deadline.
func (h *CalculatorHandler) Deadline(c *gin.Context) {
	var req DeadlineRequest
	if !bindJSON(c, &req) {
		return
	}
	moveOut, err := parseDate("move_out_date", req.MoveOutDate)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	resp := DeadlineResponse{MoveOutDate: moveOut.Format(dateLayout)}
	switch {
	case req.DeadlineDays != nil:
		if *req.DeadlineDays < 0 {
			middleware.RespondError(c, errors.InvalidParam("deadline_days must not be negative"))
			return
		}
		resp.DeadlineDays = *req.DeadlineDays
	case req.State != "":
		res, err := h.resolve(c, req.State, req.City)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		resp.DeadlineDays = res.RuleSet.ReturnDeadlineDays
		resp.Citations = res.RuleSet.Citations
	default:
		middleware.RespondError(c, errors.InvalidParam("deadline_days or state is required"))
		return
	}

	due := calculator.CalculateDeadline(moveOut, resp.DeadlineDays)
	resp.DeadlineSummary = calculator.Summarize(due, h.now())
	c.JSON(http.StatusOK, resp)
}

type PenaltyRequest struct {
	DepositAmount float64 `json:"deposit_amount"`
	PenaltyText   string  `json:"penalty_text,omitempty"`
	State         string  `json:"state,omitempty"`
	City          string  `json:"city,omitempty"`
}

type PenaltyLine struct {
	Condition   string   `json:"condition,omitempty"`
	Description string   `json:"description"`
	Multiplier  *int     `json:"multiplier"`
	Amount      *float64 `json:"amount"`
}

type PenaltyResponse struct {
	Penalties []PenaltyLine `json:"penalties"`
	// MaxAmount sums the quantifiable lines only.
	MaxAmount    float64 `json:"max_amount"`
	Unresolvable int     `json:"unresolvable"`
}

// Penalty handles POST /api/v1/calculator/penalty. A line whose text has no
// recognisable multiplier is returned with null amount.
func (h *CalculatorHandler) Penalty(c *gin.Context) {
	var req PenaltyRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.DepositAmount < 0 {
		middleware.RespondError(c, errors.InvalidParam("deposit_amount must not be negative"))
		return
	}

	var lines []jurisdiction.Penalty
	switch {
	case req.PenaltyText != "":
		lines = []jurisdiction.Penalty{{Description: req.PenaltyText}}
	case req.State != "":
		res, err := h.resolve(c, req.State, req.City)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		lines = res.RuleSet.Penalties
	default:
		middleware.RespondError(c, errors.InvalidParam("penalty_text or state is required"))
		return
	}

	resp := PenaltyResponse{Penalties: make([]PenaltyLine, 0, len(lines))}
	var resolved []float64
	for _, p := range lines {
		line := PenaltyLine{Condition: p.Condition, Description: p.Description}
		if m, ok := calculator.ParsePenaltyMultiplier(p.Description); ok {
			amount, _ := calculator.CalculatePenaltyAmount(req.DepositAmount, p.Description)
			line.Multiplier, line.Amount = &m, &amount
			resolved = append(resolved, amount)
		} else {
			resp.Unresolvable++
		}
		resp.Penalties = append(resp.Penalties, line)
	}
	resp.MaxAmount = calculator.SumAmounts(resolved)
	c.JSON(http.StatusOK, resp)
}

type InterestRequest struct {
	DepositAmount  float64  `json:"deposit_amount"`
	AnnualRate     *float64 `json:"annual_rate"`
	LeaseStartDate string   `json:"lease_start_date"`
	LeaseEndDate   string   `json:"lease_end_date"`
}

type InterestResponse struct {
	Interest float64 `json:"interest"`
}

// Interest handles POST /api/v1/calculator/interest.
func (h *CalculatorHandler) Interest(c *gin.Context) {
	var req InterestRequest
	if !bindJSON(c, &req) {
		return
	}
	start, err := parseDate("lease_start_date", req.LeaseStartDate)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	end, err := parseDate("lease_end_date", req.LeaseEndDate)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, InterestResponse{
		Interest: calculator.CalculateInterest(req.DepositAmount, req.AnnualRate, start, end),
	})
}

type RefundRequest struct {
	DepositAmount float64 `json:"deposit_amount"`
	Interest      float64 `json:"interest"`
	// Deductions may mix numbers and numeric strings; anything else is
	// skipped and counted.
	Deductions []calculator.LooseAmount `json:"deductions"`
}

type RefundResponse struct {
	TotalDeductions float64 `json:"total_deductions"`
	RefundAmount    float64 `json:"refund_amount"`
	OwesBalance     bool    `json:"owes_balance"`
	Skipped         int     `json:"skipped"`
}

// Refund handles POST /api/v1/calculator/refund.
func (h *CalculatorHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if !bindJSON(c, &req) {
		return
	}
	skipped := 0
	for _, a := range req.Deductions {
		if !a.Valid() {
			skipped++
		}
	}
	total := calculator.SumDeductions(req.Deductions)
	refund := calculator.CalculateRefundAmount(req.DepositAmount, req.Interest, total)
	c.JSON(http.StatusOK, RefundResponse{
		TotalDeductions: total,
		RefundAmount:    refund,
		OwesBalance:     refund < 0,
		Skipped:         skipped,
	})
}

type ProrationRequest struct {
	Amount           float64 `json:"amount"`
	AgeMonths        float64 `json:"age_months"`
	UsefulLifeMonths float64 `json:"useful_life_months,omitempty"`
}

type ProrationResponse struct {
	Fraction       float64 `json:"fraction"`
	ProratedAmount float64 `json:"prorated_amount"`
}

// Proration handles POST /api/v1/calculator/proration.
func (h *CalculatorHandler) Proration(c *gin.Context) {
	var req ProrationRequest
	if !bindJSON(c, &req) {
		return
	}
	c.JSON(http.StatusOK, ProrationResponse{
		Fraction:       calculator.CalculateProration(req.AgeMonths, req.UsefulLifeMonths),
		ProratedAmount: calculator.ApplyProration(req.Amount, req.AgeMonths, req.UsefulLifeMonths),
	})
}

func (h *CalculatorHandler) resolve(c *gin.Context, state, city string) (*jurisdiction.Resolution, error) {
	if h.rules == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "rule lookup is not configured")
	}
	return h.rules.Resolve(c.Request.Context(), state, city)
}
