// Package exposure estimates the statutory penalties a landlord could face
// on a case. It is a keyword heuristic over penalty text, not a legal
// determination.
package exposure

import (
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
)

// Likelihood is a qualitative chance the penalty applies.
type Likelihood string

const (
	LikelihoodLow    Likelihood = "LOW"
	LikelihoodMedium Likelihood = "MEDIUM"
	LikelihoodHigh   Likelihood = "HIGH"
)

// warningDays is the days-left threshold that raises a deadline penalty to
// MEDIUM.
const warningDays = 7

var deadlineKeywords = []string{"deadline", "late", "return", "days"}

// PenaltyExposure is the estimate for one penalty rule. Amount is nil when
// the description cannot be quantified.
type PenaltyExposure struct {
	Condition   string     `json:"condition"`
	Description string     `json:"description"`
	Citation    string     `json:"citation,omitempty"`
	Multiplier  *int       `json:"multiplier"`
	Amount      *float64   `json:"amount"`
	Likelihood  Likelihood `json:"likelihood"`
}

// Estimate aggregates every penalty of a rule set.
type Estimate struct {
	CaseID       string            `json:"case_id"`
	Penalties    []PenaltyExposure `json:"penalties"`
	MinExposure  float64           `json:"min_exposure"`
	MaxExposure  float64           `json:"max_exposure"`
	Unresolvable int               `json:"unresolvable"`
	DaysLeft     int               `json:"days_left"`
	Overdue      bool              `json:"overdue"`
}

// EstimateCase computes exposure for c under rs as of now. A nil rule set
// yields an empty estimate.
func EstimateCase(c *disposition.Case, rs *jurisdiction.RuleSet, now time.Time) *Estimate {
	days := calculator.CalculateDaysUntilDeadline(c.DueDate, now)
	overdue := days < 0
	hasStatement := c.HasDocument(disposition.DocumentItemizedStatement)

	est := &Estimate{CaseID: c.ID, DaysLeft: days, Overdue: overdue, Penalties: []PenaltyExposure{}}
	var resolved []float64
	if rs == nil {
		return est
	}
	for _, p := range rs.Penalties {
		pe := PenaltyExposure{
			Condition:   p.Condition,
			Description: p.Description,
			Citation:    p.Citation,
			Likelihood:  AssessLikelihood(p.Condition, days, hasStatement),
		}
		if amount, ok := calculator.CalculatePenaltyAmount(c.DepositAmount, p.Description); ok {
			m, _ := calculator.ParsePenaltyMultiplier(p.Description)
			pe.Multiplier = &m
			pe.Amount = &amount
			resolved = append(resolved, amount)
		} else {
			est.Unresolvable++
		}
		est.Penalties = append(est.Penalties, pe)
	}
	est.MaxExposure = calculator.SumAmounts(resolved)
	return est
}

// AssessLikelihood grades one penalty condition. Bad-faith conditions are
// hard to prove and always LOW; the remaining rules key off the deadline
// and whether an itemized statement exists.
func AssessLikelihood(condition string, daysLeft int, hasItemizedStatement bool) Likelihood {
	c := strings.ToLower(condition)
	overdue := daysLeft < 0

	switch {
	case strings.Contains(c, "bad faith"):
		return LikelihoodLow
	case containsAny(c, deadlineKeywords):
		if overdue {
			return LikelihoodHigh
		}
		if daysLeft <= warningDays {
			return LikelihoodMedium
		}
		return LikelihoodLow
	case strings.Contains(c, "itemiz"):
		if hasItemizedStatement {
			return LikelihoodLow
		}
		if overdue {
			return LikelihoodHigh
		}
		return LikelihoodMedium
	}
	return LikelihoodMedium
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
