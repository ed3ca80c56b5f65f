// Package readiness scores whether a case is ready to be sent. Each check is
// independent and the checker never mutates the case.
package readiness

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/domain/disposition"
)

// Severity grades a failed check.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Check ids, in evaluation order.
const (
	CheckMoveOutDate         = "move_out_date"
	CheckDeadlineNotPassed   = "deadline_not_passed"
	CheckDeductionsReconcile = "deductions_reconcile"
	CheckNoticeLetter        = "notice_letter"
	CheckItemizedStatement   = "itemized_statement"
	CheckDeliveryMethod      = "delivery_method"
	CheckForwardingAddress   = "forwarding_address"
	CheckChecklistComplete   = "checklist_complete"
	CheckDeductionEvidence   = "deduction_evidence"
	CheckHighRiskDeductions  = "high_risk_deductions"
	CheckPrimaryTenantName   = "primary_tenant_name"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details"`
}

// Report aggregates every check.
type Report struct {
	CaseID  string        `json:"case_id"`
	Ready   bool          `json:"ready"`
	Score   int           `json:"score"`
	Passed  int           `json:"passed"`
	Total   int           `json:"total"`
	Checks  []CheckResult `json:"checks"`
	Checked time.Time     `json:"checked_at"`
}

// Failures returns the failed checks of the given severity.
func (r *Report) Failures(sev Severity) []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == sev {
			out = append(out, c)
		}
	}
	return out
}

// Input is the snapshot a report is computed from.
type Input struct {
	Case                *disposition.Case
	ItemizationRequired bool
	Now                 time.Time
}

type check struct {
	id       string
	name     string
	severity Severity
	eval     func(in Input) (bool, string)
}

var checks = []check{
	{CheckMoveOutDate, "Move-out date recorded", SeverityError, moveOutDate},
	{CheckDeadlineNotPassed, "Return deadline not passed", SeverityError, deadlineNotPassed},
	{CheckDeductionsReconcile, "Deductions within deposit and interest", SeverityError, deductionsReconcile},
	{CheckNoticeLetter, "Notice letter generated", SeverityError, noticeLetter},
	{CheckItemizedStatement, "Itemized statement generated", SeverityError, itemizedStatement},
	{CheckDeliveryMethod, "Delivery method selected", SeverityError, deliveryMethod},
	{CheckForwardingAddress, "Forwarding address documented", SeverityWarning, forwardingAddress},
	{CheckChecklistComplete, "Required checklist items complete", SeverityError, checklistComplete},
	{CheckDeductionEvidence, "Deductions supported by evidence", SeverityWarning, deductionEvidence},
	{CheckHighRiskDeductions, "No high-risk deductions", SeverityWarning, highRiskDeductions},
	{CheckPrimaryTenantName, "Primary tenant named", SeverityError, primaryTenantName},
}

// Evaluate runs every check in order. A case is ready when no error-level
// check fails; the score is the rounded share of passed checks.
func Evaluate(in Input) *Report {
	r := &Report{Checks: make([]CheckResult, 0, len(checks)), Checked: in.Now}
	if in.Case != nil {
		r.CaseID = in.Case.ID
	}
	r.Ready = true
	for _, c := range checks {
		passed, details := false, "case is missing"
		if in.Case != nil {
			passed, details = c.eval(in)
		}
		r.Checks = append(r.Checks, CheckResult{ID: c.id, Name: c.name, Passed: passed, Severity: c.severity, Details: details})
		if passed {
			r.Passed++
		} else if c.severity == SeverityError {
			r.Ready = false
		}
	}
	r.Total = len(r.Checks)
	r.Score = int(math.Round(100 * float64(r.Passed) / float64(r.Total)))
	return r
}

func moveOutDate(in Input) (bool, string) {
	if in.Case.MoveOutDate.IsZero() {
		return false, "move-out date is not set"
	}
	return true, in.Case.MoveOutDate.Format("2006-01-02")
}

func deadlineNotPassed(in Input) (bool, string) {
	if in.Case.DueDate.IsZero() {
		return false, "due date is not set"
	}
	days := calculator.CalculateDaysUntilDeadline(in.Case.DueDate, in.Now)
	if days < 0 {
		return false, fmt.Sprintf("deadline passed %d day(s) ago", -days)
	}
	return true, fmt.Sprintf("%d day(s) remaining", days)
}

func deductionsReconcile(in Input) (bool, string) {
	total := in.Case.TotalDeductions()
	available := calculator.RoundCents(in.Case.DepositAmount + in.Case.DepositInterest)
	if total > available {
		return false, fmt.Sprintf("deductions %.2f exceed deposit and interest %.2f", total, available)
	}
	return true, fmt.Sprintf("deductions %.2f of %.2f", total, available)
}

func noticeLetter(in Input) (bool, string) {
	if in.Case.HasDocument(disposition.DocumentNoticeLetter) {
		return true, "notice letter on file"
	}
	return false, "notice letter has not been generated"
}

func itemizedStatement(in Input) (bool, string) {
	if !in.ItemizationRequired || len(in.Case.Deductions) == 0 {
		return true, "not required"
	}
	if in.Case.HasDocument(disposition.DocumentItemizedStatement) {
		return true, "itemized statement on file"
	}
	return false, "jurisdiction requires an itemized statement of deductions"
}

func deliveryMethod(in Input) (bool, string) {
	if in.Case.DeliveryMethod == "" {
		return false, "no delivery method selected"
	}
	return true, string(in.Case.DeliveryMethod)
}

func forwardingAddress(in Input) (bool, string) {
	s := in.Case.ForwardingAddressStatus
	if s.IsDocumented() {
		return true, string(s)
	}
	return false, "forwarding address status is not documented"
}

func checklistComplete(in Input) (bool, string) {
	labels := disposition.Blockers(in.Case.Checklist, true)
	if len(labels) == 0 {
		return true, "all required items complete"
	}
	return false, "outstanding: " + strings.Join(labels, ", ")
}

func deductionEvidence(in Input) (bool, string) {
	var missing []string
	for _, d := range in.Case.Deductions {
		if !d.HasEvidence {
			missing = append(missing, d.Description)
		}
	}
	if len(missing) == 0 {
		return true, "all deductions have evidence"
	}
	return false, "no evidence for: " + strings.Join(missing, ", ")
}

func highRiskDeductions(in Input) (bool, string) {
	var risky []string
	for _, d := range in.Case.Deductions {
		if d.RiskLevel == disposition.RiskHigh {
			risky = append(risky, d.Description)
		}
	}
	if len(risky) == 0 {
		return true, "none"
	}
	return false, "high risk: " + strings.Join(risky, ", ")
}

func primaryTenantName(in Input) (bool, string) {
	t := in.Case.PrimaryTenant()
	if t == nil || strings.TrimSpace(t.Name) == "" {
		return false, "primary tenant has no name"
	}
	return true, t.Name
}
