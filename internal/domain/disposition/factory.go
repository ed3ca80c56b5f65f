package disposition

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/landlordcomply/landlordcomply/internal/domain/calculator"
	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// NewCaseParams are the inputs to open a case.
type NewCaseParams struct {
	UserID         string
	Property       *Property
	Resolution     *jurisdiction.Resolution
	MoveOutDate    time.Time
	LeaseStartDate *time.Time
	LeaseEndDate   *time.Time
	DepositAmount  float64
	TenantName     string
	TenantEmail    string
	Actor          string
}

// NewCase opens an ACTIVE case with its primary tenant, the default
// checklist and a CASE_CREATED audit event. The due date and interest come
// from the resolved rule set.
func NewCase(p NewCaseParams, now time.Time) (*Case, *AuditEvent, error) {
	if p.Property == nil || p.Resolution == nil || p.Resolution.RuleSet == nil || p.Resolution.Jurisdiction == nil {
		return nil, nil, errors.InvalidParam("property and resolved rules are required")
	}
	if p.UserID == "" || p.Property.UserID != p.UserID {
		return nil, nil, errors.New(errors.ErrCodePropertyNotFound, "property not found").WithDetail(p.Property.ID)
	}
	if p.MoveOutDate.IsZero() {
		return nil, nil, errors.InvalidParam("move-out date is required")
	}
	if p.DepositAmount < 0 {
		return nil, nil, errors.InvalidParam("deposit amount must not be negative")
	}
	name := strings.TrimSpace(p.TenantName)
	if name == "" {
		return nil, nil, errors.InvalidParam("primary tenant name is required")
	}
	if p.LeaseStartDate != nil && p.LeaseEndDate != nil && p.LeaseEndDate.Before(*p.LeaseStartDate) {
		return nil, nil, errors.InvalidParam("lease end date precedes lease start date")
	}

	rs := p.Resolution.RuleSet
	id := uuid.NewString()
	interest := 0.0
	if p.LeaseStartDate != nil {
		end := p.MoveOutDate
		if p.LeaseEndDate != nil {
			end = *p.LeaseEndDate
		}
		interest = calculator.CalculateInterest(p.DepositAmount, rs.ApplicableInterestRate(), *p.LeaseStartDate, end)
	}

	c := &Case{
		ID:                      id,
		UserID:                  p.UserID,
		PropertyID:              p.Property.ID,
		JurisdictionID:          p.Resolution.Jurisdiction.ID,
		RuleSetID:               rs.ID,
		MoveOutDate:             p.MoveOutDate,
		LeaseStartDate:          p.LeaseStartDate,
		LeaseEndDate:            p.LeaseEndDate,
		DepositAmount:           calculator.RoundCents(p.DepositAmount),
		DepositInterest:         interest,
		DueDate:                 calculator.CalculateDeadline(p.MoveOutDate, rs.ReturnDeadlineDays),
		Status:                  StatusActive,
		ForwardingAddressStatus: ForwardingUnknown,
		CreatedAt:               now.UTC(),
		UpdatedAt:               now.UTC(),
		Tenants: []*Tenant{{
			ID:        uuid.NewString(),
			CaseID:    id,
			Name:      name,
			Email:     strings.TrimSpace(p.TenantEmail),
			IsPrimary: true,
		}},
		Checklist: DefaultChecklist(id, rs.ItemizationRequired),
	}

	ev := NewAuditEvent(id, ActionCaseCreated,
		fmt.Sprintf("Case opened under %s rules v%d", p.Resolution.Jurisdiction.DisplayName(), rs.Version),
		p.Actor,
		map[string]any{
			"rule_set_id": rs.ID,
			"due_date":    c.DueDate.Format("2006-01-02"),
			"deposit":     c.DepositAmount,
			"interest":    c.DepositInterest,
		}, now)
	return c, ev, nil
}

// NewDeductionParams are the inputs to add a deduction. With ItemAgeMonths
// set, Amount is the full replacement cost and the stored amount is prorated.
type NewDeductionParams struct {
	Description      string
	Category         string
	Amount           float64
	RiskLevel        RiskLevel
	HasEvidence      bool
	ItemAgeMonths    *float64
	UsefulLifeMonths *float64
}

// NewDeduction validates p and returns the deduction for caseID.
func NewDeduction(caseID string, p NewDeductionParams, now time.Time) (*Deduction, error) {
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		return nil, errors.InvalidParam("deduction description is required")
	}
	if p.Amount < 0 {
		return nil, errors.InvalidParam("deduction amount must not be negative")
	}
	risk := p.RiskLevel
	if risk == "" {
		risk = RiskLow
	}
	if !risk.IsValid() {
		return nil, errors.InvalidParam("unknown risk level").WithDetail(string(risk))
	}
	category := strings.TrimSpace(p.Category)
	if category == "" {
		category = "other"
	}

	d := &Deduction{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		Description: desc,
		Category:    strings.ToLower(category),
		Amount:      calculator.RoundCents(p.Amount),
		RiskLevel:   risk,
		HasEvidence: p.HasEvidence,
		CreatedAt:   now.UTC(),
	}
	if p.ItemAgeMonths != nil {
		life := float64(calculator.DefaultUsefulLifeMonths)
		if p.UsefulLifeMonths != nil && *p.UsefulLifeMonths > 0 {
			life = *p.UsefulLifeMonths
		}
		original := d.Amount
		d.OriginalAmount = &original
		d.ItemAgeMonths = p.ItemAgeMonths
		d.UsefulLifeMonths = &life
		d.Amount = calculator.ApplyProration(original, *p.ItemAgeMonths, life)
	}
	return d, nil
}
