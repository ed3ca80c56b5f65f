// Package jurisdiction models the legal scopes (a state, or a city within a
// state) that publish security-deposit rules, and the versioned rule sets
// they publish.
package jurisdiction

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// Coverage describes how completely a jurisdiction's rules are modelled.
type Coverage string

const (
	CoverageFull      Coverage = "FULL"
	CoveragePartial   Coverage = "PARTIAL"
	CoverageStateOnly Coverage = "STATE_ONLY"
)

// IsValid reports whether c is a known coverage level.
func (c Coverage) IsValid() bool {
	switch c {
	case CoverageFull, CoveragePartial, CoverageStateOnly:
		return true
	}
	return false
}

// Jurisdiction is a state (City nil) or a city within a state. One
// state-level record may coexist with any number of city records.
type Jurisdiction struct {
	ID        string    `json:"id"`
	StateCode string    `json:"state_code"`
	City      *string   `json:"city,omitempty"`
	Coverage  Coverage  `json:"coverage"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJurisdiction validates its inputs and returns an active jurisdiction.
// An empty city yields a state-level record.
func NewJurisdiction(stateCode, city string, coverage Coverage) (*Jurisdiction, error) {
	state, err := NormalizeState(stateCode)
	if err != nil {
		return nil, err
	}
	if coverage == "" {
		coverage = CoverageFull
	}
	if !coverage.IsValid() {
		return nil, errors.InvalidParam("unknown coverage level").WithDetail(string(coverage))
	}
	now := time.Now().UTC()
	j := &Jurisdiction{
		ID:        uuid.NewString(),
		StateCode: state,
		Coverage:  coverage,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c := strings.TrimSpace(city); c != "" {
		j.City = &c
	}
	return j, nil
}

// IsStateLevel reports whether the record covers the whole state.
func (j *Jurisdiction) IsStateLevel() bool {
	return j.City == nil || strings.TrimSpace(*j.City) == ""
}

// MatchesCity compares city names case-insensitively, ignoring surrounding
// whitespace.
func (j *Jurisdiction) MatchesCity(city string) bool {
	if j.IsStateLevel() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(*j.City), strings.TrimSpace(city))
}

// DisplayName renders "Seattle, WA" or "WA".
func (j *Jurisdiction) DisplayName() string {
	if j.IsStateLevel() {
		return j.StateCode
	}
	return *j.City + ", " + j.StateCode
}

// NormalizeState upper-cases and validates a two-letter state code.
func NormalizeState(code string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(code))
	if len(s) != 2 || s[0] < 'A' || s[0] > 'Z' || s[1] < 'A' || s[1] > 'Z' {
		return "", errors.InvalidParam("state code must be two letters").WithDetail(code)
	}
	return s, nil
}

// Penalty is one statutory consequence attached to a rule set, e.g.
// condition "failure to return within deadline", description "twice the
// deposit".
type Penalty struct {
	Condition   string `json:"condition" yaml:"condition"`
	Description string `json:"description" yaml:"description"`
	Citation    string `json:"citation,omitempty" yaml:"citation"`
}

// RuleSet is a versioned, time-effective snapshot of a jurisdiction's
// deposit rules.
type RuleSet struct {
	ID                     string    `json:"id"`
	JurisdictionID         string    `json:"jurisdiction_id"`
	Version                int       `json:"version"`
	EffectiveDate          time.Time `json:"effective_date"`
	ReturnDeadlineDays     int       `json:"return_deadline_days"`
	InterestRequired       bool      `json:"interest_required"`
	InterestRate           *float64  `json:"interest_rate,omitempty"`
	ItemizationRequired    bool      `json:"itemization_required"`
	AllowedDeliveryMethods []string  `json:"allowed_delivery_methods"`
	MaxDepositMonths       *float64  `json:"max_deposit_months,omitempty"`
	Citations              []string  `json:"citations"`
	Penalties              []Penalty `json:"penalties"`
	CreatedAt              time.Time `json:"created_at"`
}

// Validate checks the invariants a rule set must satisfy before it is
// stored.
func (r *RuleSet) Validate() error {
	if r.JurisdictionID == "" {
		return errors.InvalidParam("rule set requires a jurisdiction")
	}
	if r.EffectiveDate.IsZero() {
		return errors.InvalidParam("rule set requires an effective date")
	}
	if r.ReturnDeadlineDays < 0 {
		return errors.InvalidParam("return deadline days must not be negative")
	}
	if r.InterestRate != nil && *r.InterestRate < 0 {
		return errors.InvalidParam("interest rate must not be negative")
	}
	if r.MaxDepositMonths != nil && *r.MaxDepositMonths <= 0 {
		return errors.InvalidParam("max deposit months must be positive")
	}
	return nil
}

// ApplicableInterestRate returns the rate to accrue, or nil when the
// jurisdiction does not require interest.
func (r *RuleSet) ApplicableInterestRate() *float64 {
	if !r.InterestRequired {
		return nil
	}
	return r.InterestRate
}

// AllowsDeliveryMethod reports whether method is acceptable. An empty
// allow-list accepts any method.
func (r *RuleSet) AllowsDeliveryMethod(method string) bool {
	if len(r.AllowedDeliveryMethods) == 0 {
		return true
	}
	for _, m := range r.AllowedDeliveryMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}
